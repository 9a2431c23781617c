package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json field names so errors line up with the wire format
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateRecord checks field constraints and the presence of a parent id.
// Parent existence is left to the record store.
func ValidateRecord(r Record) error {
	var fields []FieldError

	if err := validatorInstance().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate %s: %w", r.Kind(), err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
		}
	}

	if parent := r.ParentKind(); parent != "" && r.ParentID() == nil {
		fields = append(fields, FieldError{Field: string(parent), Tag: "required"})
	}

	if len(fields) > 0 {
		return &ValidationError{
			Entity:  r.Kind(),
			Key:     ErrKeyFieldInvalid,
			Message: "invalid field values",
			Fields:  fields,
		}
	}
	return nil
}
