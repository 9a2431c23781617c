package types

import (
	"errors"
	"fmt"
	"strings"
)

// Machine-readable error keys reported to API clients
const (
	ErrKeyIDExists       = "idexists"
	ErrKeyIDNull         = "idnull"
	ErrKeyIDInvalid      = "idinvalid"
	ErrKeyIDNotFound     = "idnotfound"
	ErrKeyFieldInvalid   = "fieldinvalid"
	ErrKeySortInvalid    = "sortinvalid"
	ErrKeyParentNotFound = "parentnotfound"
	ErrKeyUnique         = "unique"
	ErrKeyConstraint     = "constraint"
)

// FieldError describes a single failed field constraint
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// ValidationError is returned for malformed or contradictory input
type ValidationError struct {
	Entity  Kind
	Key     string
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Entity, e.Message, e.Key)
	}
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field+":"+f.Tag)
	}
	return fmt.Sprintf("%s: %s (%s) [%s]", e.Entity, e.Message, e.Key, strings.Join(names, ", "))
}

// NewValidationError builds a ValidationError with the given key
func NewValidationError(kind Kind, key, message string) *ValidationError {
	return &ValidationError{Entity: kind, Key: key, Message: message}
}

// ErrRecordNotFound is returned when a record cannot be found by id
type ErrRecordNotFound struct {
	Kind Kind
	ID   int64
}

func (e *ErrRecordNotFound) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}

// IsNotFound reports whether err is (or wraps) an ErrRecordNotFound
func IsNotFound(err error) bool {
	var notFound *ErrRecordNotFound
	return errors.As(err, &notFound)
}

// ConstraintReason classifies a store-level constraint violation
type ConstraintReason string

const (
	ConstraintUnique     ConstraintReason = "unique"
	ConstraintParent     ConstraintReason = "parent"
	ConstraintDependents ConstraintReason = "dependents"
	ConstraintCheck      ConstraintReason = "check"
)

// ConstraintError is returned by the record store when a write violates a
// uniqueness, referential or check constraint.
type ConstraintError struct {
	Kind       Kind
	Constraint string
	Reason     ConstraintReason
	Err        error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s violates %s constraint", e.Kind, e.Reason)
	if e.Constraint != "" {
		msg += " " + e.Constraint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Key returns the API error key for the violation
func (e *ConstraintError) Key() string {
	switch e.Reason {
	case ConstraintUnique:
		return ErrKeyUnique
	case ConstraintParent:
		return ErrKeyParentNotFound
	}
	return ErrKeyConstraint
}
