package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/facilityhub/facility/pkg/types"
)

const (
	HttpServerBaseRoute string = "/api"
	HttpServerRootRoute string = ""

	// ApplicationName prefixes the alert headers sent on mutations
	ApplicationName string = "facilityApp"
)

func NewHTTPError(code int, message string) error {
	return echo.NewHTTPError(code, map[string]interface{}{
		"message": message,
	})
}

func HTTPBadRequest(message string) error {
	return NewHTTPError(http.StatusBadRequest, message)
}

func HTTPUnsupportedMediaType(message string) error {
	return NewHTTPError(http.StatusUnsupportedMediaType, message)
}

// Response is the error envelope; successful calls return the bare record
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Set on 400 responses
	ErrorKey string             `json:"error_key,omitempty"`
	Entity   types.Kind         `json:"entity,omitempty"`
	Fields   []types.FieldError `json:"fields,omitempty"`
}

// ErrorResponse returns an error response
func ErrorResponse(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{
		Success: false,
		Error:   message,
	})
}

// BadRequestResponse returns a 400 carrying a machine-readable error key
func BadRequestResponse(c echo.Context, kind types.Kind, key, message string, fields []types.FieldError) error {
	return c.JSON(http.StatusBadRequest, Response{
		Success:  false,
		Error:    message,
		ErrorKey: key,
		Entity:   kind,
		Fields:   fields,
	})
}
