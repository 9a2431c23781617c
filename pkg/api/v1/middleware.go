package apiv1

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// RequireToken returns middleware that checks for "Bearer <token>". An empty
// token disables the check.
func RequireToken(token string) echo.MiddlewareFunc {
	expected := []byte("Bearer " + token)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" || subtle.ConstantTimeCompare([]byte(header), expected) != 1 {
				log.Debug().
					Str("path", c.Path()).
					Bool("token_present", header != "").
					Msg("token validation failed")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":   "unauthorized",
					"message": "bearer token required",
				})
			}
			return next(c)
		}
	}
}
