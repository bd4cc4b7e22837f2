package middleware

import (
	"net/http"

	"github.com/filecoin-project/go-address"
	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UploaderKey is the context key for storing the caller's identity
	UploaderKey ContextKey = "uploader"
)

// ExtractUploader extracts and validates the X-Uploader-Addr header and
// stores the parsed address in the request context. Record creation
// requires it: the zero identity is the ledger's existence sentinel and
// can never be stored.
func ExtractUploader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get("X-Uploader-Addr")

			if raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "X-Uploader-Addr header is required",
				})
			}

			uploader, err := address.NewFromString(raw)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"error": "invalid uploader address",
				})
			}

			c.Set(string(UploaderKey), uploader)
			return next(c)
		}
	}
}

// GetUploader retrieves the uploader address from the request context.
// Returns address.Undef if not set.
func GetUploader(c echo.Context) address.Address {
	uploader := c.Get(string(UploaderKey))
	if uploader == nil {
		return address.Undef
	}
	return uploader.(address.Address)
}
