package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/bizcache/server/internal/errors"
)

const bearerPrefix = "Bearer "

// AdminAuth guards operator routes such as cache invalidation.
//
// With a token, requests must send "Authorization: Bearer <token>". Without one
// the routes are open when allowOpen is set (dev and demo) and refused otherwise.
func AdminAuth(token string, allowOpen bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				if allowOpen {
					return next(c)
				}
				return apierrors.PermissionDenied("admin routes are disabled, set an admin token to enable them")
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return apierrors.Unauthenticated("missing bearer token")
			}
			given := strings.TrimPrefix(header, bearerPrefix)
			if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				return apierrors.Unauthenticated("invalid bearer token")
			}
			return next(c)
		}
	}
}
