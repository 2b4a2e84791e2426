package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/VaradSinghal/EchoV3/internal/token"
)

// ContextUserID is the echo context key under which the verified subject
// is stored for downstream handlers and the rate limiter.
const ContextUserID = "user_id"

// Auth returns an Echo middleware that validates a Bearer access token on
// every request except the public allow-list and CORS pre-flights.  On
// success the verified subject is injected into the request context under
// ContextUserID; on failure the request is short-circuited with 401 and
// the downstream handler never runs.
func Auth(tokens *token.Service, public map[string]bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if public[req.URL.Path] || req.Method == http.MethodOptions {
				return next(c)
			}

			auth := req.Header.Get("Authorization")
			if auth == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authentication token"})
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authentication scheme"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := tokens.Verify(raw, token.KindAccess)
			if err != nil {
				switch {
				case errors.Is(err, token.ErrExpired):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
				case errors.Is(err, token.ErrWrongKind):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "access token required"})
				default:
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
			}

			c.Set(ContextUserID, claims.Subject)
			return next(c)
		}
	}
}
