package middleware

// identity.go defines helper functions shared across middleware files and
// handlers.  CurrentUserID pulls the subject stored by the Auth middleware
// out of the Echo context; callers receive an empty string for anonymous
// requests.

import "github.com/labstack/echo/v4"

// CurrentUserID returns the authenticated subject or "" when the request
// did not pass the auth gate (public routes).
func CurrentUserID(c echo.Context) string {
	if v := c.Get(ContextUserID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
