// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/VaradSinghal/EchoV3/internal/handler"
)

// PublicPaths is the set of routes that skip token authentication.  The
// webhook receiver authenticates with HMAC signatures instead of a
// session; the auth entry points have nothing to authenticate yet.
func PublicPaths() map[string]bool {
	return map[string]bool{
		"/healthz":                 true,
		"/v1/auth/signup":          true,
		"/v1/auth/login":           true,
		"/v1/auth/refresh":         true,
		"/v1/auth/github":          true,
		"/v1/auth/github/callback": true,
		"/api/webhooks/github":     true,
	}
}

// RegisterHealth exposes the health check endpoint used by load balancers
// and monitoring systems.
func RegisterHealth(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Check)
}

// RegisterAuth registers the authentication routes.  Signup, login,
// refresh and the OAuth flow live under /v1/auth and require no session;
// logout and /v1/me run behind the token middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.GET("/github", a.GitHubAuth)
	g.GET("/github/callback", a.GitHubCallback)

	e.POST("/v1/auth/logout", a.Logout)
	e.GET("/v1/me", a.Me)
}

// RegisterRepositories registers the repository tracking endpoints.  All
// of them require an authenticated user.
func RegisterRepositories(e *echo.Echo, r *handler.RepositoryHandler) {
	g := e.Group("/v1/repositories")
	g.GET("", r.List)
	g.POST("", r.Add)
	g.GET("/:id", r.Get)
	g.DELETE("/:id", r.Delete)
	g.GET("/:id/settings", r.GetSettings)
	g.PUT("/:id/settings", r.UpdateSettings)
	g.POST("/:id/sync", r.Sync)
	g.GET("/:id/branches", r.Branches)
	g.GET("/:id/contributors", r.Contributors)
	g.GET("/:id/languages", r.Languages)
	g.GET("/:id/webhooks", r.ListWebhooks)
	g.POST("/:id/webhooks", r.CreateWebhook)
	g.DELETE("/:id/webhooks/:hookID", r.DeleteWebhook)
}

// RegisterWebhooks registers the inbound GitHub webhook receiver.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler) {
	e.POST("/api/webhooks/github", w.Handle)
}
