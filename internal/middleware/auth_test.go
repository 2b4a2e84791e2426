package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VaradSinghal/EchoV3/internal/token"
)

func authTestEcho(tokens *token.Service) *echo.Echo {
	e := echo.New()
	e.Use(Auth(tokens, map[string]bool{"/public": true}))
	handler := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"subject": CurrentUserID(c)})
	}
	e.GET("/public", handler)
	e.GET("/private", handler)
	return e
}

func doGet(e *echo.Echo, path, authHeader string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthPublicPathSkipsCheck(t *testing.T) {
	tokens := token.New("secret", time.Minute, time.Hour)
	e := authTestEcho(tokens)

	rec := doGet(e, "/public", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMissingHeader(t *testing.T) {
	tokens := token.New("secret", time.Minute, time.Hour)
	e := authTestEcho(tokens)

	rec := doGet(e, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authentication token")
}

func TestAuthBadScheme(t *testing.T) {
	tokens := token.New("secret", time.Minute, time.Hour)
	e := authTestEcho(tokens)

	rec := doGet(e, "/private", "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid authentication scheme")
}

func TestAuthValidTokenInjectsSubject(t *testing.T) {
	tokens := token.New("secret", time.Minute, time.Hour)
	e := authTestEcho(tokens)

	raw, _, err := tokens.IssueAccess("user-42")
	require.NoError(t, err)

	rec := doGet(e, "/private", "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user-42")
}

func TestAuthRejectsRefreshTokenOnProtectedRoute(t *testing.T) {
	tokens := token.New("secret", time.Minute, time.Hour)
	e := authTestEcho(tokens)

	raw, _, err := tokens.IssueRefresh("user-42")
	require.NoError(t, err)

	rec := doGet(e, "/private", "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "access token required")
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := token.New("secret", time.Minute, time.Hour).
		WithClock(func() time.Time { return issuedAt })
	raw, _, err := issuer.IssueAccess("user-42")
	require.NoError(t, err)

	// The verifying service sits two minutes in the future.
	verifier := token.New("secret", time.Minute, time.Hour).
		WithClock(func() time.Time { return issuedAt.Add(2 * time.Minute) })
	e := authTestEcho(verifier)

	rec := doGet(e, "/private", "Bearer "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	tokens := token.New("secret", time.Minute, time.Hour)
	e := authTestEcho(tokens)

	rec := doGet(e, "/private", "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}
