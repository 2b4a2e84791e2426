package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VaradSinghal/EchoV3/internal/config"
	"github.com/VaradSinghal/EchoV3/internal/handler"
	"github.com/VaradSinghal/EchoV3/internal/middleware"
	"github.com/VaradSinghal/EchoV3/internal/model"
	"github.com/VaradSinghal/EchoV3/internal/repository"
	"github.com/VaradSinghal/EchoV3/internal/router"
	"github.com/VaradSinghal/EchoV3/internal/token"
	"github.com/VaradSinghal/EchoV3/internal/utils"
)

// ----- in-memory stores -----

type memUsers struct {
	seq  int
	byID map[string]model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]model.User{}} }

func (m *memUsers) nextID() string {
	m.seq++
	return "user-" + time.Now().Format("150405") + "-" + string(rune('a'+m.seq))
}

func (m *memUsers) Create(_ context.Context, email, password, displayName string, cost int) (string, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return "", repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := m.nextID()
	m.byID[id] = model.User{ID: id, Email: email, PasswordHash: hash, DisplayName: displayName, IsActive: true}
	return id, nil
}

func (m *memUsers) CreateFromGitHub(_ context.Context, email, displayName, ghID, ghLogin, ghAvatar, ghToken string) (string, error) {
	id := m.nextID()
	m.byID[id] = model.User{
		ID: id, Email: email, DisplayName: displayName, GitHubID: ghID,
		GitHubLogin: ghLogin, GitHubAvatarURL: ghAvatar, GitHubAccessToken: ghToken, IsActive: true,
	}
	return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByGitHubID(_ context.Context, ghID string) (model.User, error) {
	for _, u := range m.byID {
		if u.GitHubID != "" && u.GitHubID == ghID {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) LinkGitHub(_ context.Context, userID, ghID, ghLogin, ghAvatar, ghToken string) error {
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.GitHubID, u.GitHubLogin, u.GitHubAvatarURL, u.GitHubAccessToken = ghID, ghLogin, ghAvatar, ghToken
	m.byID[userID] = u
	return nil
}

type memSessions struct {
	seq  int
	byID map[string]model.Session
}

func newMemSessions() *memSessions { return &memSessions{byID: map[string]model.Session{}} }

func (m *memSessions) Create(_ context.Context, userID, tokenHash string, exp time.Time) (string, error) {
	m.seq++
	id := "sess-" + string(rune('a'+m.seq))
	m.byID[id] = model.Session{ID: id, UserID: userID, RefreshTokenHash: tokenHash, IsActive: true, ExpiresAt: exp}
	return id, nil
}

func (m *memSessions) GetActiveByTokenHash(_ context.Context, tokenHash string) (model.Session, error) {
	for _, s := range m.byID {
		if s.RefreshTokenHash == tokenHash && s.IsActive {
			return s, nil
		}
	}
	return model.Session{}, repository.ErrNotFound
}

func (m *memSessions) Deactivate(_ context.Context, id string) error {
	s, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.IsActive = false
	m.byID[id] = s
	return nil
}

func (m *memSessions) DeactivateAllForUser(_ context.Context, userID string) error {
	for id, s := range m.byID {
		if s.UserID == userID {
			s.IsActive = false
			m.byID[id] = s
		}
	}
	return nil
}

func (m *memSessions) Touch(_ context.Context, id string) error { return nil }

func (m *memSessions) activeCount(userID string) int {
	n := 0
	for _, s := range m.byID {
		if s.UserID == userID && s.IsActive {
			n++
		}
	}
	return n
}

// ----- harness -----

type authEnv struct {
	e        *echo.Echo
	users    *memUsers
	sessions *memSessions
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	cfg := config.Config{BcryptCost: 4}
	users := newMemUsers()
	sessions := newMemSessions()
	tokens := token.New("test-secret", 15*time.Minute, 7*24*time.Hour)

	h := handler.NewAuthHandler(cfg, users, sessions, tokens, nil)

	e := echo.New()
	e.Use(middleware.Auth(tokens, router.PublicPaths()))
	router.RegisterAuth(e, h)
	return &authEnv{e: e, users: users, sessions: sessions}
}

func (env *authEnv) do(method, path, body, bearer string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	env.e.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

func parseAuth(t *testing.T, rec *httptest.ResponseRecorder) authBody {
	t.Helper()
	var b authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

// ----- tests -----

func TestSignupReturnsTokenPair(t *testing.T) {
	env := newAuthEnv(t)

	rec := env.do(http.MethodPost, "/v1/auth/signup",
		`{"email":"dev@example.com","password":"hunter22","display_name":"Dev"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	b := parseAuth(t, rec)
	assert.Equal(t, "dev@example.com", b.User.Email)
	assert.NotEmpty(t, b.Access.Token)
	assert.NotEmpty(t, b.Refresh.Token)
	assert.Equal(t, 1, env.sessions.activeCount(b.User.ID))
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newAuthEnv(t)
	body := `{"email":"dev@example.com","password":"hunter22"}`

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/v1/auth/signup", body, "").Code)
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/v1/auth/signup", body, "").Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newAuthEnv(t)
	env.do(http.MethodPost, "/v1/auth/signup", `{"email":"dev@example.com","password":"hunter22"}`, "")

	rec := env.do(http.MethodPost, "/v1/auth/login", `{"email":"dev@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/v1/auth/login", `{"email":"nobody@example.com","password":"x"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown email and bad password are indistinguishable")
}

func TestLoginAndMeRoundtrip(t *testing.T) {
	env := newAuthEnv(t)
	env.do(http.MethodPost, "/v1/auth/signup", `{"email":"dev@example.com","password":"hunter22"}`, "")

	rec := env.do(http.MethodPost, "/v1/auth/login", `{"email":"dev@example.com","password":"hunter22"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	b := parseAuth(t, rec)

	me := env.do(http.MethodGet, "/v1/me", "", b.Access.Token)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), "dev@example.com")
}

func TestMeWithoutTokenRejected(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(http.MethodGet, "/v1/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeRejectsRefreshToken(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(http.MethodPost, "/v1/auth/signup", `{"email":"dev@example.com","password":"hunter22"}`, "")
	b := parseAuth(t, rec)

	me := env.do(http.MethodGet, "/v1/me", "", b.Refresh.Token)
	assert.Equal(t, http.StatusUnauthorized, me.Code)
}

func TestRefreshRotatesSession(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(http.MethodPost, "/v1/auth/signup", `{"email":"dev@example.com","password":"hunter22"}`, "")
	b := parseAuth(t, rec)

	// First refresh succeeds and returns a new pair.
	rec = env.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+b.Refresh.Token+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	next := parseAuth(t, rec)
	assert.NotEqual(t, b.Refresh.Token, next.Refresh.Token)

	// Replaying the rotated-out token is rejected.
	rec = env.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+b.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The replacement still works.
	rec = env.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+next.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutInvalidatesAllSessions(t *testing.T) {
	env := newAuthEnv(t)
	rec := env.do(http.MethodPost, "/v1/auth/signup", `{"email":"dev@example.com","password":"hunter22"}`, "")
	b := parseAuth(t, rec)

	// A second login opens a second session.
	env.do(http.MethodPost, "/v1/auth/login", `{"email":"dev@example.com","password":"hunter22"}`, "")
	require.Equal(t, 2, env.sessions.activeCount(b.User.ID))

	rec = env.do(http.MethodPost, "/v1/auth/logout", "", b.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.sessions.activeCount(b.User.ID))

	// Refresh with the pre-logout token now fails.
	rec = env.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+b.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
