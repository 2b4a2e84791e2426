package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VaradSinghal/EchoV3/internal/config"
	"github.com/VaradSinghal/EchoV3/internal/github"
	"github.com/VaradSinghal/EchoV3/internal/middleware"
	"github.com/VaradSinghal/EchoV3/internal/model"
	"github.com/VaradSinghal/EchoV3/internal/repository"
	"github.com/VaradSinghal/EchoV3/internal/token"
	"github.com/VaradSinghal/EchoV3/internal/utils"
)

// UserStore is the slice of the data-access layer the auth endpoints use.
type UserStore interface {
	Create(ctx context.Context, email, password, displayName string, cost int) (string, error)
	CreateFromGitHub(ctx context.Context, email, displayName, ghID, ghLogin, ghAvatar, ghToken string) (string, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByGitHubID(ctx context.Context, ghID string) (model.User, error)
	LinkGitHub(ctx context.Context, userID, ghID, ghLogin, ghAvatar, ghToken string) error
}

// SessionStore is the slice of the data-access layer backing refresh
// token revocation.
type SessionStore interface {
	Create(ctx context.Context, userID, tokenHash string, exp time.Time) (string, error)
	GetActiveByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	Deactivate(ctx context.Context, id string) error
	DeactivateAllForUser(ctx context.Context, userID string) error
	Touch(ctx context.Context, id string) error
}

// GitHubUserAPI is the part of the GitHub client the OAuth callback uses.
type GitHubUserAPI interface {
	GetUser(ctx context.Context) (*github.User, error)
	ListEmails(ctx context.Context) ([]github.Email, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionStore
	Tokens   *token.Service
	OAuth    *github.OAuth
	// Clients builds a GitHub client for a fresh OAuth token; swappable in tests.
	Clients func(token string) GitHubUserAPI
}

func NewAuthHandler(cfg config.Config, u UserStore, s SessionStore, t *token.Service, oauth *github.OAuth) *AuthHandler {
	return &AuthHandler{
		Cfg: cfg, Users: u, Sessions: s, Tokens: t, OAuth: oauth,
		Clients: func(tok string) GitHubUserAPI { return github.NewClient(tok) },
	}
}

// ----- DTOs -----

type signupReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	GitHubLogin string `json:"github_username,omitempty"`
	AvatarURL   string `json:"github_avatar_url,omitempty"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		GitHubLogin: u.GitHubLogin,
		AvatarURL:   u.GitHubAvatarURL,
	}
}

// issuePair signs an access/refresh token pair and stores a session row
// keyed by the refresh token's hash.
func (h *AuthHandler) issuePair(ctx context.Context, u model.User) (authResp, error) {
	access, ac, err := h.Tokens.IssueAccess(u.ID)
	if err != nil {
		return authResp{}, err
	}
	refresh, rc, err := h.Tokens.IssueRefresh(u.ID)
	if err != nil {
		return authResp{}, err
	}
	if _, err := h.Sessions.Create(ctx, u.ID, token.HashRefresh(refresh), rc.ExpiresAt); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access, Expires: ac.ExpiresAt},
		Refresh: tokenPart{Token: refresh, Expires: rc.ExpiresAt}, // raw back to client
	}, nil
}

// Signup: create user and return tokens immediately.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, strings.TrimSpace(req.DisplayName), h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if u.PasswordHash == "" || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	}

	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: verify the refresh token, check its session is still active,
// rotate it and return a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	raw := strings.TrimSpace(req.RefreshToken)

	claims, err := h.Tokens.Verify(raw, token.KindRefresh)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.GetActiveByTokenHash(ctx, token.HashRefresh(raw))
	if err != nil {
		// Token signature was fine but the session was revoked or rotated away.
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired refresh token"})
	}
	_ = h.Sessions.Touch(ctx, sess.ID)
	// Rotation: the presented token is single-use.
	if err := h.Sessions.Deactivate(ctx, sess.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate session failed"})
	}

	u, err := h.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout: deactivate every session of the authenticated user.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid := middleware.CurrentUserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.DeactivateAllForUser(ctx, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "successfully logged out"})
}

// Me: return the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	uid := middleware.CurrentUserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// GitHubAuth: redirect the browser into GitHub's authorization flow.
func (h *AuthHandler) GitHubAuth(c echo.Context) error {
	if h.OAuth == nil || !h.OAuth.Configured() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "github oauth not configured"})
	}
	return c.Redirect(http.StatusTemporaryRedirect, h.OAuth.AuthURL(c.QueryParam("state")))
}

// GitHubCallback: exchange the code, fetch the GitHub identity and link
// or create the local user, then hand the token pair to the frontend.
func (h *AuthHandler) GitHubCallback(c echo.Context) error {
	if h.OAuth == nil || !h.OAuth.Configured() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "github oauth not configured"})
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	ghToken, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to authenticate with github"})
	}

	client := h.Clients(ghToken)
	ghUser, err := client.GetUser(ctx)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to fetch github user"})
	}
	email := ghUser.Email
	if emails, err := client.ListEmails(ctx); err == nil {
		for _, e := range emails {
			if e.Primary {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no email found in github account"})
	}

	u, err := h.resolveGitHubUser(ctx, ghUser, email, ghToken)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "link github account failed"})
	}

	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}

	cb, err := url.Parse(h.Cfg.FrontendCallback)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bad frontend callback"})
	}
	q := cb.Query()
	q.Set("access_token", resp.Access.Token)
	q.Set("refresh_token", resp.Refresh.Token)
	cb.RawQuery = q.Encode()
	return c.Redirect(http.StatusTemporaryRedirect, cb.String())
}

// resolveGitHubUser finds the local account for a GitHub identity: by
// linked GitHub id first, then by email, creating a fresh user when
// neither matches.  The stored access token is refreshed in every case.
func (h *AuthHandler) resolveGitHubUser(ctx context.Context, ghUser *github.User, email, ghToken string) (model.User, error) {
	ghID := strconv.FormatInt(ghUser.ID, 10)

	u, err := h.Users.GetByGitHubID(ctx, ghID)
	switch {
	case err == nil:
		// already linked, refresh identity data
	case errors.Is(err, repository.ErrNotFound):
		u, err = h.Users.GetByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			name := ghUser.Name
			if name == "" {
				name = ghUser.Login
			}
			uid, cerr := h.Users.CreateFromGitHub(ctx, email, name, ghID, ghUser.Login, ghUser.AvatarURL, ghToken)
			if cerr != nil {
				return model.User{}, cerr
			}
			return h.Users.GetByID(ctx, uid)
		}
		if err != nil {
			return model.User{}, err
		}
	default:
		return model.User{}, err
	}

	if err := h.Users.LinkGitHub(ctx, u.ID, ghID, ghUser.Login, ghUser.AvatarURL, ghToken); err != nil {
		log.Printf("auth: refresh github link for %s: %v", u.ID, err)
	}
	return h.Users.GetByID(ctx, u.ID)
}

