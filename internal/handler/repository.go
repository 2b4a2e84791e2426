package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VaradSinghal/EchoV3/internal/config"
	"github.com/VaradSinghal/EchoV3/internal/github"
	"github.com/VaradSinghal/EchoV3/internal/middleware"
	"github.com/VaradSinghal/EchoV3/internal/model"
	"github.com/VaradSinghal/EchoV3/internal/repository"
	"github.com/VaradSinghal/EchoV3/internal/webhook"
)

// RepoStore is the slice of the data-access layer the repository
// endpoints use.
type RepoStore interface {
	Create(ctx context.Context, rp model.Repository) (string, error)
	GetByID(ctx context.Context, id, ownerID string) (model.Repository, error)
	ListByOwner(ctx context.Context, ownerID string, includeInactive bool) ([]model.Repository, error)
	Delete(ctx context.Context, id, ownerID string) error
	ApplySyncedMetadata(ctx context.Context, id string, m model.RepoMetadata, syncedAt time.Time) error
	RecordSyncError(ctx context.Context, id, msg string) error
}

// SettingsStore manages the per-repository sync settings row.
type SettingsStore interface {
	CreateDefaults(ctx context.Context, repositoryID string) error
	Get(ctx context.Context, repositoryID string) (model.SyncSettings, error)
	Update(ctx context.Context, repositoryID string, autoSync bool, intervalMinutes int) error
}

// HookStore manages webhook registrations for a repository.
type HookStore interface {
	Create(ctx context.Context, w model.Webhook) (string, error)
	GetByID(ctx context.Context, id string) (model.Webhook, error)
	ListByRepository(ctx context.Context, repositoryID string) ([]model.Webhook, error)
	Deactivate(ctx context.Context, id string) error
}

// GitHubRepoAPI is the part of the GitHub client the repository
// endpoints use.
type GitHubRepoAPI interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repo, error)
	ListBranches(ctx context.Context, owner, name string) ([]github.Branch, error)
	ListContributors(ctx context.Context, owner, name string) ([]github.Contributor, error)
	GetLanguages(ctx context.Context, owner, name string) (map[string]int64, error)
	CreateWebhook(ctx context.Context, owner, name, url, secret string, events []string) (*github.Hook, error)
	DeleteWebhook(ctx context.Context, owner, name string, hookID int64) error
}

// RepositoryHandler bundles dependencies for repository tracking,
// manual sync and webhook management endpoints.
type RepositoryHandler struct {
	Cfg      config.Config
	Users    UserStore
	Repos    RepoStore
	Settings SettingsStore
	Hooks    HookStore
	// Clients builds a GitHub client for a user's stored token; swappable in tests.
	Clients func(token string) GitHubRepoAPI
}

func NewRepositoryHandler(cfg config.Config, u UserStore, r RepoStore, s SettingsStore, h HookStore) *RepositoryHandler {
	return &RepositoryHandler{
		Cfg: cfg, Users: u, Repos: r, Settings: s, Hooks: h,
		Clients: func(tok string) GitHubRepoAPI { return github.NewClient(tok) },
	}
}

// ----- DTOs -----

type addRepoReq struct {
	FullName string `json:"full_name"`
}

type updateSettingsReq struct {
	AutoSync        *bool `json:"auto_sync"`
	IntervalMinutes *int  `json:"sync_interval_minutes"`
}

type repoResp struct {
	ID              string     `json:"id"`
	GitHubID        int64      `json:"github_id"`
	Name            string     `json:"name"`
	FullName        string     `json:"full_name"`
	Description     string     `json:"description,omitempty"`
	HTMLURL         string     `json:"html_url"`
	OwnerLogin      string     `json:"owner_login"`
	Visibility      string     `json:"visibility"`
	DefaultBranch   string     `json:"default_branch"`
	Language        string     `json:"language,omitempty"`
	StarsCount      int        `json:"stars_count"`
	ForksCount      int        `json:"forks_count"`
	OpenIssuesCount int        `json:"open_issues_count"`
	WatchersCount   int        `json:"watchers_count"`
	IsActive        bool       `json:"is_active"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	SyncError       string     `json:"sync_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type hookResp struct {
	ID                 string     `json:"id"`
	RepositoryID       string     `json:"repository_id"`
	GitHubHookID       int64      `json:"github_hook_id,omitempty"`
	URL                string     `json:"url"`
	Events             string     `json:"events"`
	IsActive           bool       `json:"is_active"`
	LastDeliveryAt     *time.Time `json:"last_delivery_at,omitempty"`
	LastDeliveryStatus string     `json:"last_delivery_status,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toRepoResp(rp model.Repository) repoResp {
	out := repoResp{
		ID: rp.ID, GitHubID: rp.GitHubID, Name: rp.Name, FullName: rp.FullName,
		Description: rp.Description, HTMLURL: rp.HTMLURL, OwnerLogin: rp.OwnerLogin,
		Visibility: rp.Visibility, DefaultBranch: rp.DefaultBranch, Language: rp.Language,
		StarsCount: rp.StarsCount, ForksCount: rp.ForksCount,
		OpenIssuesCount: rp.OpenIssuesCount, WatchersCount: rp.WatchersCount,
		IsActive: rp.IsActive, CreatedAt: rp.CreatedAt,
	}
	if rp.LastSyncedAt.Valid {
		t := rp.LastSyncedAt.Time
		out.LastSyncedAt = &t
	}
	if rp.SyncError.Valid {
		out.SyncError = rp.SyncError.String
	}
	return out
}

func toHookResp(w model.Webhook) hookResp {
	out := hookResp{
		ID: w.ID, RepositoryID: w.RepositoryID, GitHubHookID: w.GitHubHookID,
		URL: w.URL, Events: w.Events, IsActive: w.IsActive, CreatedAt: w.CreatedAt,
	}
	if w.LastDeliveryAt.Valid {
		t := w.LastDeliveryAt.Time
		out.LastDeliveryAt = &t
	}
	if w.LastDeliveryStatus.Valid {
		out.LastDeliveryStatus = w.LastDeliveryStatus.String
	}
	return out
}

// clientFor loads the user's stored GitHub credential and builds a client
// with it.  Users without a linked GitHub account get a descriptive 400.
func (h *RepositoryHandler) clientFor(ctx context.Context, c echo.Context) (GitHubRepoAPI, bool) {
	uid := middleware.CurrentUserID(c)
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
		return nil, false
	}
	if u.GitHubAccessToken == "" {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "github account not connected"})
		return nil, false
	}
	return h.Clients(u.GitHubAccessToken), true
}

// loadOwned fetches the repository at :id scoped to the caller; writes the
// error response itself on failure.
func (h *RepositoryHandler) loadOwned(ctx context.Context, c echo.Context) (model.Repository, bool) {
	rp, err := h.Repos.GetByID(ctx, c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "repository not found"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return model.Repository{}, false
	}
	return rp, true
}

// List: GET /v1/repositories
func (h *RepositoryHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	includeInactive := c.QueryParam("include_inactive") == "true"
	repos, err := h.Repos.ListByOwner(ctx, middleware.CurrentUserID(c), includeInactive)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]repoResp, 0, len(repos))
	for _, rp := range repos {
		out = append(out, toRepoResp(rp))
	}
	return c.JSON(http.StatusOK, out)
}

// Add: POST /v1/repositories — start tracking a repository.  Metadata is
// fetched from GitHub at link time, and a default sync settings row is
// created alongside.
func (h *RepositoryHandler) Add(c echo.Context) error {
	var req addRepoReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	owner, name, ok := strings.Cut(strings.TrimSpace(req.FullName), "/")
	if !ok || owner == "" || name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "full_name must be owner/name"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	client, ok := h.clientFor(ctx, c)
	if !ok {
		return nil
	}
	remote, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		var apiErr *github.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "repository not found on github"})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to fetch repository from github"})
	}

	rp := model.Repository{
		GitHubID:        remote.ID,
		Name:            remote.Name,
		FullName:        remote.FullName,
		Description:     remote.Description,
		HTMLURL:         remote.HTMLURL,
		OwnerID:         middleware.CurrentUserID(c),
		OwnerLogin:      remote.Owner.Login,
		Visibility:      remote.Visibility,
		DefaultBranch:   remote.DefaultBranch,
		Language:        remote.Language,
		StarsCount:      remote.Stars,
		ForksCount:      remote.Forks,
		OpenIssuesCount: remote.OpenIssues,
		WatchersCount:   remote.Watchers,
	}
	rp.GitHubUpdatedAt.Time, rp.GitHubUpdatedAt.Valid = remote.UpdatedAt, true

	id, err := h.Repos.Create(ctx, rp)
	if err != nil {
		if errors.Is(err, repository.ErrRepoExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "repository already tracked"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create repository failed"})
	}
	if err := h.Settings.CreateDefaults(ctx, id); err != nil {
		log.Printf("handler: create default sync settings for %s: %v", id, err)
	}

	created, err := h.Repos.GetByID(ctx, id, middleware.CurrentUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load repository failed"})
	}
	return c.JSON(http.StatusCreated, toRepoResp(created))
}

// Get: GET /v1/repositories/:id
func (h *RepositoryHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rp, ok := h.loadOwned(ctx, c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, toRepoResp(rp))
}

// Delete: DELETE /v1/repositories/:id — stop tracking.
func (h *RepositoryHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Repos.Delete(ctx, c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "repository not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "repository removed"})
}

// GetSettings: GET /v1/repositories/:id/settings
func (h *RepositoryHandler) GetSettings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rp, ok := h.loadOwned(ctx, c)
	if !ok {
		return nil
	}
	s, err := h.Settings.Get(ctx, rp.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"repository_id":         s.RepositoryID,
		"auto_sync":             s.AutoSync,
		"sync_interval_minutes": s.IntervalMinutes,
	})
}

// UpdateSettings: PUT /v1/repositories/:id/settings — partial update,
// absent fields keep their current value.
func (h *RepositoryHandler) UpdateSettings(c echo.Context) error {
	var req updateSettingsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rp, ok := h.loadOwned(ctx, c)
	if !ok {
		return nil
	}
	cur, err := h.Settings.Get(ctx, rp.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	autoSync, interval := cur.AutoSync, cur.IntervalMinutes
	if req.AutoSync != nil {
		autoSync = *req.AutoSync
	}
	if req.IntervalMinutes != nil {
		interval = *req.IntervalMinutes
	}
	if err := h.Settings.Update(ctx, rp.ID, autoSync, interval); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	s, err := h.Settings.Get(ctx, rp.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"repository_id":         s.RepositoryID,
		"auto_sync":             s.AutoSync,
		"sync_interval_minutes": s.IntervalMinutes,
	})
}

// Sync: POST /v1/repositories/:id/sync — synchronous manual refresh.
// Unlike the background scheduler the failure is surfaced to the caller,
// but it is also recorded on the row so the UI stays consistent.
func (h *RepositoryHandler) Sync(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	rp, ok := h.loadOwned(ctx, c)
	if !ok {
		return nil
	}
	client, ok := h.clientFor(ctx, c)
	if !ok {
		return nil
	}

	owner, name, _ := strings.Cut(rp.FullName, "/")
	remote, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		_ = h.Repos.RecordSyncError(ctx, rp.ID, err.Error())
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "sync failed: " + err.Error()})
	}
	meta := model.RepoMetadata{
		Description:     remote.Description,
		Visibility:      remote.Visibility,
		DefaultBranch:   remote.DefaultBranch,
		Language:        remote.Language,
		StarsCount:      remote.Stars,
		ForksCount:      remote.Forks,
		OpenIssuesCount: remote.OpenIssues,
		WatchersCount:   remote.Watchers,
		GitHubUpdatedAt: remote.UpdatedAt,
	}
	syncedAt := time.Now().UTC()
	if err := h.Repos.ApplySyncedMetadata(ctx, rp.ID, meta, syncedAt); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "persist metadata failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "repository synced", "last_synced_at": syncedAt})
}

// Branches: GET /v1/repositories/:id/branches (proxied live from GitHub)
func (h *RepositoryHandler) Branches(c echo.Context) error {
	return h.proxyList(c, func(ctx context.Context, client GitHubRepoAPI, owner, name string) (any, error) {
		return client.ListBranches(ctx, owner, name)
	})
}

// Contributors: GET /v1/repositories/:id/contributors
func (h *RepositoryHandler) Contributors(c echo.Context) error {
	return h.proxyList(c, func(ctx context.Context, client GitHubRepoAPI, owner, name string) (any, error) {
		return client.ListContributors(ctx, owner, name)
	})
}

// Languages: GET /v1/repositories/:id/languages
func (h *RepositoryHandler) Languages(c echo.Context) error {
	return h.proxyList(c, func(ctx context.Context, client GitHubRepoAPI, owner, name string) (any, error) {
		return client.GetLanguages(ctx, owner, name)
	})
}

func (h *RepositoryHandler) proxyList(c echo.Context, fetch func(ctx context.Context, client GitHubRepoAPI, owner, name string) (any, error)) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	rp, ok := h.loadOwned(ctx, c)
	if !ok {
		return nil
	}
	client, ok := h.clientFor(ctx, c)
	if !ok {
		return nil
	}
	owner, name, _ := strings.Cut(rp.FullName, "/")
	out, err := fetch(ctx, client, owner, name)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "github request failed"})
	}
	return c.JSON(http.StatusOK, out)
}

// ListWebhooks: GET /v1/repositories/:id/webhooks — local registrations,
// secrets never leave the server after creation.
func (h *RepositoryHandler) ListWebhooks(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rp, ok := h.loadOwned(ctx, c)
	if !ok {
		return nil
	}
	hooks, err := h.Hooks.ListByRepository(ctx, rp.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]hookResp, 0, len(hooks))
	for _, w := range hooks {
		out = append(out, toHookResp(w))
	}
	return c.JSON(http.StatusOK, out)
}

// CreateWebhook: POST /v1/repositories/:id/webhooks — generate a fresh
// secret, register the hook on GitHub and store the registration.  The
// secret is returned exactly once, in this response.
func (h *RepositoryHandler) CreateWebhook(c echo.Context) error {
	if h.Cfg.WebhookBaseURL == "" {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "webhook base url not configured"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	rp, ok := h.loadOwned(ctx, c)
	if !ok {
		return nil
	}
	client, ok := h.clientFor(ctx, c)
	if !ok {
		return nil
	}

	secret, err := webhook.GenerateSecret()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate secret failed"})
	}
	hookURL := strings.TrimRight(h.Cfg.WebhookBaseURL, "/") + "/api/webhooks/github"
	events := []string{"push", "pull_request", "issues"}

	owner, name, _ := strings.Cut(rp.FullName, "/")
	remote, err := client.CreateWebhook(ctx, owner, name, hookURL, secret, events)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "create webhook on github failed"})
	}

	id, err := h.Hooks.Create(ctx, model.Webhook{
		RepositoryID: rp.ID,
		GitHubHookID: remote.ID,
		URL:          hookURL,
		Secret:       secret,
		Events:       strings.Join(events, ","),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "persist webhook failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":     id,
		"url":    hookURL,
		"events": strings.Join(events, ","),
		"secret": secret,
	})
}

// DeleteWebhook: DELETE /v1/repositories/:id/webhooks/:hookID — remove
// the hook on GitHub and deactivate the local registration.  The local
// row is deactivated even when the GitHub-side delete fails (the hook
// may already be gone there).
func (h *RepositoryHandler) DeleteWebhook(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	rp, ok := h.loadOwned(ctx, c)
	if !ok {
		return nil
	}
	w, err := h.Hooks.GetByID(ctx, c.Param("hookID"))
	if err != nil || w.RepositoryID != rp.ID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "webhook not found"})
	}

	if w.GitHubHookID != 0 {
		client, ok := h.clientFor(ctx, c)
		if !ok {
			return nil
		}
		owner, name, _ := strings.Cut(rp.FullName, "/")
		if err := client.DeleteWebhook(ctx, owner, name, w.GitHubHookID); err != nil {
			log.Printf("handler: delete github hook %d for %s: %v", w.GitHubHookID, rp.FullName, err)
		}
	}
	if err := h.Hooks.Deactivate(ctx, w.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate webhook failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "webhook removed"})
}
