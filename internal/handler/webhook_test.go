package handler_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VaradSinghal/EchoV3/internal/handler"
	"github.com/VaradSinghal/EchoV3/internal/model"
	"github.com/VaradSinghal/EchoV3/internal/repository"
	"github.com/VaradSinghal/EchoV3/internal/router"
	"github.com/VaradSinghal/EchoV3/internal/webhook"
)

// hookStore is the minimal dispatcher store: one tracked repository with
// one secret.
type hookStore struct {
	repo   model.Repository
	secret string
}

func (s *hookStore) GetRepositoryByFullName(_ context.Context, fullName string) (model.Repository, error) {
	if fullName != s.repo.FullName {
		return model.Repository{}, repository.ErrNotFound
	}
	return s.repo, nil
}

func (s *hookStore) ListActiveWebhooks(_ context.Context, repositoryID string) ([]model.Webhook, error) {
	if s.secret == "" {
		return nil, nil
	}
	return []model.Webhook{{ID: "h1", RepositoryID: repositoryID, Secret: s.secret, IsActive: true}}, nil
}

func (s *hookStore) SetOpenIssuesCount(context.Context, string, int) error { return nil }

func (s *hookStore) TouchGitHubUpdatedAt(context.Context, string, time.Time) error { return nil }

func (s *hookStore) RecordDelivery(context.Context, string, string, time.Time) error { return nil }

func githubSign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func webhookEcho(store webhook.Store) *echo.Echo {
	e := echo.New()
	router.RegisterWebhooks(e, handler.NewWebhookHandler(webhook.NewDispatcher(store, nil)))
	return e
}

func deliver(e *echo.Echo, event, sig, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	if sig != "" {
		req.Header.Set("X-Hub-Signature-256", sig)
	}
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhookEndpointMissingEventHeader(t *testing.T) {
	e := webhookEcho(&hookStore{repo: model.Repository{ID: "r1", FullName: "octo/repo"}, secret: "s"})

	rec := deliver(e, "", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-GitHub-Event")
}

func TestWebhookEndpointMalformedBody(t *testing.T) {
	e := webhookEcho(&hookStore{repo: model.Repository{ID: "r1", FullName: "octo/repo"}, secret: "s"})

	rec := deliver(e, "push", "sha256=whatever", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookEndpointBadSignature(t *testing.T) {
	e := webhookEcho(&hookStore{repo: model.Repository{ID: "r1", FullName: "octo/repo"}, secret: "real-secret"})

	body := `{"repository":{"full_name":"octo/repo"}}`
	rec := deliver(e, "push", githubSign(body, "other-secret"), body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookEndpointNoRegisteredSecret(t *testing.T) {
	e := webhookEcho(&hookStore{repo: model.Repository{ID: "r1", FullName: "octo/repo"}})

	body := `{"repository":{"full_name":"octo/repo"}}`
	rec := deliver(e, "push", githubSign(body, "anything"), body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookEndpointProcessed(t *testing.T) {
	e := webhookEcho(&hookStore{repo: model.Repository{ID: "r1", FullName: "octo/repo"}, secret: "s"})

	body := `{"repository":{"full_name":"octo/repo"},"ref":"refs/heads/main","pusher":{"name":"octocat"}}`
	rec := deliver(e, "push", githubSign(body, "s"), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"processed"`)
}

func TestWebhookEndpointUntrackedRepoStillOK(t *testing.T) {
	e := webhookEcho(&hookStore{repo: model.Repository{ID: "r1", FullName: "octo/repo"}, secret: "s"})

	body := `{"repository":{"full_name":"octo/other"}}`
	rec := deliver(e, "push", githubSign(body, "s"), body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ignored"`)
}
