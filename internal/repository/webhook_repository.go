package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/VaradSinghal/EchoV3/internal/model"
)

// WebhookRepo persists webhook registrations (delivery secrets) per
// repository.
type WebhookRepo struct{ DB *sql.DB }

func NewWebhookRepo(db *sql.DB) *WebhookRepo { return &WebhookRepo{DB: db} }

const webhookColumns = "id,repository_id,github_hook_id,url,secret,events,is_active,last_delivery_at,last_delivery_status,created_at"

func scanWebhook(scan func(dest ...any) error) (model.Webhook, error) {
	var w model.Webhook
	err := scan(&w.ID, &w.RepositoryID, &w.GitHubHookID, &w.URL, &w.Secret,
		&w.Events, &w.IsActive, &w.LastDeliveryAt, &w.LastDeliveryStatus, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return w, ErrNotFound
	}
	return w, err
}

// Create inserts a registration and returns its id.
func (r *WebhookRepo) Create(ctx context.Context, w model.Webhook) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO webhooks (id, repository_id, github_hook_id, url, secret, events, is_active) VALUES (?,?,?,?,?,?,1)",
		id, w.RepositoryID, w.GitHubHookID, w.URL, w.Secret, w.Events)
	return id, err
}

// GetByID fetches a single registration.
func (r *WebhookRepo) GetByID(ctx context.Context, id string) (model.Webhook, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+webhookColumns+" FROM webhooks WHERE id=? LIMIT 1", id)
	return scanWebhook(row.Scan)
}

// ListByRepository returns all registrations of a repository, active or not.
func (r *WebhookRepo) ListByRepository(ctx context.Context, repositoryID string) ([]model.Webhook, error) {
	return r.list(ctx, "SELECT "+webhookColumns+" FROM webhooks WHERE repository_id=?", repositoryID)
}

// ListActiveByRepository returns the registrations whose secrets are tried
// when authenticating an inbound delivery.
func (r *WebhookRepo) ListActiveByRepository(ctx context.Context, repositoryID string) ([]model.Webhook, error) {
	return r.list(ctx, "SELECT "+webhookColumns+" FROM webhooks WHERE repository_id=? AND is_active=1", repositoryID)
}

func (r *WebhookRepo) list(ctx context.Context, q, arg string) ([]model.Webhook, error) {
	rows, err := r.DB.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Deactivate disables a registration (rotation / removal).
func (r *WebhookRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE webhooks SET is_active=0 WHERE id=?", id)
	return err
}

// RecordDelivery stores the outcome of the latest delivery that matched
// this registration's secret.
func (r *WebhookRepo) RecordDelivery(ctx context.Context, id, status string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE webhooks SET last_delivery_at=?, last_delivery_status=? WHERE id=?",
		at, status, id)
	return err
}
