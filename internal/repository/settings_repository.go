package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/VaradSinghal/EchoV3/internal/model"
)

// SettingsRepo persists per-repository sync settings (one-to-one with a
// repository row).
type SettingsRepo struct{ DB *sql.DB }

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

// CreateDefaults inserts the default settings row for a freshly tracked
// repository: auto-sync on, hourly interval.
func (r *SettingsRepo) CreateDefaults(ctx context.Context, repositoryID string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sync_settings (repository_id, auto_sync, sync_interval_minutes) VALUES (?,1,60)",
		repositoryID)
	return err
}

// Get fetches the settings of a repository.
func (r *SettingsRepo) Get(ctx context.Context, repositoryID string) (model.SyncSettings, error) {
	var s model.SyncSettings
	err := r.DB.QueryRowContext(ctx,
		"SELECT repository_id, auto_sync, sync_interval_minutes, created_at, updated_at FROM sync_settings WHERE repository_id=? LIMIT 1",
		repositoryID).Scan(&s.RepositoryID, &s.AutoSync, &s.IntervalMinutes, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// Update overwrites auto_sync and the interval.  The interval is clamped
// to at least one minute.
func (r *SettingsRepo) Update(ctx context.Context, repositoryID string, autoSync bool, intervalMinutes int) error {
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sync_settings SET auto_sync=?, sync_interval_minutes=? WHERE repository_id=?",
		autoSync, intervalMinutes, repositoryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}
