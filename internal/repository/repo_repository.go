package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VaradSinghal/EchoV3/internal/model"
)

// RepoRepo persists tracked GitHub repositories and their sync state.
type RepoRepo struct{ DB *sql.DB }

func NewRepoRepo(db *sql.DB) *RepoRepo { return &RepoRepo{DB: db} }

const repoColumns = "id,github_id,name,full_name,description,html_url,owner_id,owner_login,visibility,default_branch,language,stars_count,forks_count,open_issues_count,watchers_count,is_active,last_synced_at,sync_error,github_updated_at,created_at,updated_at"

func scanRepo(scan func(dest ...any) error) (model.Repository, error) {
	var rp model.Repository
	err := scan(&rp.ID, &rp.GitHubID, &rp.Name, &rp.FullName, &rp.Description,
		&rp.HTMLURL, &rp.OwnerID, &rp.OwnerLogin, &rp.Visibility, &rp.DefaultBranch,
		&rp.Language, &rp.StarsCount, &rp.ForksCount, &rp.OpenIssuesCount,
		&rp.WatchersCount, &rp.IsActive, &rp.LastSyncedAt, &rp.SyncError,
		&rp.GitHubUpdatedAt, &rp.CreatedAt, &rp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rp, ErrNotFound
	}
	return rp, err
}

// Create inserts a new tracked repository and returns its id.  The caller
// provides the metadata fetched from GitHub at link time.
func (r *RepoRepo) Create(ctx context.Context, rp model.Repository) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO repositories
		 (id, github_id, name, full_name, description, html_url, owner_id, owner_login,
		  visibility, default_branch, language, stars_count, forks_count,
		  open_issues_count, watchers_count, github_updated_at, last_synced_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,NOW())`,
		id, rp.GitHubID, rp.Name, rp.FullName, rp.Description, rp.HTMLURL,
		rp.OwnerID, rp.OwnerLogin, rp.Visibility, rp.DefaultBranch, rp.Language,
		rp.StarsCount, rp.ForksCount, rp.OpenIssuesCount, rp.WatchersCount,
		rp.GitHubUpdatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return "", ErrRepoExists
		}
		return "", err
	}
	return id, nil
}

// GetByID fetches a repository owned by the given user.
func (r *RepoRepo) GetByID(ctx context.Context, id, ownerID string) (model.Repository, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+repoColumns+" FROM repositories WHERE id=? AND owner_id=? LIMIT 1", id, ownerID)
	return scanRepo(row.Scan)
}

// GetByFullName resolves a repository from a webhook payload's
// repository.full_name.  Inactive (untracked) repositories do not match.
func (r *RepoRepo) GetByFullName(ctx context.Context, fullName string) (model.Repository, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+repoColumns+" FROM repositories WHERE full_name=? AND is_active=1 LIMIT 1", fullName)
	return scanRepo(row.Scan)
}

// ListByOwner returns the user's repositories, newest first.  Inactive
// rows are included only when includeInactive is set.
func (r *RepoRepo) ListByOwner(ctx context.Context, ownerID string, includeInactive bool) ([]model.Repository, error) {
	q := "SELECT " + repoColumns + " FROM repositories WHERE owner_id=?"
	if !includeInactive {
		q += " AND is_active=1"
	}
	q += " ORDER BY updated_at DESC"
	rows, err := r.DB.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Repository
	for rows.Next() {
		rp, err := scanRepo(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

// Delete removes a repository (webhooks and sync settings cascade).
func (r *RepoRepo) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM repositories WHERE id=? AND owner_id=?", id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// ApplySyncedMetadata writes the metadata fetched from GitHub in one
// statement, advancing last_synced_at and clearing any previous sync
// error.
func (r *RepoRepo) ApplySyncedMetadata(ctx context.Context, id string, m model.RepoMetadata, syncedAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE repositories SET description=?, visibility=?, default_branch=?,
		 language=?, stars_count=?, forks_count=?, open_issues_count=?,
		 watchers_count=?, github_updated_at=?, last_synced_at=?, sync_error=NULL
		 WHERE id=?`,
		m.Description, m.Visibility, m.DefaultBranch, m.Language,
		m.StarsCount, m.ForksCount, m.OpenIssuesCount, m.WatchersCount,
		m.GitHubUpdatedAt, syncedAt, id)
	return err
}

// RecordSyncError stores the failure message of the latest sync attempt
// without touching last_synced_at.
func (r *RepoRepo) RecordSyncError(ctx context.Context, id, msg string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE repositories SET sync_error=? WHERE id=?", msg, id)
	return err
}

// SetOpenIssuesCount overwrites the open-issue counter (webhook-driven).
func (r *RepoRepo) SetOpenIssuesCount(ctx context.Context, id string, count int) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE repositories SET open_issues_count=? WHERE id=?", count, id)
	return err
}

// TouchGitHubUpdatedAt bumps the remote-side updated timestamp (push events).
func (r *RepoRepo) TouchGitHubUpdatedAt(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE repositories SET github_updated_at=? WHERE id=?", at, id)
	return err
}

// ListSyncCandidates returns every active repository with auto-sync
// enabled joined to its settings and the owner's stored GitHub token.
// Eligibility by interval is decided by the scheduler, not here.
func (r *RepoRepo) ListSyncCandidates(ctx context.Context) ([]model.SyncCandidate, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT r.id, r.full_name, r.last_synced_at, s.sync_interval_minutes, u.github_access_token
		 FROM repositories r
		 JOIN sync_settings s ON s.repository_id = r.id
		 JOIN users u ON u.id = r.owner_id
		 WHERE r.is_active=1 AND s.auto_sync=1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncCandidate
	for rows.Next() {
		var c model.SyncCandidate
		if err := rows.Scan(&c.RepositoryID, &c.FullName, &c.LastSyncedAt, &c.IntervalMinutes, &c.OwnerToken); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
