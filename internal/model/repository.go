package model

import (
	"database/sql"
	"time"
)

// Repository mirrors the `repositories` table.  A row is created when a
// user starts tracking one of their GitHub repositories and is refreshed
// on every sync cycle (or manual sync).  FullName is globally unique in
// the `owner/name` format and is how inbound webhook payloads are matched
// back to a tracked repository.
type Repository struct {
	ID              string         // repositories.id (UUID)
	GitHubID        int64          // repositories.github_id
	Name            string         // repositories.name
	FullName        string         // repositories.full_name (owner/name)
	Description     string         // repositories.description
	HTMLURL         string         // repositories.html_url
	OwnerID         string         // repositories.owner_id -> users.id
	OwnerLogin      string         // repositories.owner_login (GitHub side)
	Visibility      string         // repositories.visibility (public/private/internal)
	DefaultBranch   string         // repositories.default_branch
	Language        string         // repositories.language
	StarsCount      int            // repositories.stars_count
	ForksCount      int            // repositories.forks_count
	OpenIssuesCount int            // repositories.open_issues_count
	WatchersCount   int            // repositories.watchers_count
	IsActive        bool           // repositories.is_active
	LastSyncedAt    sql.NullTime   // repositories.last_synced_at (null until first sync)
	SyncError       sql.NullString // repositories.sync_error (null when last sync succeeded)
	GitHubUpdatedAt sql.NullTime   // repositories.github_updated_at
	CreatedAt       time.Time      // repositories.created_at
	UpdatedAt       time.Time      // repositories.updated_at
}

// Webhook mirrors the `webhooks` table: one registration of a delivery
// secret for a repository.  Multiple active rows may exist per repository
// while a secret rotation is in flight, and signature checks try each
// active secret.
type Webhook struct {
	ID                 string         // webhooks.id (UUID)
	RepositoryID       string         // webhooks.repository_id
	GitHubHookID       int64          // webhooks.github_hook_id (0 until created upstream)
	URL                string         // webhooks.url
	Secret             string         // webhooks.secret
	Events             string         // webhooks.events (comma separated kinds)
	IsActive           bool           // webhooks.is_active
	LastDeliveryAt     sql.NullTime   // webhooks.last_delivery_at
	LastDeliveryStatus sql.NullString // webhooks.last_delivery_status ("success"/"failed")
	CreatedAt          time.Time      // webhooks.created_at
}

// SyncSettings mirrors the `sync_settings` table, one-to-one with a
// repository.  AutoSync gates scheduler eligibility and
// IntervalMinutes is clamped to >= 1 at write time.
type SyncSettings struct {
	RepositoryID    string    // sync_settings.repository_id
	AutoSync        bool      // sync_settings.auto_sync
	IntervalMinutes int       // sync_settings.sync_interval_minutes
	CreatedAt       time.Time // sync_settings.created_at
	UpdatedAt       time.Time // sync_settings.updated_at
}

// RepoMetadata carries the fields refreshed from GitHub on each sync.
// Applied atomically to a Repository row together with last_synced_at and
// a cleared sync_error.
type RepoMetadata struct {
	Description     string
	Visibility      string
	DefaultBranch   string
	Language        string
	StarsCount      int
	ForksCount      int
	OpenIssuesCount int
	WatchersCount   int
	GitHubUpdatedAt time.Time
}

// SyncCandidate is one row of the scheduler's eligibility query: an active
// repository joined with its sync settings and the owner's stored GitHub
// credential.
type SyncCandidate struct {
	RepositoryID    string
	FullName        string
	LastSyncedAt    sql.NullTime
	IntervalMinutes int
	OwnerToken      string
}
