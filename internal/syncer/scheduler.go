// Package syncer contains the long-lived background loops: the periodic
// repository sync scheduler and the session cleanup sweep.  Both are
// explicit service objects constructed at process start and cancelled
// through their context; cancellation is honored between units of work,
// never mid-operation.
package syncer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/VaradSinghal/EchoV3/internal/github"
	"github.com/VaradSinghal/EchoV3/internal/model"
)

// Store is the slice of the data-access layer the scheduler needs.
type Store interface {
	ListSyncCandidates(ctx context.Context) ([]model.SyncCandidate, error)
	ApplySyncedMetadata(ctx context.Context, repositoryID string, m model.RepoMetadata, syncedAt time.Time) error
	RecordSyncError(ctx context.Context, repositoryID, msg string) error
}

// GitHubClient is the narrow remote interface one sync needs.
type GitHubClient interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repo, error)
}

// Scheduler periodically refreshes tracked repositories from GitHub.  One
// cycle runs at a time: the loop does not sleep until every repository of
// the current cycle finished.
type Scheduler struct {
	store      Store
	clientFor  func(token string) GitHubClient
	interval   time.Duration
	errBackoff time.Duration
	workers    int
	now        func() time.Time
}

// NewScheduler builds a scheduler.  clientFor turns a user's stored
// GitHub credential into a client; workers bounds the per-cycle
// concurrency (minimum 1).
func NewScheduler(store Store, clientFor func(token string) GitHubClient, interval time.Duration, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		store:      store,
		clientFor:  clientFor,
		interval:   interval,
		errBackoff: time.Minute,
		workers:    workers,
		now:        time.Now,
	}
}

// WithClock replaces the scheduler clock.  Tests only.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run executes sync cycles until ctx is cancelled.  A failing cycle is
// logged and retried after a short backoff instead of terminating the
// loop; the stop signal interrupts the sleep but lets in-flight
// repository calls finish.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("syncer: repository sync scheduler started (every %s)", s.interval)
	for {
		wait := s.interval
		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("syncer: cycle failed: %v; backing off %s", err, s.errBackoff)
			wait = s.errBackoff
		}
		if !sleep(ctx, wait) {
			break
		}
	}
	log.Printf("syncer: repository sync scheduler stopped")
}

// RunCycle selects due repositories and syncs them with per-repository
// failure isolation: one repository's error is recorded on its row and
// never aborts the rest of the batch.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	candidates, err := s.store.ListSyncCandidates(ctx)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}

	now := s.now().UTC()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	synced := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			break // stop requested; in-flight syncs still drain below
		}
		if !due(c, now) {
			continue
		}
		if c.OwnerToken == "" {
			log.Printf("syncer: no GitHub token for %s, skipping", c.FullName)
			continue
		}
		synced++
		cand := c
		g.Go(func() error {
			s.syncOne(gctx, cand)
			return nil
		})
	}
	_ = g.Wait()
	log.Printf("syncer: cycle complete, %d of %d candidates synced", synced, len(candidates))
	return ctx.Err()
}

// due reports whether the candidate's interval has elapsed since its last
// successful sync.  Never-synced repositories are always due.
func due(c model.SyncCandidate, now time.Time) bool {
	if !c.LastSyncedAt.Valid {
		return true
	}
	next := c.LastSyncedAt.Time.Add(time.Duration(c.IntervalMinutes) * time.Minute)
	return !now.Before(next)
}

// syncOne refreshes a single repository.  Failures are written to the
// row's sync_error and swallowed.
func (s *Scheduler) syncOne(ctx context.Context, c model.SyncCandidate) {
	owner, name, ok := splitFullName(c.FullName)
	if !ok {
		_ = s.store.RecordSyncError(ctx, c.RepositoryID, "invalid full name: "+c.FullName)
		return
	}
	remote, err := s.clientFor(c.OwnerToken).GetRepository(ctx, owner, name)
	if err != nil {
		log.Printf("syncer: failed to sync %s: %v", c.FullName, err)
		if recErr := s.store.RecordSyncError(ctx, c.RepositoryID, err.Error()); recErr != nil {
			log.Printf("syncer: record sync error for %s: %v", c.FullName, recErr)
		}
		return
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
	if err := s.store.ApplySyncedMetadata(ctx, c.RepositoryID, meta, s.now().UTC()); err != nil {
		log.Printf("syncer: apply metadata for %s: %v", c.FullName, err)
		return
	}
	log.Printf("syncer: synced repository %s", c.FullName)
}

func splitFullName(fullName string) (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

// sleep waits for d or until ctx is cancelled; it returns false when the
// loop should exit.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
