package syncer

import (
	"context"
	"log"
	"time"
)

// SessionStore is the slice of the data-access layer the cleanup sweep
// needs.
type SessionStore interface {
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
	DeactivateIdleSince(ctx context.Context, threshold time.Time) (int64, error)
}

// SessionCleaner periodically removes expired session rows and
// deactivates sessions that have been idle too long.
type SessionCleaner struct {
	sessions  SessionStore
	every     time.Duration
	idleAfter time.Duration
	now       func() time.Time
}

// NewSessionCleaner builds a cleaner sweeping every `every`, deactivating
// sessions idle longer than idleAfter.
func NewSessionCleaner(sessions SessionStore, every, idleAfter time.Duration) *SessionCleaner {
	return &SessionCleaner{sessions: sessions, every: every, idleAfter: idleAfter, now: time.Now}
}

// Run sweeps until ctx is cancelled.  Sweep errors are logged and retried
// on the next tick; nothing here is fatal.
func (c *SessionCleaner) Run(ctx context.Context) {
	log.Printf("syncer: session cleanup started (every %s)", c.every)
	for {
		c.sweep(ctx)
		if !sleep(ctx, c.every) {
			break
		}
	}
	log.Printf("syncer: session cleanup stopped")
}

func (c *SessionCleaner) sweep(ctx context.Context) {
	now := c.now().UTC()
	expired, err := c.sessions.DeleteExpiredBefore(ctx, now)
	if err != nil {
		log.Printf("syncer: delete expired sessions: %v", err)
		return
	}
	idle, err := c.sessions.DeactivateIdleSince(ctx, now.Add(-c.idleAfter))
	if err != nil {
		log.Printf("syncer: deactivate idle sessions: %v", err)
		return
	}
	log.Printf("syncer: cleaned up %d expired sessions, deactivated %d idle sessions", expired, idle)
}
