package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(now time.Time) *Service {
	return New("test-secret", 15*time.Minute, 7*24*time.Hour).
		WithClock(func() time.Time { return now })
}

func TestIssueAndVerifyAccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	raw, claims, err := svc.IssueAccess("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.Equal(t, now.Add(15*time.Minute), claims.ExpiresAt)

	got, err := svc.Verify(raw, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-123", got.Subject)
	assert.Equal(t, KindAccess, got.Kind)
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	refresh, _, err := svc.IssueRefresh("user-123")
	require.NoError(t, err)

	_, err = svc.Verify(refresh, KindAccess)
	assert.ErrorIs(t, err, ErrWrongKind)

	access, _, err := svc.IssueAccess("user-123")
	require.NoError(t, err)
	_, err = svc.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestVerifyRejectsExpired(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := start
	svc := New("test-secret", 15*time.Minute, time.Hour).
		WithClock(func() time.Time { return current })

	raw, _, err := svc.IssueAccess("user-123")
	require.NoError(t, err)

	// Still inside the TTL.
	current = start.Add(14 * time.Minute)
	_, err = svc.Verify(raw, KindAccess)
	require.NoError(t, err)

	// Move past expiry.
	current = start.Add(16 * time.Minute)
	_, err = svc.Verify(raw, KindAccess)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	raw, _, err := svc.IssueAccess("user-123")
	require.NoError(t, err)

	// Flip the last character of the signature.
	tampered := raw[:len(raw)-1]
	if raw[len(raw)-1] == 'A' {
		tampered += "B"
	} else {
		tampered += "A"
	}
	_, err = svc.Verify(tampered, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)
	other := New("different-secret", 15*time.Minute, time.Hour).
		WithClock(func() time.Time { return now })

	raw, _, err := other.IssueAccess("user-123")
	require.NoError(t, err)

	_, err = svc.Verify(raw, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashRefreshIsStable(t *testing.T) {
	a := HashRefresh("some-refresh-token")
	b := HashRefresh("some-refresh-token")
	c := HashRefresh("another-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // sha256 hex
}
