package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  The json
// tags are omitted here because these structs are used internally by the
// repository layer; handlers define separate response types with
// appropriate JSON tags.  GitHub identity columns are populated when the
// user signs in (or links an account) through the OAuth flow.
//
// Fields:
//  ID                – UUID primary key of the user.
//  Email             – unique email address.
//  PasswordHash      – bcrypt hashed password (empty for OAuth-only users).
//  DisplayName       – optional display name shown in the UI.
//  GitHubID          – GitHub account id as a string (empty when not linked).
//  GitHubLogin       – GitHub username.
//  GitHubAvatarURL   – avatar image URL.
//  GitHubAccessToken – OAuth access token used for API calls on the user's behalf.
//  IsActive          – whether the account is active.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type User struct {
	ID                string    // users.id
	Email             string    // users.email
	PasswordHash      string    // users.password_hash
	DisplayName       string    // users.display_name
	GitHubID          string    // users.github_id
	GitHubLogin       string    // users.github_login
	GitHubAvatarURL   string    // users.github_avatar_url
	GitHubAccessToken string    // users.github_access_token
	IsActive          bool      // users.is_active
	CreatedAt         time.Time // users.created_at
	UpdatedAt         time.Time // users.updated_at
}

// Session models an entry in the `sessions` table.  One row is created for
// every issued refresh token; the plain token is never stored, only its
// SHA‑256 hash.  Rotation and logout flip IsActive to false, and the
// cleanup sweep removes rows past ExpiresAt.
//
// Fields:
//  ID               – UUID primary key.
//  UserID           – owner of the session.
//  RefreshTokenHash – SHA‑256 hex digest of the refresh token.
//  IsActive         – false once rotated, logged out or bulk-invalidated.
//  ExpiresAt        – expiration timestamp of the refresh token.
//  CreatedAt        – timestamp of creation.
//  LastActiveAt     – updated whenever the session's token is exercised.
type Session struct {
	ID               string    // sessions.id
	UserID           string    // sessions.user_id
	RefreshTokenHash string    // sessions.refresh_token_hash
	IsActive         bool      // sessions.is_active
	ExpiresAt        time.Time // sessions.expires_at
	CreatedAt        time.Time // sessions.created_at
	LastActiveAt     time.Time // sessions.last_active_at
}
