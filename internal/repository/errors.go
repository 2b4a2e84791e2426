// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.  Handlers should
// translate this into an HTTP 404 response (or an "ignored" outcome for
// webhook deliveries).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating a user with an email that is
// already registered.  Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrRepoExists is returned when a repository with the same full name is
// already tracked.  Handlers should translate this into HTTP 409.
var ErrRepoExists = errors.New("repository already tracked")
