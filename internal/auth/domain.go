// Package auth proxies console sign-in and sign-out to the upstream API and
// binds the issued bearer token to the browser session.
package auth

import (
	"context"
	"errors"

	"github.com/privacyops/console/internal/api"
)

var (
	// ErrInvalidCredentials is returned when the upstream rejects a login.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrSessionMissing is returned when a request carries no session.
	ErrSessionMissing = errors.New("auth: session missing")
)

// Upstream is the identity provider behind the console.
type Upstream interface {
	Login(ctx context.Context, creds api.Credentials) (*api.Session, error)
	Logout(ctx context.Context, token string) error
}

// Workspaces opens and drops per-session application state.
type Workspaces interface {
	Open(sessionID, token string, snapshot []byte) error
	Drop(sessionID string)
}
