package auth

import (
	"context"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/workspace"
)

// APIUpstream authenticates against the platform REST API.
type APIUpstream struct {
	client *api.Client
}

// NewAPIUpstream wraps client. The client's own token source is ignored.
func NewAPIUpstream(client *api.Client) *APIUpstream {
	return &APIUpstream{client: client}
}

// Login implements Upstream.
func (u *APIUpstream) Login(ctx context.Context, creds api.Credentials) (*api.Session, error) {
	return u.client.WithTokens(api.StaticToken("")).Login(ctx, creds)
}

// Logout implements Upstream.
func (u *APIUpstream) Logout(ctx context.Context, token string) error {
	return u.client.WithTokens(api.StaticToken(token)).Logout(ctx)
}

// RegistryWorkspaces adapts a workspace.Registry to Workspaces.
type RegistryWorkspaces struct {
	Registry *workspace.Registry
}

// Open implements Workspaces.
func (r RegistryWorkspaces) Open(sessionID, token string, snapshot []byte) error {
	_, err := r.Registry.Open(sessionID, token, snapshot)
	return err
}

// Drop implements Workspaces.
func (r RegistryWorkspaces) Drop(sessionID string) {
	r.Registry.Drop(sessionID)
}
