package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/shared"
)

// Service wraps the sign-in and sign-out rules.
type Service struct {
	upstream   Upstream
	workspaces Workspaces
	logger     *slog.Logger
}

// NewService constructs a new Service.
func NewService(upstream Upstream, workspaces Workspaces, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{upstream: upstream, workspaces: workspaces, logger: logger}
}

// SignIn exchanges creds for a token, stores it in sess and opens the
// session's workspace from its saved filter snapshot.
func (s *Service) SignIn(ctx context.Context, sess *shared.Session, creds api.Credentials) (*api.User, error) {
	if sess == nil {
		return nil, ErrSessionMissing
	}
	login, err := s.upstream.Login(ctx, creds)
	if err != nil {
		if api.IsStatus(err, http.StatusUnauthorized) || api.IsStatus(err, http.StatusForbidden) || api.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, api.Message(err))
		}
		return nil, err
	}
	username := login.User.Username
	if username == "" {
		username = creds.Username
	}
	sess.SignIn(login.User.ID, username, login.Token)
	if err := s.workspaces.Open(sess.ID, login.Token, sess.Workspace()); err != nil {
		return nil, fmt.Errorf("auth: open workspace: %w", err)
	}
	return &login.User, nil
}

// SignOut revokes the token upstream, best effort, and tears down the
// workspace of sess. The session itself is destroyed by the caller.
func (s *Service) SignOut(ctx context.Context, sess *shared.Session) {
	if sess == nil {
		return
	}
	if token := sess.Token(); token != "" {
		if err := s.upstream.Logout(ctx, token); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("upstream logout", slog.String("session", sess.ID), slog.Any("error", err))
		}
	}
	s.workspaces.Drop(sess.ID)
}
