package workspace

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/privacyops/console/internal/collection"
)

// ErrExpired is returned when a session token is past its exp claim.
var ErrExpired = errors.New("workspace: token expired")

type entry struct {
	ws   *Workspace
	seen time.Time
}

// Registry keeps one Workspace per session id.
type Registry struct {
	deps   collection.Deps
	opts   collection.Options
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	spaces map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry(deps collection.Deps, opts collection.Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		spaces: make(map[string]*entry),
	}
}

// Open returns the workspace of sessionID, creating it with token and the
// serialized filter snapshot when absent. A different token replaces the
// workspace, carrying its filters over. An expired token resets any existing
// workspace and returns ErrExpired.
func (r *Registry) Open(sessionID, token string, snapshot []byte) (*Workspace, error) {
	now := r.now()
	if Expired(token, now) {
		r.Drop(sessionID)
		return nil, ErrExpired
	}

	r.mu.Lock()
	e, ok := r.spaces[sessionID]
	if ok && e.ws.Token() == token {
		e.seen = now
		r.mu.Unlock()
		return e.ws, nil
	}
	if ok {
		if data, err := e.ws.Snapshot(); err == nil {
			snapshot = data
		}
		e.ws.Reset()
	}
	w := New(token, r.deps, r.opts)
	if err := w.Hydrate(snapshot); err != nil {
		r.logger.Warn("workspace hydrate failed", slog.String("session", sessionID), slog.Any("error", err))
	}
	r.spaces[sessionID] = &entry{ws: w, seen: now}
	r.mu.Unlock()
	return w, nil
}

// Drop resets and forgets the workspace of sessionID.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	e, ok := r.spaces[sessionID]
	delete(r.spaces, sessionID)
	r.mu.Unlock()
	if ok {
		e.ws.Reset()
	}
}

// Sweep drops workspaces not opened within idle and reports how many were
// removed. Callers pass the session lifetime so a workspace never outlives
// the session that created it.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	var stale []*Workspace
	for id, e := range r.spaces {
		if e.seen.After(cutoff) {
			continue
		}
		stale = append(stale, e.ws)
		delete(r.spaces, id)
	}
	r.mu.Unlock()
	for _, w := range stale {
		w.Reset()
	}
	return len(stale)
}

// Len reports the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// Close resets every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	spaces := r.spaces
	r.spaces = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range spaces {
		e.ws.Reset()
	}
}
