// Package workspace holds the per-session application context: the bearer
// token and one collection controller per resource view.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/privacyops/console/internal/collection"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/optimistic"
)

var (
	// ErrUnknownResource is returned for names missing from the catalog.
	ErrUnknownResource = errors.New("workspace: unknown resource")
	// ErrClosed is returned after Reset.
	ErrClosed = errors.New("workspace: closed")
)

// Workspace is the state of one authenticated session.
type Workspace struct {
	deps    collection.Deps
	opts    collection.Options
	catalog map[string]collection.Factory

	mu     sync.Mutex
	token  string
	saved  map[string]filter.State
	open   map[string]collection.Collection
	closed bool
}

// New creates a workspace authenticated with token. deps.Client is rebound so
// every upstream call carries the workspace token, and deps.Cache is narrowed
// to entries loaded with that token.
func New(token string, deps collection.Deps, opts collection.Options) *Workspace {
	w := &Workspace{
		opts:    opts,
		catalog: collection.Catalog,
		token:   token,
		saved:   make(map[string]filter.State),
		open:    make(map[string]collection.Collection),
	}
	if deps.Client != nil {
		deps.Client = deps.Client.WithTokens(w)
	}
	if deps.Cache != nil {
		deps.Cache = deps.Cache.Scope(token)
		deps.Coordinator = optimistic.NewCoordinator(deps.Cache, deps.Logger)
	}
	w.deps = deps
	return w
}

// Token implements api.TokenSource.
func (w *Workspace) Token() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token
}

// Collection returns the controller of name, creating it on first use with
// any hydrated filter state.
func (w *Workspace) Collection(name string) (collection.Collection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if c, ok := w.open[name]; ok {
		return c, nil
	}
	factory, ok := w.catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	opts := w.opts
	if st, ok := w.saved[name]; ok {
		st := st.Clone()
		opts.Initial = &st
		delete(w.saved, name)
	}
	c := factory(w.deps, opts)
	w.open[name] = c
	return c, nil
}

// Snapshot serializes the live filter state of every resource.
func (w *Workspace) Snapshot() ([]byte, error) {
	w.mu.Lock()
	states := make(map[string]filter.State, len(w.saved)+len(w.open))
	for name, st := range w.saved {
		states[name] = st.Clone()
	}
	open := make(map[string]collection.Collection, len(w.open))
	for name, c := range w.open {
		open[name] = c
	}
	w.mu.Unlock()

	for name, c := range open {
		states[name] = c.State()
	}
	data, err := json.Marshal(states)
	if err != nil {
		return nil, fmt.Errorf("workspace: snapshot: %w", err)
	}
	return data, nil
}

// Hydrate restores filter states produced by Snapshot. Unknown resources are
// ignored. Open controllers are updated in place.
func (w *Workspace) Hydrate(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var states map[string]filter.State
	if err := json.Unmarshal(data, &states); err != nil {
		return fmt.Errorf("workspace: hydrate: %w", err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	var toApply []func()
	for name, st := range states {
		if _, ok := w.catalog[name]; !ok {
			continue
		}
		if c, ok := w.open[name]; ok {
			st := st
			toApply = append(toApply, func() { c.Hydrate(st) })
			continue
		}
		w.saved[name] = st
	}
	w.mu.Unlock()

	for _, fn := range toApply {
		fn()
	}
	return nil
}

// Names returns the resources with open controllers.
func (w *Workspace) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.open))
	for name := range w.open {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset stops every controller and discards all state. The workspace cannot
// be used afterwards.
func (w *Workspace) Reset() {
	w.mu.Lock()
	open := w.open
	w.open = make(map[string]collection.Collection)
	w.saved = make(map[string]filter.State)
	w.token = ""
	w.closed = true
	w.mu.Unlock()

	for _, c := range open {
		c.Close()
	}
}
