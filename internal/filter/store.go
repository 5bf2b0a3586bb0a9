package filter

import "sync"

// Listener receives every new snapshot produced by a dispatch.
type Listener func(State)

// Store is the single source of truth for one resource's criteria. It is safe
// for concurrent use; listeners run on the dispatching goroutine after the
// lock is released.
type Store struct {
	mu        sync.RWMutex
	state     State
	defaults  State
	listeners map[int]Listener
	nextID    int
}

// NewStore creates a store initialised with defaults.
func NewStore(defaults State) *Store {
	return &Store{
		state:     defaults.Clone(),
		defaults:  defaults.Clone(),
		listeners: make(map[int]Listener),
	}
}

// State returns a copy of the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Defaults returns the state ClearAll resets to.
func (s *Store) Defaults() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults.Clone()
}

// Dispatch applies the actions in order and notifies listeners once with the
// final snapshot. Listeners are not called when the snapshot is unchanged.
func (s *Store) Dispatch(actions ...Action) State {
	s.mu.Lock()
	prev := s.state
	next := prev
	for _, a := range actions {
		next = Reduce(next, a, s.defaults)
	}
	s.state = next
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	out := next.Clone()
	if next.Equal(prev) {
		return out
	}
	for _, l := range listeners {
		l(next.Clone())
	}
	return out
}

// Replace swaps the whole snapshot, used when hydrating persisted state.
func (s *Store) Replace(state State) {
	s.mu.Lock()
	changed := !s.state.Equal(state)
	s.state = state.Clone()
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l(state.Clone())
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}
