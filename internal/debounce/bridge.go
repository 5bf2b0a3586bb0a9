package debounce

import (
	"sync"
	"time"

	"github.com/privacyops/console/internal/filter"
)

// Bridge keeps a committed copy of a filter store that trails the live state
// by the debounce delay. Only committed snapshots reach the data fetcher.
type Bridge struct {
	store    *filter.Store
	timer    *Timer
	onCommit func(filter.State)

	mu          sync.RWMutex
	committed   filter.State
	unsubscribe func()
}

// NewBridge subscribes to store. onCommit, when set, receives every committed
// snapshot that differs from the previous one.
func NewBridge(store *filter.Store, delay time.Duration, clock Clock, onCommit func(filter.State)) *Bridge {
	b := &Bridge{
		store:     store,
		timer:     NewTimer(delay, clock),
		onCommit:  onCommit,
		committed: store.State(),
	}
	b.unsubscribe = store.Subscribe(func(filter.State) {
		b.timer.Schedule(b.commit)
	})
	return b
}

// Committed returns the last committed snapshot.
func (b *Bridge) Committed() filter.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.committed.Clone()
}

// Pending reports whether a live change is waiting for the delay to elapse.
func (b *Bridge) Pending() bool {
	return b.timer.Pending()
}

// Flush commits the live state immediately and returns it.
func (b *Bridge) Flush() filter.State {
	if !b.timer.Flush() {
		b.timer.exec(b.commit)
	}
	return b.Committed()
}

// Close stops listening to the store and drops any pending commit.
func (b *Bridge) Close() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	b.timer.Stop()
}

// commit reads the live state at fire time so the newest snapshot wins even
// when listener notifications interleave.
func (b *Bridge) commit() {
	live := b.store.State()
	b.mu.Lock()
	if live.Equal(b.committed) {
		b.mu.Unlock()
		return
	}
	b.committed = live
	b.mu.Unlock()
	if b.onCommit != nil {
		b.onCommit(live.Clone())
	}
}
