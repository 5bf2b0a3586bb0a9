package debounce_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacyops/console/internal/debounce"
	"github.com/privacyops/console/internal/debounce/debouncetest"
	"github.com/privacyops/console/internal/filter"
)

func TestTimerFiresOnceAfterQuietPeriod(t *testing.T) {
	clock := debouncetest.New()
	timer := debounce.NewTimer(250*time.Millisecond, clock)
	var calls []string

	timer.Schedule(func() { calls = append(calls, "a") })
	clock.Advance(100 * time.Millisecond)
	timer.Schedule(func() { calls = append(calls, "b") })
	clock.Advance(249 * time.Millisecond)
	assert.Empty(t, calls)
	assert.True(t, timer.Pending())

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"b"}, calls)
	assert.False(t, timer.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, []string{"b"}, calls)
}

func TestTimerStopAndFlush(t *testing.T) {
	clock := debouncetest.New()
	timer := debounce.NewTimer(250*time.Millisecond, clock)
	calls := 0

	timer.Schedule(func() { calls++ })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	clock.Advance(time.Second)
	assert.Equal(t, 0, calls)

	timer.Schedule(func() { calls++ })
	assert.True(t, timer.Flush())
	assert.Equal(t, 1, calls)
	clock.Advance(time.Second)
	assert.Equal(t, 1, calls)
	assert.False(t, timer.Flush())
}

func TestBridgeCoalescesBurstIntoOneCommit(t *testing.T) {
	clock := debouncetest.New()
	store := filter.NewStore(filter.Defaults(25))
	var commits []filter.State
	bridge := debounce.NewBridge(store, debounce.DefaultDelay, clock, func(s filter.State) {
		commits = append(commits, s)
	})
	defer bridge.Close()

	store.Dispatch(filter.SetSearch{Term: "A"})
	clock.Advance(100 * time.Millisecond)
	store.Dispatch(filter.SetSearch{Term: "B"})
	clock.Advance(100 * time.Millisecond)
	store.Dispatch(filter.SetSearch{Term: "C"})

	assert.Empty(t, commits)
	assert.Equal(t, "", bridge.Committed().Search)

	clock.Advance(debounce.DefaultDelay)

	require.Len(t, commits, 1)
	assert.Equal(t, "C", commits[0].Search)
	assert.Equal(t, "C", bridge.Committed().Search)
	assert.Equal(t, 0, clock.Pending())
}

func TestBridgeSeparatedChangesCommitEach(t *testing.T) {
	clock := debouncetest.New()
	store := filter.NewStore(filter.Defaults(25))
	var commits int32
	bridge := debounce.NewBridge(store, debounce.DefaultDelay, clock, func(filter.State) {
		atomic.AddInt32(&commits, 1)
	})
	defer bridge.Close()

	store.Dispatch(filter.SetStatuses{Values: []string{"pending"}})
	clock.Advance(300 * time.Millisecond)
	store.Dispatch(filter.SetPage{N: 2})
	clock.Advance(300 * time.Millisecond)

	assert.Equal(t, int32(2), atomic.LoadInt32(&commits))
	assert.Equal(t, 2, bridge.Committed().Page)
}

func TestBridgeFlushCommitsImmediately(t *testing.T) {
	clock := debouncetest.New()
	store := filter.NewStore(filter.Defaults(25))
	commits := 0
	bridge := debounce.NewBridge(store, debounce.DefaultDelay, clock, func(filter.State) { commits++ })
	defer bridge.Close()

	store.Dispatch(filter.SetSearch{Term: "now"})
	got := bridge.Flush()

	assert.Equal(t, "now", got.Search)
	assert.Equal(t, 1, commits)
	assert.False(t, bridge.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, 1, commits)

	bridge.Flush()
	assert.Equal(t, 1, commits, "flush without changes must not commit again")
}

func TestBridgeSkipsCommitWhenBurstReturnsToCommittedState(t *testing.T) {
	clock := debouncetest.New()
	store := filter.NewStore(filter.Defaults(25))
	commits := 0
	bridge := debounce.NewBridge(store, debounce.DefaultDelay, clock, func(filter.State) { commits++ })
	defer bridge.Close()

	store.Dispatch(filter.SetSearch{Term: "x"})
	store.Dispatch(filter.SetSearch{Term: ""})
	clock.Advance(time.Second)

	assert.Equal(t, 0, commits)
}

func TestBridgeCloseDropsPendingCommit(t *testing.T) {
	clock := debouncetest.New()
	store := filter.NewStore(filter.Defaults(25))
	commits := 0
	bridge := debounce.NewBridge(store, debounce.DefaultDelay, clock, func(filter.State) { commits++ })

	store.Dispatch(filter.SetSearch{Term: "late"})
	bridge.Close()
	clock.Advance(time.Second)
	store.Dispatch(filter.SetSearch{Term: "later"})
	clock.Advance(time.Second)

	assert.Equal(t, 0, commits)
}
