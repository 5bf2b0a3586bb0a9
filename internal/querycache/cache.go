// Package querycache executes read queries against the upstream API with
// caching, de-duplication of identical in-flight requests and coarse
// per-resource invalidation.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status of one cache entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

const (
	kindList  = "list"
	kindPoint = "one"
)

// Defaults for Options.
const (
	DefaultListTTL  = 60 * time.Second
	DefaultPointTTL = time.Second
)

// ErrLoaderRequired is returned when a query is issued without a loader.
var ErrLoaderRequired = errors.New("querycache: loader required")

// Loader performs the network call for a missing entry.
type Loader func(ctx context.Context) (any, error)

// EntryState describes the last known outcome for a key.
type EntryState struct {
	Status    Status
	Err       error
	UpdatedAt time.Time
}

// Options tunes a Cache.
type Options struct {
	ListTTL  time.Duration
	PointTTL time.Duration
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Cache is the process-wide query cache. It is safe for concurrent use.
// Entries are private to a scope; see Scope.
type Cache struct {
	*core
	scope string
}

type core struct {
	store   Store
	group   singleflight.Group
	listTTL time.Duration
	oneTTL  time.Duration
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	states map[string]EntryState
}

// New builds a Cache over store. The returned cache uses the anonymous scope.
func New(store Store, opts Options) *Cache {
	if opts.ListTTL <= 0 {
		opts.ListTTL = DefaultListTTL
	}
	if opts.PointTTL <= 0 {
		opts.PointTTL = DefaultPointTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Cache{
		core: &core{
			store:   store,
			listTTL: opts.ListTTL,
			oneTTL:  opts.PointTTL,
			logger:  opts.Logger,
			metrics: opts.Metrics,
			states:  make(map[string]EntryState),
		},
		scope: anonymousScope,
	}
}

// Scope returns a view of the cache whose entries, in-flight calls and slots
// are visible only to principal, typically a bearer token. Views share the
// store and resource versions, so Invalidate affects every scope.
func (c *Cache) Scope(principal string) *Cache {
	return &Cache{core: c.core, scope: scopeOf(principal)}
}

// Query returns the encoded result of a list query identified by params,
// loading it when absent. Identical concurrent queries share one loader call.
func (c *Cache) Query(ctx context.Context, resource, params string, load Loader) ([]byte, error) {
	return c.fetch(ctx, resource, kindList, params, c.listTTL, load)
}

// QueryOne returns the encoded single record id. Point entries expire after
// the point TTL.
func (c *Cache) QueryOne(ctx context.Context, resource, id string, load Loader) ([]byte, error) {
	return c.fetch(ctx, resource, kindPoint, id, c.oneTTL, load)
}

// Status reports the state of a list query under the current resource version.
func (c *Cache) Status(ctx context.Context, resource, params string) EntryState {
	return c.status(ctx, resource, kindList, params)
}

// StatusOne reports the state of a point query.
func (c *Cache) StatusOne(ctx context.Context, resource, id string) EntryState {
	return c.status(ctx, resource, kindPoint, id)
}

// Invalidate drops every cached list and point result of resource by bumping
// its version.
func (c *Cache) Invalidate(ctx context.Context, resource string) error {
	if _, err := c.store.Bump(ctx, resource); err != nil {
		return err
	}
	c.forget(resource)
	c.metrics.invalidated(resource)
	c.logger.Debug("query cache invalidated", slog.String("resource", resource))
	return nil
}

// Evict removes the point entry of id.
func (c *Cache) Evict(ctx context.Context, resource, id string) error {
	slot, err := c.Slot(ctx, resource, id)
	if err != nil {
		return err
	}
	c.dropState(slot.key)
	return c.store.Delete(ctx, slot.key)
}

// Watch applies invalidations announced by other processes when the store
// supports it. It returns immediately for process-local stores.
func (c *Cache) Watch(ctx context.Context) error {
	sub, ok := c.store.(Subscriber)
	if !ok {
		return nil
	}
	return sub.Subscribe(ctx, c.forget)
}

// Slot addresses the point entry of one record under the current version.
// It is the only sanctioned way to patch a cached record in place.
type Slot struct {
	Resource string
	ID       string
	key      string
}

// Slot resolves the point entry of id.
func (c *Cache) Slot(ctx context.Context, resource, id string) (Slot, error) {
	ver, err := c.store.Version(ctx, resource)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Resource: resource, ID: id, key: c.entryKey(resource, ver, kindPoint, id)}, nil
}

// Read returns the raw bytes held in slot.
func (c *Cache) Read(ctx context.Context, slot Slot) ([]byte, bool, error) {
	return c.store.Get(ctx, slot.key)
}

// Write stores data in slot verbatim. A nil data deletes the entry.
func (c *Cache) Write(ctx context.Context, slot Slot, data []byte) error {
	if data == nil {
		return c.store.Delete(ctx, slot.key)
	}
	return c.store.Set(ctx, slot.key, data, c.oneTTL)
}

func (c *Cache) fetch(ctx context.Context, resource, kind, id string, ttl time.Duration, load Loader) ([]byte, error) {
	if load == nil {
		return nil, ErrLoaderRequired
	}
	ver, err := c.store.Version(ctx, resource)
	if err != nil {
		return nil, err
	}
	key := c.entryKey(resource, ver, kind, id)

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("query cache read", slog.String("key", key), slog.Any("error", err))
	} else if ok {
		c.metrics.lookup(resource, outcomeHit)
		c.setState(key, StatusSuccess, nil)
		return data, nil
	}

	c.setState(key, StatusLoading, nil)
	resultCh := c.group.DoChan(key, func() (interface{}, error) {
		callCtx := context.WithoutCancel(ctx)
		value, err := load(callCtx)
		if err != nil {
			c.setState(key, StatusError, err)
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			err = fmt.Errorf("querycache: encode %s: %w", resource, err)
			c.setState(key, StatusError, err)
			return nil, err
		}
		if err := c.store.Set(callCtx, key, raw, ttl); err != nil {
			c.logger.Warn("query cache write", slog.String("key", key), slog.Any("error", err))
		}
		c.setState(key, StatusSuccess, nil)
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		switch {
		case res.Err != nil:
			c.metrics.lookup(resource, outcomeError)
			return nil, res.Err
		case res.Shared:
			c.metrics.lookup(resource, outcomeShared)
		default:
			c.metrics.lookup(resource, outcomeMiss)
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) status(ctx context.Context, resource, kind, id string) EntryState {
	ver, err := c.store.Version(ctx, resource)
	if err != nil {
		return EntryState{Status: StatusError, Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[c.entryKey(resource, ver, kind, id)]
	if !ok {
		return EntryState{Status: StatusIdle}
	}
	return st
}

func (c *core) setState(key string, status Status, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[key] = EntryState{Status: status, Err: err, UpdatedAt: time.Now()}
}

func (c *core) dropState(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, key)
}

// Prune forgets entry states not updated within the longest entry TTL before
// now. Their entries have expired. In-flight loads are kept. It reports how
// many states were dropped.
func (c *Cache) Prune(now time.Time) int {
	cutoff := now.Add(-max(c.listTTL, c.oneTTL))
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, st := range c.states {
		if st.Status == StatusLoading || st.UpdatedAt.After(cutoff) {
			continue
		}
		delete(c.states, k)
		removed++
	}
	return removed
}

// States reports the number of tracked entry states.
func (c *Cache) States() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states)
}

// forget drops local entry states of resource; their keys belong to an old
// version.
func (c *core) forget(resource string) {
	prefix := "querycache:" + resource + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.states {
		if strings.HasPrefix(k, prefix) {
			delete(c.states, k)
		}
	}
}

func (c *Cache) entryKey(resource string, version int64, kind, id string) string {
	return fmt.Sprintf("querycache:%s:v%d:%s:%s:%s", resource, version, c.scope, kind, id)
}

const anonymousScope = "anon"

// scopeOf derives a stable key segment from principal without storing the
// secret itself in keys.
func scopeOf(principal string) string {
	if principal == "" {
		return anonymousScope
	}
	sum := sha256.Sum256([]byte(principal))
	return hex.EncodeToString(sum[:12])
}

// Decode unmarshals cached bytes into T.
func Decode[T any](data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("querycache: decode: %w", err)
	}
	return out, nil
}
