// Package collection binds the filter store, debounce bridge, query mapper
// and query cache into one controller per resource type.
package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/debounce"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/optimistic"
	"github.com/privacyops/console/internal/query"
	"github.com/privacyops/console/internal/querycache"
	"github.com/privacyops/console/internal/shared"
)

var (
	// ErrReadOnly is returned when editing a resource without an update call.
	ErrReadOnly = errors.New("collection: resource is read-only")
	// ErrFieldNotEditable is returned for edits outside the editable fields.
	ErrFieldNotEditable = errors.New("collection: field not editable")
	// ErrNoClient is returned when a controller has no upstream client.
	ErrNoClient = errors.New("collection: no upstream client")
)

// Deps are the process-wide collaborators shared by every controller.
type Deps struct {
	Client      *api.Client
	Cache       *querycache.Cache
	Coordinator *optimistic.Coordinator
	Logger      *slog.Logger
}

// Options tunes one controller.
type Options struct {
	Delay time.Duration
	Clock debounce.Clock
	// Initial replaces the resource defaults, used when hydrating a session.
	Initial *filter.State
	// DefaultSize applies to resources that declare no page size.
	DefaultSize int
}

// View is the rendered state of a collection.
type View[T any] struct {
	Filter filter.State      `json:"filter"`
	Items  []T               `json:"items"`
	Total  int               `json:"total"`
	Footer shared.Pagination `json:"footer"`
	Status querycache.Status `json:"status"`
	Stale  bool              `json:"stale"`
	Err    error             `json:"-"`
}

// Controller drives one resource view. It is safe for concurrent use.
type Controller[T any] struct {
	res    Resource[T]
	client *api.Client
	cache  *querycache.Cache
	coord  *optimistic.Coordinator
	logger *slog.Logger

	store  *filter.Store
	bridge *debounce.Bridge

	mu   sync.Mutex
	last *View[T]
}

// New builds a controller for res.
func New[T any](res Resource[T], deps Deps, opts Options) *Controller[T] {
	if opts.DefaultSize > 0 && res.DefaultSize <= 0 {
		res.DefaultSize = opts.DefaultSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	coord := deps.Coordinator
	if coord == nil {
		coord = optimistic.NewCoordinator(deps.Cache, logger)
	}
	c := &Controller[T]{
		res:    res,
		client: deps.Client,
		cache:  deps.Cache,
		coord:  coord,
		logger: logger.With(slog.String("resource", res.Name)),
	}
	c.store = filter.NewStore(res.defaults())
	if opts.Initial != nil {
		c.store.Replace(*opts.Initial)
	}
	clock := opts.Clock
	if clock == nil {
		clock = debounce.SystemClock{}
	}
	c.bridge = debounce.NewBridge(c.store, opts.Delay, clock, c.prefetch)
	return c
}

// Name returns the resource name.
func (c *Controller[T]) Name() string { return c.res.Name }

// Title returns the display title.
func (c *Controller[T]) Title() string { return c.res.Title }

// Columns returns the list columns.
func (c *Controller[T]) Columns() []string { return c.res.Columns }

// Rules returns the filter validation rules.
func (c *Controller[T]) Rules() filter.Rules { return c.res.Rules }

// Editable reports whether records can be edited.
func (c *Controller[T]) Editable() bool { return c.res.Update != nil }

// Fields returns the names accepted by Edit.
func (c *Controller[T]) Fields() []string { return slices.Clone(c.res.Editable) }

// Sensitive reports whether records are masked until reveal is on.
func (c *Controller[T]) Sensitive() bool { return c.res.Mask != nil }

// Schema returns the wire mapping of the resource.
func (c *Controller[T]) Schema() query.Schema { return c.res.Schema }

// Dispatch applies actions to the live filter state.
func (c *Controller[T]) Dispatch(actions ...filter.Action) filter.State {
	return c.store.Dispatch(actions...)
}

// State returns the live filter state.
func (c *Controller[T]) State() filter.State { return c.store.State() }

// Committed returns the state the last fetch was issued for.
func (c *Controller[T]) Committed() filter.State { return c.bridge.Committed() }

// Pending reports whether a filter change waits for the debounce delay.
func (c *Controller[T]) Pending() bool { return c.bridge.Pending() }

// Flush commits the live state without waiting for the delay.
func (c *Controller[T]) Flush() filter.State { return c.bridge.Flush() }

// Hydrate replaces the filter state and commits it.
func (c *Controller[T]) Hydrate(state filter.State) {
	c.store.Replace(state)
	c.bridge.Flush()
}

// Close stops the debounce timer.
func (c *Controller[T]) Close() { c.bridge.Close() }

// Params maps the committed state to wire parameters.
func (c *Controller[T]) Params() url.Values {
	return c.res.Schema.Map(c.bridge.Committed())
}

// View returns the collection for the committed filter state. While another
// caller loads a new key the previous result is returned marked stale.
func (c *Controller[T]) View(ctx context.Context) View[T] {
	state := c.bridge.Committed()
	params := c.res.Schema.Map(state)
	key := query.Key(params)

	if c.cache.Status(ctx, c.res.Name, key).Status == querycache.StatusLoading {
		if last, ok := c.lastView(); ok {
			last.Stale = true
			last.Status = querycache.StatusLoading
			return last
		}
	}

	data, err := c.cache.Query(ctx, c.res.Name, key, c.listLoader(params))
	if err == nil {
		var page api.Page[T]
		page, err = querycache.Decode[api.Page[T]](data)
		if err == nil {
			v := c.render(state, page)
			c.mu.Lock()
			c.last = &v
			c.mu.Unlock()
			return v
		}
	}

	c.logger.Warn("collection fetch failed", slog.Any("error", err))
	v := View[T]{Filter: state, Items: []T{}, Status: querycache.StatusError, Err: err,
		Footer: shared.NewPagination(state.Page, c.pageSize(state), 0)}
	if last, ok := c.lastView(); ok {
		v.Items, v.Total, v.Footer, v.Stale = last.Items, last.Total, last.Footer, true
	}
	return v
}

// Record returns one record through the point cache.
func (c *Controller[T]) Record(ctx context.Context, id string) (T, error) {
	var zero T
	if c.res.Get == nil {
		return zero, api.ErrNotFound
	}
	data, err := c.cache.QueryOne(ctx, c.res.Name, id, func(ctx context.Context) (any, error) {
		if c.client == nil {
			return nil, ErrNoClient
		}
		return c.res.Get(ctx, c.client, id)
	})
	if err != nil {
		return zero, err
	}
	rec, err := querycache.Decode[T](data)
	if err != nil {
		return zero, err
	}
	if c.res.Mask != nil && !c.bridge.Committed().RevealSensitive {
		rec = c.res.Mask(rec)
	}
	return rec, nil
}

// Edit submits fields for record id optimistically.
func (c *Controller[T]) Edit(ctx context.Context, id string, fields map[string]any) error {
	if c.res.Update == nil {
		return ErrReadOnly
	}
	if c.client == nil {
		return ErrNoClient
	}
	for name := range fields {
		if !slices.Contains(c.res.Editable, name) {
			return fmt.Errorf("%w: %s", ErrFieldNotEditable, name)
		}
	}
	return c.coord.Mutate(ctx, c.res.Name, id, fields, func(ctx context.Context) error {
		return c.res.Update(ctx, c.client, id, fields)
	})
}

// Apply runs a mutation that is not a single-record edit and invalidates the
// resource afterwards, also when only some items were rejected.
func (c *Controller[T]) Apply(ctx context.Context, call func(ctx context.Context, client *api.Client) error) error {
	if c.client == nil {
		return ErrNoClient
	}
	err := call(ctx, c.client)
	var partial *api.PartialFailureError
	if err == nil || errors.As(err, &partial) {
		if invErr := c.cache.Invalidate(context.WithoutCancel(ctx), c.res.Name); invErr != nil {
			c.logger.Warn("invalidate after mutation", slog.Any("error", invErr))
		}
	}
	return err
}

// ExportParams returns the committed filter parameters without paging.
func (c *Controller[T]) ExportParams() url.Values {
	params := c.res.Schema.Map(c.bridge.Flush())
	params.Del(query.KeyPage)
	params.Del(query.KeySize)
	return params
}

// Download streams the CSV rendition of the current filters. It bypasses the
// cache.
func (c *Controller[T]) Download(ctx context.Context) (io.ReadCloser, string, error) {
	if c.client == nil {
		return nil, "", ErrNoClient
	}
	return c.client.DownloadCSV(ctx, c.res.Path, c.ExportParams())
}

// Path returns the upstream collection path.
func (c *Controller[T]) Path() string { return c.res.Path }

// prefetch warms the cache for a freshly committed state.
func (c *Controller[T]) prefetch(state filter.State) {
	params := c.res.Schema.Map(state)
	if _, err := c.cache.Query(context.Background(), c.res.Name, query.Key(params), c.listLoader(params)); err != nil {
		c.logger.Warn("collection prefetch failed", slog.Any("error", err))
	}
}

func (c *Controller[T]) listLoader(params url.Values) querycache.Loader {
	return func(ctx context.Context) (any, error) {
		if c.client == nil {
			return nil, ErrNoClient
		}
		return c.res.List(ctx, c.client, params)
	}
}

func (c *Controller[T]) render(state filter.State, page api.Page[T]) View[T] {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	if c.res.Mask != nil && !state.RevealSensitive {
		masked := make([]T, len(items))
		for i, it := range items {
			masked[i] = c.res.Mask(it)
		}
		items = masked
	}
	return View[T]{
		Filter: state,
		Items:  items,
		Total:  page.Total,
		Footer: shared.NewPagination(state.Page, c.pageSize(state), page.Total),
		Status: querycache.StatusSuccess,
	}
}

func (c *Controller[T]) pageSize(state filter.State) int {
	if state.Size > 0 {
		return state.Size
	}
	return c.res.defaults().Size
}

func (c *Controller[T]) lastView() (View[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return View[T]{}, false
	}
	return *c.last, true
}
