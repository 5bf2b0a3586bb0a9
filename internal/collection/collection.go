package collection

import (
	"context"
	"io"
	"net/url"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/query"
	"github.com/privacyops/console/internal/querycache"
	"github.com/privacyops/console/internal/shared"
)

// Collection is the type-erased surface of a Controller used by the HTTP
// console, the workspace and the terminal client.
type Collection interface {
	Name() string
	Title() string
	Columns() []string
	Rules() filter.Rules
	Editable() bool
	Fields() []string
	Sensitive() bool
	Schema() query.Schema
	Path() string

	Dispatch(actions ...filter.Action) filter.State
	State() filter.State
	Committed() filter.State
	Pending() bool
	Flush() filter.State
	Hydrate(state filter.State)
	Close()

	Listing(ctx context.Context) Listing
	Lookup(ctx context.Context, id string) (any, error)
	Edit(ctx context.Context, id string, fields map[string]any) error
	Apply(ctx context.Context, call func(ctx context.Context, client *api.Client) error) error
	ExportParams() url.Values
	Download(ctx context.Context) (io.ReadCloser, string, error)
}

// Listing is a View with its items left untyped and pre-rendered rows.
type Listing struct {
	Resource string            `json:"resource"`
	Filter   filter.State      `json:"filter"`
	Items    any               `json:"items"`
	Rows     []Row             `json:"-"`
	Total    int               `json:"total"`
	Footer   shared.Pagination `json:"footer"`
	Summary  string            `json:"summary"`
	Status   querycache.Status `json:"status"`
	Stale    bool              `json:"stale"`
	Err      error             `json:"-"`
}

// Listing implements Collection.
func (c *Controller[T]) Listing(ctx context.Context) Listing {
	v := c.View(ctx)
	rows := make([]Row, 0, len(v.Items))
	if c.res.Row != nil {
		for _, it := range v.Items {
			rows = append(rows, c.res.Row(it))
		}
	}
	return Listing{
		Resource: c.res.Name,
		Filter:   v.Filter,
		Items:    v.Items,
		Rows:     rows,
		Total:    v.Total,
		Footer:   v.Footer,
		Summary:  v.Footer.Summary(),
		Status:   v.Status,
		Stale:    v.Stale,
		Err:      v.Err,
	}
}

// Lookup implements Collection.
func (c *Controller[T]) Lookup(ctx context.Context, id string) (any, error) {
	return c.Record(ctx, id)
}

var _ Collection = (*Controller[api.User])(nil)
