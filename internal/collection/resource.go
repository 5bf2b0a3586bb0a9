package collection

import (
	"context"
	"net/url"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/query"
)

// ListFunc loads one page of T for mapped query parameters.
type ListFunc[T any] func(ctx context.Context, client *api.Client, params url.Values) (api.Page[T], error)

// GetFunc loads a single T.
type GetFunc[T any] func(ctx context.Context, client *api.Client, id string) (*T, error)

// UpdateFunc submits an edit of one record.
type UpdateFunc func(ctx context.Context, client *api.Client, id string, fields map[string]any) error

// Resource describes one resource type shown as a filtered collection.
type Resource[T any] struct {
	// Name keys the cache namespace and the console route.
	Name string
	// Path is the upstream collection path.
	Path        string
	Title       string
	Schema      query.Schema
	Rules       filter.Rules
	DefaultSize int
	// Columns are rendered by the list template, in order.
	Columns []string
	// Editable lists fields accepted by Update.
	Editable []string

	List   ListFunc[T]
	Get    GetFunc[T]
	Update UpdateFunc
	// Mask hides sensitive values while reveal is off.
	Mask func(T) T
	// Row renders the cells of Columns for one record and its identifier.
	Row func(T) Row
}

// Row is one rendered record.
type Row struct {
	ID    string
	Cells []string
}

func (r Resource[T]) defaults() filter.State {
	size := r.DefaultSize
	if size <= 0 {
		size = filter.DefaultSize
	}
	return filter.Defaults(size)
}
