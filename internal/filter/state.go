// Package filter holds the list-view criteria of one resource type and the
// named actions that change them.
package filter

import (
	"maps"
	"slices"
	"time"
)

// Direction is the sort direction of a list view.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// DefaultSize is the page length used when a resource does not configure one.
const DefaultSize = 25

// State is one immutable snapshot of a resource's filter and pagination criteria.
// Values handed out by Store are copies; mutating them does not affect the store.
type State struct {
	Page            int                 `json:"page"`
	Size            int                 `json:"size"`
	Search          string              `json:"search,omitempty"`
	Statuses        []string            `json:"statuses,omitempty"`
	From            *time.Time          `json:"from,omitempty"`
	To              *time.Time          `json:"to,omitempty"`
	SortField       string              `json:"sort_field,omitempty"`
	SortDirection   Direction           `json:"sort_direction,omitempty"`
	Facets          map[string][]string `json:"facets,omitempty"`
	RevealSensitive bool                `json:"reveal_sensitive"`
}

// Defaults returns the initial state of a view with the given page length.
func Defaults(size int) State {
	if size <= 0 {
		size = DefaultSize
	}
	return State{Page: 1, Size: size}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Statuses = slices.Clone(s.Statuses)
	out.From = cloneTime(s.From)
	out.To = cloneTime(s.To)
	if s.Facets != nil {
		out.Facets = make(map[string][]string, len(s.Facets))
		for k, v := range s.Facets {
			out.Facets[k] = slices.Clone(v)
		}
	}
	return out
}

// Equal reports whether two snapshots hold the same criteria. Nil and empty
// collections compare equal.
func (s State) Equal(o State) bool {
	if s.Page != o.Page || s.Size != o.Size || s.Search != o.Search ||
		s.SortField != o.SortField || s.SortDirection != o.SortDirection ||
		s.RevealSensitive != o.RevealSensitive {
		return false
	}
	if !slices.Equal(s.Statuses, o.Statuses) {
		return false
	}
	if !equalTime(s.From, o.From) || !equalTime(s.To, o.To) {
		return false
	}
	if len(s.Facets) != len(o.Facets) {
		return false
	}
	return maps.EqualFunc(s.Facets, o.Facets, func(a, b []string) bool { return slices.Equal(a, b) })
}

// Facet returns the values selected for a resource-specific facet.
func (s State) Facet(key string) []string {
	if s.Facets == nil {
		return nil
	}
	return slices.Clone(s.Facets[key])
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
