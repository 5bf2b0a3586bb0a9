package filter

import (
	"slices"
	"time"
)

// Action is a discrete, named change to a State. Every action is total over
// its input; there are no failing reductions.
type Action interface {
	Name() string
	reduce(s State, defaults State) State
}

// Action names as used by the console and CLI surfaces.
const (
	ActionSetSearch = "set-search"
	ActionSetStatus = "set-status"
	ActionSetFrom   = "set-from"
	ActionSetTo     = "set-to"
	ActionSetFacet  = "set-facet"
	ActionSetPage   = "set-page"
	ActionSetSize   = "set-size"
	ActionSetSort   = "set-sort"
	ActionSetReveal = "set-reveal"
	ActionClearAll  = "clear-all"
)

// Reduce applies a to s and returns the new snapshot. defaults is the state
// ClearAll returns to.
func Reduce(s State, a Action, defaults State) State {
	if a == nil {
		return s.Clone()
	}
	return a.reduce(s.Clone(), defaults)
}

// SetSearch replaces the free-text term.
type SetSearch struct{ Term string }

func (SetSearch) Name() string { return ActionSetSearch }

func (a SetSearch) reduce(s State, _ State) State {
	s.Search = a.Term
	s.Page = 1
	return s
}

// SetStatuses replaces the selected status values. An empty list clears the filter.
type SetStatuses struct{ Values []string }

func (SetStatuses) Name() string { return ActionSetStatus }

func (a SetStatuses) reduce(s State, _ State) State {
	s.Statuses = slices.Clone(a.Values)
	if len(s.Statuses) == 0 {
		s.Statuses = nil
	}
	s.Page = 1
	return s
}

// SetFrom sets the lower calendar-date bound. A nil date clears it.
type SetFrom struct{ Date *time.Time }

func (SetFrom) Name() string { return ActionSetFrom }

func (a SetFrom) reduce(s State, _ State) State {
	s.From = cloneTime(a.Date)
	s.Page = 1
	return s
}

// SetTo sets the upper calendar-date bound. A nil date clears it.
type SetTo struct{ Date *time.Time }

func (SetTo) Name() string { return ActionSetTo }

func (a SetTo) reduce(s State, _ State) State {
	s.To = cloneTime(a.Date)
	s.Page = 1
	return s
}

// SetFacet replaces the values of a resource-specific multi-value filter.
type SetFacet struct {
	Key    string
	Values []string
}

func (SetFacet) Name() string { return ActionSetFacet }

func (a SetFacet) reduce(s State, _ State) State {
	if len(a.Values) == 0 {
		delete(s.Facets, a.Key)
		if len(s.Facets) == 0 {
			s.Facets = nil
		}
	} else {
		if s.Facets == nil {
			s.Facets = make(map[string][]string)
		}
		s.Facets[a.Key] = slices.Clone(a.Values)
	}
	s.Page = 1
	return s
}

// SetPage moves to page N. Bounds are not checked against the result total;
// the pagination footer disables the controls at the edges.
type SetPage struct{ N int }

func (SetPage) Name() string { return ActionSetPage }

func (a SetPage) reduce(s State, _ State) State {
	s.Page = a.N
	return s
}

// SetSize changes the page length and returns to the first page.
type SetSize struct{ N int }

func (SetSize) Name() string { return ActionSetSize }

func (a SetSize) reduce(s State, _ State) State {
	s.Size = a.N
	s.Page = 1
	return s
}

// SetSort changes the sort column and direction and returns to page 1.
// DirectionNone clears the sort field.
type SetSort struct {
	Field     string
	Direction Direction
}

func (SetSort) Name() string { return ActionSetSort }

func (a SetSort) reduce(s State, _ State) State {
	s.SortField = a.Field
	s.SortDirection = a.Direction
	if a.Direction == DirectionNone {
		s.SortField = ""
	}
	s.Page = 1
	return s
}

// SetRevealSensitive toggles unmasked identity display.
type SetRevealSensitive struct{ Reveal bool }

func (SetRevealSensitive) Name() string { return ActionSetReveal }

func (a SetRevealSensitive) reduce(s State, _ State) State {
	s.RevealSensitive = a.Reveal
	return s
}

// ClearAll returns every field to its default except RevealSensitive.
type ClearAll struct{}

func (ClearAll) Name() string { return ActionClearAll }

func (ClearAll) reduce(s State, defaults State) State {
	out := defaults.Clone()
	out.RevealSensitive = s.RevealSensitive
	return out
}
