package filter

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
)

// Query parameter names understood by ParseValues.
const (
	ParamClear         = "clear"
	ParamSearch        = "search"
	ParamStatus        = "status"
	ParamFrom          = "from"
	ParamTo            = "to"
	ParamPage          = "page"
	ParamSize          = "size"
	ParamSortField     = "sort_field"
	ParamSortDirection = "sort_direction"
	ParamReveal        = "reveal"
)

// ParseValues turns the query string of a list view into actions. Only the
// parameters present produce an action. Page is applied last so a link that
// carries both a filter and a page lands on that page.
func (p *Parser) ParseValues(v url.Values, rules Rules) ([]Action, error) {
	var inputs []Input
	if v.Has(ParamClear) {
		inputs = append(inputs, Input{Name: ActionClearAll})
	}
	if v.Has(ParamSearch) {
		inputs = append(inputs, Input{Name: ActionSetSearch, Term: v.Get(ParamSearch)})
	}
	if v.Has(ParamStatus) {
		inputs = append(inputs, Input{Name: ActionSetStatus, Values: nonEmpty(v[ParamStatus])})
	}
	if v.Has(ParamFrom) {
		inputs = append(inputs, Input{Name: ActionSetFrom, Date: v.Get(ParamFrom)})
	}
	if v.Has(ParamTo) {
		inputs = append(inputs, Input{Name: ActionSetTo, Date: v.Get(ParamTo)})
	}
	facets := make([]string, 0, len(rules.Facets))
	for key := range rules.Facets {
		if v.Has(key) {
			facets = append(facets, key)
		}
	}
	slices.Sort(facets)
	for _, key := range facets {
		inputs = append(inputs, Input{Name: ActionSetFacet, Key: key, Values: nonEmpty(v[key])})
	}
	if v.Has(ParamSize) {
		n, err := atoi(ParamSize, v.Get(ParamSize))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, Input{Name: ActionSetSize, Size: n})
	}
	if v.Has(ParamSortField) || v.Has(ParamSortDirection) {
		inputs = append(inputs, Input{
			Name:      ActionSetSort,
			Field:     v.Get(ParamSortField),
			Direction: v.Get(ParamSortDirection),
		})
	}
	if v.Has(ParamReveal) {
		reveal, err := strconv.ParseBool(v.Get(ParamReveal))
		if err != nil {
			return nil, fmt.Errorf("%w: reveal %q", ErrInvalidAction, v.Get(ParamReveal))
		}
		inputs = append(inputs, Input{Name: ActionSetReveal, Reveal: reveal})
	}
	if v.Has(ParamPage) {
		n, err := atoi(ParamPage, v.Get(ParamPage))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, Input{Name: ActionSetPage, Page: n})
	}

	actions := make([]Action, 0, len(inputs))
	for _, in := range inputs {
		a, err := p.Parse(in, rules)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func atoi(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidAction, name, raw)
	}
	return n, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
