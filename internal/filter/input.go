package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar-date format accepted for From/To input.
const DateLayout = "2006-01-02"

// Bounds on paging input.
const (
	MaxSize = 100
	MaxPage = 1_000_000
)

// ErrInvalidAction is returned when user input cannot be turned into an Action.
var ErrInvalidAction = errors.New("filter: invalid action")

// Input is the wire form of an action, as posted by the console or built from
// CLI flags.
type Input struct {
	Name      string   `json:"action" validate:"required,oneof=set-search set-status set-from set-to set-facet set-page set-size set-sort set-reveal clear-all"`
	Term      string   `json:"term,omitempty" validate:"max=256"`
	Values    []string `json:"values,omitempty" validate:"max=32,dive,max=64"`
	Date      string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Key       string   `json:"key,omitempty" validate:"required_if=Name set-facet,max=64"`
	Page      int      `json:"page,omitempty" validate:"required_if=Name set-page,omitempty,min=1,max=1000000"`
	Size      int      `json:"size,omitempty" validate:"min=0,max=100"`
	Field     string   `json:"field,omitempty" validate:"max=64"`
	Direction string   `json:"direction,omitempty" validate:"omitempty,oneof=asc desc"`
	Reveal    bool     `json:"reveal,omitempty"`
}

// Rules restricts the values a resource accepts beyond the generic checks.
type Rules struct {
	Statuses   []string
	Facets     map[string][]string
	SortFields []string
}

// Parser validates Input against resource Rules.
type Parser struct {
	validate *validator.Validate
}

// NewParser constructs a Parser.
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// Parse validates in and converts it into an Action.
func (p *Parser) Parse(in Input, rules Rules) (Action, error) {
	if err := p.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return nil, fmt.Errorf("%w: %s", ErrInvalidAction, strings.Join(fields, ", "))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	switch in.Name {
	case ActionSetSearch:
		return SetSearch{Term: in.Term}, nil
	case ActionSetStatus:
		if err := allowed("status", in.Values, rules.Statuses); err != nil {
			return nil, err
		}
		return SetStatuses{Values: in.Values}, nil
	case ActionSetFrom, ActionSetTo:
		date, err := parseDate(in.Date)
		if err != nil {
			return nil, err
		}
		if in.Name == ActionSetFrom {
			return SetFrom{Date: date}, nil
		}
		return SetTo{Date: date}, nil
	case ActionSetFacet:
		options, ok := rules.Facets[in.Key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown facet %q", ErrInvalidAction, in.Key)
		}
		if err := allowed(in.Key, in.Values, options); err != nil {
			return nil, err
		}
		return SetFacet{Key: in.Key, Values: in.Values}, nil
	case ActionSetPage:
		return SetPage{N: in.Page}, nil
	case ActionSetSize:
		return SetSize{N: in.Size}, nil
	case ActionSetSort:
		if in.Field != "" && len(rules.SortFields) > 0 && !slices.Contains(rules.SortFields, in.Field) {
			return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidAction, in.Field)
		}
		return SetSort{Field: in.Field, Direction: Direction(in.Direction)}, nil
	case ActionSetReveal:
		return SetRevealSensitive{Reveal: in.Reveal}, nil
	case ActionClearAll:
		return ClearAll{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidAction, in.Name)
}

// allowed checks values against options. An empty option list accepts anything.
func allowed(name string, values, options []string) error {
	if len(options) == 0 {
		return nil
	}
	for _, v := range values {
		if !slices.Contains(options, v) {
			return fmt.Errorf("%w: %s %q not allowed", ErrInvalidAction, name, v)
		}
	}
	return nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidAction, raw)
	}
	return &t, nil
}
