package console

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strconv"

	"github.com/privacyops/console/internal/collection"
	"github.com/privacyops/console/internal/filter"
	"github.com/privacyops/console/internal/shared"
	"github.com/privacyops/console/internal/view"
)

// listPage is the template model of a collection view.
type listPage struct {
	Resource  string
	Title     string
	Filter    filter.State
	Statuses  []string
	Dates     bool
	Facets    []facetView
	Sensitive bool
	Bulk      bool
	Columns   []string
	Rows      []collection.Row
	Footer    shared.Pagination
	Summary   string
	PrevURL   string
	NextURL   string
	Stale     bool
	Error     string
}

type facetView struct {
	Key      string
	Options  []string
	Selected []string
}

type fieldView struct {
	Name  string
	Value string
}

// recordPage is the template model of a single record.
type recordPage struct {
	Resource string
	Title    string
	ID       string
	Fields   []fieldView
	Editable []fieldView
}

func newListPage(coll collection.Collection, listing collection.Listing) listPage {
	rules := coll.Rules()
	schema := coll.Schema()
	page := listPage{
		Resource:  coll.Name(),
		Title:     coll.Title(),
		Filter:    listing.Filter,
		Statuses:  rules.Statuses,
		Dates:     schema.FromKey != "" || schema.ToKey != "",
		Sensitive: coll.Sensitive(),
		Bulk:      coll.Name() == collection.PrivacyRequests,
		Columns:   coll.Columns(),
		Rows:      listing.Rows,
		Footer:    listing.Footer,
		Summary:   listing.Summary,
		Stale:     listing.Stale,
	}
	keys := make([]string, 0, len(rules.Facets))
	for key := range rules.Facets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		options := rules.Facets[key]
		if len(options) == 0 {
			continue
		}
		page.Facets = append(page.Facets, facetView{Key: key, Options: options, Selected: listing.Filter.Facet(key)})
	}
	if listing.Footer.HasPrev {
		page.PrevURL = pageURL(coll.Name(), listing.Footer.PrevPage())
	}
	if listing.Footer.HasNext {
		page.NextURL = pageURL(coll.Name(), listing.Footer.NextPage())
	}
	if listing.Err != nil {
		page.Error = messageOf(classify(listing.Err))
	}
	return page
}

func pageURL(resource string, page int) string {
	return "/" + resource + "?" + url.Values{filter.ParamPage: {strconv.Itoa(page)}}.Encode()
}

// newRecordPage flattens record into display fields, sorted by name.
func newRecordPage(coll collection.Collection, id string, record any) (recordPage, error) {
	fields, err := recordFields(record)
	if err != nil {
		return recordPage{}, err
	}
	page := recordPage{Resource: coll.Name(), Title: coll.Title(), ID: id}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		page.Fields = append(page.Fields, fieldView{Name: name, Value: display(fields[name])})
	}
	for _, name := range coll.Fields() {
		page.Editable = append(page.Editable, fieldView{Name: name, Value: display(fields[name])})
	}
	return page, nil
}

func recordFields(record any) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func display(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, _ := json.Marshal(val)
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

func navItems(active string) []view.NavItem {
	names := collection.Names()
	items := make([]view.NavItem, 0, len(names))
	for _, name := range names {
		items = append(items, view.NavItem{Name: name, Title: collection.Titles[name], Active: name == active})
	}
	slices.SortStableFunc(items, func(a, b view.NavItem) int {
		return navRank(a.Name) - navRank(b.Name)
	})
	return items
}

// navRank puts the request queue first; the rest keep catalog order.
func navRank(name string) int {
	if name == collection.PrivacyRequests {
		return 0
	}
	return 1
}
