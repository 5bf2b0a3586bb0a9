// Package query maps filter state onto the wire parameters of the upstream
// list endpoints and derives order-independent cache keys from them.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/privacyops/console/internal/filter"
)

// TimestampLayout is the UTC timestamp format expected by the upstream API.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Common wire keys.
const (
	KeyPage          = "page"
	KeySize          = "size"
	KeySortField     = "sort_field"
	KeySortDirection = "sort_direction"
	KeyDownloadCSV   = "download_csv"
)

// Schema names the wire keys one resource uses. Empty keys disable the
// corresponding dimension.
type Schema struct {
	SearchKey string
	StatusKey string
	FromKey   string
	ToKey     string
	// Facets maps filter facet names to wire keys. A facet missing here is
	// sent under its own name.
	Facets map[string]string
	// Constants are always present regardless of state.
	Constants map[string]string
}

// Map converts s into query parameters. It is pure: the same state always
// yields the same values, and absent or empty fields produce no key.
func (sc Schema) Map(s filter.State) url.Values {
	q := url.Values{}
	for k, v := range sc.Constants {
		q.Set(k, v)
	}

	if sc.SearchKey != "" {
		if term := normalizeTerm(s.Search); term != "" {
			q.Set(sc.SearchKey, term)
		}
	}
	if sc.StatusKey != "" {
		for _, status := range s.Statuses {
			if status != "" {
				q.Add(sc.StatusKey, status)
			}
		}
	}
	if sc.FromKey != "" && s.From != nil {
		q.Set(sc.FromKey, StartOfDay(*s.From).Format(TimestampLayout))
	}
	if sc.ToKey != "" && s.To != nil {
		q.Set(sc.ToKey, EndOfDay(*s.To).Format(TimestampLayout))
	}

	facetNames := make([]string, 0, len(s.Facets))
	for name := range s.Facets {
		facetNames = append(facetNames, name)
	}
	sort.Strings(facetNames)
	for _, name := range facetNames {
		key := name
		if wire, ok := sc.Facets[name]; ok {
			key = wire
		}
		for _, v := range s.Facets[name] {
			if v != "" {
				q.Add(key, v)
			}
		}
	}

	if s.Page > 0 {
		q.Set(KeyPage, strconv.Itoa(s.Page))
	}
	if s.Size > 0 {
		q.Set(KeySize, strconv.Itoa(s.Size))
	}
	if s.SortField != "" && s.SortDirection != filter.DirectionNone {
		q.Set(KeySortField, s.SortField)
		q.Set(KeySortDirection, string(s.SortDirection))
	}
	return q
}

// StartOfDay floors t to 00:00:00.000 UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay moves t to 23:59:59 UTC of its calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

// Key returns the canonical cache key of q: keys sorted, values sorted within
// a key, so parameter order never changes the key.
func Key(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		values := append([]string(nil), q[k]...)
		sort.Strings(values)
		for j, v := range values {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func normalizeTerm(term string) string {
	return strings.TrimSpace(norm.NFC.String(term))
}
