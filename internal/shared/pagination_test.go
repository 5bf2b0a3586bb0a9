package shared

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaginationFooter(t *testing.T) {
	tests := []struct {
		name                 string
		page, perPage, total int
		start, end, pages    int
		prev, next           bool
		summary              string
	}{
		{"last partial page", 2, 25, 30, 26, 30, 2, true, false, "Showing 26 to 30 of 30 results"},
		{"first page", 1, 25, 30, 1, 25, 2, false, true, "Showing 1 to 25 of 30 results"},
		{"exact boundary", 2, 25, 50, 26, 50, 2, true, false, "Showing 26 to 50 of 50 results"},
		{"empty", 1, 25, 0, 1, 0, 0, false, false, "0 results"},
		{"negative total", 3, 10, -4, 21, 0, 0, true, false, "0 results"},
		{"defaults", 0, 0, 60, 1, 25, 3, false, true, "Showing 1 to 25 of 60 results"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(tc.page, tc.perPage, tc.total)
			assert.Equal(t, tc.start, p.StartingItem)
			assert.Equal(t, tc.end, p.EndingItem)
			assert.Equal(t, tc.pages, p.TotalPages)
			assert.Equal(t, tc.prev, p.HasPrev)
			assert.Equal(t, tc.next, p.HasNext)
			assert.Equal(t, tc.summary, p.Summary())
			assert.NotContains(t, p.Summary(), "NaN")
		})
	}
}

func TestNewPaginationClampsHugePage(t *testing.T) {
	p := NewPagination(math.MaxInt, 25, 30)
	assert.Positive(t, p.Page)
	assert.Positive(t, p.StartingItem)
	assert.Equal(t, 30, p.EndingItem)
	assert.False(t, p.HasNext)
	assert.NotContains(t, p.Summary(), "-")

	q := NewPagination(math.MaxInt/2, math.MaxInt/2, math.MaxInt)
	assert.Positive(t, q.StartingItem)
	assert.Positive(t, q.EndingItem)
}

func TestPaginationJSONKeys(t *testing.T) {
	data, err := json.Marshal(NewPagination(2, 25, 30))
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":2,"per_page":25,"total":30,"total_pages":2,"starting_item":26,"ending_item":30,"has_prev":true,"has_next":false}`, string(data))
}

func TestPaginationNeighbours(t *testing.T) {
	p := NewPagination(2, 25, 80)
	assert.Equal(t, 1, p.PrevPage())
	assert.Equal(t, 3, p.NextPage())

	last := NewPagination(4, 25, 80)
	assert.Equal(t, 4, last.NextPage())
	assert.Equal(t, 1, NewPagination(1, 25, 80).PrevPage())
}

func TestFinite(t *testing.T) {
	assert.Zero(t, finite(math.NaN()))
	assert.Zero(t, finite(math.Inf(1)))
	assert.Equal(t, 2.0, finite(2))
}
