package shared

import (
	"fmt"
	"math"
)

// DefaultPerPage applies when a listing carries no page size.
const DefaultPerPage = 25

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page         int  `json:"page"`
	PerPage      int  `json:"per_page"`
	Total        int  `json:"total"`
	TotalPages   int  `json:"total_pages"`
	StartingItem int  `json:"starting_item"`
	EndingItem   int  `json:"ending_item"`
	HasPrev      bool `json:"has_prev"`
	HasNext      bool `json:"has_next"`
}

// NewPagination computes pagination metadata. Negative totals count as zero.
// The page is clamped so item numbers stay within int range.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	if total < 0 {
		total = 0
	}
	totalPages := int(finite(math.Ceil(float64(total) / float64(perPage))))
	return Pagination{
		Page:         page,
		PerPage:      perPage,
		Total:        total,
		TotalPages:   totalPages,
		StartingItem: (page-1)*perPage + 1,
		EndingItem:   min(total, page*perPage),
		HasPrev:      page > 1,
		HasNext:      page*perPage < total,
	}
}

// Summary renders the footer caption.
func (p Pagination) Summary() string {
	if p.Total <= 0 {
		return "0 results"
	}
	return fmt.Sprintf("Showing %d to %d of %d results", p.StartingItem, p.EndingItem, p.Total)
}

// PrevPage returns the previous page number, or the current one on the first page.
func (p Pagination) PrevPage() int {
	if !p.HasPrev {
		return p.Page
	}
	return p.Page - 1
}

// NextPage returns the next page number, or the current one on the last page.
func (p Pagination) NextPage() int {
	if !p.HasNext {
		return p.Page
	}
	return p.Page + 1
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
