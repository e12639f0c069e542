package query

import (
	"fmt"
	"math"
	"sort"

	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/validation"
)

const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 1000

	// MaxPage keeps Number*Limit within int32 for every accepted limit.
	MaxPage = math.MaxInt32 / MaxLimit
)

// SortField is a sortable customer column.
type SortField string

const (
	SortRevenue SortField = "total_payment"
	SortVisits  SortField = "visit_days"
	SortAge     SortField = "age"
)

var sortAliases = map[string]SortField{
	"revenue":       SortRevenue,
	"total_payment": SortRevenue,
	"visits":        SortVisits,
	"visit_days":    SortVisits,
	"age":           SortAge,
}

// Sort orders a customer listing. Ties are always broken by uid ascending.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort is revenue, highest first.
func DefaultSort() Sort {
	return Sort{Field: SortRevenue, Desc: true}
}

// ParseSort resolves a field alias and an order of "asc" or "desc".
// Empty values fall back to DefaultSort.
func ParseSort(field, order string) (Sort, error) {
	s := DefaultSort()
	if field != "" {
		f, ok := sortAliases[field]
		if !ok {
			return Sort{}, &validation.ValidationError{Field: "sort", Message: "must be one of revenue, visits, age"}
		}
		s.Field = f
	}
	switch order {
	case "":
	case "asc":
		s.Desc = false
	case "desc":
		s.Desc = true
	default:
		return Sort{}, &validation.ValidationError{Field: "order", Message: "must be asc or desc"}
	}
	return s, nil
}

// OrderBy renders the sort as a SQL ORDER BY list.
func (s Sort) OrderBy() string {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return string(s.Field) + " " + dir + ", uid ASC"
}

// Less compares two customers under the sort.
func (s Sort) Less(a, b models.Customer) bool {
	var va, vb float64
	switch s.Field {
	case SortVisits:
		va, vb = float64(a.VisitDays), float64(b.VisitDays)
	case SortAge:
		va, vb = float64(a.Age), float64(b.Age)
	default:
		va, vb = a.TotalPayment, b.TotalPayment
	}
	if va != vb {
		if s.Desc {
			return va > vb
		}
		return va < vb
	}
	return a.UID < b.UID
}

// SortCustomers sorts in place.
func (s Sort) SortCustomers(customers []models.Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		return s.Less(customers[i], customers[j])
	})
}

// Page is a 1-indexed page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage applies defaults to zero values and validates the bounds.
func NewPage(number, limit int) (Page, error) {
	if number == 0 {
		number = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if number < 1 || number > MaxPage {
		return Page{}, &validation.ValidationError{Field: "page", Message: fmt.Sprintf("must be between 1 and %d", MaxPage)}
	}
	if limit < 1 || limit > MaxLimit {
		return Page{}, &validation.ValidationError{Field: "limit", Message: "must be between 1 and 1000"}
	}
	return Page{Number: number, Limit: limit}, nil
}

// Offset is the number of rows skipped before the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Slice returns the page's window of an already sorted set.
func (p Page) Slice(customers []models.Customer) []models.Customer {
	start := p.Offset()
	if start < 0 || start >= len(customers) {
		return []models.Customer{}
	}
	end := start + p.Limit
	if end > len(customers) {
		end = len(customers)
	}
	return customers[start:end]
}

// Pagination describes the page within a result of total rows.
func (p Page) Pagination(total int) models.Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return models.Pagination{
		Page:       p.Number,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    p.Number*p.Limit < total,
	}
}
