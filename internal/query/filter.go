// Package query holds the validated customer filter contract, its in-memory
// and SQL forms, and the sort and pagination rules applied to filtered sets.
package query

import (
	"fmt"
	"strings"

	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/validation"
)

// IntRange is an inclusive bound; nil ends are open.
type IntRange struct {
	Min *int
	Max *int
}

// FloatRange is an inclusive bound; nil ends are open.
type FloatRange struct {
	Min *float64
	Max *float64
}

// Filter selects customers. All set criteria must hold.
type Filter struct {
	Region     string
	City       string
	AgeGroup   models.AgeGroup
	Age        IntRange
	Payment    FloatRange
	Visits     IntRange
	Retained90 *bool
}

// IsEmpty reports whether the filter imposes no constraint.
func (f Filter) IsEmpty() bool {
	return f.Region == "" && f.City == "" && f.AgeGroup == "" &&
		f.Age.Min == nil && f.Age.Max == nil &&
		f.Payment.Min == nil && f.Payment.Max == nil &&
		f.Visits.Min == nil && f.Visits.Max == nil &&
		f.Retained90 == nil
}

// Validate checks enum values and range bounds.
func (f Filter) Validate() error {
	if f.Region != "" {
		if err := validation.ValidateRegion(f.Region, "region"); err != nil {
			return err
		}
	}
	if f.AgeGroup != "" {
		if err := validation.ValidateAgeGroup(string(f.AgeGroup), "ageGroup"); err != nil {
			return err
		}
	}
	if err := validateIntRange(f.Age, validation.MinAge, validation.MaxAge, "minAge", "maxAge"); err != nil {
		return err
	}
	if err := validateIntRange(f.Visits, 0, validation.MaxVisitDays, "minVisits", "maxVisits"); err != nil {
		return err
	}
	if f.Payment.Min != nil && *f.Payment.Min < 0 {
		return &validation.ValidationError{Field: "minPayment", Message: "must be non-negative"}
	}
	if f.Payment.Max != nil && *f.Payment.Max < 0 {
		return &validation.ValidationError{Field: "maxPayment", Message: "must be non-negative"}
	}
	if f.Payment.Min != nil && f.Payment.Max != nil && *f.Payment.Min > *f.Payment.Max {
		return &validation.ValidationError{Field: "minPayment", Message: "must not exceed maxPayment"}
	}
	return nil
}

func validateIntRange(r IntRange, lo, hi int, minField, maxField string) error {
	if r.Min != nil && (*r.Min < lo || *r.Min > hi) {
		return &validation.ValidationError{Field: minField, Message: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	if r.Max != nil && (*r.Max < lo || *r.Max > hi) {
		return &validation.ValidationError{Field: maxField, Message: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return &validation.ValidationError{Field: minField, Message: "must not exceed " + maxField}
	}
	return nil
}

// Matches is the in-memory form of the predicate Where produces.
func (f Filter) Matches(c models.Customer) bool {
	if f.Region != "" && c.RegionGroup != f.Region {
		return false
	}
	if f.City != "" && c.RegionCity != f.City {
		return false
	}
	if f.AgeGroup != "" && c.AgeGroup != f.AgeGroup {
		return false
	}
	if !inIntRange(c.Age, f.Age) || !inIntRange(c.VisitDays, f.Visits) {
		return false
	}
	if f.Payment.Min != nil && c.TotalPayment < *f.Payment.Min {
		return false
	}
	if f.Payment.Max != nil && c.TotalPayment > *f.Payment.Max {
		return false
	}
	if f.Retained90 != nil && c.Retained90 != *f.Retained90 {
		return false
	}
	return true
}

func inIntRange(v int, r IntRange) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Apply returns the customers matching the filter, preserving order.
func (f Filter) Apply(customers []models.Customer) []models.Customer {
	if f.IsEmpty() {
		return customers
	}
	out := make([]models.Customer, 0, len(customers))
	for _, c := range customers {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// Where renders the filter as a SQL condition with '?' placeholders.
// Columns are qualified with prefix (e.g. "c."). An empty filter yields "".
func (f Filter) Where(prefix string) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		conds = append(conds, prefix+cond)
		args = append(args, arg)
	}

	if f.Region != "" {
		add("region_group = ?", f.Region)
	}
	if f.City != "" {
		add("region_city = ?", f.City)
	}
	if f.AgeGroup != "" {
		add("age_group = ?", string(f.AgeGroup))
	}
	if f.Age.Min != nil {
		add("age >= ?", *f.Age.Min)
	}
	if f.Age.Max != nil {
		add("age <= ?", *f.Age.Max)
	}
	if f.Payment.Min != nil {
		add("total_payment >= ?", *f.Payment.Min)
	}
	if f.Payment.Max != nil {
		add("total_payment <= ?", *f.Payment.Max)
	}
	if f.Visits.Min != nil {
		add("visit_days >= ?", *f.Visits.Min)
	}
	if f.Visits.Max != nil {
		add("visit_days <= ?", *f.Visits.Max)
	}
	if f.Retained90 != nil {
		add("retained_90 = ?", *f.Retained90)
	}

	return strings.Join(conds, " AND "), args
}
