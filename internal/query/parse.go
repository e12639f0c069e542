package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/validation"
)

// Query parameter names understood by ParseFilter.
var filterParams = map[string]bool{
	"region":     true,
	"city":       true,
	"ageGroup":   true,
	"minAge":     true,
	"maxAge":     true,
	"minPayment": true,
	"maxPayment": true,
	"minVisits":  true,
	"maxVisits":  true,
	"retained90": true,
}

// ListingParams are the extra parameters accepted by listing endpoints.
var ListingParams = []string{"sort", "order", "page", "limit"}

// ParseFilter reads a filter from query parameters. Parameters that are
// neither filter criteria nor listed in extra are rejected.
func ParseFilter(values url.Values, extra ...string) (Filter, error) {
	allowed := make(map[string]bool, len(extra))
	for _, k := range extra {
		allowed[k] = true
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !filterParams[k] && !allowed[k] {
			return Filter{}, &validation.ValidationError{Field: k, Message: "unknown parameter"}
		}
	}

	get := func(k string) string { return validation.SanitizeString(values.Get(k)) }

	var f Filter
	var err error
	f.Region = get("region")
	f.City = get("city")
	f.AgeGroup = models.AgeGroup(get("ageGroup"))

	if f.Age.Min, err = parseInt(get("minAge"), "minAge"); err != nil {
		return Filter{}, err
	}
	if f.Age.Max, err = parseInt(get("maxAge"), "maxAge"); err != nil {
		return Filter{}, err
	}
	if f.Payment.Min, err = parseFloat(get("minPayment"), "minPayment"); err != nil {
		return Filter{}, err
	}
	if f.Payment.Max, err = parseFloat(get("maxPayment"), "maxPayment"); err != nil {
		return Filter{}, err
	}
	if f.Visits.Min, err = parseInt(get("minVisits"), "minVisits"); err != nil {
		return Filter{}, err
	}
	if f.Visits.Max, err = parseInt(get("maxVisits"), "maxVisits"); err != nil {
		return Filter{}, err
	}
	if f.Retained90, err = ParseFlag(get("retained90"), "retained90"); err != nil {
		return Filter{}, err
	}

	return f, f.Validate()
}

// ParseListing reads sort and page parameters.
func ParseListing(values url.Values) (Sort, Page, error) {
	s, err := ParseSort(validation.SanitizeString(values.Get("sort")), strings.ToLower(validation.SanitizeString(values.Get("order"))))
	if err != nil {
		return Sort{}, Page{}, err
	}

	number, err := parseInt(validation.SanitizeString(values.Get("page")), "page")
	if err != nil {
		return Sort{}, Page{}, err
	}
	limit, err := parseInt(validation.SanitizeString(values.Get("limit")), "limit")
	if err != nil {
		return Sort{}, Page{}, err
	}

	p, err := NewPage(derefInt(number), derefInt(limit))
	return s, p, err
}

// FromRequest converts a JSON filter body into its validated parts.
func FromRequest(req models.FilterRequest) (Filter, Sort, Page, error) {
	f := Filter{
		Region:   validation.SanitizeString(req.Region),
		City:     validation.SanitizeString(req.City),
		AgeGroup: models.AgeGroup(validation.SanitizeString(req.AgeGroup)),
		Age:      IntRange{Min: req.MinAge, Max: req.MaxAge},
		Payment:  FloatRange{Min: req.MinPayment, Max: req.MaxPayment},
		Visits:   IntRange{Min: req.MinVisits, Max: req.MaxVisits},
	}

	if req.Retained90 != nil {
		switch *req.Retained90 {
		case 0, 1:
			v := *req.Retained90 == 1
			f.Retained90 = &v
		default:
			return Filter{}, Sort{}, Page{}, &validation.ValidationError{Field: "retained90", Message: "must be 0 or 1"}
		}
	}

	if err := f.Validate(); err != nil {
		return Filter{}, Sort{}, Page{}, err
	}

	s, err := ParseSort(req.Sort, strings.ToLower(req.Order))
	if err != nil {
		return Filter{}, Sort{}, Page{}, err
	}

	p, err := NewPage(req.Page, req.Limit)
	if err != nil {
		return Filter{}, Sort{}, Page{}, err
	}

	return f, s, p, nil
}

// ParseFlag accepts 0/1 and true/false. Empty input yields nil.
func ParseFlag(raw, field string) (*bool, error) {
	var v bool
	switch strings.ToLower(raw) {
	case "":
		return nil, nil
	case "1", "true":
		v = true
	case "0", "false":
		v = false
	default:
		return nil, &validation.ValidationError{Field: field, Message: "must be 0, 1, true or false"}
	}
	return &v, nil
}

func parseInt(raw, field string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &validation.ValidationError{Field: field, Message: "must be an integer"}
	}
	return &v, nil
}

func parseFloat(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &validation.ValidationError{Field: field, Message: "must be a number"}
	}
	return &v, nil
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// RetentionPattern selects retention rows by any combination of flags.
type RetentionPattern struct {
	June   *bool
	July   *bool
	August *bool
	Ninety *bool
}

// ParsePattern reads a pattern from june, july, august and ninety parameters.
func ParsePattern(values url.Values) (RetentionPattern, error) {
	var p RetentionPattern
	var err error
	for k := range values {
		switch k {
		case "june", "july", "august", "ninety":
		default:
			return RetentionPattern{}, &validation.ValidationError{Field: k, Message: "unknown parameter"}
		}
	}
	if p.June, err = ParseFlag(values.Get("june"), "june"); err != nil {
		return RetentionPattern{}, err
	}
	if p.July, err = ParseFlag(values.Get("july"), "july"); err != nil {
		return RetentionPattern{}, err
	}
	if p.August, err = ParseFlag(values.Get("august"), "august"); err != nil {
		return RetentionPattern{}, err
	}
	if p.Ninety, err = ParseFlag(values.Get("ninety"), "ninety"); err != nil {
		return RetentionPattern{}, err
	}
	return p, nil
}

// Matches reports whether every set flag equals the row's flag.
func (p RetentionPattern) Matches(r models.Retention) bool {
	return flagMatches(p.June, r.RetainedJune) &&
		flagMatches(p.July, r.RetainedJuly) &&
		flagMatches(p.August, r.RetainedAugust) &&
		flagMatches(p.Ninety, r.Retained90)
}

func flagMatches(want *bool, got bool) bool {
	return want == nil || *want == got
}
