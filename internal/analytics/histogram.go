package analytics

import (
	"math"
	"strconv"
	"strings"

	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/validation"
)

// HistogramField is the bucketed column of a histogram.
type HistogramField string

const (
	FieldPayment HistogramField = "payment"
	FieldVisits  HistogramField = "visits"
)

// OtherBucket labels values below the first boundary.
const OtherBucket = "other"

var (
	DefaultPaymentBoundaries = []float64{0, 50000, 100000, 200000, 300000, 500000, math.Inf(1)}
	DefaultVisitBoundaries   = []float64{0, 1, 5, 10, 20, math.Inf(1)}
)

// ParseHistogramField accepts "payment" or "visits".
func ParseHistogramField(raw string) (HistogramField, error) {
	switch f := HistogramField(raw); f {
	case FieldPayment, FieldVisits:
		return f, nil
	}
	return "", &validation.ValidationError{Field: "field", Message: "must be payment or visits"}
}

// DefaultBoundaries returns a copy of the default boundary set for field.
func DefaultBoundaries(field HistogramField) []float64 {
	src := DefaultPaymentBoundaries
	if field == FieldVisits {
		src = DefaultVisitBoundaries
	}
	return append([]float64(nil), src...)
}

// ParseBoundaries reads a comma separated list such as "0,100,500,inf".
func ParseBoundaries(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &validation.ValidationError{Field: "boundaries", Message: "must be a comma separated list of numbers"}
		}
		out = append(out, v)
	}
	return out, ValidateBoundaries(out)
}

// ValidateBoundaries requires at least one finite value, strict ascending
// order, and +Inf only in last position.
func ValidateBoundaries(b []float64) error {
	finite := finiteBoundaries(b)
	if len(finite) == 0 {
		return &validation.ValidationError{Field: "boundaries", Message: "at least one finite boundary is required"}
	}
	for i, v := range b {
		if math.IsNaN(v) || math.IsInf(v, -1) {
			return &validation.ValidationError{Field: "boundaries", Message: "must be finite or a trailing +Inf"}
		}
		if math.IsInf(v, 1) && i != len(b)-1 {
			return &validation.ValidationError{Field: "boundaries", Message: "+Inf is only allowed last"}
		}
		if i > 0 && v <= b[i-1] {
			return &validation.ValidationError{Field: "boundaries", Message: "must be strictly ascending"}
		}
	}
	return nil
}

func finiteBoundaries(b []float64) []float64 {
	if len(b) > 0 && math.IsInf(b[len(b)-1], 1) {
		return b[:len(b)-1]
	}
	return b
}

// Histogram buckets customers by field. A value v falls in [b[i], b[i+1]);
// values at or above the last finite boundary fall in the overflow bucket,
// values below the first in the "other" bucket. Payment buckets report the
// average visit days, visit buckets the average payment. Empty buckets are
// omitted.
func Histogram(customers []models.Customer, field HistogramField, boundaries []float64) ([]models.HistogramBucket, error) {
	if err := ValidateBoundaries(boundaries); err != nil {
		return nil, err
	}
	finite := finiteBoundaries(boundaries)

	// slot 0 is "other", slot i+1 starts at finite[i]
	counts := make([]int, len(finite)+1)
	sums := make([]float64, len(finite)+1)

	for _, c := range customers {
		v, secondary := float64(c.VisitDays), c.TotalPayment
		if field == FieldPayment {
			v, secondary = c.TotalPayment, float64(c.VisitDays)
		}
		slot := bucketIndex(finite, v)
		counts[slot]++
		sums[slot] += secondary
	}

	out := make([]models.HistogramBucket, 0, len(counts))
	for slot, n := range counts {
		if n == 0 {
			continue
		}
		b := models.HistogramBucket{Count: n, AvgSecondary: secondaryAverage(field, sums[slot], n)}
		switch {
		case slot == 0:
			b.Label = OtherBucket
			b.Upper = floatPtr(finite[0])
		case slot == len(finite):
			b.Label = formatBound(finite[slot-1]) + "+"
			b.Lower = floatPtr(finite[slot-1])
		default:
			b.Label = formatBound(finite[slot-1]) + "-" + formatBound(finite[slot])
			b.Lower = floatPtr(finite[slot-1])
			b.Upper = floatPtr(finite[slot])
		}
		out = append(out, b)
	}
	return out, nil
}

func bucketIndex(finite []float64, v float64) int {
	if v < finite[0] {
		return 0
	}
	// largest i with finite[i] <= v
	lo, hi := 0, len(finite)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if finite[mid] <= v {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

func secondaryAverage(field HistogramField, sum float64, n int) float64 {
	if field == FieldPayment {
		return round2(ratio(sum, n))
	}
	return roundCurrency(ratio(sum, n))
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floatPtr(v float64) *float64 { return &v }
