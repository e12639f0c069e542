// Package derived computes per-record values that are never stored:
// grades, per-visit averages and retention month lists.
package derived

import (
	"math"

	"customer-analytics-api/internal/models"
)

// HighFrequencyVisitDays is the visit count from which a customer counts
// as a high-frequency visitor.
const HighFrequencyVisitDays = 10

// GradeTier maps an inclusive lower payment bound to a grade.
type GradeTier struct {
	MinPayment float64
	Grade      models.Grade
}

// GradeTable is the single customer tier policy, highest tier first.
var GradeTable = []GradeTier{
	{MinPayment: 200000, Grade: models.GradeVIP},
	{MinPayment: 100000, Grade: models.GradeGold},
	{MinPayment: 50000, Grade: models.GradeSilver},
	{MinPayment: 0, Grade: models.GradeBronze},
}

// Month names in calendar order, matching the retention flags.
const (
	MonthJune   = "June"
	MonthJuly   = "July"
	MonthAugust = "August"
)

// CustomerGrade returns the first tier whose lower bound the payment reaches.
// Payments below every bound get the lowest tier.
func CustomerGrade(totalPayment float64) models.Grade {
	for _, tier := range GradeTable {
		if totalPayment >= tier.MinPayment {
			return tier.Grade
		}
	}
	return GradeTable[len(GradeTable)-1].Grade
}

// GradeRank returns 0 for the lowest tier up to len(GradeTable)-1 for the
// highest. Unknown grades rank -1.
func GradeRank(grade models.Grade) int {
	for i, tier := range GradeTable {
		if tier.Grade == grade {
			return len(GradeTable) - 1 - i
		}
	}
	return -1
}

// AveragePaymentPerVisit is total payment over visit days, rounded to the
// nearest unit. Zero visit days yield 0.
func AveragePaymentPerVisit(c models.Customer) int64 {
	return perVisit(c.TotalPayment, c.VisitDays)
}

// AverageDurationPerVisit is total minutes over visit days, rounded.
func AverageDurationPerVisit(c models.Customer) int64 {
	return perVisit(c.TotalDurationMin, c.VisitDays)
}

// AverageDuration returns the stored average duration when present and the
// unrounded derived value otherwise.
func AverageDuration(c models.Customer) float64 {
	if c.AvgDurationMin != nil {
		return *c.AvgDurationMin
	}
	if c.VisitDays <= 0 {
		return 0
	}
	return c.TotalDurationMin / float64(c.VisitDays)
}

func perVisit(total float64, visitDays int) int64 {
	if visitDays <= 0 {
		return 0
	}
	return int64(math.Round(total / float64(visitDays)))
}

// IsHighFrequencyVisitor reports whether the customer visited at least
// HighFrequencyVisitDays days.
func IsHighFrequencyVisitor(c models.Customer) bool {
	return c.VisitDays >= HighFrequencyVisitDays
}

// RetentionMonths lists the months with a true flag in calendar order.
func RetentionMonths(r models.Retention) []string {
	months := make([]string, 0, 3)
	if r.RetainedJune {
		months = append(months, MonthJune)
	}
	if r.RetainedJuly {
		months = append(months, MonthJuly)
	}
	if r.RetainedAugust {
		months = append(months, MonthAugust)
	}
	return months
}

// MonthsRetained counts the follow-up months with a visit.
func MonthsRetained(r models.Retention) int {
	return len(RetentionMonths(r))
}

// IsFullyRetained reports a visit in every follow-up month.
func IsFullyRetained(r models.Retention) bool {
	return r.RetainedJune && r.RetainedJuly && r.RetainedAugust
}

// IsChurned reports a customer retained in June but not in July.
func IsChurned(r models.Retention) bool {
	return r.RetainedJune && !r.RetainedJuly
}

// HasReturned reports a churned customer who came back in August.
func HasReturned(r models.Retention) bool {
	return IsChurned(r) && r.RetainedAugust
}

// Detail enriches a customer with its derived values. The retention row is
// optional; without it the month list is empty.
func Detail(c models.Customer, r *models.Retention) models.CustomerDetail {
	months := []string{}
	if r != nil {
		months = RetentionMonths(*r)
	}
	return models.CustomerDetail{
		Customer:            c,
		AvgPaymentPerVisit:  AveragePaymentPerVisit(c),
		AvgDurationPerVisit: AverageDurationPerVisit(c),
		CustomerGrade:       CustomerGrade(c.TotalPayment),
		IsRetained:          c.Retained90,
		IsHighFrequency:     IsHighFrequencyVisitor(c),
		RetentionMonths:     months,
	}
}
