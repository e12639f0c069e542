package analytics

import (
	"sort"

	"customer-analytics-api/internal/derived"
	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/validation"
)

// RetentionFlag names one retention column.
type RetentionFlag string

const (
	FlagJune   RetentionFlag = "june"
	FlagJuly   RetentionFlag = "july"
	FlagAugust RetentionFlag = "august"
	Flag90     RetentionFlag = "90"
)

// ParseRetentionFlag accepts june, july, august or 90.
func ParseRetentionFlag(raw string) (RetentionFlag, error) {
	switch f := RetentionFlag(raw); f {
	case FlagJune, FlagJuly, FlagAugust, Flag90:
		return f, nil
	}
	return "", &validation.ValidationError{Field: "flag", Message: "must be one of june, july, august, 90"}
}

// Of reads the flag from a retention row.
func (f RetentionFlag) Of(r models.Retention) bool {
	switch f {
	case FlagJune:
		return r.RetainedJune
	case FlagJuly:
		return r.RetainedJuly
	case FlagAugust:
		return r.RetainedAugust
	default:
		return r.Retained90
	}
}

type flagCounts struct {
	total, june, july, august, ninety, full int
}

func (fc *flagCounts) add(r models.Retention) {
	fc.total++
	if r.RetainedJune {
		fc.june++
	}
	if r.RetainedJuly {
		fc.july++
	}
	if r.RetainedAugust {
		fc.august++
	}
	if r.Retained90 {
		fc.ninety++
	}
	if derived.IsFullyRetained(r) {
		fc.full++
	}
}

func (fc flagCounts) stat(n int) models.FlagStat {
	return models.FlagStat{Count: n, Rate: percentage(n, fc.total)}
}

// Funnel reports every retention flag against the row count. Rates are 0
// when rows is empty.
func Funnel(rows []models.Retention) models.RetentionFunnel {
	var fc flagCounts
	for _, r := range rows {
		fc.add(r)
	}
	return models.RetentionFunnel{
		Total:         fc.total,
		June:          fc.stat(fc.june),
		July:          fc.stat(fc.july),
		August:        fc.stat(fc.august),
		NinetyDay:     fc.stat(fc.ninety),
		FullyRetained: fc.stat(fc.full),
	}
}

// Rate is the retention rate of a single flag.
func Rate(rows []models.Retention, flag RetentionFlag) models.RetentionRate {
	retained := 0
	for _, r := range rows {
		if flag.Of(r) {
			retained++
		}
	}
	return models.RetentionRate{
		Flag:     string(flag),
		Total:    len(rows),
		Retained: retained,
		Rate:     percentage(retained, len(rows)),
	}
}

// CohortKey selects how retention records are grouped.
type CohortKey int

const (
	CohortRegionAge CohortKey = iota
	CohortRegion
	CohortAgeGroup
)

type cohortAcc struct {
	flagCounts
	payment float64
	visits  int
}

// Cohort groups joined retention records and reports per-flag rates. Orphaned
// retention rows without a customer are skipped. Rows are ordered by group
// size descending, then by region and age group.
func Cohort(records []models.RetentionRecord, key CohortKey) []models.CohortStats {
	groups := make(map[cellKey]*cohortAcc)
	for _, rec := range records {
		if rec.Customer == nil {
			continue
		}
		var k cellKey
		if key != CohortAgeGroup {
			k.region = rec.Customer.RegionGroup
		}
		if key != CohortRegion {
			k.ageGroup = rec.Customer.AgeGroup
		}
		a, ok := groups[k]
		if !ok {
			a = &cohortAcc{}
			groups[k] = a
		}
		a.add(rec.Retention)
		a.payment += rec.Customer.TotalPayment
		a.visits += rec.Customer.VisitDays
	}

	out := make([]models.CohortStats, 0, len(groups))
	for k, a := range groups {
		out = append(out, models.CohortStats{
			Region:         k.region,
			AgeGroup:       k.ageGroup,
			Total:          a.total,
			RetainedJune:   a.june,
			RetainedJuly:   a.july,
			RetainedAugust: a.august,
			Retained90:     a.ninety,
			AvgPayment:     roundCurrency(ratio(a.payment, a.total)),
			AvgVisitDays:   round2(ratio(float64(a.visits), a.total)),
			JuneRate:       percentage(a.june, a.total),
			JulyRate:       percentage(a.july, a.total),
			AugustRate:     percentage(a.august, a.total),
			NinetyDayRate:  percentage(a.ninety, a.total),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.AgeGroup < b.AgeGroup
	})
	return out
}

// Select returns the records whose retention row satisfies keep, ordered by uid.
// Orphaned rows are kept with a nil customer.
func Select(records []models.RetentionRecord, keep func(models.Retention) bool) []models.RetentionCustomer {
	out := make([]models.RetentionCustomer, 0)
	for _, rec := range records {
		if !keep(rec.Retention) {
			continue
		}
		out = append(out, models.RetentionCustomer{
			UID:       rec.Retention.UID,
			Retention: rec.Retention,
			Customer:  rec.Customer,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Churned selects customers retained in June but not July.
func Churned(records []models.RetentionRecord) []models.RetentionCustomer {
	return Select(records, derived.IsChurned)
}

// Returned selects churned customers who came back in August.
func Returned(records []models.RetentionRecord) []models.RetentionCustomer {
	return Select(records, derived.HasReturned)
}
