package analytics

import (
	"sort"
	"strconv"

	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/validation"
)

// TrendKind selects weekly or daily trend granularity.
type TrendKind string

const (
	TrendWeekly TrendKind = "weekly"
	TrendDaily  TrendKind = "daily"
)

// ParseTrendKind accepts "weekly" or "daily".
func ParseTrendKind(raw string) (TrendKind, error) {
	switch k := TrendKind(raw); k {
	case TrendWeekly, TrendDaily:
		return k, nil
	}
	return "", &validation.ValidationError{Field: "kind", Message: "must be weekly or daily"}
}

// Week returns the 1-based week bucket for a visit-day count. Zero visits
// land in week 1.
func Week(visitDays int) int {
	switch {
	case visitDays <= 7:
		return 1
	case visitDays <= 14:
		return 2
	case visitDays <= 21:
		return 3
	default:
		return 4
	}
}

// Trend dispatches to WeeklyTrend or DailyTrend.
func Trend(customers []models.Customer, kind TrendKind) []models.TrendPoint {
	if kind == TrendDaily {
		return DailyTrend(customers)
	}
	return WeeklyTrend(customers)
}

// WeeklyTrend sums revenue per week bucket, week1 first. Empty weeks are omitted.
func WeeklyTrend(customers []models.Customer) []models.TrendPoint {
	return trendBy(customers, Week, func(w int) string { return "week" + strconv.Itoa(w) })
}

// DailyTrend sums revenue per distinct visit_days value, ascending.
func DailyTrend(customers []models.Customer) []models.TrendPoint {
	return trendBy(customers, func(d int) int { return d }, strconv.Itoa)
}

func trendBy(customers []models.Customer, bucket func(int) int, label func(int) string) []models.TrendPoint {
	type acc struct {
		revenue float64
		count   int
	}
	byKey := make(map[int]*acc)
	for _, c := range customers {
		k := bucket(c.VisitDays)
		a, ok := byKey[k]
		if !ok {
			a = &acc{}
			byKey[k] = a
		}
		a.revenue += c.TotalPayment
		a.count++
	}

	keys := make([]int, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]models.TrendPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.TrendPoint{Label: label(k), TotalRevenue: byKey[k].revenue, Count: byKey[k].count})
	}
	return out
}
