// Package analytics reduces customer and retention rows into report rows.
//
// Every function here is a pure, order-independent reduction over the slice
// it is given. Results are sorted deterministically so that identical inputs
// always produce identical output regardless of row order.
//
// Numeric policy: percentages and visit averages are rounded to two decimal
// places, currency averages to the nearest integer. A zero denominator yields
// 0, except Overall on an empty set which reports ErrNoData.
package analytics

import (
	"errors"
	"math"
	"sort"

	"customer-analytics-api/internal/derived"
	"customer-analytics-api/internal/models"
)

// ErrNoData is returned by aggregates that are undefined over an empty set.
var ErrNoData = errors.New("no data")

// GroupKey selects the column a rollup groups by.
type GroupKey string

const (
	GroupByRegion   GroupKey = "region"
	GroupByAgeGroup GroupKey = "age_group"
	GroupByCity     GroupKey = "city"
)

func (k GroupKey) value(c models.Customer) string {
	switch k {
	case GroupByAgeGroup:
		return string(c.AgeGroup)
	case GroupByCity:
		return c.RegionCity
	default:
		return c.RegionGroup
	}
}

type totals struct {
	count    int
	revenue  float64
	visits   int
	duration float64
	retained int
}

func (t *totals) add(c models.Customer) {
	t.count++
	t.revenue += c.TotalPayment
	t.visits += c.VisitDays
	t.duration += c.TotalDurationMin
	if c.Retained90 {
		t.retained++
	}
}

func (t totals) avgRevenue() float64 { return roundCurrency(ratio(t.revenue, t.count)) }

func (t totals) avgVisits() float64 { return round2(ratio(float64(t.visits), t.count)) }

func (t totals) retentionRate() float64 { return percentage(t.retained, t.count) }

// Overall summarises the whole set. It returns ErrNoData when customers is empty.
func Overall(customers []models.Customer) (models.OverallStats, error) {
	if len(customers) == 0 {
		return models.OverallStats{}, ErrNoData
	}

	var t totals
	for _, c := range customers {
		t.add(c)
	}

	return models.OverallStats{
		Count:         t.count,
		TotalRevenue:  t.revenue,
		AvgRevenue:    t.avgRevenue(),
		AvgVisits:     t.avgVisits(),
		TotalDuration: t.duration,
		RetentionRate: t.retentionRate(),
	}, nil
}

// GroupBy rolls customers up by key, highest revenue first.
func GroupBy(customers []models.Customer, key GroupKey) []models.GroupStats {
	groups := make(map[string]*totals)
	for _, c := range customers {
		k := key.value(c)
		t, ok := groups[k]
		if !ok {
			t = &totals{}
			groups[k] = t
		}
		t.add(c)
	}

	out := make([]models.GroupStats, 0, len(groups))
	for k, t := range groups {
		out = append(out, models.GroupStats{
			Key:           k,
			Count:         t.count,
			TotalRevenue:  t.revenue,
			AvgRevenue:    t.avgRevenue(),
			AvgVisits:     t.avgVisits(),
			RetentionRate: t.retentionRate(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return out[i].Key < out[j].Key
	})
	return out
}

type cellKey struct {
	region   string
	ageGroup models.AgeGroup
}

// CrossTab builds the region by age group heatmap.
func CrossTab(customers []models.Customer) []models.CrossTabCell {
	cells := make(map[cellKey]*totals)
	for _, c := range customers {
		k := cellKey{c.RegionGroup, c.AgeGroup}
		t, ok := cells[k]
		if !ok {
			t = &totals{}
			cells[k] = t
		}
		t.add(c)
	}

	out := make([]models.CrossTabCell, 0, len(cells))
	for k, t := range cells {
		out = append(out, models.CrossTabCell{
			Region:       k.region,
			AgeGroup:     k.ageGroup,
			Count:        t.count,
			TotalRevenue: t.revenue,
			AvgRevenue:   t.avgRevenue(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalRevenue != b.TotalRevenue {
			return a.TotalRevenue > b.TotalRevenue
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.AgeGroup < b.AgeGroup
	})
	return out
}

// Distribution reports each region's share of the customer count.
func Distribution(customers []models.Customer) models.DistributionResponse {
	counts := make(map[string]int)
	for _, c := range customers {
		counts[c.RegionGroup]++
	}

	data := make([]models.RegionShare, 0, len(counts))
	for region, n := range counts {
		data = append(data, models.RegionShare{
			Region:     region,
			Count:      n,
			Percentage: percentage(n, len(customers)),
		})
	}

	sort.Slice(data, func(i, j int) bool {
		if data[i].Count != data[j].Count {
			return data[i].Count > data[j].Count
		}
		return data[i].Region < data[j].Region
	})

	return models.DistributionResponse{Data: data, Total: len(customers)}
}

// GradeDistribution counts customers per grade, VIP first. Grades with no
// customers are left out.
func GradeDistribution(customers []models.Customer) []models.GradeCount {
	type acc struct {
		count   int
		revenue float64
	}
	byGrade := make(map[models.Grade]*acc)
	for _, c := range customers {
		g := derived.CustomerGrade(c.TotalPayment)
		a, ok := byGrade[g]
		if !ok {
			a = &acc{}
			byGrade[g] = a
		}
		a.count++
		a.revenue += c.TotalPayment
	}

	out := make([]models.GradeCount, 0, len(byGrade))
	for _, tier := range derived.GradeTable {
		a, ok := byGrade[tier.Grade]
		if !ok {
			continue
		}
		out = append(out, models.GradeCount{
			Grade:        tier.Grade,
			Count:        a.count,
			TotalRevenue: a.revenue,
			Percentage:   percentage(a.count, len(customers)),
		})
	}
	return out
}

func ratio(num float64, den int) float64 {
	if den == 0 {
		return 0
	}
	return num / float64(den)
}

func percentage(part, whole int) float64 {
	return round2(100 * ratio(float64(part), whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundCurrency(v float64) float64 {
	return math.Round(v)
}
