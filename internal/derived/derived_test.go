package derived

import (
	"math"
	"reflect"
	"testing"

	"customer-analytics-api/internal/models"
)

func TestCustomerGrade_Thresholds(t *testing.T) {
	tests := []struct {
		payment float64
		want    models.Grade
	}{
		{0, models.GradeBronze},
		{30000, models.GradeBronze},
		{49999, models.GradeBronze},
		{50000, models.GradeSilver},
		{60000, models.GradeSilver},
		{99999.5, models.GradeSilver},
		{100000, models.GradeGold},
		{120000, models.GradeGold},
		{200000, models.GradeVIP},
		{5000000, models.GradeVIP},
		{-10, models.GradeBronze},
	}

	for _, tt := range tests {
		if got := CustomerGrade(tt.payment); got != tt.want {
			t.Errorf("CustomerGrade(%v) = %s, expected %s", tt.payment, got, tt.want)
		}
	}
}

func TestCustomerGrade_Monotonic(t *testing.T) {
	prev := -1
	for payment := 0.0; payment <= 400000; payment += 250 {
		rank := GradeRank(CustomerGrade(payment))
		if rank < 0 {
			t.Fatalf("CustomerGrade(%v) returned an unranked grade", payment)
		}
		if rank < prev {
			t.Fatalf("Grade rank decreased at payment %v: %d < %d", payment, rank, prev)
		}
		prev = rank
	}
	if prev != GradeRank(models.GradeVIP) {
		t.Errorf("Expected highest rank at the top of the range, got %d", prev)
	}
}

func TestGradeRank_Unknown(t *testing.T) {
	if got := GradeRank("Platinum"); got != -1 {
		t.Errorf("Expected -1 for unknown grade, got %d", got)
	}
	if GradeRank(models.GradeBronze) != 0 {
		t.Errorf("Expected Bronze to rank 0")
	}
}

func TestAveragePaymentPerVisit(t *testing.T) {
	for payment := 0.0; payment < 100000; payment += 1237 {
		for visits := 0; visits <= 31; visits++ {
			c := models.Customer{TotalPayment: payment, VisitDays: visits}
			got := AveragePaymentPerVisit(c)
			var want int64
			if visits > 0 {
				want = int64(math.Round(payment / float64(visits)))
			}
			if got != want {
				t.Fatalf("AveragePaymentPerVisit(%v, %d) = %d, expected %d", payment, visits, got, want)
			}
		}
	}
}

func TestAverageDurationPerVisit(t *testing.T) {
	c := models.Customer{TotalDurationMin: 125, VisitDays: 2}
	if got := AverageDurationPerVisit(c); got != 63 {
		t.Errorf("Expected 63, got %d", got)
	}
	c.VisitDays = 0
	if got := AverageDurationPerVisit(c); got != 0 {
		t.Errorf("Expected 0 for zero visit days, got %d", got)
	}
}

func TestAverageDuration_PrefersStoredValue(t *testing.T) {
	stored := 42.5
	c := models.Customer{TotalDurationMin: 100, VisitDays: 4, AvgDurationMin: &stored}
	if got := AverageDuration(c); got != 42.5 {
		t.Errorf("Expected stored 42.5, got %v", got)
	}
	c.AvgDurationMin = nil
	if got := AverageDuration(c); got != 25 {
		t.Errorf("Expected derived 25, got %v", got)
	}
	c.VisitDays = 0
	if got := AverageDuration(c); got != 0 {
		t.Errorf("Expected 0, got %v", got)
	}
}

func TestRetentionMonths(t *testing.T) {
	tests := []struct {
		r    models.Retention
		want []string
	}{
		{models.Retention{}, []string{}},
		{models.Retention{RetainedJune: true}, []string{"June"}},
		{models.Retention{RetainedAugust: true, RetainedJune: true}, []string{"June", "August"}},
		{models.Retention{RetainedJune: true, RetainedJuly: true, RetainedAugust: true}, []string{"June", "July", "August"}},
		{models.Retention{RetainedJuly: true, Retained90: false}, []string{"July"}},
	}

	for _, tt := range tests {
		got := RetentionMonths(tt.r)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("RetentionMonths(%+v) = %v, expected %v", tt.r, got, tt.want)
		}
		if MonthsRetained(tt.r) != len(tt.want) {
			t.Errorf("MonthsRetained(%+v) = %d, expected %d", tt.r, MonthsRetained(tt.r), len(tt.want))
		}
	}
}

func TestChurnPredicates(t *testing.T) {
	churned := models.Retention{RetainedJune: true}
	returned := models.Retention{RetainedJune: true, RetainedAugust: true}
	loyal := models.Retention{RetainedJune: true, RetainedJuly: true, RetainedAugust: true}

	if !IsChurned(churned) || HasReturned(churned) {
		t.Errorf("Expected churned and not returned")
	}
	if !IsChurned(returned) || !HasReturned(returned) {
		t.Errorf("Expected churned and returned")
	}
	if IsChurned(loyal) || !IsFullyRetained(loyal) {
		t.Errorf("Expected fully retained and not churned")
	}
}

func TestIsHighFrequencyVisitor(t *testing.T) {
	if IsHighFrequencyVisitor(models.Customer{VisitDays: HighFrequencyVisitDays - 1}) {
		t.Error("Expected 9 visit days to be below the threshold")
	}
	if !IsHighFrequencyVisitor(models.Customer{VisitDays: HighFrequencyVisitDays}) {
		t.Error("Expected 10 visit days to meet the threshold")
	}
}

func TestDetail(t *testing.T) {
	c := models.Customer{UID: 2, TotalPayment: 120000, VisitDays: 10, TotalDurationMin: 305, Retained90: true}
	r := models.Retention{UID: 2, RetainedJune: true, RetainedJuly: true}

	d := Detail(c, &r)
	if d.CustomerGrade != models.GradeGold {
		t.Errorf("Expected Gold, got %s", d.CustomerGrade)
	}
	if d.AvgPaymentPerVisit != 12000 {
		t.Errorf("Expected 12000, got %d", d.AvgPaymentPerVisit)
	}
	if d.AvgDurationPerVisit != 31 {
		t.Errorf("Expected 31, got %d", d.AvgDurationPerVisit)
	}
	if !d.IsRetained || !d.IsHighFrequency {
		t.Errorf("Expected retained high-frequency customer, got %+v", d)
	}
	if !reflect.DeepEqual(d.RetentionMonths, []string{"June", "July"}) {
		t.Errorf("Unexpected months %v", d.RetentionMonths)
	}

	d = Detail(c, nil)
	if d.RetentionMonths == nil || len(d.RetentionMonths) != 0 {
		t.Errorf("Expected empty non-nil month list without retention, got %v", d.RetentionMonths)
	}
}
