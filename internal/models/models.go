package models

import "time"

// AgeGroup is the coarse age bucket stored on every customer.
type AgeGroup string

const (
	AgeTeens       AgeGroup = "Teens"
	AgeTwenties    AgeGroup = "Twenties"
	AgeThirties    AgeGroup = "Thirties"
	AgeFortiesPlus AgeGroup = "Forties+"
)

// AgeGroups lists every valid age group in ascending order.
var AgeGroups = []AgeGroup{AgeTeens, AgeTwenties, AgeThirties, AgeFortiesPlus}

// RegionGroups lists the province / metro city values accepted for region_group.
var RegionGroups = []string{
	"Seoul",
	"Gyeonggi-do",
	"Incheon",
	"Busan",
	"Daegu",
	"Daejeon",
	"Gwangju",
	"Ulsan",
	"Sejong",
	"Gangwon-do",
	"Chungcheongbuk-do",
	"Chungcheongnam-do",
	"Jeollabuk-do",
	"Jeollanam-do",
	"Gyeongsangbuk-do",
	"Gyeongsangnam-do",
	"Jeju",
}

// Grade is a customer tier derived from total payment.
type Grade string

const (
	GradeVIP    Grade = "VIP"
	GradeGold   Grade = "Gold"
	GradeSilver Grade = "Silver"
	GradeBronze Grade = "Bronze"
)

// Customer is one customer's activity over the observation month.
type Customer struct {
	UID              int64     `json:"uid"`
	RegionGroup      string    `json:"region_group"`
	RegionCity       string    `json:"region_city"`
	AgeGroup         AgeGroup  `json:"age_group"`
	Age              int       `json:"age"`
	VisitDays        int       `json:"visit_days"`         // distinct days visited, 0-31
	TotalDurationMin float64   `json:"total_duration_min"` // cumulative minutes
	AvgDurationMin   *float64  `json:"avg_duration_min,omitempty"`
	TotalPayment     float64   `json:"total_payment"` // smallest currency unit
	Retained90       bool      `json:"retained_90"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Retention holds the follow-up month flags for a customer.
type Retention struct {
	UID            int64     `json:"uid"`
	RetainedJune   bool      `json:"retained_june"`
	RetainedJuly   bool      `json:"retained_july"`
	RetainedAugust bool      `json:"retained_august"`
	Retained90     bool      `json:"retained_90"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RetentionRecord is a retention row left-joined to its customer.
// Customer is nil for orphaned retention rows.
type RetentionRecord struct {
	Retention Retention
	Customer  *Customer
}

// CustomerDetail is a customer enriched with read-time derived values.
type CustomerDetail struct {
	Customer
	AvgPaymentPerVisit  int64    `json:"avgPaymentPerVisit"`
	AvgDurationPerVisit int64    `json:"avgDurationPerVisit"`
	CustomerGrade       Grade    `json:"customerGrade"`
	IsRetained          bool     `json:"isRetained"`
	IsHighFrequency     bool     `json:"isHighFrequency"`
	RetentionMonths     []string `json:"retentionMonths"`
}

// OverallStats summarises a customer set.
type OverallStats struct {
	Count         int     `json:"count"`
	TotalRevenue  float64 `json:"totalRevenue"`
	AvgRevenue    float64 `json:"avgRevenue"`
	AvgVisits     float64 `json:"avgVisits"`
	TotalDuration float64 `json:"totalDuration"`
	RetentionRate float64 `json:"retentionRate"`
}

// GroupStats is one row of a single-key rollup.
type GroupStats struct {
	Key           string  `json:"key"`
	Count         int     `json:"count"`
	TotalRevenue  float64 `json:"totalRevenue"`
	AvgRevenue    float64 `json:"avgRevenue"`
	AvgVisits     float64 `json:"avgVisits"`
	RetentionRate float64 `json:"retentionRate"`
}

// CrossTabCell is one (region, age group) cell of the heatmap.
type CrossTabCell struct {
	Region       string   `json:"region"`
	AgeGroup     AgeGroup `json:"ageGroup"`
	Count        int      `json:"count"`
	TotalRevenue float64  `json:"totalRevenue"`
	AvgRevenue   float64  `json:"avgRevenue"`
}

// RegionShare is a region's share of all customers.
type RegionShare struct {
	Region     string  `json:"region"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DistributionResponse is the payload of the customer distribution report.
type DistributionResponse struct {
	Data  []RegionShare `json:"data"`
	Total int           `json:"total"`
}

// GradeCount is the population of one customer grade.
type GradeCount struct {
	Grade        Grade   `json:"grade"`
	Count        int     `json:"count"`
	TotalRevenue float64 `json:"totalRevenue"`
	Percentage   float64 `json:"percentage"`
}

// HistogramBucket is one populated bucket of a histogram.
type HistogramBucket struct {
	Label        string   `json:"label"`
	Lower        *float64 `json:"lower,omitempty"`
	Upper        *float64 `json:"upper,omitempty"` // nil for the overflow bucket
	Count        int      `json:"count"`
	AvgSecondary float64  `json:"avgSecondary"`
}

// TrendPoint is one step of a weekly or daily trend.
type TrendPoint struct {
	Label        string  `json:"label"`
	TotalRevenue float64 `json:"totalRevenue"`
	Count        int     `json:"count"`
}

// FlagStat is the count and percentage of rows with a flag set.
type FlagStat struct {
	Count int     `json:"count"`
	Rate  float64 `json:"rate"`
}

// RetentionFunnel reports every retention flag against the same base.
type RetentionFunnel struct {
	Total         int      `json:"total"`
	June          FlagStat `json:"june"`
	July          FlagStat `json:"july"`
	August        FlagStat `json:"august"`
	NinetyDay     FlagStat `json:"ninety_days"`
	FullyRetained FlagStat `json:"fully_retained"`
}

// RetentionRate is the rate of a single retention flag.
type RetentionRate struct {
	Flag     string  `json:"flag"`
	Total    int     `json:"total"`
	Retained int     `json:"retained"`
	Rate     float64 `json:"rate"`
}

// CohortStats is the retention profile of one customer group.
type CohortStats struct {
	Region         string   `json:"region,omitempty"`
	AgeGroup       AgeGroup `json:"ageGroup,omitempty"`
	Total          int      `json:"totalCustomers"`
	RetainedJune   int      `json:"retainedJune"`
	RetainedJuly   int      `json:"retainedJuly"`
	RetainedAugust int      `json:"retainedAugust"`
	Retained90     int      `json:"retained90"`
	AvgPayment     float64  `json:"avgPayment"`
	AvgVisitDays   float64  `json:"avgVisitDays"`
	JuneRate       float64  `json:"juneRate"`
	JulyRate       float64  `json:"julyRate"`
	AugustRate     float64  `json:"augustRate"`
	NinetyDayRate  float64  `json:"ninetyDayRate"`
}

// RetentionCustomer is a retention row with the joined customer, if any.
type RetentionCustomer struct {
	UID       int64     `json:"uid"`
	Retention Retention `json:"retention"`
	Customer  *Customer `json:"customer,omitempty"`
}

// RetentionListResponse wraps a list of retention rows with its length.
type RetentionListResponse struct {
	Data  []RetentionCustomer `json:"data"`
	Count int                 `json:"count"`
}

// Pagination describes a page of a larger result.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// CustomerPage is one page of customers.
type CustomerPage struct {
	Data       []Customer `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// FilterRequest is the body of POST /api/customers/filter.
type FilterRequest struct {
	Region     string   `json:"region,omitempty"`
	City       string   `json:"city,omitempty"`
	AgeGroup   string   `json:"ageGroup,omitempty"`
	MinAge     *int     `json:"minAge,omitempty"`
	MaxAge     *int     `json:"maxAge,omitempty"`
	MinPayment *float64 `json:"minPayment,omitempty"`
	MaxPayment *float64 `json:"maxPayment,omitempty"`
	MinVisits  *int     `json:"minVisits,omitempty"`
	MaxVisits  *int     `json:"maxVisits,omitempty"`
	Retained90 *int     `json:"retained90,omitempty"` // 0 or 1
	Sort       string   `json:"sort,omitempty"`
	Order      string   `json:"order,omitempty"`
	Page       int      `json:"page,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// FilterResponse is a filtered page plus statistics over the whole filtered set.
// Statistics is nil when nothing matched.
type FilterResponse struct {
	Filters    FilterRequest `json:"filters"`
	Data       []Customer    `json:"data"`
	Statistics *OverallStats `json:"statistics"`
	Pagination Pagination    `json:"pagination"`
}

// UpdateCustomerRequest is a partial customer update.
type UpdateCustomerRequest struct {
	RegionGroup      *string   `json:"region_group"`
	RegionCity       *string   `json:"region_city"`
	AgeGroup         *AgeGroup `json:"age_group"`
	Age              *int      `json:"age"`
	VisitDays        *int      `json:"visit_days"`
	TotalDurationMin *float64  `json:"total_duration_min"`
	AvgDurationMin   *float64  `json:"avg_duration_min"`
	TotalPayment     *float64  `json:"total_payment"`
	Retained90       *bool     `json:"retained_90"`
}

// CreateCustomersRequest represents the request body for ingesting customers.
type CreateCustomersRequest struct {
	Customers []Customer `json:"customers"`
}

// UpsertRetentionRequest represents the request body for ingesting retention rows.
type UpsertRetentionRequest struct {
	Retention []Retention `json:"retention"`
}

// WriteResponse reports how many rows a batch write touched.
type WriteResponse struct {
	Inserted int `json:"inserted"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
