package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"customer-analytics-api/internal/database"
	"customer-analytics-api/internal/export"
	"customer-analytics-api/internal/features"
	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/service"
)

func setupTestHandler(t *testing.T) (*Handler, func()) {
	db, err := database.NewDB(context.Background(), database.DriverSQLite, filepath.Join(t.TempDir(), "test_handler.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	svc := service.NewService(db, nil, nil, nil)
	h := NewHandler(svc)

	cleanup := func() {
		db.Close()
	}

	return h, cleanup
}

func setupRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func doRequest(r http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func testCustomer(uid int64, region string, age models.AgeGroup, visits int, payment float64) models.Customer {
	return models.Customer{
		UID:              uid,
		RegionGroup:      region,
		RegionCity:       region + "-city",
		AgeGroup:         age,
		Age:              30,
		VisitDays:        visits,
		TotalDurationMin: float64(visits) * 45,
		TotalPayment:     payment,
	}
}

func seedCustomers(t *testing.T, r http.Handler) {
	t.Helper()
	req := models.CreateCustomersRequest{Customers: []models.Customer{
		testCustomer(1, "Seoul", models.AgeTwenties, 4, 60000),
		testCustomer(2, "Seoul", models.AgeThirties, 10, 120000),
		testCustomer(3, "Busan", models.AgeTwenties, 2, 30000),
	}}
	rr := doRequest(r, http.MethodPost, "/api/customers", req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Failed to seed customers: %d %s", rr.Code, rr.Body.String())
	}
}

func seedRetention(t *testing.T, r http.Handler) {
	t.Helper()
	req := models.UpsertRetentionRequest{Retention: []models.Retention{
		{UID: 1, RetainedJune: true},
		{UID: 2, RetainedJune: true, RetainedJuly: true, RetainedAugust: true, Retained90: true},
		{UID: 3, RetainedJune: true, RetainedAugust: true},
	}}
	rr := doRequest(r, http.MethodPut, "/api/retention", req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Failed to seed retention: %d %s", rr.Code, rr.Body.String())
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal error response: %v", err)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := doRequest(setupRouter(h), http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("Expected ok status, got '%s'", rr.Body.String())
	}
}

func TestCreateCustomers_Success(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	rr := doRequest(r, http.MethodPost, "/api/customers", models.CreateCustomersRequest{
		Customers: []models.Customer{testCustomer(10, "Incheon", models.AgeTeens, 3, 15000)},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp models.WriteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Inserted != 1 {
		t.Errorf("Expected 1 inserted, got %d", resp.Inserted)
	}
}

func TestCreateCustomers_InvalidJSON(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := doRequest(setupRouter(h), http.MethodPost, "/api/customers", "invalid json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error == "" || resp.Code != CodeInvalidRequest {
		t.Errorf("Unexpected error response %+v", resp)
	}
}

func TestCreateCustomers_EmptyBody(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := doRequest(setupRouter(h), http.MethodPost, "/api/customers", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestCreateCustomers_ValidationError(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	bad := testCustomer(1, "Atlantis", models.AgeTwenties, 3, 1000)
	rr := doRequest(setupRouter(h), http.MethodPost, "/api/customers", models.CreateCustomersRequest{Customers: []models.Customer{bad}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); !strings.Contains(resp.Error, "region_group") {
		t.Errorf("Expected region_group in error, got %s", resp.Error)
	}
}

func TestWriteValidation_InvalidRequestCode(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	tests := []struct {
		name   string
		method string
		target string
		body   interface{}
	}{
		{"create bad region", http.MethodPost, "/api/customers",
			models.CreateCustomersRequest{Customers: []models.Customer{testCustomer(9, "Atlantis", models.AgeTwenties, 3, 1000)}}},
		{"update out-of-range visits", http.MethodPut, "/api/customers/1", `{"visit_days": 45}`},
		{"upsert retention bad uid", http.MethodPut, "/api/retention",
			models.UpsertRetentionRequest{Retention: []models.Retention{{UID: 0, RetainedJune: true}}}},
		{"customer path uid", http.MethodGet, "/api/customers/abc", nil},
		{"delete customer path uid", http.MethodDelete, "/api/customers/-4", nil},
		{"retention path uid", http.MethodGet, "/api/retention/customer/abc", nil},
		{"search uid", http.MethodGet, "/api/customers/search/uid?q=abc", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(r, tt.method, tt.target, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
			}
			if resp := decodeError(t, rr); resp.Code != CodeInvalidRequest {
				t.Errorf("Expected code %s, got %s", CodeInvalidRequest, resp.Code)
			}
		})
	}
}

func TestCreateCustomers_BodyTooLarge(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	h.maxBodySize = 16

	rr := doRequest(setupRouter(h), http.MethodPost, "/api/customers", models.CreateCustomersRequest{
		Customers: []models.Customer{testCustomer(1, "Seoul", models.AgeTwenties, 3, 1000)},
	})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rr.Code)
	}
}

func TestWriteAPI_Disabled(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	h.features.Disable(features.WriteAPI)
	r := setupRouter(h)

	rr := doRequest(r, http.MethodPost, "/api/customers", models.CreateCustomersRequest{
		Customers: []models.Customer{testCustomer(1, "Seoul", models.AgeTwenties, 3, 1000)},
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for disabled write API, got %d", rr.Code)
	}

	rr = doRequest(r, http.MethodGet, "/api/customers", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected reads to stay available, got %d", rr.Code)
	}
}

func TestGetKPI(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	rr := doRequest(r, http.MethodGet, "/api/statistics/kpi", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404 on empty store, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeNoData {
		t.Errorf("Expected code %s, got %s", CodeNoData, resp.Code)
	}

	seedCustomers(t, r)

	rr = doRequest(r, http.MethodGet, "/api/statistics/kpi?region=Seoul", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var stats models.OverallStats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if stats.Count != 2 || stats.TotalRevenue != 180000 || stats.AvgRevenue != 90000 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestStatistics_InvalidFilter(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)

	tests := []struct {
		name   string
		target string
	}{
		{"unknown region", "/api/statistics/kpi?region=Atlantis"},
		{"unknown parameter", "/api/statistics/revenue-by-region?colour=red"},
		{"bad number", "/api/statistics/heatmap?minAge=abc"},
		{"inverted range", "/api/statistics/grade-distribution?minPayment=100&maxPayment=10"},
		{"bad retained flag", "/api/statistics/customer-distribution?retained90=maybe"},
		{"bad histogram field", "/api/statistics/histogram/duration"},
		{"bad boundaries", "/api/statistics/histogram/payment?boundaries=10,5"},
		{"bad trend kind", "/api/statistics/trend/monthly"},
		{"bad retention flag", "/api/retention/rate/september"},
		{"bad pattern key", "/api/retention/pattern?may=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(r, http.MethodGet, tt.target, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
			}
			if resp := decodeError(t, rr); resp.Code != CodeInvalidFilter {
				t.Errorf("Expected code %s, got %s", CodeInvalidFilter, resp.Code)
			}
		})
	}
}

func TestRevenueByRegion(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	rr := doRequest(r, http.MethodGet, "/api/statistics/revenue-by-region", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var groups []models.GroupStats
	if err := json.Unmarshal(rr.Body.Bytes(), &groups); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(groups) != 2 || groups[0].Key != "Seoul" || groups[0].TotalRevenue != 180000 {
		t.Errorf("Unexpected groups %+v", groups)
	}
}

func TestHistogram_CustomBoundaries(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	rr := doRequest(r, http.MethodGet, "/api/statistics/histogram/visits?boundaries=0,5,inf", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var buckets []models.HistogramBucket
	if err := json.Unmarshal(rr.Body.Bytes(), &buckets); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(buckets) != 2 || buckets[0].Count != 2 || buckets[1].Count != 1 {
		t.Errorf("Unexpected buckets %+v", buckets)
	}
}

func TestCustomerDistributionAndTrend(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	rr := doRequest(r, http.MethodGet, "/api/statistics/customer-distribution", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var dist models.DistributionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &dist); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if dist.Total != 3 {
		t.Errorf("Expected total 3, got %d", dist.Total)
	}

	rr = doRequest(r, http.MethodGet, "/api/statistics/trend/daily", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var points []models.TrendPoint
	if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(points) != 3 || points[0].Label != "2" {
		t.Errorf("Unexpected trend %+v", points)
	}
}

func TestListCustomers(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	rr := doRequest(r, http.MethodGet, "/api/customers?sort=visits&order=asc&limit=2&page=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var page models.CustomerPage
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].UID != 2 {
		t.Errorf("Expected uid 2 on page 2, got %+v", page.Data)
	}
	if page.Pagination.Total != 3 || page.Pagination.HasMore {
		t.Errorf("Unexpected pagination %+v", page.Pagination)
	}

	rr = doRequest(r, http.MethodGet, "/api/customers?limit=5000", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for oversized limit, got %d", rr.Code)
	}
}

func TestFilterCustomers(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	rr := doRequest(r, http.MethodPost, "/api/customers/filter", `{"region":"Seoul","minVisits":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var resp models.FilterResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].UID != 2 {
		t.Errorf("Expected uid 2, got %+v", resp.Data)
	}
	if resp.Statistics == nil || resp.Statistics.Count != 1 {
		t.Errorf("Expected statistics for one customer, got %+v", resp.Statistics)
	}
	if resp.Filters.Region != "Seoul" {
		t.Errorf("Expected echoed filters, got %+v", resp.Filters)
	}

	rr = doRequest(r, http.MethodPost, "/api/customers/filter", `{"regoin":"Seoul"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown field, got %d", rr.Code)
	}

	rr = doRequest(r, http.MethodPost, "/api/customers/filter", `{"retained90":2}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for retained90=2, got %d", rr.Code)
	}
}

func TestListAndFilterCustomers_HugePage(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	rr := doRequest(r, http.MethodPost, "/api/customers/filter", `{"page": 9223372036854775807}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeError(t, rr)
	if resp.Code != CodeInvalidFilter || !strings.Contains(resp.Error, "page") {
		t.Errorf("Expected invalid_filter on page, got %+v", resp)
	}

	rr = doRequest(r, http.MethodGet, "/api/customers?page=9223372036854775807", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for listing, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestSearchByUID(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	tests := []struct {
		query  string
		status int
	}{
		{"3", http.StatusOK},
		{"", http.StatusBadRequest},
		{"abc", http.StatusBadRequest},
		{"-1", http.StatusBadRequest},
		{"404", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("q=%s", tt.query), func(t *testing.T) {
			rr := doRequest(r, http.MethodGet, "/api/customers/search/uid?q="+tt.query, nil)
			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestGetCustomer_Detail(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)
	seedRetention(t, r)

	rr := doRequest(r, http.MethodGet, "/api/customers/3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var detail models.CustomerDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &detail); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if detail.CustomerGrade != models.GradeBronze || detail.AvgPaymentPerVisit != 15000 {
		t.Errorf("Unexpected detail %+v", detail)
	}
	if len(detail.RetentionMonths) != 2 {
		t.Errorf("Expected June and August, got %v", detail.RetentionMonths)
	}

	rr = doRequest(r, http.MethodGet, "/api/customers/77", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeNotFound {
		t.Errorf("Expected code %s, got %s", CodeNotFound, resp.Code)
	}
}

func TestUpdateAndDeleteCustomer(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	rr := doRequest(r, http.MethodPut, "/api/customers/1", `{"total_payment": 250000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var c models.Customer
	if err := json.Unmarshal(rr.Body.Bytes(), &c); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if c.TotalPayment != 250000 || c.VisitDays != 4 {
		t.Errorf("Unexpected updated customer %+v", c)
	}

	rr = doRequest(r, http.MethodPut, "/api/customers/1", `{"visit_days": 45}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for out-of-range visit_days, got %d", rr.Code)
	}

	rr = doRequest(r, http.MethodDelete, "/api/customers/1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rr.Code)
	}
	rr = doRequest(r, http.MethodDelete, "/api/customers/1", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", rr.Code)
	}
}

func TestExportCustomers(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)

	rr := doRequest(r, http.MethodGet, "/api/customers/export.xlsx?region=Busan", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Expected content type %s, got %s", export.ContentType, ct)
	}

	f, err := excelize.OpenReader(rr.Body)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(export.CustomersSheet)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "3" {
		t.Errorf("Expected only uid 3, got %v", rows)
	}

	h.features.Disable(features.XLSXExport)
	rr = doRequest(r, http.MethodGet, "/api/customers/export.xlsx", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for disabled export, got %d", rr.Code)
	}
}

func TestRetentionEndpoints(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)
	seedRetention(t, r)

	rr := doRequest(r, http.MethodGet, "/api/retention/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var funnel models.RetentionFunnel
	if err := json.Unmarshal(rr.Body.Bytes(), &funnel); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if funnel.Total != 3 || funnel.June.Rate != 100 || funnel.FullyRetained.Count != 1 {
		t.Errorf("Unexpected funnel %+v", funnel)
	}

	rr = doRequest(r, http.MethodGet, "/api/retention/rate/90", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var rate models.RetentionRate
	if err := json.Unmarshal(rr.Body.Bytes(), &rate); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if rate.Retained != 1 || rate.Total != 3 {
		t.Errorf("Unexpected rate %+v", rate)
	}

	rr = doRequest(r, http.MethodGet, "/api/retention/pattern?june=1&july=0", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var list models.RetentionListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if list.Count != 2 {
		t.Errorf("Expected 2 matches, got %d", list.Count)
	}

	rr = doRequest(r, http.MethodGet, "/api/retention/analysis/returned", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	list = models.RetentionListResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if list.Count != 1 || list.Data[0].UID != 3 || list.Data[0].Customer == nil {
		t.Errorf("Expected uid 3 with its customer, got %+v", list.Data)
	}

	rr = doRequest(r, http.MethodGet, "/api/retention/analysis/churned", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestRetentionCohorts(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)
	seedRetention(t, r)

	tests := []struct {
		path   string
		groups int
	}{
		{"/api/retention/analysis/cohort", 3},
		{"/api/retention/analysis/by-region", 2},
		{"/api/retention/analysis/by-age-group", 2},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := doRequest(r, http.MethodGet, tt.path, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rr.Code)
			}
			var stats []models.CohortStats
			if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if len(stats) != tt.groups {
				t.Errorf("Expected %d groups, got %d", tt.groups, len(stats))
			}
		})
	}
}

func TestRetentionCustomer_GetAndDelete(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()
	r := setupRouter(h)
	seedCustomers(t, r)
	seedRetention(t, r)

	rr := doRequest(r, http.MethodGet, "/api/retention/customer/2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var ret models.Retention
	if err := json.Unmarshal(rr.Body.Bytes(), &ret); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !ret.RetainedJuly || !ret.Retained90 {
		t.Errorf("Unexpected retention %+v", ret)
	}

	rr = doRequest(r, http.MethodDelete, "/api/retention/customer/2", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rr.Code)
	}
	rr = doRequest(r, http.MethodGet, "/api/retention/customer/2", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rr.Code)
	}
}

func TestListFeatures(t *testing.T) {
	h, cleanup := setupTestHandler(t)
	defer cleanup()

	rr := doRequest(setupRouter(h), http.MethodGet, "/api/features", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var flags []features.FeatureFlag
	if err := json.Unmarshal(rr.Body.Bytes(), &flags); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(flags) != 2 {
		t.Errorf("Expected 2 flags, got %d", len(flags))
	}
}
