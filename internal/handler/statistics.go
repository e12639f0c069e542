package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"customer-analytics-api/internal/analytics"
	"customer-analytics-api/internal/query"
	"customer-analytics-api/internal/validation"
)

// filterParam parses the filter query parameters, tolerating extra as
// additional known keys.
func (h *Handler) filterParam(w http.ResponseWriter, r *http.Request, extra ...string) (query.Filter, bool) {
	f, err := query.ParseFilter(r.URL.Query(), extra...)
	if err != nil {
		h.respondServiceError(w, r, err)
		return query.Filter{}, false
	}
	return f, true
}

// GetKPI handles GET /api/statistics/kpi
func (h *Handler) GetKPI(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	stats, err := h.service.OverallStats(r.Context(), f)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) groupedStats(key analytics.GroupKey) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := h.filterParam(w, r)
		if !ok {
			return
		}

		groups, err := h.service.GroupedStats(r.Context(), f, key)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, groups)
	}
}

// GetHeatmap handles GET /api/statistics/heatmap
func (h *Handler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	cells, err := h.service.CrossTab(r.Context(), f)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, cells)
}

// GetCustomerDistribution handles GET /api/statistics/customer-distribution
func (h *Handler) GetCustomerDistribution(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	dist, err := h.service.CustomerDistribution(r.Context(), f)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, dist)
}

// GetGradeDistribution handles GET /api/statistics/grade-distribution
func (h *Handler) GetGradeDistribution(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	grades, err := h.service.GradeDistribution(r.Context(), f)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, grades)
}

// GetHistogram handles GET /api/statistics/histogram/{field}
func (h *Handler) GetHistogram(w http.ResponseWriter, r *http.Request) {
	field, err := analytics.ParseHistogramField(chi.URLParam(r, "field"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	f, ok := h.filterParam(w, r, "boundaries")
	if !ok {
		return
	}

	var boundaries []float64
	if raw := validation.SanitizeString(r.URL.Query().Get("boundaries")); raw != "" {
		boundaries, err = analytics.ParseBoundaries(raw)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
	}

	buckets, err := h.service.Histogram(r.Context(), f, field, boundaries)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, buckets)
}

// GetTrend handles GET /api/statistics/trend/{kind}
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	kind, err := analytics.ParseTrendKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	f, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	points, err := h.service.Trend(r.Context(), f, kind)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, points)
}
