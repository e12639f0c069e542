package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"customer-analytics-api/internal/analytics"
	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/query"
)

// GetRetentionStats handles GET /api/retention/stats
func (h *Handler) GetRetentionStats(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	funnel, err := h.service.RetentionFunnel(r.Context(), f)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, funnel)
}

// GetRetentionRate handles GET /api/retention/rate/{flag}
func (h *Handler) GetRetentionRate(w http.ResponseWriter, r *http.Request) {
	flag, err := analytics.ParseRetentionFlag(chi.URLParam(r, "flag"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	f, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	rate, err := h.service.RetentionRate(r.Context(), f, flag)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rate)
}

// GetRetentionPattern handles GET /api/retention/pattern
func (h *Handler) GetRetentionPattern(w http.ResponseWriter, r *http.Request) {
	p, err := query.ParsePattern(r.URL.Query())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp, err := h.service.RetentionPattern(r.Context(), p)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetRetention handles GET /api/retention/customer/{uid}
func (h *Handler) GetRetention(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uidParam(w, r)
	if !ok {
		return
	}

	ret, err := h.service.GetRetention(r.Context(), uid)
	if err != nil {
		h.respondRequestError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, ret)
}

func (h *Handler) cohort(key analytics.CohortKey) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.service.Cohort(r.Context(), key)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, stats)
	}
}

// GetChurned handles GET /api/retention/analysis/churned
func (h *Handler) GetChurned(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Churned(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetReturned handles GET /api/retention/analysis/returned
func (h *Handler) GetReturned(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Returned(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// UpsertRetention handles PUT /api/retention
func (h *Handler) UpsertRetention(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertRetentionRequest
	if !h.decodeJSON(w, r, &req, false) {
		return
	}

	n, err := h.service.UpsertRetention(r.Context(), req.Retention)
	if err != nil {
		h.respondRequestError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, models.WriteResponse{Inserted: n})
}

// DeleteRetention handles DELETE /api/retention/customer/{uid}
func (h *Handler) DeleteRetention(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uidParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRetention(r.Context(), uid); err != nil {
		h.respondRequestError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
