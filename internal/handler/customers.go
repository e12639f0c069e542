package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"customer-analytics-api/internal/export"
	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/query"
	"customer-analytics-api/internal/validation"
)

// ListCustomers handles GET /api/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filterParam(w, r, query.ListingParams...)
	if !ok {
		return
	}

	sort, page, err := query.ParseListing(r.URL.Query())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp, err := h.service.ListCustomers(r.Context(), f, sort, page)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// FilterCustomers handles POST /api/customers/filter
func (h *Handler) FilterCustomers(w http.ResponseWriter, r *http.Request) {
	var req models.FilterRequest
	if !h.decodeJSON(w, r, &req, true) {
		return
	}

	resp, err := h.service.FilterCustomers(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// SearchByUID handles GET /api/customers/search/uid?q=
func (h *Handler) SearchByUID(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.SearchByUID(r.Context(), validation.SanitizeString(r.URL.Query().Get("q")))
	if err != nil {
		h.respondRequestError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

// ExportCustomers handles GET /api/customers/export.xlsx
func (h *Handler) ExportCustomers(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filterParam(w, r, "sort", "order")
	if !ok {
		return
	}

	values := r.URL.Query()
	sort, err := query.ParseSort(validation.SanitizeString(values.Get("sort")), strings.ToLower(validation.SanitizeString(values.Get("order"))))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	// buffered so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.service.ExportCustomers(r.Context(), f, sort, &buf); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="customers.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Warn("failed to write export", "error", err)
	}
}

// GetCustomer handles GET /api/customers/{uid}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uidParam(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetCustomerDetail(r.Context(), uid)
	if err != nil {
		h.respondRequestError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, detail)
}

// CreateCustomers handles POST /api/customers
func (h *Handler) CreateCustomers(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCustomersRequest
	if !h.decodeJSON(w, r, &req, false) {
		return
	}

	inserted, err := h.service.CreateCustomers(r.Context(), req.Customers)
	if err != nil {
		h.respondRequestError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, models.WriteResponse{Inserted: inserted})
}

// UpdateCustomer handles PUT /api/customers/{uid}
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uidParam(w, r)
	if !ok {
		return
	}

	var req models.UpdateCustomerRequest
	if !h.decodeJSON(w, r, &req, true) {
		return
	}

	c, err := h.service.UpdateCustomer(r.Context(), uid, req)
	if err != nil {
		h.respondRequestError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

// DeleteCustomer handles DELETE /api/customers/{uid}
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uidParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), uid); err != nil {
		h.respondRequestError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
