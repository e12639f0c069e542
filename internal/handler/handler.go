package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"customer-analytics-api/internal/analytics"
	"customer-analytics-api/internal/database"
	"customer-analytics-api/internal/features"
	"customer-analytics-api/internal/logger"
	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/service"
	"customer-analytics-api/internal/validation"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidFilter  = "invalid_filter"
	CodeNotFound       = "not_found"
	CodeNoData         = "no_data"
	CodeTooLarge       = "request_too_large"
	CodeInternal       = "internal_error"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	features    *features.Manager
	log         *logger.Logger
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Features    *features.Manager
	Logger      *logger.Logger
}

// DefaultHandlerOptions returns default handler options. Every feature is
// enabled.
func DefaultHandlerOptions() NewHandlerOptions {
	f := features.NewManager()
	f.Register(features.XLSXExport, true, "")
	f.Register(features.WriteAPI, true, "")
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
		Features:    f,
		Logger:      logger.NewNop(),
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	defaults := DefaultHandlerOptions()
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaults.MaxBodySize
	}
	if opts.Features == nil {
		opts.Features = defaults.Features
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	return &Handler{
		service:     svc,
		features:    opts.Features,
		log:         opts.Logger,
		maxBodySize: opts.MaxBodySize,
	}
}

// Register mounts /health and the /api tree on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.Health)
	r.Mount("/api", h.Routes())
}

// Routes returns the /api sub-router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/features", h.ListFeatures)

	r.Route("/statistics", func(r chi.Router) {
		r.Get("/kpi", h.GetKPI)
		r.Get("/revenue-by-region", h.groupedStats(analytics.GroupByRegion))
		r.Get("/revenue-by-age", h.groupedStats(analytics.GroupByAgeGroup))
		r.Get("/revenue-by-city", h.groupedStats(analytics.GroupByCity))
		r.Get("/heatmap", h.GetHeatmap)
		r.Get("/customer-distribution", h.GetCustomerDistribution)
		r.Get("/grade-distribution", h.GetGradeDistribution)
		r.Get("/histogram/{field}", h.GetHistogram)
		r.Get("/trend/{kind}", h.GetTrend)
	})

	r.Route("/retention", func(r chi.Router) {
		r.Get("/stats", h.GetRetentionStats)
		r.Get("/rate/{flag}", h.GetRetentionRate)
		r.Get("/pattern", h.GetRetentionPattern)
		r.Get("/customer/{uid}", h.GetRetention)
		r.Get("/analysis/cohort", h.cohort(analytics.CohortRegionAge))
		r.Get("/analysis/by-region", h.cohort(analytics.CohortRegion))
		r.Get("/analysis/by-age-group", h.cohort(analytics.CohortAgeGroup))
		r.Get("/analysis/churned", h.GetChurned)
		r.Get("/analysis/returned", h.GetReturned)

		r.Group(func(r chi.Router) {
			r.Use(h.requireFeature(features.WriteAPI))
			r.Put("/", h.UpsertRetention)
			r.Delete("/customer/{uid}", h.DeleteRetention)
		})
	})

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.ListCustomers)
		r.Post("/filter", h.FilterCustomers)
		r.Get("/search/uid", h.SearchByUID)
		r.With(h.requireFeature(features.XLSXExport)).Get("/export.xlsx", h.ExportCustomers)
		r.Get("/{uid}", h.GetCustomer)

		r.Group(func(r chi.Router) {
			r.Use(h.requireFeature(features.WriteAPI))
			r.Post("/", h.CreateCustomers)
			r.Put("/{uid}", h.UpdateCustomer)
			r.Delete("/{uid}", h.DeleteCustomer)
		})
	})

	return r
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.log.Error("health check failed", "error", err)
		h.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListFeatures handles GET /api/features
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.features.All())
}

// requireFeature answers 404 while the named feature is disabled.
func (h *Handler) requireFeature(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.features.IsEnabled(name) {
				h.respondError(w, http.StatusNotFound, CodeNotFound, "not found")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// decodeJSON reads a size-limited JSON body into v. It writes the error
// response itself and reports whether decoding succeeded.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, strict bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, CodeInvalidRequest, "request body is required")
		case errors.As(err, &maxErr):
			h.respondError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// uidParam reads and validates the {uid} path parameter.
func (h *Handler) uidParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid, err := validation.ParseUID(chi.URLParam(r, "uid"), "uid")
	if err != nil {
		h.respondRequestError(w, r, err)
		return 0, false
	}
	return uid, true
}

// respondServiceError maps errors from filter and report requests to
// statuses. Validation failures are reported as invalid filters.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	h.respondMappedError(w, r, err, CodeInvalidFilter)
}

// respondRequestError maps errors from writes, path parameters and lookups.
// Validation failures are reported as invalid requests.
func (h *Handler) respondRequestError(w http.ResponseWriter, r *http.Request, err error) {
	h.respondMappedError(w, r, err, CodeInvalidRequest)
}

func (h *Handler) respondMappedError(w http.ResponseWriter, r *http.Request, err error, validationCode string) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondError(w, http.StatusBadRequest, validationCode, err.Error())
	case errors.Is(err, analytics.ErrNoData):
		h.respondError(w, http.StatusNotFound, CodeNoData, "no data matches the filter")
	case errors.Is(err, database.ErrNotFound):
		h.respondError(w, http.StatusNotFound, CodeNotFound, "record not found")
	default:
		h.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
		h.respondError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("failed to encode response", "error", err)
	}
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message, Code: code})
}
