package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"customer-analytics-api/internal/analytics"
	"customer-analytics-api/internal/database"
	"customer-analytics-api/internal/derived"
	"customer-analytics-api/internal/events"
	"customer-analytics-api/internal/export"
	"customer-analytics-api/internal/logger"
	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/query"
	"customer-analytics-api/internal/tracing"
	"customer-analytics-api/internal/validation"
)

// MaxBatchSize bounds a single write request.
const MaxBatchSize = 1000

// Store is the record store the service reads and writes.
type Store interface {
	Ping(ctx context.Context) error

	ListCustomers(ctx context.Context, f query.Filter) ([]models.Customer, error)
	QueryCustomers(ctx context.Context, f query.Filter, s query.Sort, p query.Page) ([]models.Customer, int, error)
	GetCustomer(ctx context.Context, uid int64) (models.Customer, error)
	UpsertCustomers(ctx context.Context, customers []models.Customer) (int, error)
	DeleteCustomer(ctx context.Context, uid int64) error

	GetRetention(ctx context.Context, uid int64) (models.Retention, error)
	ListRetention(ctx context.Context) ([]models.Retention, error)
	ListRetentionRecords(ctx context.Context, f query.Filter) ([]models.RetentionRecord, error)
	UpsertRetentions(ctx context.Context, rows []models.Retention) (int, error)
	DeleteRetention(ctx context.Context, uid int64) error
}

// Service composes the store, the filter layer and the aggregation engine.
type Service struct {
	store  Store
	events *events.Manager
	tracer *tracing.Tracer
	log    *logger.Logger
}

// NewService creates a new service instance. Nil collaborators are replaced
// by no-op implementations.
func NewService(store Store, ev *events.Manager, tracer *tracing.Tracer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	if ev == nil {
		ev = events.NewManager(false, log)
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Service{store: store, events: ev, tracer: tracer, log: log}
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.StartSpan(ctx, "service."+name, trace.WithAttributes(attrs...))
}

// finish ends span, marking it failed for errors other than the expected
// not-found and no-data outcomes.
func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, database.ErrNotFound) && !errors.Is(err, analytics.ErrNoData) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Health checks the store.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListCustomers returns one page of filtered, sorted customers.
func (s *Service) ListCustomers(ctx context.Context, f query.Filter, sort query.Sort, page query.Page) (_ models.CustomerPage, err error) {
	ctx, span := s.start(ctx, "ListCustomers", attribute.Int("page", page.Number), attribute.Int("limit", page.Limit))
	defer func() { finish(span, err) }()

	customers, total, err := s.store.QueryCustomers(ctx, f, sort, page)
	if err != nil {
		return models.CustomerPage{}, fmt.Errorf("failed to query customers: %w", err)
	}

	return models.CustomerPage{Data: customers, Pagination: page.Pagination(total)}, nil
}

// FilterCustomers answers a JSON filter request with a page of matches and
// statistics over every match. Statistics is nil when nothing matched.
func (s *Service) FilterCustomers(ctx context.Context, req models.FilterRequest) (_ models.FilterResponse, err error) {
	ctx, span := s.start(ctx, "FilterCustomers")
	defer func() { finish(span, err) }()

	f, sort, page, err := query.FromRequest(req)
	if err != nil {
		return models.FilterResponse{}, err
	}

	matched, err := s.store.ListCustomers(ctx, f)
	if err != nil {
		return models.FilterResponse{}, fmt.Errorf("failed to list customers: %w", err)
	}

	resp := models.FilterResponse{Filters: req, Pagination: page.Pagination(len(matched))}

	stats, err := analytics.Overall(matched)
	switch {
	case err == nil:
		resp.Statistics = &stats
	case !errors.Is(err, analytics.ErrNoData):
		return models.FilterResponse{}, err
	}

	sort.SortCustomers(matched)
	resp.Data = page.Slice(matched)
	return resp, nil
}

// SearchByUID looks a customer up from a raw query value.
func (s *Service) SearchByUID(ctx context.Context, raw string) (models.Customer, error) {
	uid, err := validation.ParseUID(raw, "q")
	if err != nil {
		return models.Customer{}, err
	}
	return s.GetCustomer(ctx, uid)
}

// GetCustomer returns a stored customer.
func (s *Service) GetCustomer(ctx context.Context, uid int64) (_ models.Customer, err error) {
	ctx, span := s.start(ctx, "GetCustomer", attribute.Int64("uid", uid))
	defer func() { finish(span, err) }()

	if err := validation.ValidateUID(uid, "uid"); err != nil {
		return models.Customer{}, err
	}
	return s.store.GetCustomer(ctx, uid)
}

// GetCustomerDetail returns a customer with its derived fields. Retention
// months come from the retention row when one exists.
func (s *Service) GetCustomerDetail(ctx context.Context, uid int64) (_ models.CustomerDetail, err error) {
	ctx, span := s.start(ctx, "GetCustomerDetail", attribute.Int64("uid", uid))
	defer func() { finish(span, err) }()

	if err := validation.ValidateUID(uid, "uid"); err != nil {
		return models.CustomerDetail{}, err
	}

	c, err := s.store.GetCustomer(ctx, uid)
	if err != nil {
		return models.CustomerDetail{}, err
	}

	var ret *models.Retention
	r, err := s.store.GetRetention(ctx, uid)
	switch {
	case err == nil:
		ret = &r
	case !errors.Is(err, database.ErrNotFound):
		return models.CustomerDetail{}, fmt.Errorf("failed to get retention: %w", err)
	}

	return derived.Detail(c, ret), nil
}

// CreateCustomers validates and upserts a batch of customers.
func (s *Service) CreateCustomers(ctx context.Context, customers []models.Customer) (_ int, err error) {
	ctx, span := s.start(ctx, "CreateCustomers", attribute.Int("count", len(customers)))
	defer func() { finish(span, err) }()

	if err := checkBatch(len(customers), "customers"); err != nil {
		return 0, err
	}

	uids := make([]int64, len(customers))
	for i := range customers {
		validation.SanitizeCustomer(&customers[i])
		if err := validation.ValidateCustomer(customers[i]); err != nil {
			return 0, fmt.Errorf("invalid customer at index %d: %w", i, err)
		}
		uids[i] = customers[i].UID
	}

	n, err := s.store.UpsertCustomers(ctx, customers)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert customers: %w", err)
	}

	s.log.Info("customers upserted", "count", n)
	s.events.PublishUpserted(ctx, events.EventCustomersUpserted, uids)
	return n, nil
}

// UpdateCustomer applies a partial update and returns the stored result.
func (s *Service) UpdateCustomer(ctx context.Context, uid int64, req models.UpdateCustomerRequest) (_ models.Customer, err error) {
	ctx, span := s.start(ctx, "UpdateCustomer", attribute.Int64("uid", uid))
	defer func() { finish(span, err) }()

	c, err := s.store.GetCustomer(ctx, uid)
	if err != nil {
		return models.Customer{}, err
	}

	applyUpdate(&c, req)
	validation.SanitizeCustomer(&c)
	if err := validation.ValidateCustomer(c); err != nil {
		return models.Customer{}, err
	}

	if _, err := s.store.UpsertCustomers(ctx, []models.Customer{c}); err != nil {
		return models.Customer{}, fmt.Errorf("failed to update customer: %w", err)
	}

	s.events.PublishUpserted(ctx, events.EventCustomersUpserted, []int64{uid})
	return s.store.GetCustomer(ctx, uid)
}

func applyUpdate(c *models.Customer, req models.UpdateCustomerRequest) {
	if req.RegionGroup != nil {
		c.RegionGroup = *req.RegionGroup
	}
	if req.RegionCity != nil {
		c.RegionCity = *req.RegionCity
	}
	if req.AgeGroup != nil {
		c.AgeGroup = *req.AgeGroup
	}
	if req.Age != nil {
		c.Age = *req.Age
	}
	if req.VisitDays != nil {
		c.VisitDays = *req.VisitDays
	}
	if req.TotalDurationMin != nil {
		c.TotalDurationMin = *req.TotalDurationMin
	}
	if req.AvgDurationMin != nil {
		c.AvgDurationMin = req.AvgDurationMin
	}
	if req.TotalPayment != nil {
		c.TotalPayment = *req.TotalPayment
	}
	if req.Retained90 != nil {
		c.Retained90 = *req.Retained90
	}
}

// DeleteCustomer removes a customer.
func (s *Service) DeleteCustomer(ctx context.Context, uid int64) (err error) {
	ctx, span := s.start(ctx, "DeleteCustomer", attribute.Int64("uid", uid))
	defer func() { finish(span, err) }()

	if err := s.store.DeleteCustomer(ctx, uid); err != nil {
		return err
	}
	s.events.PublishDeleted(ctx, events.EventCustomerDeleted, uid)
	return nil
}

// ExportCustomers writes the filtered customers as an XLSX workbook.
func (s *Service) ExportCustomers(ctx context.Context, f query.Filter, sort query.Sort, w io.Writer) (err error) {
	ctx, span := s.start(ctx, "ExportCustomers")
	defer func() { finish(span, err) }()

	customers, err := s.store.ListCustomers(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to list customers: %w", err)
	}
	sort.SortCustomers(customers)

	return export.WriteCustomers(w, customers)
}

func checkBatch(n int, field string) error {
	if n == 0 {
		return &validation.ValidationError{Field: field, Message: "at least one record is required"}
	}
	if n > MaxBatchSize {
		return &validation.ValidationError{Field: field, Message: fmt.Sprintf("cannot process more than %d records per request", MaxBatchSize)}
	}
	return nil
}
