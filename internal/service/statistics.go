package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"customer-analytics-api/internal/analytics"
	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/query"
)

func (s *Service) customers(ctx context.Context, f query.Filter) ([]models.Customer, error) {
	customers, err := s.store.ListCustomers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

// OverallStats summarises the filtered customers or returns analytics.ErrNoData.
func (s *Service) OverallStats(ctx context.Context, f query.Filter) (_ models.OverallStats, err error) {
	ctx, span := s.start(ctx, "OverallStats")
	defer func() { finish(span, err) }()

	customers, err := s.customers(ctx, f)
	if err != nil {
		return models.OverallStats{}, err
	}
	return analytics.Overall(customers)
}

// GroupedStats rolls the filtered customers up by key.
func (s *Service) GroupedStats(ctx context.Context, f query.Filter, key analytics.GroupKey) (_ []models.GroupStats, err error) {
	ctx, span := s.start(ctx, "GroupedStats", attribute.String("key", string(key)))
	defer func() { finish(span, err) }()

	customers, err := s.customers(ctx, f)
	if err != nil {
		return nil, err
	}
	return analytics.GroupBy(customers, key), nil
}

// CrossTab builds the region by age group heatmap.
func (s *Service) CrossTab(ctx context.Context, f query.Filter) (_ []models.CrossTabCell, err error) {
	ctx, span := s.start(ctx, "CrossTab")
	defer func() { finish(span, err) }()

	customers, err := s.customers(ctx, f)
	if err != nil {
		return nil, err
	}
	return analytics.CrossTab(customers), nil
}

// CustomerDistribution reports each region's share of customers.
func (s *Service) CustomerDistribution(ctx context.Context, f query.Filter) (_ models.DistributionResponse, err error) {
	ctx, span := s.start(ctx, "CustomerDistribution")
	defer func() { finish(span, err) }()

	customers, err := s.customers(ctx, f)
	if err != nil {
		return models.DistributionResponse{}, err
	}
	return analytics.Distribution(customers), nil
}

// GradeDistribution counts customers per grade.
func (s *Service) GradeDistribution(ctx context.Context, f query.Filter) (_ []models.GradeCount, err error) {
	ctx, span := s.start(ctx, "GradeDistribution")
	defer func() { finish(span, err) }()

	customers, err := s.customers(ctx, f)
	if err != nil {
		return nil, err
	}
	return analytics.GradeDistribution(customers), nil
}

// Histogram buckets the filtered customers. Nil boundaries select the field's defaults.
func (s *Service) Histogram(ctx context.Context, f query.Filter, field analytics.HistogramField, boundaries []float64) (_ []models.HistogramBucket, err error) {
	ctx, span := s.start(ctx, "Histogram", attribute.String("field", string(field)))
	defer func() { finish(span, err) }()

	if boundaries == nil {
		boundaries = analytics.DefaultBoundaries(field)
	}
	if err := analytics.ValidateBoundaries(boundaries); err != nil {
		return nil, err
	}

	customers, err := s.customers(ctx, f)
	if err != nil {
		return nil, err
	}
	return analytics.Histogram(customers, field, boundaries)
}

// Trend reports revenue by week or by visit-day count.
func (s *Service) Trend(ctx context.Context, f query.Filter, kind analytics.TrendKind) (_ []models.TrendPoint, err error) {
	ctx, span := s.start(ctx, "Trend", attribute.String("kind", string(kind)))
	defer func() { finish(span, err) }()

	customers, err := s.customers(ctx, f)
	if err != nil {
		return nil, err
	}
	return analytics.Trend(customers, kind), nil
}
