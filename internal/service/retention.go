package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"customer-analytics-api/internal/analytics"
	"customer-analytics-api/internal/events"
	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/query"
	"customer-analytics-api/internal/validation"
)

// retentionRows returns every retention row or, for a non-empty filter, the
// rows whose customer matches it.
func (s *Service) retentionRows(ctx context.Context, f query.Filter) ([]models.Retention, error) {
	if f.IsEmpty() {
		rows, err := s.store.ListRetention(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list retention: %w", err)
		}
		return rows, nil
	}

	records, err := s.store.ListRetentionRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list retention records: %w", err)
	}
	rows := make([]models.Retention, 0, len(records))
	for _, rec := range records {
		if rec.Customer != nil {
			rows = append(rows, rec.Retention)
		}
	}
	return rows, nil
}

func (s *Service) retentionRecords(ctx context.Context) ([]models.RetentionRecord, error) {
	records, err := s.store.ListRetentionRecords(ctx, query.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list retention records: %w", err)
	}
	return records, nil
}

// RetentionFunnel reports every retention flag.
func (s *Service) RetentionFunnel(ctx context.Context, f query.Filter) (_ models.RetentionFunnel, err error) {
	ctx, span := s.start(ctx, "RetentionFunnel")
	defer func() { finish(span, err) }()

	rows, err := s.retentionRows(ctx, f)
	if err != nil {
		return models.RetentionFunnel{}, err
	}
	return analytics.Funnel(rows), nil
}

// RetentionRate reports a single flag.
func (s *Service) RetentionRate(ctx context.Context, f query.Filter, flag analytics.RetentionFlag) (_ models.RetentionRate, err error) {
	ctx, span := s.start(ctx, "RetentionRate", attribute.String("flag", string(flag)))
	defer func() { finish(span, err) }()

	rows, err := s.retentionRows(ctx, f)
	if err != nil {
		return models.RetentionRate{}, err
	}
	return analytics.Rate(rows, flag), nil
}

// RetentionPattern lists the rows matching every set flag of p.
func (s *Service) RetentionPattern(ctx context.Context, p query.RetentionPattern) (_ models.RetentionListResponse, err error) {
	ctx, span := s.start(ctx, "RetentionPattern")
	defer func() { finish(span, err) }()

	records, err := s.retentionRecords(ctx)
	if err != nil {
		return models.RetentionListResponse{}, err
	}
	return listResponse(analytics.Select(records, p.Matches)), nil
}

// Cohort reports retention per customer group.
func (s *Service) Cohort(ctx context.Context, key analytics.CohortKey) (_ []models.CohortStats, err error) {
	ctx, span := s.start(ctx, "Cohort", attribute.Int("key", int(key)))
	defer func() { finish(span, err) }()

	records, err := s.retentionRecords(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.Cohort(records, key), nil
}

// Churned lists customers retained in June but not July.
func (s *Service) Churned(ctx context.Context) (_ models.RetentionListResponse, err error) {
	ctx, span := s.start(ctx, "Churned")
	defer func() { finish(span, err) }()

	records, err := s.retentionRecords(ctx)
	if err != nil {
		return models.RetentionListResponse{}, err
	}
	return listResponse(analytics.Churned(records)), nil
}

// Returned lists churned customers who came back in August.
func (s *Service) Returned(ctx context.Context) (_ models.RetentionListResponse, err error) {
	ctx, span := s.start(ctx, "Returned")
	defer func() { finish(span, err) }()

	records, err := s.retentionRecords(ctx)
	if err != nil {
		return models.RetentionListResponse{}, err
	}
	return listResponse(analytics.Returned(records)), nil
}

func listResponse(data []models.RetentionCustomer) models.RetentionListResponse {
	return models.RetentionListResponse{Data: data, Count: len(data)}
}

// GetRetention returns one retention row.
func (s *Service) GetRetention(ctx context.Context, uid int64) (_ models.Retention, err error) {
	ctx, span := s.start(ctx, "GetRetention", attribute.Int64("uid", uid))
	defer func() { finish(span, err) }()

	if err := validation.ValidateUID(uid, "uid"); err != nil {
		return models.Retention{}, err
	}
	return s.store.GetRetention(ctx, uid)
}

// UpsertRetention validates and writes a batch of retention rows.
func (s *Service) UpsertRetention(ctx context.Context, rows []models.Retention) (_ int, err error) {
	ctx, span := s.start(ctx, "UpsertRetention", attribute.Int("count", len(rows)))
	defer func() { finish(span, err) }()

	if err := checkBatch(len(rows), "retention"); err != nil {
		return 0, err
	}

	uids := make([]int64, len(rows))
	for i, r := range rows {
		if err := validation.ValidateRetention(r); err != nil {
			return 0, fmt.Errorf("invalid retention at index %d: %w", i, err)
		}
		uids[i] = r.UID
	}

	n, err := s.store.UpsertRetentions(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert retention: %w", err)
	}

	s.log.Info("retention upserted", "count", n)
	s.events.PublishUpserted(ctx, events.EventRetentionUpserted, uids)
	return n, nil
}

// DeleteRetention removes one retention row.
func (s *Service) DeleteRetention(ctx context.Context, uid int64) (err error) {
	ctx, span := s.start(ctx, "DeleteRetention", attribute.Int64("uid", uid))
	defer func() { finish(span, err) }()

	if err := s.store.DeleteRetention(ctx, uid); err != nil {
		return err
	}
	s.events.PublishDeleted(ctx, events.EventRetentionDeleted, uid)
	return nil
}
