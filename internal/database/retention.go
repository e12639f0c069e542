package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/query"
)

const retentionColumns = `uid, retained_june, retained_july, retained_august, retained_90, created_at, updated_at`

func scanRetention(s scanner) (models.Retention, error) {
	var r models.Retention
	var createdAt, updatedAt string

	if err := s.Scan(
		&r.UID,
		&r.RetainedJune,
		&r.RetainedJuly,
		&r.RetainedAugust,
		&r.Retained90,
		&createdAt,
		&updatedAt,
	); err != nil {
		return models.Retention{}, err
	}

	var err error
	if r.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return models.Retention{}, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return models.Retention{}, err
	}
	return r, nil
}

// GetRetention returns the retention row for uid or ErrNotFound.
func (db *DB) GetRetention(ctx context.Context, uid int64) (models.Retention, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind("SELECT "+retentionColumns+" FROM retention WHERE uid = ?"), uid)
	r, err := scanRetention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Retention{}, ErrNotFound
	}
	if err != nil {
		return models.Retention{}, fmt.Errorf("failed to get retention %d: %w", uid, err)
	}
	return r, nil
}

// ListRetention returns every retention row, ordered by uid.
func (db *DB) ListRetention(ctx context.Context) ([]models.Retention, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+retentionColumns+" FROM retention ORDER BY uid")
	if err != nil {
		return nil, fmt.Errorf("failed to query retention: %w", err)
	}
	defer rows.Close()

	out := make([]models.Retention, 0)
	for rows.Next() {
		r, err := scanRetention(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retention: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating retention: %w", err)
	}

	return out, nil
}

// ListRetentionRecords joins retention rows to their customers.
//
// With an empty filter this is a left join and orphaned retention rows come
// back with a nil Customer. A non-empty filter constrains customer columns,
// so orphans cannot match and are dropped.
func (db *DB) ListRetentionRecords(ctx context.Context, f query.Filter) ([]models.RetentionRecord, error) {
	join := "LEFT JOIN"
	where, args := whereClause(f, "c.")
	if where != "" {
		join = "JOIN"
	}

	q := `SELECT r.uid, r.retained_june, r.retained_july, r.retained_august, r.retained_90, r.created_at, r.updated_at,
		c.uid, c.region_group, c.region_city, c.age_group, c.age, c.visit_days,
		c.total_duration_min, c.avg_duration_min, c.total_payment, c.retained_90, c.created_at, c.updated_at
		FROM retention r ` + join + ` customers c ON c.uid = r.uid` + where + ` ORDER BY r.uid`

	rows, err := db.conn.QueryContext(ctx, db.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query retention records: %w", err)
	}
	defer rows.Close()

	out := make([]models.RetentionRecord, 0)
	for rows.Next() {
		rec, err := scanRetentionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retention record: %w", err)
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating retention records: %w", err)
	}

	return out, nil
}

func scanRetentionRecord(s scanner) (models.RetentionRecord, error) {
	var (
		r                      models.Retention
		rCreated, rUpdated     string
		uid                    sql.NullInt64
		region, city, ageGroup sql.NullString
		age, visits            sql.NullInt64
		duration, avg, payment sql.NullFloat64
		retained               sql.NullBool
		cCreated, cUpdated     sql.NullString
	)

	err := s.Scan(
		&r.UID, &r.RetainedJune, &r.RetainedJuly, &r.RetainedAugust, &r.Retained90, &rCreated, &rUpdated,
		&uid, &region, &city, &ageGroup, &age, &visits, &duration, &avg, &payment, &retained, &cCreated, &cUpdated,
	)
	if err != nil {
		return models.RetentionRecord{}, err
	}

	if r.CreatedAt, err = parseTime(rCreated, "created_at"); err != nil {
		return models.RetentionRecord{}, err
	}
	if r.UpdatedAt, err = parseTime(rUpdated, "updated_at"); err != nil {
		return models.RetentionRecord{}, err
	}

	rec := models.RetentionRecord{Retention: r}
	if !uid.Valid {
		return rec, nil
	}

	c := &models.Customer{
		UID:              uid.Int64,
		RegionGroup:      region.String,
		RegionCity:       city.String,
		AgeGroup:         models.AgeGroup(ageGroup.String),
		Age:              int(age.Int64),
		VisitDays:        int(visits.Int64),
		TotalDurationMin: duration.Float64,
		TotalPayment:     payment.Float64,
		Retained90:       retained.Bool,
	}
	if avg.Valid {
		v := avg.Float64
		c.AvgDurationMin = &v
	}
	if c.CreatedAt, err = parseTime(cCreated.String, "created_at"); err != nil {
		return models.RetentionRecord{}, err
	}
	if c.UpdatedAt, err = parseTime(cUpdated.String, "updated_at"); err != nil {
		return models.RetentionRecord{}, err
	}
	rec.Customer = c
	return rec, nil
}

// UpsertRetentions inserts or replaces retention rows in a single transaction
// and copies each row's retained_90 onto its customer.
func (db *DB) UpsertRetentions(ctx context.Context, rows []models.Retention) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(`INSERT INTO retention (
		uid, retained_june, retained_july, retained_august, retained_90, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(uid) DO UPDATE SET
		retained_june = excluded.retained_june,
		retained_july = excluded.retained_july,
		retained_august = excluded.retained_august,
		retained_90 = excluded.retained_90,
		updated_at = excluded.updated_at`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	syncStmt, err := tx.PrepareContext(ctx, db.rebind(`UPDATE customers SET retained_90 = ?, updated_at = ? WHERE uid = ?`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare customer sync: %w", err)
	}
	defer syncStmt.Close()

	ts := now()
	inserted := 0
	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.UID,
			r.RetainedJune,
			r.RetainedJuly,
			r.RetainedAugust,
			r.Retained90,
			formatTime(r.CreatedAt),
			ts,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert retention %d: %w", r.UID, err)
		}

		if _, err := syncStmt.ExecContext(ctx, r.Retained90, ts, r.UID); err != nil {
			return 0, fmt.Errorf("failed to sync customer for %d: %w", r.UID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// DeleteRetention removes the retention row for uid.
func (db *DB) DeleteRetention(ctx context.Context, uid int64) error {
	return db.deleteByUID(ctx, "retention", uid)
}
