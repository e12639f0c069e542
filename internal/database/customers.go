package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"customer-analytics-api/internal/models"
	"customer-analytics-api/internal/query"
)

const customerColumns = `uid, region_group, region_city, age_group, age, visit_days,
	total_duration_min, avg_duration_min, total_payment, retained_90, created_at, updated_at`

func scanCustomer(s scanner) (models.Customer, error) {
	var c models.Customer
	var avg sql.NullFloat64
	var createdAt, updatedAt string

	err := s.Scan(
		&c.UID,
		&c.RegionGroup,
		&c.RegionCity,
		&c.AgeGroup,
		&c.Age,
		&c.VisitDays,
		&c.TotalDurationMin,
		&avg,
		&c.TotalPayment,
		&c.Retained90,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return models.Customer{}, err
	}

	if avg.Valid {
		v := avg.Float64
		c.AvgDurationMin = &v
	}
	if c.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return models.Customer{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return models.Customer{}, err
	}
	return c, nil
}

func (db *DB) queryCustomers(ctx context.Context, q string, args ...interface{}) ([]models.Customer, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := make([]models.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, nil
}

func whereClause(f query.Filter, prefix string) (string, []interface{}) {
	cond, args := f.Where(prefix)
	if cond == "" {
		return "", nil
	}
	return " WHERE " + cond, args
}

// ListCustomers returns every customer matching f, ordered by uid.
func (db *DB) ListCustomers(ctx context.Context, f query.Filter) ([]models.Customer, error) {
	where, args := whereClause(f, "")
	return db.queryCustomers(ctx, "SELECT "+customerColumns+" FROM customers"+where+" ORDER BY uid", args...)
}

// QueryCustomers returns one sorted page of customers matching f along with
// the total number of matches.
func (db *DB) QueryCustomers(ctx context.Context, f query.Filter, s query.Sort, p query.Page) ([]models.Customer, int, error) {
	where, args := whereClause(f, "")

	var total int
	if err := db.conn.QueryRowContext(ctx, db.rebind("SELECT COUNT(*) FROM customers"+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	pageArgs := append(append([]interface{}{}, args...), p.Limit, p.Offset())
	customers, err := db.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers"+where+" ORDER BY "+s.OrderBy()+" LIMIT ? OFFSET ?",
		pageArgs...,
	)
	if err != nil {
		return nil, 0, err
	}

	return customers, total, nil
}

// GetCustomer returns the customer with uid or ErrNotFound.
func (db *DB) GetCustomer(ctx context.Context, uid int64) (models.Customer, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind("SELECT "+customerColumns+" FROM customers WHERE uid = ?"), uid)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, ErrNotFound
	}
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to get customer %d: %w", uid, err)
	}
	return c, nil
}

// UpsertCustomers inserts or replaces customers in a single transaction.
// An existing retention row takes over the customer's retained_90 value.
func (db *DB) UpsertCustomers(ctx context.Context, customers []models.Customer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(`INSERT INTO customers (
		uid, region_group, region_city, age_group, age, visit_days,
		total_duration_min, avg_duration_min, total_payment, retained_90, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(uid) DO UPDATE SET
		region_group = excluded.region_group,
		region_city = excluded.region_city,
		age_group = excluded.age_group,
		age = excluded.age,
		visit_days = excluded.visit_days,
		total_duration_min = excluded.total_duration_min,
		avg_duration_min = excluded.avg_duration_min,
		total_payment = excluded.total_payment,
		retained_90 = excluded.retained_90,
		updated_at = excluded.updated_at`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	syncStmt, err := tx.PrepareContext(ctx, db.rebind(`UPDATE retention SET retained_90 = ?, updated_at = ? WHERE uid = ?`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare retention sync: %w", err)
	}
	defer syncStmt.Close()

	ts := now()
	inserted := 0
	for _, c := range customers {
		var avg interface{}
		if c.AvgDurationMin != nil {
			avg = *c.AvgDurationMin
		}

		_, err := stmt.ExecContext(ctx,
			c.UID,
			c.RegionGroup,
			c.RegionCity,
			string(c.AgeGroup),
			c.Age,
			c.VisitDays,
			c.TotalDurationMin,
			avg,
			c.TotalPayment,
			c.Retained90,
			formatTime(c.CreatedAt),
			ts,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert customer %d: %w", c.UID, err)
		}

		if _, err := syncStmt.ExecContext(ctx, c.Retained90, ts, c.UID); err != nil {
			return 0, fmt.Errorf("failed to sync retention for %d: %w", c.UID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// DeleteCustomer removes a customer. Its retention row, if any, is kept.
func (db *DB) DeleteCustomer(ctx context.Context, uid int64) error {
	return db.deleteByUID(ctx, "customers", uid)
}

func (db *DB) deleteByUID(ctx context.Context, table string, uid int64) error {
	res, err := db.conn.ExecContext(ctx, db.rebind("DELETE FROM "+table+" WHERE uid = ?"), uid)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
