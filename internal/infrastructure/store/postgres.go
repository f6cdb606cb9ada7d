// Package store holds the Postgres persistence of orders, admin tasks and
// payment reconciliations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate applies an idempotent schema.
func Migrate(ctx context.Context, db *sql.DB, schema string) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const OrderSchema = `
	CREATE TABLE IF NOT EXISTS orders (
		id            BIGSERIAL PRIMARY KEY,
		order_no      TEXT NOT NULL UNIQUE,
		user_id       BIGINT NOT NULL,
		bag_id        BIGINT,
		quantity      INTEGER NOT NULL CHECK (quantity > 0),
		total_price   NUMERIC(12,2) NOT NULL,
		status        TEXT NOT NULL,
		pickup_code   TEXT NOT NULL,
		pickup_start  TIMESTAMPTZ,
		pickup_end    TIMESTAMPTZ,
		order_type    TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		paid_at       TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ,
		cancelled_at  TIMESTAMPTZ,
		CHECK ((order_type = 'single') = (bag_id IS NOT NULL))
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id          BIGSERIAL PRIMARY KEY,
		order_id    BIGINT NOT NULL REFERENCES orders(id),
		bag_id      BIGINT NOT NULL,
		bag_name    TEXT NOT NULL,
		quantity    INTEGER NOT NULL CHECK (quantity > 0),
		unit_price  NUMERIC(12,2) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS order_verifications (
		id                BIGSERIAL PRIMARY KEY,
		order_id          BIGINT NOT NULL REFERENCES orders(id),
		merchant_user_id  BIGINT NOT NULL,
		verified_at       TIMESTAMPTZ NOT NULL,
		location          TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_bag ON orders(bag_id);
	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
	CREATE INDEX IF NOT EXISTS idx_order_items_bag ON order_items(bag_id);
`

const AdminTaskSchema = `
	CREATE TABLE IF NOT EXISTS admin_tasks (
		id               BIGSERIAL PRIMARY KEY,
		type             TEXT NOT NULL,
		status           TEXT NOT NULL,
		applicant_id     BIGINT NOT NULL,
		operator_id      BIGINT,
		payload          JSONB NOT NULL,
		comment          TEXT NOT NULL DEFAULT '',
		source_event_id  TEXT NOT NULL UNIQUE,
		started_at       TIMESTAMPTZ,
		ended_at         TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_admin_tasks_status ON admin_tasks(status);
`

const ReconciliationSchema = `
	CREATE TABLE IF NOT EXISTS payment_reconciliations (
		order_id    BIGINT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		status      TEXT NOT NULL,
		attempts    INTEGER NOT NULL DEFAULT 0,
		last_error  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_reconciliations_status ON payment_reconciliations(status);
`

// isUniqueViolation reports a pq unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
