package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/surprisebag/internal/domain/payment"
)

// PostgresReconciliationStore is the payment reconciliation outbox.
type PostgresReconciliationStore struct {
	db *sql.DB
}

func NewPostgresReconciliationStore(db *sql.DB) *PostgresReconciliationStore {
	return &PostgresReconciliationStore{db: db}
}

// Upsert queues the order, resetting attempts when a closed row is reopened.
func (s *PostgresReconciliationStore) Upsert(ctx context.Context, orderID int64, sessionID, lastError string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_reconciliations (order_id, session_id, status, attempts, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $5, $5)
		 ON CONFLICT (order_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at,
			attempts = CASE WHEN payment_reconciliations.status = $3 THEN payment_reconciliations.attempts ELSE 0 END,
			status = $3`,
		orderID, sessionID, string(payment.ReconciliationPending), lastError, at,
	)
	return err
}

func (s *PostgresReconciliationStore) ListPending(ctx context.Context, limit int) ([]payment.Reconciliation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, session_id, status, attempts, last_error, created_at, updated_at
		 FROM payment_reconciliations
		 WHERE status = $1
		 ORDER BY updated_at ASC
		 LIMIT $2`,
		string(payment.ReconciliationPending), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payment.Reconciliation
	for rows.Next() {
		var (
			r      payment.Reconciliation
			status string
		)
		if err := rows.Scan(&r.OrderID, &r.SessionID, &status, &r.Attempts, &r.LastError, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Status = payment.ReconciliationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresReconciliationStore) MarkAttempt(ctx context.Context, orderID int64, lastError string, at time.Time) error {
	return s.exec(ctx,
		`UPDATE payment_reconciliations SET attempts = attempts + 1, last_error = $1, updated_at = $2
		 WHERE order_id = $3`,
		lastError, at, orderID)
}

func (s *PostgresReconciliationStore) MarkResolved(ctx context.Context, orderID int64, at time.Time) error {
	return s.exec(ctx,
		`UPDATE payment_reconciliations SET status = $1, attempts = attempts + 1, updated_at = $2
		 WHERE order_id = $3`,
		string(payment.ReconciliationResolved), at, orderID)
}

func (s *PostgresReconciliationStore) MarkAbandoned(ctx context.Context, orderID int64, lastError string, at time.Time) error {
	return s.exec(ctx,
		`UPDATE payment_reconciliations SET status = $1, attempts = attempts + 1, last_error = $2, updated_at = $3
		 WHERE order_id = $4`,
		string(payment.ReconciliationAbandoned), lastError, at, orderID)
}

func (s *PostgresReconciliationStore) exec(ctx context.Context, query string, args ...any) error {
	ok, err := affectedOne(s.db.ExecContext(ctx, query, args...))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reconciliation for order %v not found", args[len(args)-1])
	}
	return nil
}
