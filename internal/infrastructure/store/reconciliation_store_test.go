package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/surprisebag/internal/domain/payment"
)

func TestPostgresReconciliationStore_Upsert(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresReconciliationStore(db)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO payment_reconciliations .* ON CONFLICT \\(order_id\\) DO UPDATE").
		WithArgs(int64(10), "cs_1", "pending", "connection refused", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Upsert(context.Background(), 10, "cs_1", "connection refused", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReconciliationStore_ListPending(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresReconciliationStore(db)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM payment_reconciliations\\s+WHERE status = \\$1\\s+ORDER BY updated_at ASC").
		WithArgs("pending", 50).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "session_id", "status", "attempts", "last_error", "created_at", "updated_at"}).
			AddRow(10, "cs_1", "pending", 2, "timeout", at, at).
			AddRow(11, "cs_2", "pending", 0, "", at, at))

	recs, err := s.ListPending(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(10), recs[0].OrderID)
	assert.Equal(t, payment.ReconciliationPending, recs[0].Status)
	assert.Equal(t, 2, recs[0].Attempts)
	assert.Equal(t, "timeout", recs[0].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReconciliationStore_MarkResolved(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresReconciliationStore(db)
	at := time.Now()

	mock.ExpectExec("UPDATE payment_reconciliations SET status = \\$1, attempts = attempts \\+ 1").
		WithArgs("resolved", at, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkResolved(context.Background(), 10, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReconciliationStore_MarkAbandoned(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresReconciliationStore(db)
	at := time.Now()

	mock.ExpectExec("UPDATE payment_reconciliations SET status = \\$1").
		WithArgs("abandoned", "order cancelled", at, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkAbandoned(context.Background(), 10, "order cancelled", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReconciliationStore_MarkAttempt_MissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresReconciliationStore(db)
	at := time.Now()

	mock.ExpectExec("UPDATE payment_reconciliations SET attempts = attempts \\+ 1").
		WithArgs("timeout", at, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkAttempt(context.Background(), 99, "timeout", at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "99")
}
