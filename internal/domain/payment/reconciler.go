package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/apperr"
)

const (
	DefaultMaxAttempts = 10
	reconcileBatch     = 50
)

// Reconciler retries queued order updates for captured payments.
type Reconciler struct {
	store       ReconciliationStore
	orders      Orders
	maxAttempts int
	log         *zap.Logger
	now         func() time.Time
}

func NewReconciler(store ReconciliationStore, orders Orders, maxAttempts int, log *zap.Logger) *Reconciler {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Reconciler{
		store:       store,
		orders:      orders,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// Run reconciles on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	r.log.Info("Reconciler started", zap.Duration("interval", interval), zap.Int("max_attempts", r.maxAttempts))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("Reconciliation pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.log.Info("Reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch of pending rows and returns how many were
// resolved.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.store.ListPending(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		if r.retry(ctx, rec) {
			resolved++
		}
	}
	return resolved, nil
}

func (r *Reconciler) retry(ctx context.Context, rec Reconciliation) bool {
	log := r.log.With(zap.Int64("order_id", rec.OrderID), zap.String("session_id", rec.SessionID))
	now := r.now()

	err := r.orders.MarkPaid(ctx, rec.OrderID)
	if err == nil {
		if err := r.store.MarkResolved(ctx, rec.OrderID, now); err != nil {
			log.Error("Failed to mark reconciliation resolved", zap.Error(err))
			return false
		}
		log.Info("Reconciliation resolved", zap.Int("attempts", rec.Attempts+1))
		return true
	}

	attempts := rec.Attempts + 1
	// An order that can no longer become paid will not recover by retrying.
	if attempts >= r.maxAttempts || apperr.Is(err, apperr.KindInvalidState) || apperr.Is(err, apperr.KindNotFound) {
		log.Error("Reconciliation abandoned, manual refund or repair required",
			zap.Bool("reconciliation_gap", true),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		if err := r.store.MarkAbandoned(ctx, rec.OrderID, err.Error(), now); err != nil {
			log.Error("Failed to mark reconciliation abandoned", zap.Error(err))
		}
		return false
	}

	log.Warn("Reconciliation attempt failed", zap.Int("attempts", attempts), zap.Error(err))
	if err := r.store.MarkAttempt(ctx, rec.OrderID, err.Error(), now); err != nil {
		log.Error("Failed to record reconciliation attempt", zap.Error(err))
	}
	return false
}
