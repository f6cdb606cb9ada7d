package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/domain/order"
)

var ErrDuplicateOrderNo = apperr.New(apperr.KindInternal, "duplicate_order_no", "Order number already exists")

const orderColumns = `o.id, o.order_no, o.user_id, o.bag_id, o.quantity, o.total_price, o.status,
	o.pickup_code, o.pickup_start, o.pickup_end, o.order_type, o.created_at,
	o.paid_at, o.completed_at, o.cancelled_at`

// PostgresOrderStore stores orders in PostgreSQL
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*order.Order, error) {
	var (
		o                                order.Order
		bagID                            sql.NullInt64
		status, orderType                string
		pickupStart, pickupEnd           sql.NullTime
		paidAt, completedAt, cancelledAt sql.NullTime
	)
	err := r.Scan(&o.ID, &o.OrderNo, &o.UserID, &bagID, &o.Quantity, &o.TotalPrice, &status,
		&o.PickupCode, &pickupStart, &pickupEnd, &orderType, &o.CreatedAt,
		&paidAt, &completedAt, &cancelledAt)
	if err != nil {
		return nil, err
	}
	if bagID.Valid {
		id := bagID.Int64
		o.BagID = &id
	}
	o.Status = order.Status(status)
	o.Type = order.Type(orderType)
	o.PickupStart = timePtr(pickupStart)
	o.PickupEnd = timePtr(pickupEnd)
	o.PaidAt = timePtr(paidAt)
	o.CompletedAt = timePtr(completedAt)
	o.CancelledAt = timePtr(cancelledAt)
	return &o, nil
}

// Create inserts the order and its items in one transaction.
func (s *PostgresOrderStore) Create(ctx context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var bagID sql.NullInt64
	if o.BagID != nil {
		bagID = sql.NullInt64{Int64: *o.BagID, Valid: true}
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (order_no, user_id, bag_id, quantity, total_price, status, pickup_code,
			pickup_start, pickup_end, order_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		o.OrderNo, o.UserID, bagID, o.Quantity, o.TotalPrice, string(o.Status), o.PickupCode,
		nullTime(o.PickupStart), nullTime(o.PickupEnd), string(o.Type), o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderNo, o.OrderNo)
		}
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, bag_id, bag_name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			o.ID, it.BagID, it.BagName, it.Quantity, it.UnitPrice,
		).Scan(&it.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresOrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if o.Type == order.TypeCart {
		items, err := s.items(ctx, []int64{o.ID})
		if err != nil {
			return nil, err
		}
		o.Items = items[o.ID]
	}
	return o, nil
}

func (s *PostgresOrderStore) items(ctx context.Context, orderIDs []int64) (map[int64][]order.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, bag_id, bag_name, quantity, unit_price
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY id ASC`,
		pq.Array(orderIDs),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]order.OrderItem)
	for rows.Next() {
		var it order.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.BagID, &it.BagName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// scopePredicate builds the visibility clause of one role scope. Each scope
// has its own predicate.
func scopePredicate(f order.ListFilter, args []any) (string, []any, error) {
	switch f.Scope {
	case order.ScopeAll:
		return "TRUE", args, nil
	case order.ScopeBuyer:
		args = append(args, f.UserID)
		return fmt.Sprintf("o.user_id = $%d", len(args)), args, nil
	case order.ScopeMerchant:
		args = append(args, pq.Array(f.BagIDs))
		n := len(args)
		return fmt.Sprintf(`(o.bag_id = ANY($%d) OR EXISTS (
			SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.bag_id = ANY($%d)))`, n, n), args, nil
	default:
		return "", nil, fmt.Errorf("unknown list scope %d", f.Scope)
	}
}

func (s *PostgresOrderStore) List(ctx context.Context, f order.ListFilter) ([]*order.Order, int, error) {
	where, args, err := scopePredicate(f, nil)
	if err != nil {
		return nil, 0, err
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += fmt.Sprintf(" AND o.status = $%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders o WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders o WHERE %s ORDER BY o.id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		orders  []*order.Order
		cartIDs []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		if o.Type == order.TypeCart {
			cartIDs = append(cartIDs, o.ID)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(cartIDs) > 0 {
		items, err := s.items(ctx, cartIDs)
		if err != nil {
			return nil, 0, err
		}
		for _, o := range orders {
			if o.Type == order.TypeCart {
				o.Items = items[o.ID]
			}
		}
	}
	return orders, total, nil
}

func stampColumn(status order.Status) string {
	switch status {
	case order.StatusPaid:
		return "paid_at"
	case order.StatusCompleted:
		return "completed_at"
	case order.StatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}

func statusStrings(in []order.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// TransitionStatus sets status to `to` only while it is one of `from`.
func (s *PostgresOrderStore) TransitionStatus(ctx context.Context, id int64, from []order.Status, to order.Status, at time.Time) (bool, error) {
	set := "status = $1"
	args := []any{string(to), id, pq.Array(statusStrings(from))}
	if col := stampColumn(to); col != "" {
		args = append(args, at)
		set += ", " + col + " = $4"
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET `+set+` WHERE id = $2 AND status = ANY($3)`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteWithVerification moves a paid order to completed and records the
// verification in the same transaction.
func (s *PostgresOrderStore) CompleteWithVerification(ctx context.Context, v *order.OrderVerification) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`,
		string(order.StatusCompleted), v.VerifiedAt, v.OrderID, string(order.StatusPaid),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n != 1 {
		return false, nil
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO order_verifications (order_id, merchant_user_id, verified_at, location)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		v.OrderID, v.MerchantUserID, v.VerifiedAt, v.Location,
	).Scan(&v.ID)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresOrderStore) Verifications(ctx context.Context, orderID int64) ([]order.OrderVerification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, merchant_user_id, verified_at, location
		 FROM order_verifications
		 WHERE order_id = $1
		 ORDER BY verified_at ASC`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.OrderVerification
	for rows.Next() {
		var v order.OrderVerification
		if err := rows.Scan(&v.ID, &v.OrderID, &v.MerchantUserID, &v.VerifiedAt, &v.Location); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
