package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/surprisebag/internal/domain/admintask"
)

const taskColumns = `id, type, status, applicant_id, operator_id, payload, comment,
	source_event_id, started_at, ended_at, created_at`

// PostgresAdminTaskStore stores review tasks in PostgreSQL
type PostgresAdminTaskStore struct {
	db *sql.DB
}

func NewPostgresAdminTaskStore(db *sql.DB) *PostgresAdminTaskStore {
	return &PostgresAdminTaskStore{db: db}
}

func scanTask(r rowScanner) (*admintask.Task, error) {
	var (
		t                  admintask.Task
		typ, status        string
		operatorID         sql.NullInt64
		payload            []byte
		startedAt, endedAt sql.NullTime
	)
	err := r.Scan(&t.ID, &typ, &status, &t.ApplicantID, &operatorID, &payload, &t.Comment,
		&t.SourceEventID, &startedAt, &endedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = admintask.Type(typ)
	t.Status = admintask.Status(status)
	if operatorID.Valid {
		id := operatorID.Int64
		t.OperatorID = &id
	}
	t.Payload = payload
	t.StartedAt = timePtr(startedAt)
	t.EndedAt = timePtr(endedAt)
	return &t, nil
}

// Insert creates the task unless one already exists for its source event.
func (s *PostgresAdminTaskStore) Insert(ctx context.Context, t *admintask.Task) (bool, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO admin_tasks (type, status, applicant_id, payload, source_event_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (source_event_id) DO NOTHING
		 RETURNING id`,
		string(t.Type), string(t.Status), t.ApplicantID, []byte(t.Payload), t.SourceEventID, t.CreatedAt,
	).Scan(&t.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresAdminTaskStore) Get(ctx context.Context, id int64) (*admintask.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM admin_tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, admintask.ErrTaskNotFound
	}
	return t, err
}

func (s *PostgresAdminTaskStore) List(ctx context.Context, f admintask.ListFilter) ([]*admintask.Task, int, error) {
	where := "TRUE"
	var args []any
	if f.Status != "" {
		where = "status = $1"
		args = append(args, string(f.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_tasks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM admin_tasks WHERE %s ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d`,
		taskColumns, where, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []*admintask.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	return tasks, total, rows.Err()
}

// Claim moves a pending task to processing for operatorID.
func (s *PostgresAdminTaskStore) Claim(ctx context.Context, id, operatorID int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE admin_tasks SET status = $1, operator_id = $2, started_at = $3
		 WHERE id = $4 AND status = $5`,
		string(admintask.StatusProcessing), operatorID, at, id, string(admintask.StatusPending),
	)
	return affectedOne(res, err)
}

// Resolve closes a processing task held by operatorID.
func (s *PostgresAdminTaskStore) Resolve(ctx context.Context, id, operatorID int64, to admintask.Status, comment string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE admin_tasks SET status = $1, comment = $2, ended_at = $3
		 WHERE id = $4 AND status = $5 AND operator_id = $6`,
		string(to), comment, at, id, string(admintask.StatusProcessing), operatorID,
	)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
