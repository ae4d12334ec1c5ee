package tasks

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo stores tasks in the tasks table (see internal/storage).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context, jobID string) (Task, error) {
	const q = `
SELECT job_id, status, data, service, result, created_on, updated_on
FROM tasks
WHERE job_id = $1
`
	t, err := scanTask(r.db.QueryRowContext(ctx, q, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

func (r *PostgresRepo) Save(ctx context.Context, t Task) error {
	if t.JobID == "" {
		return ErrInvalidJobID
	}
	const q = `
INSERT INTO tasks (job_id, status, data, service, result, created_on, updated_on)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (job_id)
DO UPDATE SET status = EXCLUDED.status,
              data = EXCLUDED.data,
              service = EXCLUDED.service,
              result = EXCLUDED.result,
              updated_on = EXCLUDED.updated_on
`
	_, err := r.db.ExecContext(ctx, q,
		t.JobID,
		string(t.Status),
		nullText(t.Data),
		t.Service,
		nullText(t.Result),
		t.CreatedOn,
		t.UpdatedOn,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, status Status, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT job_id, status, data, service, result, created_on, updated_on
FROM tasks
WHERE ($1 = '' OR status = $1)
ORDER BY created_on DESC, job_id
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t      Task
		status string
		data   sql.NullString
		result sql.NullString
	)
	if err := row.Scan(&t.JobID, &status, &data, &t.Service, &result, &t.CreatedOn, &t.UpdatedOn); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	if data.Valid {
		t.Data = []byte(data.String)
	}
	if result.Valid {
		t.Result = []byte(result.String)
	}
	return t, nil
}

func nullText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
