package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists registries and calls (see internal/storage for DDL).
// Timestamps are stored in TIMESTAMP WITHOUT TIME ZONE columns.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) InsertRegistry(ctx context.Context, reg Registry) (Registry, error) {
	const q = `
INSERT INTO registries (type, timestamp, call_id, source, destination)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`
	if err := r.db.QueryRowContext(ctx, q,
		string(reg.Type),
		reg.Timestamp,
		reg.CallID,
		nullString(reg.Source),
		nullString(reg.Destination),
	).Scan(&reg.ID); err != nil {
		return Registry{}, err
	}
	return reg, nil
}

func (r *PostgresRepo) GetRegistry(ctx context.Context, id int64) (Registry, error) {
	const q = `
SELECT id, type, timestamp, call_id, source, destination
FROM registries
WHERE id = $1
`
	var (
		reg         Registry
		typ         string
		source      sql.NullString
		destination sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&reg.ID,
		&typ,
		&reg.Timestamp,
		&reg.CallID,
		&source,
		&destination,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registry{}, ErrNotFound
		}
		return Registry{}, err
	}
	reg.Type = EventType(typ)
	reg.Source = source.String
	reg.Destination = destination.String
	return reg, nil
}

func (r *PostgresRepo) UpsertCall(ctx context.Context, c Call) (Call, error) {
	// Single statement: concurrent start/stop writers for one call_id merge
	// instead of overwriting each other.
	const q = `
INSERT INTO calls (call_id, start_timestamp, stop_timestamp, source, destination)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (call_id)
DO UPDATE SET start_timestamp = COALESCE(EXCLUDED.start_timestamp, calls.start_timestamp),
              stop_timestamp  = COALESCE(EXCLUDED.stop_timestamp, calls.stop_timestamp),
              source          = COALESCE(EXCLUDED.source, calls.source),
              destination     = COALESCE(EXCLUDED.destination, calls.destination)
RETURNING call_id, start_timestamp, stop_timestamp, source, destination
`
	return scanCall(r.db.QueryRowContext(ctx, q,
		c.CallID,
		nullTime(c.StartTimestamp),
		nullTime(c.StopTimestamp),
		nullString(c.Source),
		nullString(c.Destination),
	))
}

func (r *PostgresRepo) GetCall(ctx context.Context, callID int64) (Call, error) {
	const q = `
SELECT call_id, start_timestamp, stop_timestamp, source, destination
FROM calls
WHERE call_id = $1
`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListConsolidatedCalls(ctx context.Context) ([]Call, error) {
	const q = `
SELECT call_id, start_timestamp, stop_timestamp, source, destination
FROM calls
WHERE start_timestamp IS NOT NULL AND stop_timestamp IS NOT NULL
ORDER BY call_id
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c           Call
		start, stop sql.NullTime
		source      sql.NullString
		destination sql.NullString
	)
	if err := row.Scan(&c.CallID, &start, &stop, &source, &destination); err != nil {
		return Call{}, err
	}
	if start.Valid {
		t := start.Time
		c.StartTimestamp = &t
	}
	if stop.Valid {
		t := stop.Time
		c.StopTimestamp = &t
	}
	c.Source = source.String
	c.Destination = destination.String
	return c, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
