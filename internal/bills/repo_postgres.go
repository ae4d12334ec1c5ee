package bills

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists bills. call_duration_us holds microseconds.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) InsertBill(ctx context.Context, b Bill) (Bill, bool, error) {
	const q = `
INSERT INTO bills (
  source_call_url, subscriber, destination, start_timestamp, stop_timestamp, call_duration_us, call_price_minor
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (source_call_url) DO NOTHING
RETURNING id
`
	err := r.db.QueryRowContext(ctx, q,
		b.SourceCallURL,
		b.Subscriber,
		b.Destination,
		b.StartTimestamp,
		b.StopTimestamp,
		b.CallDuration.Microseconds(),
		b.CallPriceMinor,
	).Scan(&b.ID)
	if err == nil {
		return b, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Bill{}, false, err
	}

	existing, err := r.getBySource(ctx, b.SourceCallURL)
	if err != nil {
		return Bill{}, false, err
	}
	return existing, false, nil
}

func (r *PostgresRepo) getBySource(ctx context.Context, sourceCallURL string) (Bill, error) {
	const q = `
SELECT id, source_call_url, subscriber, destination, start_timestamp, stop_timestamp, call_duration_us, call_price_minor
FROM bills
WHERE source_call_url = $1
`
	return scanBill(r.db.QueryRowContext(ctx, q, sourceCallURL))
}

func (r *PostgresRepo) ListBySubscriber(ctx context.Context, subscriber string, from, to time.Time) ([]Bill, error) {
	const q = `
SELECT id, source_call_url, subscriber, destination, start_timestamp, stop_timestamp, call_duration_us, call_price_minor
FROM bills
WHERE subscriber = $1 AND stop_timestamp >= $2 AND stop_timestamp < $3
ORDER BY start_timestamp, id
`
	rows, err := r.db.QueryContext(ctx, q, subscriber, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (Bill, error) {
	var (
		b  Bill
		us int64
	)
	if err := row.Scan(
		&b.ID,
		&b.SourceCallURL,
		&b.Subscriber,
		&b.Destination,
		&b.StartTimestamp,
		&b.StopTimestamp,
		&us,
		&b.CallPriceMinor,
	); err != nil {
		return Bill{}, err
	}
	b.CallDuration = time.Duration(us) * time.Microsecond
	return b, nil
}
