package storage

import (
	"context"
	"database/sql"
	"fmt"

	"telephone-billing/pkg/utils"
)

// Registry and call timestamps are wall clocks as received, hence TIMESTAMP
// without time zone.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS registries (
  id          BIGSERIAL PRIMARY KEY,
  type        VARCHAR(5) NOT NULL CHECK (type IN ('start', 'stop')),
  timestamp   TIMESTAMP NOT NULL,
  call_id     BIGINT NOT NULL,
  source      VARCHAR(12),
  destination VARCHAR(12)
)`,
	`CREATE TABLE IF NOT EXISTS calls (
  call_id         BIGINT PRIMARY KEY,
  start_timestamp TIMESTAMP,
  stop_timestamp  TIMESTAMP,
  source          VARCHAR(12),
  destination     VARCHAR(12)
)`,
	`CREATE TABLE IF NOT EXISTS bills (
  id               BIGSERIAL PRIMARY KEY,
  source_call_url  TEXT NOT NULL UNIQUE,
  subscriber       VARCHAR(12) NOT NULL,
  destination      VARCHAR(12) NOT NULL,
  start_timestamp  TIMESTAMP NOT NULL,
  stop_timestamp   TIMESTAMP NOT NULL,
  call_duration_us BIGINT NOT NULL,
  call_price_minor BIGINT NOT NULL CHECK (call_price_minor >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
  job_id     TEXT PRIMARY KEY,
  status     VARCHAR(8) NOT NULL,
  data       TEXT,
  service    TEXT NOT NULL,
  result     TEXT,
  created_on TIMESTAMPTZ NOT NULL,
  updated_on TIMESTAMPTZ NOT NULL
)`,
}

// Migrate creates the tables if they do not exist. It is safe to run on
// every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	return utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("storage: migration %d: %w", i, err)
			}
		}
		return nil
	})
}
