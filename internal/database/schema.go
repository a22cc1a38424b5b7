package database

import (
	"context"
	"fmt"
)

// additional_features is json rather than jsonb so the header column order survives a round trip.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dataset_records (
		id BIGSERIAL PRIMARY KEY,
		synthetic_timestamp TIMESTAMPTZ NOT NULL,
		response SMALLINT NOT NULL,
		temperature DOUBLE PRECISION NOT NULL,
		pressure DOUBLE PRECISION NOT NULL,
		humidity DOUBLE PRECISION NOT NULL,
		additional_features JSON NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dataset_records_timestamp_id
		ON dataset_records (synthetic_timestamp, id)`,
	`CREATE TABLE IF NOT EXISTS dataset_generation (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		generation BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO dataset_generation (id, generation) VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING`,
}

// EnsureSchema creates the record store tables when they do not exist.
func EnsureSchema(ctx context.Context, pool DatabasePool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
