package storage

import (
	"context"

	"github.com/c360/envmon/errors"
)

// Schema statements are written in the portable subset both dialects accept.
// Timestamps are stored as Unix milliseconds throughout.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		id         TEXT PRIMARY KEY,
		protocol   TEXT NOT NULL,
		room       TEXT NOT NULL,
		department TEXT NOT NULL,
		floor      TEXT NOT NULL,
		building   TEXT NOT NULL,
		active     BOOLEAN NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS samples (
		id           TEXT PRIMARY KEY,
		device_id    TEXT NOT NULL REFERENCES devices(id),
		temperature  DOUBLE PRECISION NOT NULL,
		humidity     DOUBLE PRECISION NOT NULL,
		generated_at BIGINT NOT NULL,
		received_at  BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_samples_device_time ON samples (device_id, generated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_samples_generated ON samples (generated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_protocol_active ON devices (protocol, active)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.WrapFatal(err, "Store", "migrate", "apply schema")
		}
	}
	return nil
}
