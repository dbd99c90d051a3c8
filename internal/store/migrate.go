// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one forward-only, idempotent schema step.
type migration struct {
	version int
	stmt    string
}

// migrations is the ordered schema history. Never edit an applied entry;
// append a new one instead (spec.md §4.4's four fixed tables plus their
// indexes).
var migrations = []migration{
	{1, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`},
	{2, `CREATE TABLE IF NOT EXISTS plc_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp_ms INTEGER NOT NULL,
		tag TEXT NOT NULL,
		value REAL NOT NULL,
		flag INTEGER NOT NULL,
		ring_number_at_capture INTEGER
	)`},
	{3, `CREATE INDEX IF NOT EXISTS idx_plc_samples_timestamp ON plc_samples (timestamp_ms)`},
	{4, `CREATE INDEX IF NOT EXISTS idx_plc_samples_tag_timestamp ON plc_samples (tag, timestamp_ms)`},
	{5, `CREATE TABLE IF NOT EXISTS attitude_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp_ms INTEGER NOT NULL,
		tag TEXT NOT NULL,
		value REAL NOT NULL,
		flag INTEGER NOT NULL,
		ring_number_at_capture INTEGER
	)`},
	{6, `CREATE INDEX IF NOT EXISTS idx_attitude_samples_timestamp ON attitude_samples (timestamp_ms)`},
	{7, `CREATE TABLE IF NOT EXISTS monitoring_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp_ms INTEGER NOT NULL,
		tag TEXT NOT NULL,
		value REAL NOT NULL,
		flag INTEGER NOT NULL,
		ring_number_at_capture INTEGER
	)`},
	{8, `CREATE INDEX IF NOT EXISTS idx_monitoring_samples_timestamp ON monitoring_samples (timestamp_ms)`},
	{9, `CREATE TABLE IF NOT EXISTS ring_summaries (
		ring_number INTEGER PRIMARY KEY,
		start_ts INTEGER NOT NULL,
		end_ts INTEGER NOT NULL,
		thrust_mean REAL, thrust_max REAL, thrust_min REAL, thrust_std REAL, thrust_n INTEGER,
		torque_mean REAL, torque_max REAL, torque_min REAL, torque_std REAL, torque_n INTEGER,
		chamber_press_mean REAL, chamber_press_max REAL, chamber_press_min REAL, chamber_press_std REAL, chamber_press_n INTEGER,
		advance_rate_mean REAL, advance_rate_max REAL, advance_rate_min REAL, advance_rate_std REAL, advance_rate_n INTEGER,
		grout_pressure_mean REAL, grout_pressure_max REAL, grout_pressure_min REAL, grout_pressure_std REAL, grout_pressure_n INTEGER,
		grout_volume_mean REAL, grout_volume_max REAL, grout_volume_min REAL, grout_volume_std REAL, grout_volume_n INTEGER,
		mean_pitch REAL, mean_roll REAL, mean_yaw REAL, max_h_devi REAL, max_v_devi REAL,
		settlement_value REAL, displacement_value REAL,
		specific_energy REAL, ground_loss_rate REAL, volume_loss_ratio REAL,
		geo_zone TEXT,
		completeness TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		write_ts TEXT NOT NULL,
		synced_to_cloud INTEGER NOT NULL DEFAULT 0
	)`},
	{10, `CREATE INDEX IF NOT EXISTS idx_ring_summaries_ring_number ON ring_summaries (ring_number)`},
}

// migrate applies every migration in order inside its own transaction,
// recording the version in schema_migrations so a restart never re-applies
// a completed step. Idempotent: CREATE ... IF NOT EXISTS plus the
// schema_migrations ledger make re-running the whole list on an
// already-migrated file a no-op.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migrations[0].stmt); err != nil {
		return fmt.Errorf("bootstrap schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
