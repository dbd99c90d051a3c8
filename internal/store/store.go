// SPDX-License-Identifier: GPL-3.0-or-later

// Package store is the local embedded database (spec.md §4.4): a
// single-file SQLite database in WAL mode holding the three raw sample
// tables and the ring summary table. Sample batches are written by the
// buffer writer and by manual submission through the query API, ring
// summaries by the ring aligner; every write transaction runs under the
// Store's write mutex, one at a time. Reads (the query API, the aligner's
// window read) run concurrently on the pool's other connections.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tbmedge/edgecore/internal/ringsummary"
	"github.com/tbmedge/edgecore/internal/sample"
)

// Store is the local database handle.
type Store struct {
	db *sql.DB

	// writeMu serializes all write transactions across every table, per
	// spec.md §4.4's "a single writer at a time". database/sql pools
	// connections on its own; this mutex is what actually enforces the
	// one-transaction-at-a-time rule on top of that pool.
	writeMu sync.Mutex
}

// Open opens (creating if necessary) the SQLite file at path, sets WAL
// journaling and NORMAL synchronous mode, and runs pending migrations. A
// corrupt or unreadable file aborts with a wrapped error rather than
// attempting any repair (spec.md §8 "corrupt db file" scenario).
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// The write path is single-threaded by writeMu; readers don't need a
	// large pool but do need more than one connection so the aligner's
	// window read doesn't queue behind the query API.
	db.SetMaxOpenConns(8)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: %s is not a readable database: %w", path, err)
	}

	s := &Store{db: db}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// tableName maps a sample.Table to its backing SQL table name. All three
// raw tables share a name (they already are the sample.Table constants).
func tableName(table sample.Table) string {
	return string(table)
}

// WriteBatch implements buffer.StoreWriter: it inserts every row in rows
// into table's backing SQL table inside one transaction (spec.md §4.3,
// §4.4), retrying transient failures through [WithRetry]. Each attempt
// either commits the whole batch or rolls back with nothing committed;
// the buffer writer's retry-then-poison handling sits on top of this.
func (s *Store) WriteBatch(ctx context.Context, table sample.Table, rows []sample.Row) error {
	if len(rows) == 0 {
		return nil
	}

	return WithRetry(ctx, func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (timestamp_ms, tag, value, flag, ring_number_at_capture) VALUES (?, ?, ?, ?, ?)`,
			tableName(table)))
		if err != nil {
			return fmt.Errorf("store: prepare insert into %s: %w", table, err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.TimestampMS, row.Tag, row.Value, uint8(row.Flag), row.RingNumberAtCapture); err != nil {
				return fmt.Errorf("store: insert into %s: %w", table, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit %s: %w", table, err)
		}
		return nil
	})
}

// QueryRange returns every row in table with timestamp_ms in [startMS,
// endMS), ordered by timestamp. Used by the ring aligner's window read;
// the query API's include_raw_counts path uses CountRange instead.
func (s *Store) QueryRange(ctx context.Context, table sample.Table, startMS, endMS int64) ([]sample.Row, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT timestamp_ms, tag, value, flag, ring_number_at_capture FROM %s WHERE timestamp_ms >= ? AND timestamp_ms < ? ORDER BY timestamp_ms`,
		tableName(table)), startMS, endMS)
	if err != nil {
		return nil, fmt.Errorf("store: query range %s: %w", table, err)
	}
	defer rows.Close()

	var out []sample.Row
	for rows.Next() {
		var r sample.Row
		r.Table = table
		var ring sql.NullInt64
		var flag uint8
		if err := rows.Scan(&r.TimestampMS, &r.Tag, &r.Value, &flag, &ring); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", table, err)
		}
		r.Flag = sample.Flag(flag)
		if ring.Valid {
			v := ring.Int64
			r.RingNumberAtCapture = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRange returns the number of rows in table with timestamp_ms in
// [startMS, endMS), for include_raw_counts annotations without pulling the
// full rows across.
func (s *Store) CountRange(ctx context.Context, table sample.Table, startMS, endMS int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE timestamp_ms >= ? AND timestamp_ms < ?`, tableName(table)),
		startMS, endMS).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count range %s: %w", table, err)
	}
	return n, nil
}

// MaxPLCRingNumber returns the highest ring_number_at_capture observed in
// plc_samples, or false if no PLC sample has one set yet.
func (s *Store) MaxPLCRingNumber(ctx context.Context) (int64, bool, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(ring_number_at_capture) FROM plc_samples`).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("store: max plc ring number: %w", err)
	}
	return n.Int64, n.Valid, nil
}

// MaxSummarizedRingNumber returns the highest ring_number already present
// in ring_summaries, or false if none exists yet.
func (s *Store) MaxSummarizedRingNumber(ctx context.Context) (int64, bool, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(ring_number) FROM ring_summaries`).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("store: max summarized ring number: %w", err)
	}
	return n.Int64, n.Valid, nil
}

// RingStart returns the earliest timestamp_ms observed with
// ring_number_at_capture = ringNumber in plc_samples, the ring boundary
// the aligner uses as start_ts (spec.md §4.5 step 1).
func (s *Store) RingStart(ctx context.Context, ringNumber int64) (int64, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MIN(timestamp_ms) FROM plc_samples WHERE ring_number_at_capture = ?`, ringNumber).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("store: ring start %d: %w", ringNumber, err)
	}
	return ts.Int64, ts.Valid, nil
}

// nullFloat converts a nullable float pointer to sql.NullFloat64 for
// parameter binding.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func scanNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// WriteRingSummary inserts a new RingSummary row, or updates the existing
// one for the same ring_number when it is still Summarized-open (spec.md
// §4.5 "may be updated once when delayed monitoring data becomes
// available within a configured grace period"). created_at and write_ts
// are set only by the INSERT branch: the DO UPDATE clause omits both, so
// re-aggregating an open ring never moves its grace-window deadline.
func (s *Store) WriteRingSummary(ctx context.Context, rs *ringsummary.RingSummary) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin ring summary: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ring_summaries (
			ring_number, start_ts, end_ts,
			thrust_mean, thrust_max, thrust_min, thrust_std, thrust_n,
			torque_mean, torque_max, torque_min, torque_std, torque_n,
			chamber_press_mean, chamber_press_max, chamber_press_min, chamber_press_std, chamber_press_n,
			advance_rate_mean, advance_rate_max, advance_rate_min, advance_rate_std, advance_rate_n,
			grout_pressure_mean, grout_pressure_max, grout_pressure_min, grout_pressure_std, grout_pressure_n,
			grout_volume_mean, grout_volume_max, grout_volume_min, grout_volume_std, grout_volume_n,
			mean_pitch, mean_roll, mean_yaw, max_h_devi, max_v_devi,
			settlement_value, displacement_value,
			specific_energy, ground_loss_rate, volume_loss_ratio,
			geo_zone, completeness, state, created_at, write_ts, synced_to_cloud
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ring_number) DO UPDATE SET
			start_ts=excluded.start_ts, end_ts=excluded.end_ts,
			thrust_mean=excluded.thrust_mean, thrust_max=excluded.thrust_max, thrust_min=excluded.thrust_min, thrust_std=excluded.thrust_std, thrust_n=excluded.thrust_n,
			torque_mean=excluded.torque_mean, torque_max=excluded.torque_max, torque_min=excluded.torque_min, torque_std=excluded.torque_std, torque_n=excluded.torque_n,
			chamber_press_mean=excluded.chamber_press_mean, chamber_press_max=excluded.chamber_press_max, chamber_press_min=excluded.chamber_press_min, chamber_press_std=excluded.chamber_press_std, chamber_press_n=excluded.chamber_press_n,
			advance_rate_mean=excluded.advance_rate_mean, advance_rate_max=excluded.advance_rate_max, advance_rate_min=excluded.advance_rate_min, advance_rate_std=excluded.advance_rate_std, advance_rate_n=excluded.advance_rate_n,
			grout_pressure_mean=excluded.grout_pressure_mean, grout_pressure_max=excluded.grout_pressure_max, grout_pressure_min=excluded.grout_pressure_min, grout_pressure_std=excluded.grout_pressure_std, grout_pressure_n=excluded.grout_pressure_n,
			grout_volume_mean=excluded.grout_volume_mean, grout_volume_max=excluded.grout_volume_max, grout_volume_min=excluded.grout_volume_min, grout_volume_std=excluded.grout_volume_std, grout_volume_n=excluded.grout_volume_n,
			mean_pitch=excluded.mean_pitch, mean_roll=excluded.mean_roll, mean_yaw=excluded.mean_yaw, max_h_devi=excluded.max_h_devi, max_v_devi=excluded.max_v_devi,
			specific_energy=excluded.specific_energy, geo_zone=excluded.geo_zone,
			settlement_value=excluded.settlement_value,
			displacement_value=excluded.displacement_value,
			ground_loss_rate=excluded.ground_loss_rate,
			volume_loss_ratio=excluded.volume_loss_ratio,
			completeness=excluded.completeness,
			state=excluded.state
		WHERE ring_summaries.state = 'summarized_open'
	`,
		rs.RingNumber, rs.StartTS, rs.EndTS,
		rs.Thrust.Mean, rs.Thrust.Max, rs.Thrust.Min, rs.Thrust.Std, rs.Thrust.N,
		rs.Torque.Mean, rs.Torque.Max, rs.Torque.Min, rs.Torque.Std, rs.Torque.N,
		rs.ChamberPress.Mean, rs.ChamberPress.Max, rs.ChamberPress.Min, rs.ChamberPress.Std, rs.ChamberPress.N,
		rs.AdvanceRate.Mean, rs.AdvanceRate.Max, rs.AdvanceRate.Min, rs.AdvanceRate.Std, rs.AdvanceRate.N,
		rs.GroutPressure.Mean, rs.GroutPressure.Max, rs.GroutPressure.Min, rs.GroutPressure.Std, rs.GroutPressure.N,
		rs.GroutVolume.Mean, rs.GroutVolume.Max, rs.GroutVolume.Min, rs.GroutVolume.Std, rs.GroutVolume.N,
		nullFloat(rs.MeanPitch), nullFloat(rs.MeanRoll), nullFloat(rs.MeanYaw), nullFloat(rs.MaxHDevi), nullFloat(rs.MaxVDevi),
		nullFloat(rs.SettlementValue), nullFloat(rs.DisplacementValue),
		nullFloat(rs.SpecificEnergy), nullFloat(rs.GroundLossRate), nullFloat(rs.VolumeLossRatio),
		rs.GeoZone, string(rs.Completeness), string(rs.State), rs.CreatedAt.UTC(), rs.WriteTS.UTC(), rs.SyncedToCloud,
	)
	if err != nil {
		return fmt.Errorf("store: upsert ring summary %d: %w", rs.RingNumber, err)
	}

	return tx.Commit()
}

// GetRingSummary returns the RingSummary for ringNumber, or false if none
// exists yet.
func (s *Store) GetRingSummary(ctx context.Context, ringNumber int64) (*ringsummary.RingSummary, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ring_number, start_ts, end_ts,
			thrust_mean, thrust_max, thrust_min, thrust_std, thrust_n,
			torque_mean, torque_max, torque_min, torque_std, torque_n,
			chamber_press_mean, chamber_press_max, chamber_press_min, chamber_press_std, chamber_press_n,
			advance_rate_mean, advance_rate_max, advance_rate_min, advance_rate_std, advance_rate_n,
			grout_pressure_mean, grout_pressure_max, grout_pressure_min, grout_pressure_std, grout_pressure_n,
			grout_volume_mean, grout_volume_max, grout_volume_min, grout_volume_std, grout_volume_n,
			mean_pitch, mean_roll, mean_yaw, max_h_devi, max_v_devi,
			settlement_value, displacement_value,
			specific_energy, ground_loss_rate, volume_loss_ratio,
			geo_zone, completeness, state, created_at, write_ts, synced_to_cloud
		FROM ring_summaries WHERE ring_number = ?`, ringNumber)

	var rs ringsummary.RingSummary
	var meanPitch, meanRoll, meanYaw, maxHDevi, maxVDevi sql.NullFloat64
	var settlement, displacement, specificEnergy, groundLoss, volumeLoss sql.NullFloat64
	var completeness, state string

	err := row.Scan(
		&rs.RingNumber, &rs.StartTS, &rs.EndTS,
		&rs.Thrust.Mean, &rs.Thrust.Max, &rs.Thrust.Min, &rs.Thrust.Std, &rs.Thrust.N,
		&rs.Torque.Mean, &rs.Torque.Max, &rs.Torque.Min, &rs.Torque.Std, &rs.Torque.N,
		&rs.ChamberPress.Mean, &rs.ChamberPress.Max, &rs.ChamberPress.Min, &rs.ChamberPress.Std, &rs.ChamberPress.N,
		&rs.AdvanceRate.Mean, &rs.AdvanceRate.Max, &rs.AdvanceRate.Min, &rs.AdvanceRate.Std, &rs.AdvanceRate.N,
		&rs.GroutPressure.Mean, &rs.GroutPressure.Max, &rs.GroutPressure.Min, &rs.GroutPressure.Std, &rs.GroutPressure.N,
		&rs.GroutVolume.Mean, &rs.GroutVolume.Max, &rs.GroutVolume.Min, &rs.GroutVolume.Std, &rs.GroutVolume.N,
		&meanPitch, &meanRoll, &meanYaw, &maxHDevi, &maxVDevi,
		&settlement, &displacement,
		&specificEnergy, &groundLoss, &volumeLoss,
		&rs.GeoZone, &completeness, &state, &rs.CreatedAt, &rs.WriteTS, &rs.SyncedToCloud,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get ring summary %d: %w", ringNumber, err)
	}

	rs.MeanPitch, rs.MeanRoll, rs.MeanYaw = scanNullFloat(meanPitch), scanNullFloat(meanRoll), scanNullFloat(meanYaw)
	rs.MaxHDevi, rs.MaxVDevi = scanNullFloat(maxHDevi), scanNullFloat(maxVDevi)
	rs.SettlementValue, rs.DisplacementValue = scanNullFloat(settlement), scanNullFloat(displacement)
	rs.SpecificEnergy, rs.GroundLossRate, rs.VolumeLossRatio = scanNullFloat(specificEnergy), scanNullFloat(groundLoss), scanNullFloat(volumeLoss)
	rs.Completeness = ringsummary.Completeness(completeness)
	rs.State = ringsummary.State(state)
	return &rs, true, nil
}

// ListRingSummaries returns ring summaries with ring_number > afterRing,
// ordered by ring_number, up to limit rows: the query API's keyset
// pagination primitive.
func (s *Store) ListRingSummaries(ctx context.Context, afterRing int64, limit int) ([]ringsummary.RingSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT ring_number FROM ring_summaries WHERE ring_number > ? ORDER BY ring_number LIMIT ?`, afterRing, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list ring summaries: %w", err)
	}
	var ringNumbers []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: list ring summaries: %w", err)
		}
		ringNumbers = append(ringNumbers, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ringsummary.RingSummary, 0, len(ringNumbers))
	for _, n := range ringNumbers {
		rs, ok, err := s.GetRingSummary(ctx, n)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *rs)
		}
	}
	return out, nil
}

// ListOpenRingNumbers returns every ring_number currently in the
// Summarized-open state, the finalization sweep's candidate set.
func (s *Store) ListOpenRingNumbers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ring_number FROM ring_summaries WHERE state = 'summarized_open'`)
	if err != nil {
		return nil, fmt.Errorf("store: list open ring numbers: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("store: list open ring numbers: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// FinalizeRingSummary transitions ring_number to Summarized-final if it is
// currently Summarized-open and write_ts + grace has elapsed (spec.md §4.5).
func (s *Store) FinalizeRingSummary(ctx context.Context, ringNumber int64, grace time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE ring_summaries SET state = 'summarized_final'
		WHERE ring_number = ? AND state = 'summarized_open' AND write_ts <= ?`,
		ringNumber, time.Now().Add(-grace).UTC())
	if err != nil {
		return fmt.Errorf("store: finalize ring %d: %w", ringNumber, err)
	}
	return nil
}
