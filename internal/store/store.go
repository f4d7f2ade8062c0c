// Package store persists redoc's run history in SQLite: health snapshots
// for trend analysis, consolidation outcomes for confidence learning,
// issue sightings for the first-occurrence flag, and telemetry events.
//
// Everything here is optional. Callers treat a nil or failed Store as
// "no history" and keep working.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is swapped in tests.
var timeNow = time.Now

// LatestKey is the snapshot key that always holds the newest snapshot.
const LatestKey = "latest"

// DefaultMinOutcomes is how many outcomes a strategy needs before its
// success rate replaces the neutral prior.
const DefaultMinOutcomes = 3

// neutralRate is returned while there is not enough history.
const neutralRate = 0.5

// ─── Types ───────────────────────────────────────────────────────────────────

// SnapshotRecord is one stored health snapshot.
type SnapshotRecord struct {
	ReportType string    `json:"report_type"`
	Key        string    `json:"key"`
	Data       []byte    `json:"data"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event is one completed operation.
type Event struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Summary   string        `json:"summary"`
	CreatedAt time.Time     `json:"created_at"`
}

// Stats holds aggregate counts.
type Stats struct {
	Snapshots int `json:"snapshots"`
	Outcomes  int `json:"outcomes"`
	Sightings int `json:"sightings"`
	Events    int `json:"events"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir     string
	MinOutcomes int
}

// DefaultConfig returns the configuration for a data directory.
func DefaultConfig(dataDir string) Config {
	return Config{DataDir: dataDir, MinOutcomes: DefaultMinOutcomes}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the SQLite-backed history.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query   func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
			return db.ExecContext(ctx, query, args...)
		},
		query: func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
			return db.QueryContext(ctx, query, args...)
		},
		beginTx: func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
			return db.BeginTx(ctx, nil)
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) queryHook(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(ctx, db, query, args...)
	}
	return db.QueryContext(ctx, query, args...)
}

func (s *Store) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates the data directory if needed, opens redoc.db with WAL mode
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.MinOutcomes <= 0 {
		cfg.MinOutcomes = DefaultMinOutcomes
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "redoc.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, hooks: defaultStoreHooks()}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS health_snapshots (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			report_type  TEXT NOT NULL,
			snapshot_key TEXT NOT NULL,
			data         TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			UNIQUE (report_type, snapshot_key)
		);

		CREATE TABLE IF NOT EXISTS consolidation_outcomes (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy      TEXT    NOT NULL,
			success       INTEGER NOT NULL,
			files_changed INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_outcomes_strategy ON consolidation_outcomes(strategy);

		CREATE TABLE IF NOT EXISTS issue_sightings (
			issue_id   TEXT PRIMARY KEY,
			first_seen TEXT    NOT NULL,
			last_seen  TEXT    NOT NULL,
			seen_count INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS telemetry_events (
			id          TEXT PRIMARY KEY,
			operation   TEXT    NOT NULL,
			success     INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			summary     TEXT    NOT NULL DEFAULT '',
			created_at  TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_operation ON telemetry_events(operation, created_at);
	`
	if _, err := s.execHook(ctx, s.db, schema); err != nil {
		return err
	}
	return nil
}

// ─── Health snapshots ────────────────────────────────────────────────────────

// SaveSnapshot stores data under the "latest" key and under today's
// date, both in one transaction. A second save on the same day replaces
// that day's archive entry.
func (s *Store) SaveSnapshot(ctx context.Context, reportType string, data []byte) error {
	now := timeNow().UTC()
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return fmt.Errorf("store: begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
		INSERT INTO health_snapshots (report_type, snapshot_key, data, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (report_type, snapshot_key)
		DO UPDATE SET data = excluded.data, created_at = excluded.created_at`
	for _, key := range []string{LatestKey, now.Format("2006-01-02")} {
		if _, err := s.execHook(ctx, tx, upsert, reportType, key, string(data), formatTime(now)); err != nil {
			return fmt.Errorf("store: save snapshot %s/%s: %w", reportType, key, err)
		}
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("store: commit snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of a report type, or nil
// when there is none.
func (s *Store) LatestSnapshot(ctx context.Context, reportType string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM health_snapshots WHERE report_type = ? AND snapshot_key = ?",
		reportType, LatestKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest snapshot %s: %w", reportType, err)
	}
	return []byte(data), nil
}

// ListSnapshots returns the dated archive of a report type, newest
// first.
func (s *Store) ListSnapshots(ctx context.Context, reportType string, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.queryHook(ctx, s.db, `
		SELECT report_type, snapshot_key, data, created_at
		FROM health_snapshots
		WHERE report_type = ? AND snapshot_key != ?
		ORDER BY snapshot_key DESC
		LIMIT ?`, reportType, LatestKey, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		var data, created string
		if err := rows.Scan(&r.ReportType, &r.Key, &data, &created); err != nil {
			return nil, fmt.Errorf("store: scan snapshot: %w", err)
		}
		r.Data = []byte(data)
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─── Consolidation outcomes ─────────────────────────────────────────────────

// RecordOutcome stores the result of one consolidation run.
func (s *Store) RecordOutcome(ctx context.Context, strategy string, success bool, filesChanged int) error {
	_, err := s.execHook(ctx, s.db,
		"INSERT INTO consolidation_outcomes (strategy, success, files_changed, created_at) VALUES (?, ?, ?, ?)",
		strategy, boolInt(success), filesChanged, formatTime(timeNow()))
	if err != nil {
		return fmt.Errorf("store: record outcome: %w", err)
	}
	return nil
}

// SuccessRate is the share of successful runs of a strategy. It stays at
// the neutral 0.5 until the strategy has MinOutcomes recorded runs, and
// on any read error.
func (s *Store) SuccessRate(ctx context.Context, strategy string) float64 {
	var total, succeeded int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(success), 0) FROM consolidation_outcomes WHERE strategy = ?",
		strategy).Scan(&total, &succeeded)
	if err != nil || total < s.cfg.MinOutcomes {
		return neutralRate
	}
	return float64(succeeded) / float64(total)
}

// ─── Issue sightings ─────────────────────────────────────────────────────────

// MarkSeen records a sighting of an issue and reports whether it was the
// first one.
func (s *Store) MarkSeen(ctx context.Context, issueID string) (bool, error) {
	now := formatTime(timeNow())
	res, err := s.execHook(ctx, s.db,
		"INSERT OR IGNORE INTO issue_sightings (issue_id, first_seen, last_seen) VALUES (?, ?, ?)",
		issueID, now, now)
	if err != nil {
		return false, fmt.Errorf("store: mark seen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	if _, err := s.execHook(ctx, s.db,
		"UPDATE issue_sightings SET last_seen = ?, seen_count = seen_count + 1 WHERE issue_id = ?",
		now, issueID); err != nil {
		return false, fmt.Errorf("store: mark seen: %w", err)
	}
	return false, nil
}

// ─── Telemetry ───────────────────────────────────────────────────────────────

// RecordEvent stores one telemetry event.
func (s *Store) RecordEvent(ctx context.Context, e Event) error {
	at := e.CreatedAt
	if at.IsZero() {
		at = timeNow()
	}
	_, err := s.execHook(ctx, s.db,
		"INSERT INTO telemetry_events (id, operation, success, duration_ms, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.Operation, boolInt(e.Success), e.Duration.Milliseconds(), e.Summary, formatTime(at))
	if err != nil {
		return fmt.Errorf("store: record event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events, optionally for one operation.
func (s *Store) RecentEvents(ctx context.Context, operation string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT id, operation, success, duration_ms, summary, created_at FROM telemetry_events"
	var args []any
	if operation != "" {
		query += " WHERE operation = ?"
		args = append(args, operation)
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: recent events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var e Event
		var success int
		var ms int64
		var created string
		if err := rows.Scan(&e.ID, &e.Operation, &success, &ms, &e.Summary, &created); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		e.Success = success == 1
		e.Duration = time.Duration(ms) * time.Millisecond
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats returns aggregate counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		table string
		dst   *int
	}{
		{"health_snapshots", &stats.Snapshots},
		{"consolidation_outcomes", &stats.Outcomes},
		{"issue_sightings", &stats.Sightings},
		{"telemetry_events", &stats.Events},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("store: count %s: %w", c.table, err)
		}
	}
	return stats, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
