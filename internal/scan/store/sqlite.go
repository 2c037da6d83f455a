package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"luftscan/internal/results"
	"luftscan/internal/scan"
	"luftscan/pkg/domain"
	"luftscan/pkg/platform/sentinel"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	method      TEXT NOT NULL,
	seed        INTEGER NOT NULL,
	requested   INTEGER NOT NULL,
	completed   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	workers     INTEGER NOT NULL,
	config      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS scan_rows (
	scan_id     TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL,
	params      TEXT NOT NULL,
	observables TEXT,
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (scan_id, idx)
);
`

// SQLiteStore persists scans in a single SQLite file through one
// connection. Float arrays are stored as space-separated text.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a database file and runs migrations.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection, and ":memory:" is per connection too.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, rec *scan.Record) error {
	config, err := encodeConfig(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (id, name, status, method, seed, requested, completed, failed, workers, config, error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Name, string(rec.Status), string(rec.Method), int64(rec.Seed),
		rec.Requested, rec.Completed, rec.Failed, rec.Workers, string(config), rec.Error,
		formatTime(&rec.CreatedAt), formatTime(rec.FinishedAt),
	)
	if err != nil {
		if isSQLiteConstraint(err, "UNIQUE") {
			return fmt.Errorf("create scan %s: %w", rec.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, rec *scan.Record) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scans SET status = ?, completed = ?, failed = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(rec.Status), rec.Completed, rec.Failed, rec.Error, formatTime(rec.FinishedAt), rec.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update scan %s: %w", rec.ID, sentinel.ErrNotFound)
	}
	return nil
}

const selectSQLiteScan = `
	SELECT id, name, status, method, seed, requested, completed, failed, workers, config, error, created_at, finished_at
	FROM scans`

func (s *SQLiteStore) Find(ctx context.Context, id domain.ScanID) (*scan.Record, error) {
	rec, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, selectSQLiteScan+` WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find scan %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find scan: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*scan.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectSQLiteScan+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []*scan.Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list scans: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendRows(ctx context.Context, id domain.ScanID, rows []results.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append rows: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scan_rows (scan_id, idx, params, observables, status, reason)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("append rows: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var obs any
		if r.Observables != nil {
			obs = encodeFloats(r.Observables)
		}
		if _, err := stmt.ExecContext(ctx, id.String(), r.Index, encodeFloats(r.Params), obs, string(r.Status), r.Reason); err != nil {
			switch {
			case isSQLiteConstraint(err, "FOREIGN KEY"):
				return fmt.Errorf("append rows to scan %s: %w", id, sentinel.ErrNotFound)
			case isSQLiteConstraint(err, "UNIQUE"), isSQLiteConstraint(err, "PRIMARY KEY"):
				return fmt.Errorf("append row %d to scan %s: %w", r.Index, id, sentinel.ErrInvalidState)
			}
			return fmt.Errorf("append row %d: %w", r.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append rows: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) StreamRows(ctx context.Context, id domain.ScanID, sink results.Sink) error {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM scans WHERE id = ?`, id.String()).Scan(&exists); err != nil {
		return fmt.Errorf("stream rows: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("stream rows of scan %s: %w", id, sentinel.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, params, observables, status, reason
		FROM scan_rows WHERE scan_id = ? ORDER BY idx`, id.String())
	if err != nil {
		return fmt.Errorf("stream rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      results.Row
			params string
			obs    sql.NullString
			status string
		)
		if err := rows.Scan(&r.Index, &params, &obs, &status, &r.Reason); err != nil {
			return fmt.Errorf("stream rows: %w", err)
		}
		if r.Params, err = decodeFloats(params); err != nil {
			return err
		}
		if obs.Valid {
			if r.Observables, err = decodeFloats(obs.String); err != nil {
				return err
			}
		}
		r.Status = results.Status(status)
		if err := sink.Write(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanSQLiteRecord(row rowScanner) (*scan.Record, error) {
	var (
		rec      scan.Record
		id       string
		status   string
		method   string
		seed     int64
		config   string
		created  string
		finished sql.NullString
	)
	if err := row.Scan(&id, &rec.Name, &status, &method, &seed, &rec.Requested, &rec.Completed,
		&rec.Failed, &rec.Workers, &config, &rec.Error, &created, &finished); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseScanID(id)
	if err != nil {
		return nil, err
	}
	rec.ID = parsed
	rec.Status = scan.Status(status)
	rec.Method = parseMethod(method)
	rec.Seed = uint64(seed)
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		rec.FinishedAt = &t
	}
	if err := decodeConfig([]byte(config), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// formatTime writes UTC RFC 3339 so text ordering matches time ordering.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func isSQLiteConstraint(err error, kind string) bool {
	msg := err.Error()
	return strings.Contains(msg, "constraint failed") && strings.Contains(msg, kind)
}
