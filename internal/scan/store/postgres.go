package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"luftscan/internal/results"
	"luftscan/internal/scan"
	"luftscan/pkg/domain"
	"luftscan/pkg/platform/sentinel"
)

// PostgresSchema creates the scan tables. Migrate applies it.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS scans (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	method      TEXT NOT NULL,
	seed        BIGINT NOT NULL,
	requested   INTEGER NOT NULL,
	completed   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	workers     INTEGER NOT NULL,
	config      JSONB NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS scans_created_at_idx ON scans (created_at DESC);

CREATE TABLE IF NOT EXISTS scan_rows (
	scan_id     UUID NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL,
	params      DOUBLE PRECISION[] NOT NULL,
	observables DOUBLE PRECISION[],
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (scan_id, idx)
);
`

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore persists scans in PostgreSQL. It is pure I/O; status
// transitions belong to the scan service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("migrate scan tables: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *scan.Record) error {
	config, err := encodeConfig(rec)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO scans (id, name, status, method, seed, requested, completed, failed, workers, config, error, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID.String(), rec.Name, string(rec.Status), string(rec.Method), int64(rec.Seed),
		rec.Requested, rec.Completed, rec.Failed, rec.Workers, config, rec.Error,
		rec.CreatedAt, nullTime(rec.FinishedAt),
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("create scan %s: %w", rec.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *scan.Record) error {
	query := `
		UPDATE scans SET
			status = $2,
			completed = $3,
			failed = $4,
			error = $5,
			finished_at = $6
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.ID.String(), string(rec.Status), rec.Completed, rec.Failed, rec.Error, nullTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update scan %s: %w", rec.ID, sentinel.ErrNotFound)
	}
	return nil
}

const selectScan = `
	SELECT id, name, status, method, seed, requested, completed, failed, workers, config, error, created_at, finished_at
	FROM scans
`

func (s *PostgresStore) Find(ctx context.Context, id domain.ScanID) (*scan.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectScan+` WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find scan %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find scan: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*scan.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectScan+` ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []*scan.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list scans: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendRows(ctx context.Context, id domain.ScanID, rows []results.Row) error {
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
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("append rows: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var obs any
		if r.Observables != nil {
			obs = pq.Array(r.Observables)
		}
		if _, err := stmt.ExecContext(ctx, id.String(), r.Index, pq.Array(r.Params), obs, string(r.Status), r.Reason); err != nil {
			switch pgCode(err) {
			case pgForeignKeyViolation:
				return fmt.Errorf("append rows to scan %s: %w", id, sentinel.ErrNotFound)
			case pgUniqueViolation:
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

func (s *PostgresStore) StreamRows(ctx context.Context, id domain.ScanID, sink results.Sink) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM scans WHERE id = $1)`, id.String()).Scan(&exists); err != nil {
		return fmt.Errorf("stream rows: %w", err)
	}
	if !exists {
		return fmt.Errorf("stream rows of scan %s: %w", id, sentinel.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, params, observables, status, reason
		FROM scan_rows
		WHERE scan_id = $1
		ORDER BY idx
	`, id.String())
	if err != nil {
		return fmt.Errorf("stream rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      results.Row
			obs    []float64
			status string
		)
		if err := rows.Scan(&r.Index, pq.Array(&r.Params), pq.Array(&obs), &status, &r.Reason); err != nil {
			return fmt.Errorf("stream rows: %w", err)
		}
		r.Status = results.Status(status)
		r.Observables = obs
		if err := sink.Write(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*scan.Record, error) {
	var (
		rec      scan.Record
		id       string
		status   string
		method   string
		seed     int64
		config   []byte
		finished sql.NullTime
	)
	if err := row.Scan(&id, &rec.Name, &status, &method, &seed, &rec.Requested, &rec.Completed,
		&rec.Failed, &rec.Workers, &config, &rec.Error, &rec.CreatedAt, &finished); err != nil {
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
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	if err := decodeConfig(config, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
