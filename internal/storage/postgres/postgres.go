// Package postgres stores final sweep records in PostgreSQL using a pgx/v5
// connection pool. One row in sweep_runs per run, one row in sweep_records
// per iteration.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/san-kum/glidesim/internal/storage"
	"github.com/san-kum/glidesim/internal/sweep"
)

var ErrConflict = errors.New("postgres: run id already exists")

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Sink = (*Store)(nil)

// New connects and, if cfg.MigrateOnStart is set, applies migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

var recordColumns = []string{
	"run_id", "idx", "launch_angle", "t", "v", "theta", "x", "y",
	"status", "steps", "rejected", "evaluations", "elapsed_ns", "fault", "error",
}

// SaveRun inserts the run and all of its records in one transaction.
func (s *Store) SaveRun(ctx context.Context, meta *storage.RunMetadata, records []sweep.Record) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	meta.ID = storage.NewRunID(meta.Name, meta.Timestamp)
	meta.Count = len(records)

	params, err := json.Marshal(meta.Params)
	if err != nil {
		return "", fmt.Errorf("marshaling params: %w", err)
	}
	summary, err := json.Marshal(meta.Summary)
	if err != nil {
		return "", fmt.Errorf("marshaling summary: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO sweep_runs (id, name, created_at, count, params, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, meta.ID, meta.Name, meta.Timestamp, meta.Count, params, summary)
	if err != nil {
		if isDuplicateKey(err) {
			return "", fmt.Errorf("%w: %s", ErrConflict, meta.ID)
		}
		return "", fmt.Errorf("inserting run: %w", err)
	}

	rows := storage.Rows(records)
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"sweep_records"}, recordColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				meta.ID, r.Index, r.LaunchAngle, r.Time, r.V, r.Theta, r.X, r.Y,
				r.Status, r.Steps, r.Rejected, r.Evaluations, r.ElapsedNS, r.Fault, r.Error,
			}, nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("copying records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return meta.ID, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]storage.RunMetadata, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at, count, params, summary
		FROM sweep_runs
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]storage.RunMetadata, 0)
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *Store) LoadRun(ctx context.Context, id string) (*storage.RunMetadata, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at, count, params, summary
		FROM sweep_runs
		WHERE id = $1
	`, id)

	meta, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return meta, err
}

func scanRun(row pgx.Row) (*storage.RunMetadata, error) {
	var (
		meta            storage.RunMetadata
		params, summary []byte
	)
	if err := row.Scan(&meta.ID, &meta.Name, &meta.Timestamp, &meta.Count, &params, &summary); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	if err := json.Unmarshal(params, &meta.Params); err != nil {
		return nil, fmt.Errorf("unmarshaling params: %w", err)
	}
	if err := json.Unmarshal(summary, &meta.Summary); err != nil {
		return nil, fmt.Errorf("unmarshaling summary: %w", err)
	}
	meta.Timestamp = meta.Timestamp.UTC()
	return &meta, nil
}

func (s *Store) LoadRecords(ctx context.Context, id string) ([]sweep.Record, error) {
	if _, err := s.LoadRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT idx, launch_angle, t, v, theta, x, y,
		       status, steps, rejected, evaluations, elapsed_ns, fault, error
		FROM sweep_records
		WHERE run_id = $1
		ORDER BY idx
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := make([]sweep.Record, 0)
	for rows.Next() {
		var r storage.Row
		if err := rows.Scan(
			&r.Index, &r.LaunchAngle, &r.Time, &r.V, &r.Theta, &r.X, &r.Y,
			&r.Status, &r.Steps, &r.Rejected, &r.Evaluations, &r.ElapsedNS, &r.Fault, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec, err := r.Record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	return records, nil
}

// DeleteRun removes a run and, by cascade, its records.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM sweep_runs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey reports a unique violation (SQLSTATE 23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
