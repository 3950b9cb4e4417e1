// Package postgres provides the durable job store backed by Postgres. The
// job document lives in a JSONB column; the event log is a separate
// append-only table keyed by (job_id, seq).
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

	"github.com/roomsage/onboarder/internal/onboarding"
)

const uniqueViolation = "23505"

// Schema creates the two tables the store needs. Applied by EnsureSchema;
// safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS onboarding_jobs (
	id TEXT PRIMARY KEY,
	doc JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS onboarding_events (
	job_id TEXT NOT NULL REFERENCES onboarding_jobs(id),
	seq BIGINT NOT NULL,
	type TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	ts TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, seq)
);`

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements onboarding.JobStore on Postgres. Row locks on the job row
// give the same single-writer-per-job discipline as the memory store.
type Store struct {
	pool pgxPool
}

// NewStore connects a pool from config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema applies the store's schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new job document.
func (s *Store) Create(ctx context.Context, job onboarding.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO onboarding_jobs (id, doc, created_at) VALUES ($1, $2, $3)`,
		job.ID, doc, job.Created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return onboarding.ErrJobExists
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get loads a job document by id.
func (s *Store) Get(ctx context.Context, id string) (onboarding.Job, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM onboarding_jobs WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return onboarding.Job{}, onboarding.ErrNotFound
		}
		return onboarding.Job{}, fmt.Errorf("select job: %w", err)
	}
	var job onboarding.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return onboarding.Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}

// Update applies fn to the job document inside a transaction holding the
// job's row lock.
func (s *Store) Update(ctx context.Context, id string, fn func(*onboarding.Job) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var doc []byte
	err = tx.QueryRow(ctx,
		`SELECT doc FROM onboarding_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return onboarding.ErrNotFound
		}
		return fmt.Errorf("lock job: %w", err)
	}
	var job onboarding.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return fmt.Errorf("unmarshal job: %w", err)
	}
	if err := fn(&job); err != nil {
		return err
	}
	updated, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE onboarding_jobs SET doc = $2 WHERE id = $1`, id, updated); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// AppendEvent assigns the next per-job sequence number and inserts the
// event. The log seals at the first terminal event.
func (s *Store) AppendEvent(ctx context.Context, id string, evt onboarding.ProgressEvent) (onboarding.ProgressEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return onboarding.ProgressEvent{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM onboarding_jobs WHERE id = $1 FOR UPDATE)`, id).Scan(&exists)
	if err != nil {
		return onboarding.ProgressEvent{}, fmt.Errorf("check job: %w", err)
	}
	if !exists {
		return onboarding.ProgressEvent{}, onboarding.ErrNotFound
	}

	var lastType *string
	err = tx.QueryRow(ctx,
		`SELECT type FROM onboarding_events WHERE job_id = $1 ORDER BY seq DESC LIMIT 1`,
		id).Scan(&lastType)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return onboarding.ProgressEvent{}, fmt.Errorf("check log tail: %w", err)
	}
	if lastType != nil && onboarding.EventType(*lastType).TerminalEvent() {
		return onboarding.ProgressEvent{}, onboarding.ErrLogSealed
	}

	evt.JobID = id
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	err = tx.QueryRow(ctx, `
INSERT INTO onboarding_events (job_id, seq, type, category, message, ts)
SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
FROM onboarding_events WHERE job_id = $1
RETURNING seq`,
		id, string(evt.Type), string(evt.Category), evt.Message, evt.TS).Scan(&evt.Seq)
	if err != nil {
		return onboarding.ProgressEvent{}, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return onboarding.ProgressEvent{}, fmt.Errorf("commit append: %w", err)
	}
	return evt, nil
}

// ListEvents returns events with Seq > sinceSeq in ascending order.
func (s *Store) ListEvents(ctx context.Context, id string, sinceSeq int64) ([]onboarding.ProgressEvent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT seq, type, category, message, ts
FROM onboarding_events
WHERE job_id = $1 AND seq > $2
ORDER BY seq ASC`, id, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var events []onboarding.ProgressEvent
	for rows.Next() {
		evt := onboarding.ProgressEvent{JobID: id}
		var typ, category string
		if err := rows.Scan(&evt.Seq, &typ, &category, &evt.Message, &evt.TS); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Type = onboarding.EventType(typ)
		evt.Category = onboarding.Category(category)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
