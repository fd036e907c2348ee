// Package audit persists an append-only record of task lifecycle events to
// Postgres, for operators who need to reconstruct what the executor did
// after the fact.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ordertask/ordertask/internal/platform/database"
	"github.com/ordertask/ordertask/internal/platform/logger"
	"github.com/ordertask/ordertask/internal/platform/resilience"
)

// Event is a single audit record. Outcome is one of the Outcome* constants.
type Event struct {
	Identity  string
	Shape     string
	Outcome   string
	Detail    string
	Timestamp time.Time
}

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFaulted  = "faulted"
	OutcomeComplete = "complete"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS task_audit_log (
	id         BIGSERIAL PRIMARY KEY,
	identity   TEXT NOT NULL,
	shape      TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
INSERT INTO task_audit_log (identity, shape, outcome, detail, occurred_at)
VALUES ($1, $2, $3, $4, $5)`

// Sink writes Events to Postgres. A Sink with a nil db silently drops
// events, so callers can construct one unconditionally in environments
// without a configured database. Writes are guarded by a circuit breaker so
// a stalled database degrades to fast-failing audit writes instead of
// piling up slow connections behind every task completion.
type Sink struct {
	db  *database.DB
	log logger.Logger
	cb  *resilience.CircuitBreaker
}

// New prepares the audit table and returns a Sink backed by db. It is safe
// to pass a nil db, in which case Record is a no-op.
func New(db *database.DB, log logger.Logger) (*Sink, error) {
	s := &Sink{db: db, log: log, cb: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("audit-db"))}
	if db == nil {
		return s, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("audit: create table: %w", err)
	}
	return s, nil
}

// Record appends an event. Failures are logged, not returned, since a
// broken audit sink must never back-pressure task execution. Once the
// circuit trips on repeated database failures, writes are skipped outright
// until the breaker's timeout elapses rather than each queuing its own
// doomed connection attempt.
func (s *Sink) Record(ctx context.Context, evt Event) {
	if s.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := s.cb.Execute(ctx, func() error {
		_, err := s.db.ExecContext(ctx, insertSQL, evt.Identity, evt.Shape, evt.Outcome, evt.Detail, evt.Timestamp)
		return err
	})
	if err == nil {
		return
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		s.log.Warn("audit record skipped, circuit open", "identity", evt.Identity, "outcome", evt.Outcome)
		return
	}
	s.log.Warn("audit record failed", "identity", evt.Identity, "outcome", evt.Outcome, "error", err)
}

// Recent returns the most recently recorded events for an identity, newest
// first, bounded by limit.
func (s *Sink) Recent(ctx context.Context, identity string, limit int) ([]Event, error) {
	if s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, shape, outcome, detail, occurred_at FROM task_audit_log
		 WHERE identity = $1 ORDER BY occurred_at DESC LIMIT $2`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Identity, &e.Shape, &e.Outcome, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
