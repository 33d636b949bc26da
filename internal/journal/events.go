package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/tap/internal/canon"
	"github.com/roach88/tap/internal/tap"
)

// Run summarizes one recorded run.
type Run struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Events   int    `json:"events"`
}

// BeginRun registers a run. Registering the same run again is a no-op.
func (j *Journal) BeginRun(ctx context.Context, runID, scenario string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, scenario)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// Record appends e to run. The run must have been registered with BeginRun.
// Writing the same (run, seq) twice is a no-op.
func (j *Journal) Record(ctx context.Context, runID string, e tap.Event) error {
	digest, err := canon.Digest(canon.DomainEvent, e)
	if err != nil {
		return fmt.Errorf("record event %d: %w", e.Seq, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events
		(run_id, seq, kind, instance, resource, key, path, slot, detail, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		e.Seq,
		string(e.Kind),
		e.Instance,
		e.Resource,
		e.Key,
		e.Path,
		e.Slot,
		e.Detail,
		digest,
	)
	if err != nil {
		return fmt.Errorf("record event %d: %w", e.Seq, err)
	}
	return nil
}

// ReadRun returns the events of run in seq order.
func (j *Journal) ReadRun(ctx context.Context, runID string) ([]tap.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, instance, resource, key, path, slot, detail
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []tap.Event
	for rows.Next() {
		var e tap.Event
		var kind string
		if err := rows.Scan(&e.Seq, &kind, &e.Instance, &e.Resource, &e.Key, &e.Path, &e.Slot, &e.Detail); err != nil {
			return nil, fmt.Errorf("read run %s: scan: %w", runID, err)
		}
		e.Kind = tap.EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read run %s: %w", runID, err)
	}
	return events, nil
}

// Runs lists every run with its event count, ordered by ID.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.scenario, COUNT(e.seq)
		FROM runs r
		LEFT JOIN events e ON e.run_id = r.id
		GROUP BY r.id, r.scenario
		ORDER BY r.id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Events); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Verify recomputes the digest of every event of run and reports the first
// row whose stored digest does not match.
func (j *Journal) Verify(ctx context.Context, runID string) error {
	events, err := j.ReadRun(ctx, runID)
	if err != nil {
		return err
	}

	for _, e := range events {
		var stored string
		err := j.db.QueryRowContext(ctx,
			`SELECT digest FROM events WHERE run_id = ? AND seq = ?`, runID, e.Seq,
		).Scan(&stored)
		if err == sql.ErrNoRows {
			return fmt.Errorf("verify run %s: event %d vanished", runID, e.Seq)
		}
		if err != nil {
			return fmt.Errorf("verify run %s: %w", runID, err)
		}

		want, err := canon.Digest(canon.DomainEvent, e)
		if err != nil {
			return fmt.Errorf("verify run %s: %w", runID, err)
		}
		if stored != want {
			return fmt.Errorf("verify run %s: event %d digest mismatch", runID, e.Seq)
		}
	}
	return nil
}

// EventObserver records events of one run as they are emitted.
type EventObserver struct {
	j        *Journal
	run      string
	failures atomic.Int64
}

// Observer adapts j to tap.Observer for run. Write failures are logged and
// counted, never propagated into the runtime.
func Observer(j *Journal, runID string) *EventObserver {
	return &EventObserver{j: j, run: runID}
}

// Observe implements tap.Observer.
func (o *EventObserver) Observe(e tap.Event) {
	if err := o.j.Record(context.Background(), o.run, e); err != nil {
		o.failures.Add(1)
		slog.Warn("journal write failed", "run", o.run, "seq", e.Seq, "error", err)
	}
}

// Failures returns the number of events that could not be written.
func (o *EventObserver) Failures() int64 {
	return o.failures.Load()
}
