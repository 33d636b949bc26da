// Package journal provides a SQLite-backed journal of runtime events.
//
// A journal is an append-only log of tap.Event rows grouped by run. The
// Observer adapter records events as a root emits them; tap trace reads them
// back.
//
// # Critical Patterns
//
// Logical ordering:
//   - All reads are ORDER BY seq ASC; seq comes from the runtime clock
//   - Timestamps are never stored
//
// Idempotent writes:
//   - PRIMARY KEY(run_id, seq) with ON CONFLICT DO NOTHING
//
// Content digests:
//   - Every row stores canon.Digest(canon.DomainEvent, event); Verify
//     recomputes them to detect edited or corrupted rows
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - One open connection: SQLite has a single writer
package journal
