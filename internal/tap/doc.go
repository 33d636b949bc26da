// Package tap implements a reactive resource runtime.
//
// A resource is a plain function evaluated repeatedly against its props. It
// keeps state between evaluations in an ordered ledger of slots (state
// cells, refs, memoized values, effects, nested instances), addressed only
// by the order in which the function calls the primitives.
//
// ARCHITECTURE:
//
// Root and instances:
// CreateResource turns an element into a Root. The root owns a tree of
// instances: Child and Inline nest one instance per slot, Children nests a
// keyed list reconciled by key on every pass.
//
// Flush Flow:
// 1. A setter queues an update on its root and schedules one flush task
// 2. The flush applies queued updates in call order, marking owners dirty
// 3. One pass evaluates the tree from the root, skipping clean children
// 4. The pass commits children-first and publishes the new snapshot
// 5. Removed instances are torn down, then cleanups run, then effect bodies
// 6. Steps 2-5 repeat while effects keep setting state (bounded by
// WithMaxPasses), then subscribers are notified once
// 7. Tasks posted through Ctx.Post run
//
// A failed pass commits nothing: the snapshot, the children and the effects
// stay at the last commit and subscribers are not notified. Values that
// primitives already wrote in place during the failed pass are kept.
//
// CRITICAL PATTERNS:
//
// Fixed call order:
// Every pass of an instance must call the same primitives in the same
// order. A different count or kind panics with *StructuralViolation and
// aborts the pass before the ledger changes.
//
// Single flusher:
// At most one flush runs per root. Setters may be called from any goroutine;
// everything else happens on the flushing goroutine, which is the scheduler
// loop (Queue.Run or Queue.Drain) or the caller of FlushSync. Unless
// WithScheduler says otherwise, each root runs its own Queue loop until
// Close. FlushSync from another goroutine waits for the running flush;
// FlushSync from the flushing goroutine is a *StructuralViolation.
//
// Logical clock:
// Every event is stamped from Clock.Next(), never from wall-clock time.
package tap
