// Package dispatch orchestrates the per-delivery pipeline.
//
// A delivery moves through: Received → Acknowledged → Processing →
// {RecordAppended+Replied | Skipped | Forwarded}. Acknowledgment happens in
// the webhook handler before any downstream call; Process picks up from
// there as a detached background task.
//
// # Detachment contract
//
// Process returns as soon as the delivery's goroutine is spawned. The
// goroutine runs on its own background-derived context — the HTTP request
// context is already dead by then — and its errors never propagate
// anywhere: failures are logged and journaled, and the original sender
// sees either a confirmation reply or silence. Shutdown waits for
// in-flight deliveries up to the caller's deadline.
//
// Events within one delivery are processed in arrival order, each one
// independently: a failure on one event never aborts the rest. No ordering
// is guaranteed across concurrent deliveries.
package dispatch
