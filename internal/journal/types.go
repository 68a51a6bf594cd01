// Package journal keeps a local SQLite record of pipeline outcomes, one
// row per processed event (extract mode) or per delivery (relay mode).
//
// The journal is observability only: nothing is ever replayed from it, it
// carries no uniqueness constraint, and losing it loses nothing but local
// history. Delivery semantics stay at-most-once either way.
package journal

import (
	"errors"
	"time"
)

// Status classifies one pipeline outcome.
type Status string

const (
	// StatusRecorded: ledger row appended and confirmation reply sent.
	StatusRecorded Status = "recorded"
	// StatusSkipped: no expense detected, or a downstream append failure;
	// the sender received silence either way.
	StatusSkipped Status = "skipped"
	// StatusReplyFailed: ledger row appended but the reply call failed.
	StatusReplyFailed Status = "reply_failed"
	// StatusForwarded: relay delivered downstream.
	StatusForwarded Status = "forwarded"
	// StatusForwardFailed: relay failed (network, timeout, or bad target).
	StatusForwardFailed Status = "forward_failed"
)

// Entry is one journal row.
type Entry struct {
	ID         string
	DeliveryID string
	Mode       string
	Status     Status
	Item       string
	Amount     float64
	Date       string
	Detail     string
	CreatedAt  time.Time
}

// RecordRequest is the write-side shape; ID and CreatedAt are assigned by
// the store.
type RecordRequest struct {
	DeliveryID string
	Mode       string
	Status     Status
	Item       string
	Amount     float64
	Date       string
	Detail     string
}

var ErrEntryNotFound = errors.New("journal entry not found")
