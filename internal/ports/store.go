// Package ports defines the interfaces between the ingestion core and the
// infrastructure around it (log sources, relational store, reporters).
//
// Implementations live in internal/adapters/.
package ports

import (
	"context"

	"github.com/xoelrdgz/logtally/internal/domain"
)

// RowFailure describes one statement that failed inside a batch.
type RowFailure struct {
	Index int
	Key   string
	Err   error
}

// BatchResult is the outcome of a best-effort batch: every row is attempted,
// failures are collected, and the transaction is committed once.
type BatchResult struct {
	Attempted int
	Written   int
	Failures  []RowFailure
}

func (r BatchResult) Failed() int {
	return len(r.Failures)
}

// RecordStore persists parsed log entries and flagged addresses.
type RecordStore interface {
	// EnsureSchema creates the LOG_DATA and EXCESS_REQUESTS tables if absent.
	EnsureSchema(ctx context.Context) error

	// InsertLogEntries writes all entries in one transaction. Row failures
	// are reported in the result; the returned error is set only when the
	// transaction itself could not be opened or committed.
	InsertLogEntries(ctx context.Context, entries []*domain.LogEntry) (BatchResult, error)

	// InsertFlags writes all flags in one transaction with the same policy.
	InsertFlags(ctx context.Context, flags []*domain.FlagEntry) (BatchResult, error)

	Close() error
}
