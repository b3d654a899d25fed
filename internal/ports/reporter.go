package ports

import (
	"context"

	"github.com/xoelrdgz/logtally/internal/domain"
)

// FlagReporter receives flagged addresses as the pipeline discovers them.
//
// Implementations:
//   - ConsoleReporter: operator lines on stdout
//   - JSONReporter: NDJSON to a file or stdout
//   - SummaryReport: end-of-run table
type FlagReporter interface {
	// Report is called once per flagged address, in address order.
	Report(ctx context.Context, flag *domain.FlagEntry) error

	// Flush forces pending output to its destination.
	Flush() error

	Close() error
}

// RunObserver is notified when a run finishes. Used by metrics exporters and
// the run history.
type RunObserver interface {
	OnRunComplete(ctx context.Context, run RunRecord)
}

// RunRecord describes a finished run.
type RunRecord struct {
	ID        string            `json:"id"`
	AccessLog string            `json:"access_log"`
	Window    domain.TimeWindow `json:"window"`
	Threshold int               `json:"threshold"`
	Summary   domain.RunSummary `json:"summary"`
	Flagged   []string          `json:"flagged,omitempty"`
}

// ProcessingObserver counts every line read, labelled with its parse result:
// "parsed" or one of the domain.Skip* reasons.
type ProcessingObserver interface {
	IncrementLinesProcessedByResult(result string)
}

// OperatorNotifier receives progress lines meant for the operator, as
// opposed to diagnostic logs.
type OperatorNotifier interface {
	Notify(msg string)
}
