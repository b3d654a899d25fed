package domain

import (
	"sync/atomic"
	"time"
)

// Skip reasons reported for lines that never become a LogEntry.
const (
	SkipFieldCount = "field_count"
	SkipTimestamp  = "timestamp"
	SkipStatus     = "status"
	SkipBlank      = "blank"
)

// RunSummary is the outcome of one ingestion run.
type RunSummary struct {
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	LinesRead   int64         `json:"lines_read"`
	Parsed      int64         `json:"parsed"`
	Skipped     int64         `json:"skipped"`
	RowsWritten int64         `json:"rows_written"`
	RowsFailed  int64         `json:"rows_failed"`

	InWindow          int64 `json:"in_window"`
	DistinctAddresses int   `json:"distinct_addresses"`

	FlagsWritten int64 `json:"flags_written"`
	FlagsFailed  int64 `json:"flags_failed"`
}

// RunStats accumulates counters while a run is in progress. Counters are
// atomic so exporters may read them at any time.
type RunStats struct {
	linesRead    atomic.Int64
	parsed       atomic.Int64
	skipped      atomic.Int64
	rowsWritten  atomic.Int64
	rowsFailed   atomic.Int64
	inWindow     atomic.Int64
	flagsWritten atomic.Int64
	flagsFailed  atomic.Int64

	distinct  atomic.Int64
	startTime time.Time
}

func NewRunStats() *RunStats {
	return &RunStats{startTime: time.Now()}
}

func (s *RunStats) IncrementLines()   { s.linesRead.Add(1) }
func (s *RunStats) IncrementParsed()  { s.parsed.Add(1) }
func (s *RunStats) IncrementSkipped() { s.skipped.Add(1) }

func (s *RunStats) AddRows(written, failed int) {
	s.rowsWritten.Add(int64(written))
	s.rowsFailed.Add(int64(failed))
}
func (s *RunStats) AddFlags(written, failed int) {
	s.flagsWritten.Add(int64(written))
	s.flagsFailed.Add(int64(failed))
}
func (s *RunStats) SetWindowCounts(inWindow int64, distinct int) {
	s.inWindow.Store(inWindow)
	s.distinct.Store(int64(distinct))
}

func (s *RunStats) LinesRead() int64 { return s.linesRead.Load() }
func (s *RunStats) Parsed() int64    { return s.parsed.Load() }
func (s *RunStats) Skipped() int64   { return s.skipped.Load() }

func (s *RunStats) Snapshot() RunSummary {
	return RunSummary{
		StartedAt:         s.startTime,
		Elapsed:           time.Since(s.startTime),
		LinesRead:         s.linesRead.Load(),
		Parsed:            s.parsed.Load(),
		Skipped:           s.skipped.Load(),
		RowsWritten:       s.rowsWritten.Load(),
		RowsFailed:        s.rowsFailed.Load(),
		InWindow:          s.inWindow.Load(),
		DistinctAddresses: int(s.distinct.Load()),
		FlagsWritten:      s.flagsWritten.Load(),
		FlagsFailed:       s.flagsFailed.Load(),
	}
}
