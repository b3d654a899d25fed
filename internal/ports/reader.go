package ports

import (
	"context"

	"github.com/xoelrdgz/logtally/internal/domain"
)

// LineSource yields the raw lines of an access log in file order. The line
// channel is closed at end of input; read errors are delivered on the error
// channel and do not stop the source.
type LineSource interface {
	Start(ctx context.Context) (<-chan string, <-chan error)
	Stop() error
}

// LogParser turns one raw line into a LogEntry. A failed parse is never
// fatal; SkipReason labels the error for logs and metrics.
type LogParser interface {
	Parse(line string) (*domain.LogEntry, error)
	Format() string
	SkipReason(err error) string
}
