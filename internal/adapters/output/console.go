// Package output provides the reporting adapters for logtally.
//
// This package implements the run's output destinations:
//   - ConsoleReporter: operator lines on stdout
//   - JSONReporter: one JSON object per flagged address
//   - SummaryReport: lipgloss table printed after the run
//   - PrometheusMetrics: textfile and Pushgateway export
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/xoelrdgz/logtally/internal/domain"
	"github.com/xoelrdgz/logtally/pkg/sanitize"
)

// ConsoleReporter writes operator lines. Addresses come from the log and are
// sanitized before printing.
type ConsoleReporter struct {
	out io.Writer
	mu  sync.Mutex
}

// NewConsoleReporter writes to out, or stdout when out is nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out}
}

func (c *ConsoleReporter) Notify(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, msg)
}

func (c *ConsoleReporter) Report(ctx context.Context, flag *domain.FlagEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "IP: %s\n", sanitize.Address(flag.IP))
	return err
}

func (c *ConsoleReporter) Flush() error {
	if f, ok := c.out.(interface{ Sync() error }); ok {
		// stdout may not support fsync
		_ = f.Sync()
	}
	return nil
}

func (c *ConsoleReporter) Close() error {
	return c.Flush()
}
