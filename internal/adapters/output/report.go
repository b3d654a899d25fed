package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/logtally/internal/domain"
	"github.com/xoelrdgz/logtally/internal/ports"
	"github.com/xoelrdgz/logtally/pkg/sanitize"
)

const (
	reportWidth    = 60
	reportMaxRows  = 25
	reportBarWidth = 10
)

// SummaryReport collects flags during the run and prints a summary table
// when the run completes.
type SummaryReport struct {
	out   io.Writer
	flags []*domain.FlagEntry
	mu    sync.Mutex

	title  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	muted  lipgloss.Style
	dim    lipgloss.Style
	red    lipgloss.Style
	amber  lipgloss.Style
	border lipgloss.Style
}

// NewSummaryReport renders to out, or stderr when out is nil. Colors follow
// the capabilities of out.
func NewSummaryReport(out io.Writer) *SummaryReport {
	if out == nil {
		out = os.Stderr
	}
	r := lipgloss.NewRenderer(out)

	return &SummaryReport{
		out:   out,
		title: r.NewStyle().Foreground(lipgloss.Color("#00ff41")).Bold(true),
		label: r.NewStyle().Foreground(lipgloss.Color("#707070")),
		value: r.NewStyle().Foreground(lipgloss.Color("#e5e5e5")).Bold(true),
		muted: r.NewStyle().Foreground(lipgloss.Color("#707070")).Bold(true),
		dim:   r.NewStyle().Foreground(lipgloss.Color("#404040")),
		red:   r.NewStyle().Foreground(lipgloss.Color("#ff3333")).Bold(true),
		amber: r.NewStyle().Foreground(lipgloss.Color("#ffb000")).Bold(true),
		border: r.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#1a3a1a")).
			Padding(0, 1),
	}
}

func (s *SummaryReport) Report(ctx context.Context, flag *domain.FlagEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, flag)
	return nil
}

func (s *SummaryReport) Flush() error { return nil }
func (s *SummaryReport) Close() error { return nil }

// OnRunComplete implements ports.RunObserver.
func (s *SummaryReport) OnRunComplete(ctx context.Context, run ports.RunRecord) {
	fmt.Fprintln(s.out, s.Render(run))
}

// Render returns the summary box for run followed by the flagged addresses,
// highest count first.
func (s *SummaryReport) Render(run ports.RunRecord) string {
	s.mu.Lock()
	flags := make([]*domain.FlagEntry, len(s.flags))
	copy(flags, s.flags)
	s.mu.Unlock()

	sum := run.Summary
	rows := [][2]string{
		{"window", run.Window.String()},
		{"threshold", fmt.Sprintf("%d", run.Threshold)},
		{"lines read", fmtLarge(sum.LinesRead)},
		{"parsed", fmtLarge(sum.Parsed)},
		{"skipped", fmtLarge(sum.Skipped)},
		{"rows written", fmt.Sprintf("%s (%s failed)", fmtLarge(sum.RowsWritten), fmtLarge(sum.RowsFailed))},
		{"in window", fmt.Sprintf("%s from %d addresses", fmtLarge(sum.InWindow), sum.DistinctAddresses)},
		{"flagged", fmt.Sprintf("%s (%s failed)", fmtLarge(sum.FlagsWritten), fmtLarge(sum.FlagsFailed))},
		{"elapsed", sum.Elapsed.Round(time.Millisecond).String()},
	}

	var lines []string
	lines = append(lines, s.title.Render("logtally run summary"))
	for _, row := range rows {
		lines = append(lines, s.label.Render(padRight(row[0], 14))+s.value.Render(row[1]))
	}

	lines = append(lines, "")
	lines = append(lines, s.renderFlags(flags)...)

	return s.border.Render(strings.Join(lines, "\n"))
}

func (s *SummaryReport) renderFlags(flags []*domain.FlagEntry) []string {
	if len(flags) == 0 {
		return []string{s.dim.Italic(true).Render("  No addresses over threshold")}
	}

	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].Count != flags[j].Count {
			return flags[i].Count > flags[j].Count
		}
		return flags[i].IP < flags[j].IP
	})

	var lines []string
	lines = append(lines, s.muted.Render(fmt.Sprintf(" %-3s %-20s %s", "#", "ADDRESS", "REQUESTS")))
	lines = append(lines, s.dim.Render(strings.Repeat("─", reportWidth-4)))

	maxCount := flags[0].Count
	visible := flags
	if len(visible) > reportMaxRows {
		visible = visible[:reportMaxRows]
	}

	for i, f := range visible {
		style := s.amber
		if f.Threshold > 0 && f.Count >= 2*f.Threshold {
			style = s.red
		}

		fill := 0
		if maxCount > 0 {
			fill = f.Count * reportBarWidth / maxCount
		}
		bar := strings.Repeat("█", fill) + strings.Repeat("░", reportBarWidth-fill)

		lines = append(lines, fmt.Sprintf(" %s %s %s",
			s.label.Render(fmt.Sprintf("%2d.", i+1)),
			style.Render(padRight(sanitize.Address(f.IP), 20)),
			style.Render(fmt.Sprintf("%s %6s", bar, fmtLarge(int64(f.Count)))),
		))
	}

	if len(flags) > reportMaxRows {
		lines = append(lines, s.dim.Render(fmt.Sprintf("  [showing %d of %d addresses]", reportMaxRows, len(flags))))
	}
	return lines
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s[:length]
	}
	return s + strings.Repeat(" ", length-len(s))
}

func fmtLarge(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
