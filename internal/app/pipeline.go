package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/logtally/internal/domain"
	"github.com/xoelrdgz/logtally/internal/ports"
)

// ExcessRequestsHeader precedes the flagged addresses on the operator stream.
const ExcessRequestsHeader = "Ips with excess requests:"

// ParsedResult is the ProcessingObserver label for a line that parsed.
const ParsedResult = "parsed"

// Pipeline runs one ingestion pass: read, parse, persist, count, flag,
// persist flags. It is single-use and synchronous.
type Pipeline struct {
	config *RunConfig
	source ports.LineSource
	parser ports.LogParser
	store  ports.RecordStore

	reporters  []ports.FlagReporter
	observers  []ports.RunObserver
	processing []ports.ProcessingObserver
	notifier   ports.OperatorNotifier

	stats *domain.RunStats
}

func NewPipeline(
	config *RunConfig,
	source ports.LineSource,
	parser ports.LogParser,
	store ports.RecordStore,
) *Pipeline {
	return &Pipeline{
		config: config,
		source: source,
		parser: parser,
		store:  store,
		stats:  domain.NewRunStats(),
	}
}

func (p *Pipeline) AddReporter(r ports.FlagReporter) {
	p.reporters = append(p.reporters, r)
}

func (p *Pipeline) AddRunObserver(o ports.RunObserver) {
	p.observers = append(p.observers, o)
}

func (p *Pipeline) AddProcessingObserver(o ports.ProcessingObserver) {
	p.processing = append(p.processing, o)
}

func (p *Pipeline) SetNotifier(n ports.OperatorNotifier) {
	p.notifier = n
}

// Run executes the pass. Skipped lines and failed rows are logged and
// counted; only schema, transaction and cancellation errors are returned.
// The summary reflects whatever was done before an error.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	if err := p.store.EnsureSchema(ctx); err != nil {
		return p.stats.Snapshot(), fmt.Errorf("create schema: %w", err)
	}

	entries, err := p.readEntries(ctx)
	if err != nil {
		return p.stats.Snapshot(), err
	}

	log.Info().
		Int64("lines", p.stats.LinesRead()).
		Int64("parsed", p.stats.Parsed()).
		Int64("skipped", p.stats.Skipped()).
		Msg("Access log read")

	rows, err := p.store.InsertLogEntries(ctx, entries)
	p.stats.AddRows(rows.Written, rows.Failed())
	if err != nil {
		return p.stats.Snapshot(), fmt.Errorf("persist log entries: %w", err)
	}

	counts, inWindow := CountByAddress(entries, p.config.Window)
	p.stats.SetWindowCounts(inWindow, len(counts))

	log.Debug().
		Str("window", p.config.Window.String()).
		Int64("in_window", inWindow).
		Int("addresses", len(counts)).
		Msg("Requests counted")

	p.notify(ExcessRequestsHeader)
	flags := Flag(counts, p.config.Threshold, p.config.Window)
	for _, f := range flags {
		p.report(ctx, f)
	}

	flagRows, err := p.store.InsertFlags(ctx, flags)
	p.stats.AddFlags(flagRows.Written, flagRows.Failed())
	p.flushReporters()
	if err != nil {
		return p.stats.Snapshot(), fmt.Errorf("persist flags: %w", err)
	}

	summary := p.stats.Snapshot()
	p.complete(ctx, summary, flags)
	return summary, nil
}

func (p *Pipeline) readEntries(ctx context.Context) ([]*domain.LogEntry, error) {
	lines, errs := p.source.Start(ctx)
	defer p.source.Stop()

	var entries []*domain.LogEntry
	lineNo := 0

	for lines != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Error().Err(err).Msg("Error reading access log")
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			lineNo++
			p.stats.IncrementLines()

			entry, err := p.parser.Parse(line)
			if err != nil {
				p.skip(lineNo, err)
				continue
			}
			entry.LineNumber = lineNo
			entries = append(entries, entry)
			p.stats.IncrementParsed()
			p.observe(ParsedResult)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *Pipeline) skip(lineNo int, err error) {
	reason := p.parser.SkipReason(err)
	p.stats.IncrementSkipped()
	p.observe(reason)

	ev := log.Warn()
	if reason == domain.SkipBlank {
		ev = log.Debug()
	}
	ev.Err(err).Int("line", lineNo).Str("reason", reason).Msg("Skipping log line")
}

func (p *Pipeline) observe(result string) {
	for _, o := range p.processing {
		o.IncrementLinesProcessedByResult(result)
	}
}

func (p *Pipeline) notify(msg string) {
	if p.notifier != nil {
		p.notifier.Notify(msg)
	}
}

func (p *Pipeline) report(ctx context.Context, f *domain.FlagEntry) {
	for _, r := range p.reporters {
		if err := r.Report(ctx, f); err != nil {
			log.Warn().Err(err).Str("ip", f.IP).Msg("Failed to report flagged address")
		}
	}
}

func (p *Pipeline) flushReporters() {
	for _, r := range p.reporters {
		if err := r.Flush(); err != nil {
			log.Warn().Err(err).Msg("Failed to flush reporter")
		}
	}
}

func (p *Pipeline) complete(ctx context.Context, summary domain.RunSummary, flags []*domain.FlagEntry) {
	run := ports.RunRecord{
		AccessLog: p.config.AccessLog,
		Window:    p.config.Window,
		Threshold: p.config.Threshold,
		Summary:   summary,
	}
	for _, f := range flags {
		run.Flagged = append(run.Flagged, f.IP)
	}

	for _, o := range p.observers {
		o.OnRunComplete(ctx, run)
	}
}
