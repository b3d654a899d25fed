package input

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/xoelrdgz/logtally/internal/domain"
)

var (
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidTimestamp = errors.New("invalid timestamp format")
	ErrInvalidStatus    = errors.New("invalid status code")
	ErrBlankLine        = errors.New("blank line")
)

// PipeLogParser parses lines of the form
//
//	timestamp|source_address|request_line|status_code|user_agent
//
// Text fields are kept verbatim. The line is split into at most five fields,
// so a '|' inside the user agent is preserved. Canonical lines render back
// unchanged through LogEntry.Line.
type PipeLogParser struct {
	loc *time.Location
}

// NewPipeLogParser returns a parser that reads timestamps in loc
// (time.Local when nil).
func NewPipeLogParser(loc *time.Location) *PipeLogParser {
	if loc == nil {
		loc = time.Local
	}
	return &PipeLogParser{loc: loc}
}

func (p *PipeLogParser) Parse(line string) (*domain.LogEntry, error) {
	if line == "" {
		return nil, ErrBlankLine
	}

	fields := strings.SplitN(line, domain.FieldSeparator, domain.FieldCount)
	if len(fields) < domain.FieldCount {
		return nil, ErrInvalidLogFormat
	}

	ts, err := p.parseTimestamp(fields[0])
	if err != nil {
		return nil, err
	}

	status, err := parseStatus(fields[3])
	if err != nil {
		return nil, err
	}

	return &domain.LogEntry{
		Timestamp:  ts,
		IP:         fields[1],
		Request:    fields[2],
		StatusCode: status,
		UserAgent:  fields[4],
		RawLine:    line,
	}, nil
}

func (p *PipeLogParser) Format() string {
	return "pipe"
}

func (p *PipeLogParser) parseTimestamp(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(domain.TimestampLayout, s, p.loc)
	if err != nil {
		return time.Time{}, ErrInvalidTimestamp
	}
	return ts, nil
}

// parseStatus accepts anything strconv.Atoi does, including "+200" and
// "0200".
func parseStatus(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidStatus
	}
	return n, nil
}

func (p *PipeLogParser) SkipReason(err error) string {
	return SkipReason(err)
}

// SkipReason maps a parse error onto the reason label used in metrics.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, ErrBlankLine):
		return domain.SkipBlank
	case errors.Is(err, ErrInvalidTimestamp):
		return domain.SkipTimestamp
	case errors.Is(err, ErrInvalidStatus):
		return domain.SkipStatus
	default:
		return domain.SkipFieldCount
	}
}
