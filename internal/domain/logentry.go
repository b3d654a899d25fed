package domain

import (
	"strconv"
	"strings"
	"time"
)

const (
	// FieldSeparator splits the five fields of an access log line.
	FieldSeparator = "|"
	FieldCount     = 5

	// TimestampLayout is the on-disk layout of the first field.
	TimestampLayout = "2006-01-02 15:04:05.000"
)

// LogEntry is one parsed access log record. Fields hold the exact text found
// in the line; only Timestamp and StatusCode are converted.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	Request    string    `json:"request"`
	StatusCode int       `json:"status_code"`
	UserAgent  string    `json:"user_agent"`

	LineNumber int    `json:"line_number,omitempty"`
	RawLine    string `json:"raw_line,omitempty"`
}

// Line renders the entry back into its pipe-delimited form.
func (e *LogEntry) Line() string {
	var b strings.Builder
	b.Grow(len(e.IP) + len(e.Request) + len(e.UserAgent) + 40)
	b.WriteString(e.Timestamp.Format(TimestampLayout))
	b.WriteString(FieldSeparator)
	b.WriteString(e.IP)
	b.WriteString(FieldSeparator)
	b.WriteString(e.Request)
	b.WriteString(FieldSeparator)
	b.WriteString(strconv.Itoa(e.StatusCode))
	b.WriteString(FieldSeparator)
	b.WriteString(e.UserAgent)
	return b.String()
}
