package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xoelrdgz/logtally/internal/domain"
)

var ErrMissingSetting = errors.New("missing required setting")

// ConfigValidationError reports a run setting that cannot be used. It is
// always fatal and is raised before any file or database is touched.
type ConfigValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ConfigValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigValidationError) Unwrap() error {
	return e.Err
}

// RunSettings are the raw values collected from flags and configuration.
type RunSettings struct {
	StartDate string
	Duration  string
	Threshold int
	AccessLog string
	Timezone  string
}

// RunConfig is the validated configuration of one run. It is built once and
// passed to the pipeline; nothing reads global settings after that.
type RunConfig struct {
	Window    domain.TimeWindow
	Threshold int
	AccessLog string
	Location  *time.Location
}

// NewRunConfig validates s. The access log must exist and be a regular file.
func NewRunConfig(s RunSettings) (*RunConfig, error) {
	loc, err := LoadLocation(s.Timezone)
	if err != nil {
		return nil, &ConfigValidationError{Field: "timezone", Value: s.Timezone, Reason: "unknown time zone", Err: err}
	}

	if strings.TrimSpace(s.StartDate) == "" {
		return nil, &ConfigValidationError{Field: "startDate", Reason: "required", Err: ErrMissingSetting}
	}
	start, err := domain.ParseStartDate(s.StartDate, loc)
	if err != nil {
		return nil, &ConfigValidationError{
			Field:  "startDate",
			Value:  s.StartDate,
			Reason: "expected " + domain.StartDateLayout,
			Err:    err,
		}
	}

	if strings.TrimSpace(s.Duration) == "" {
		return nil, &ConfigValidationError{Field: "duration", Reason: "required", Err: ErrMissingSetting}
	}
	d, err := domain.ParseDuration(s.Duration)
	if err != nil {
		return nil, &ConfigValidationError{Field: "duration", Value: s.Duration, Reason: "expected daily or hourly", Err: err}
	}

	if s.Threshold < 0 {
		return nil, &ConfigValidationError{
			Field:  "threshold",
			Value:  fmt.Sprintf("%d", s.Threshold),
			Reason: "must not be negative",
		}
	}

	if s.AccessLog == "" {
		return nil, &ConfigValidationError{Field: "accesslog", Reason: "required", Err: ErrMissingSetting}
	}
	info, err := os.Stat(s.AccessLog)
	if err != nil {
		return nil, &ConfigValidationError{Field: "accesslog", Value: s.AccessLog, Reason: "not readable", Err: err}
	}
	if info.IsDir() {
		return nil, &ConfigValidationError{Field: "accesslog", Value: s.AccessLog, Reason: "is a directory"}
	}

	window, err := domain.NewTimeWindow(start, d)
	if err != nil {
		return nil, &ConfigValidationError{Field: "duration", Value: s.Duration, Reason: err.Error(), Err: err}
	}

	return &RunConfig{
		Window:    window,
		Threshold: s.Threshold,
		AccessLog: s.AccessLog,
		Location:  loc,
	}, nil
}

// LoadLocation resolves an IANA zone name. Empty and "Local" mean time.Local.
func LoadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local, nil
	default:
		return time.LoadLocation(name)
	}
}
