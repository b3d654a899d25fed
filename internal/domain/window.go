package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StartDateLayout is the layout accepted for the window start.
const StartDateLayout = "2006-01-02.15:04:05"

var (
	ErrUnknownDuration  = errors.New("unknown duration")
	ErrInvalidStartDate = errors.New("invalid start date")
)

type Duration string

const (
	DurationHourly Duration = "hourly"
	DurationDaily  Duration = "daily"
)

// ParseDuration accepts "hourly" or "daily" in any letter case.
func ParseDuration(s string) (Duration, error) {
	switch strings.ToLower(s) {
	case string(DurationHourly):
		return DurationHourly, nil
	case string(DurationDaily):
		return DurationDaily, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDuration, s)
	}
}

// ParseStartDate parses a window start in StartDateLayout, interpreted in loc.
func ParseStartDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(StartDateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidStartDate, s)
	}
	return t, nil
}

// TimeWindow is the open interval (Start, End). Both bounds are excluded.
type TimeWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration Duration  `json:"duration"`
}

func NewTimeWindow(start time.Time, d Duration) (TimeWindow, error) {
	var end time.Time
	switch d {
	case DurationHourly:
		end = start.Add(time.Hour)
	case DurationDaily:
		end = start.AddDate(0, 0, 1)
	default:
		return TimeWindow{}, fmt.Errorf("%w: %q", ErrUnknownDuration, string(d))
	}
	return TimeWindow{Start: start, End: end, Duration: d}, nil
}

// Contains reports whether t lies strictly after Start and strictly before End.
func (w TimeWindow) Contains(t time.Time) bool {
	return t.After(w.Start) && t.Before(w.End)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("(%s, %s)", w.Start.Format(StartDateLayout), w.End.Format(StartDateLayout))
}
