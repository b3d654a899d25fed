package app

import (
	"github.com/xoelrdgz/logtally/internal/domain"
)

// CountByAddress counts in-window entries per source address in one pass.
// Entries outside the window are ignored, so every key has a count of at
// least one. The second result is the number of in-window entries, which
// always equals the sum of the counts.
func CountByAddress(entries []*domain.LogEntry, window domain.TimeWindow) (map[string]int, int64) {
	counts := make(map[string]int)
	var inWindow int64

	for _, e := range entries {
		if e == nil || !window.Contains(e.Timestamp) {
			continue
		}
		counts[e.IP]++
		inWindow++
	}
	return counts, inWindow
}
