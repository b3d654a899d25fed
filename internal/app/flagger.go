package app

import (
	"sort"

	"github.com/xoelrdgz/logtally/internal/domain"
)

// Flag returns one FlagEntry per address whose count is strictly greater
// than threshold, ordered by address.
func Flag(counts map[string]int, threshold int, window domain.TimeWindow) []*domain.FlagEntry {
	var flags []*domain.FlagEntry
	for ip, n := range counts {
		if n > threshold {
			f := domain.NewFlagEntry(ip, n, threshold)
			f.Window = window.String()
			flags = append(flags, f)
		}
	}

	sort.Slice(flags, func(i, j int) bool {
		return flags[i].IP < flags[j].IP
	})
	return flags
}
