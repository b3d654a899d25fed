package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/logtally/internal/domain"
)

var windowStart = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

func hourlyWindow(t testing.TB) domain.TimeWindow {
	t.Helper()
	w, err := domain.NewTimeWindow(windowStart, domain.DurationHourly)
	require.NoError(t, err)
	return w
}

func entryAt(ip string, offset time.Duration) *domain.LogEntry {
	return &domain.LogEntry{
		Timestamp:  windowStart.Add(offset),
		IP:         ip,
		Request:    `"GET / HTTP/1.1"`,
		StatusCode: 200,
		UserAgent:  "test",
	}
}

func TestCountByAddress(t *testing.T) {
	entries := []*domain.LogEntry{
		entryAt("192.168.1.1", 10*time.Second),
		entryAt("192.168.1.1", 15*time.Minute),
		entryAt("192.168.1.1", 59*time.Minute+59*time.Second),
		entryAt("10.0.0.5", 30*time.Minute),
		entryAt("10.0.0.9", 2*time.Hour),
	}

	counts, inWindow := CountByAddress(entries, hourlyWindow(t))

	assert.Equal(t, map[string]int{"192.168.1.1": 3, "10.0.0.5": 1}, counts)
	assert.Equal(t, int64(4), inWindow)
}

func TestCountByAddressExcludesBoundaries(t *testing.T) {
	entries := []*domain.LogEntry{
		entryAt("10.0.0.1", 0),
		entryAt("10.0.0.2", time.Hour),
		entryAt("10.0.0.3", time.Millisecond),
		entryAt("10.0.0.4", time.Hour-time.Millisecond),
	}

	counts, inWindow := CountByAddress(entries, hourlyWindow(t))

	assert.Equal(t, map[string]int{"10.0.0.3": 1, "10.0.0.4": 1}, counts)
	assert.Equal(t, int64(2), inWindow)
}

func TestCountByAddressSumsMatch(t *testing.T) {
	var entries []*domain.LogEntry
	for i := 0; i < 500; i++ {
		ip := fmt.Sprintf("10.0.%d.%d", i%7, i%11)
		entries = append(entries, entryAt(ip, time.Duration(i)*10*time.Second))
	}
	entries = append(entries, nil)

	counts, inWindow := CountByAddress(entries, hourlyWindow(t))

	sum := 0
	for _, n := range counts {
		assert.Positive(t, n)
		sum += n
	}
	assert.Equal(t, int64(sum), inWindow)

	distinct := make(map[string]struct{})
	for _, e := range entries {
		if e != nil && hourlyWindow(t).Contains(e.Timestamp) {
			distinct[e.IP] = struct{}{}
		}
	}
	assert.Len(t, counts, len(distinct))
}

func TestCountByAddressEmpty(t *testing.T) {
	counts, inWindow := CountByAddress(nil, hourlyWindow(t))
	assert.Empty(t, counts)
	assert.Zero(t, inWindow)
}

func BenchmarkCountByAddress(b *testing.B) {
	entries := make([]*domain.LogEntry, 10000)
	for i := range entries {
		entries[i] = entryAt(fmt.Sprintf("10.0.0.%d", i%250), time.Duration(i%3600)*time.Second)
	}
	w := hourlyWindow(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CountByAddress(entries, w)
	}
}
