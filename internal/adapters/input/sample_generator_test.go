package input

import (
	"bufio"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleGeneratorProducesParseableLines(t *testing.T) {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	gen := NewSampleGenerator(SampleConfig{
		Lines:            500,
		Start:            start,
		Span:             time.Hour,
		HeavyHitters:     2,
		HeavyPercent:     50,
		MalformedPercent: 0,
		Seed:             42,
	})

	var buf bytes.Buffer
	n, err := gen.WriteTo(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 500, n)

	parser := NewPipeLogParser(time.UTC)
	heavy := map[string]bool{}
	for _, ip := range gen.HeavyHitters() {
		heavy[ip] = true
	}
	require.Len(t, heavy, 2)

	scanner := bufio.NewScanner(&buf)
	lines, heavyHits := 0, 0
	for scanner.Scan() {
		entry, err := parser.Parse(scanner.Text())
		require.NoError(t, err, "line %d: %q", lines+1, scanner.Text())
		assert.False(t, entry.Timestamp.Before(start))
		assert.True(t, entry.Timestamp.Before(start.Add(time.Hour)))
		if heavy[entry.IP] {
			heavyHits++
		}
		lines++
	}
	assert.Equal(t, 500, lines)
	assert.Greater(t, heavyHits, 100)
}

func TestSampleGeneratorMalformedLines(t *testing.T) {
	gen := NewSampleGenerator(SampleConfig{
		Lines:            200,
		Start:            time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		MalformedPercent: 100,
		Seed:             7,
	})

	var buf bytes.Buffer
	_, err := gen.WriteTo(context.Background(), &buf)
	require.NoError(t, err)

	parser := NewPipeLogParser(time.UTC)
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		_, err := parser.Parse(scanner.Text())
		assert.Error(t, err, "expected malformed line: %q", scanner.Text())
	}
}

func TestSampleGeneratorDeterministic(t *testing.T) {
	config := SampleConfig{Lines: 50, Seed: 3, HeavyHitters: 1, HeavyPercent: 30, MalformedPercent: 10}

	var a, b bytes.Buffer
	_, err := NewSampleGenerator(config).WriteTo(context.Background(), &a)
	require.NoError(t, err)
	_, err = NewSampleGenerator(config).WriteTo(context.Background(), &b)
	require.NoError(t, err)

	assert.Equal(t, a.String(), b.String())
}

func TestSampleGeneratorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := NewSampleGenerator(SampleConfig{Lines: 10}).WriteTo(ctx, &buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateIPPool(t *testing.T) {
	pool := generateIPPool(600, []string{"10.0.", "10.1."})
	assert.Len(t, pool, 600)

	seen := map[string]bool{}
	for _, ip := range pool {
		assert.False(t, seen[ip], "duplicate %s", ip)
		seen[ip] = true
	}

	assert.Nil(t, generateIPPool(0, []string{"10.0."}))
}
