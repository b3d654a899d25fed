package input

import (
	"bufio"
	"context"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/logtally/internal/domain"
)

// SampleConfig controls the synthetic access log written by SampleGenerator.
type SampleConfig struct {
	Lines            int
	Start            time.Time
	Span             time.Duration
	HeavyHitters     int
	HeavyPercent     int
	MalformedPercent int
	Seed             int64
}

func DefaultSampleConfig() SampleConfig {
	return SampleConfig{
		Lines:            10000,
		Start:            time.Date(2017, 1, 1, 0, 0, 0, 0, time.Local),
		Span:             24 * time.Hour,
		HeavyHitters:     5,
		HeavyPercent:     20,
		MalformedPercent: 1,
		Seed:             1,
	}
}

// SampleGenerator writes pipe-delimited access log lines with a few
// addresses that dominate traffic, so threshold runs have something to flag.
type SampleGenerator struct {
	config SampleConfig
	rng    *rand.Rand

	normalIPs  []string
	heavyIPs   []string
	requests   []string
	statuses   []int
	userAgents []string
}

func NewSampleGenerator(config SampleConfig) *SampleGenerator {
	def := DefaultSampleConfig()
	if config.Lines <= 0 {
		config.Lines = def.Lines
	}
	if config.Start.IsZero() {
		config.Start = def.Start
	}
	if config.Span <= 0 {
		config.Span = def.Span
	}
	if config.HeavyHitters < 0 {
		config.HeavyHitters = 0
	}
	config.HeavyPercent = clampPercent(config.HeavyPercent)
	config.MalformedPercent = clampPercent(config.MalformedPercent)

	return &SampleGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
		normalIPs: generateIPPool(2000, []string{
			"192.168.", "10.0.", "10.1.", "172.16.", "203.0.113.", "198.51.100.",
		}),
		heavyIPs: generateIPPool(config.HeavyHitters, []string{
			"45.33.", "185.220.", "89.234.", "91.121.", "51.15.",
		}),
		requests: []string{
			`"GET / HTTP/1.1"`,
			`"GET /index.html HTTP/1.1"`,
			`"POST /api/login HTTP/1.1"`,
			`"GET /api/users HTTP/1.1"`,
			`"GET /css/main.css HTTP/1.1"`,
			`"GET /images/logo.png HTTP/1.1"`,
			`"PUT /api/orders HTTP/1.1"`,
		},
		statuses: []int{200, 200, 200, 201, 301, 304, 401, 403, 404, 500},
		userAgents: []string{
			`"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"`,
			`"Mozilla/5.0 (Macintosh; Intel Mac OS X) Safari/17.0"`,
			`"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0) Mobile Safari"`,
			`"swcd (unknown version) CFNetwork/808.2.16 Darwin/15.6.0"`,
			`"python-requests/2.31.0"`,
			`"curl/8.4.0"`,
		},
	}
}

// WriteTo writes config.Lines lines to w, stopping early if ctx is done.
func (g *SampleGenerator) WriteTo(ctx context.Context, w io.Writer) (int, error) {
	bw := bufio.NewWriterSize(w, 64*1024)
	step := g.config.Span / time.Duration(g.config.Lines)

	written := 0
	for i := 0; i < g.config.Lines; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return written, err
			}
		}

		ts := g.config.Start.Add(time.Duration(i) * step)
		if _, err := bw.WriteString(g.generateLine(ts)); err != nil {
			return written, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return written, err
		}
		written++
	}

	if err := bw.Flush(); err != nil {
		return written, err
	}
	log.Debug().Int("lines", written).Msg("Sample log generated")
	return written, nil
}

func (g *SampleGenerator) generateLine(ts time.Time) string {
	entry := &domain.LogEntry{
		Timestamp:  ts,
		IP:         g.pickIP(),
		Request:    g.requests[g.rng.Intn(len(g.requests))],
		StatusCode: g.statuses[g.rng.Intn(len(g.statuses))],
		UserAgent:  g.userAgents[g.rng.Intn(len(g.userAgents))],
	}

	if g.rng.Intn(100) < g.config.MalformedPercent {
		return g.malform(entry)
	}
	return entry.Line()
}

func (g *SampleGenerator) pickIP() string {
	if len(g.heavyIPs) > 0 && g.rng.Intn(100) < g.config.HeavyPercent {
		return g.heavyIPs[g.rng.Intn(len(g.heavyIPs))]
	}
	return g.normalIPs[g.rng.Intn(len(g.normalIPs))]
}

func (g *SampleGenerator) malform(entry *domain.LogEntry) string {
	line := entry.Line()
	switch g.rng.Intn(3) {
	case 0:
		fields := strings.SplitN(line, domain.FieldSeparator, domain.FieldCount)
		return strings.Join(fields[:3], domain.FieldSeparator)
	case 1:
		return strings.Replace(line, entry.Timestamp.Format(domain.TimestampLayout),
			entry.Timestamp.Format(time.RFC1123), 1)
	default:
		return strings.Replace(line, domain.FieldSeparator+strconv.Itoa(entry.StatusCode)+domain.FieldSeparator,
			domain.FieldSeparator+"OK"+domain.FieldSeparator, 1)
	}
}

// HeavyHitters returns the addresses that receive the heavy share of traffic.
func (g *SampleGenerator) HeavyHitters() []string {
	out := make([]string, len(g.heavyIPs))
	copy(out, g.heavyIPs)
	return out
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func generateIPPool(count int, prefixes []string) []string {
	if count <= 0 {
		return nil
	}
	ips := make([]string, 0, count)
	perPrefix := count / len(prefixes)
	remainder := count % len(prefixes)

	for i, prefix := range prefixes {
		n := perPrefix
		if i < remainder {
			n++
		}
		for j := 0; j < n; j++ {
			third := (j / 255) % 256
			fourth := j%255 + 1
			ips = append(ips, prefix+strconv.Itoa(third)+"."+strconv.Itoa(fourth))
		}
	}

	return ips
}
