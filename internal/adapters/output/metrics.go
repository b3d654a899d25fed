package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/logtally/internal/ports"
)

// PrometheusMetrics exports run counters for a batch job. There is no scrape
// endpoint: the registry is written to a node_exporter textfile and/or pushed
// to a Pushgateway once the run completes.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	linesProcessed *prometheus.CounterVec
	rowsWritten    prometheus.Counter
	rowsFailed     prometheus.Counter
	flagsWritten   prometheus.Counter
	flagsFailed    prometheus.Counter
	inWindow       prometheus.Gauge
	distinct       prometheus.Gauge
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge

	config MetricsConfig
}

type MetricsConfig struct {
	Namespace   string
	Textfile    string // node_exporter textfile collector target
	Pushgateway string // Pushgateway base URL
	Job         string
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "logtally",
		Job:       "logtally",
	}
}

func NewPrometheusMetrics(config MetricsConfig) *PrometheusMetrics {
	if config.Namespace == "" {
		config.Namespace = "logtally"
	}
	if config.Job == "" {
		config.Job = "logtally"
	}
	ns := config.Namespace

	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		config:   config,
	}

	m.linesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "lines_processed_total",
		Help:      "Log lines read, by parse result",
	}, []string{"result"})

	m.rowsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "log_rows_written_total",
		Help:      "LOG_DATA rows inserted",
	})
	m.rowsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "log_rows_failed_total",
		Help:      "LOG_DATA rows whose insert failed",
	})
	m.flagsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "flags_written_total",
		Help:      "EXCESS_REQUESTS rows inserted",
	})
	m.flagsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "flags_failed_total",
		Help:      "EXCESS_REQUESTS rows whose insert failed",
	})

	m.inWindow = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "window_requests",
		Help:      "Requests inside the analysis window",
	})
	m.distinct = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "window_addresses",
		Help:      "Distinct source addresses inside the analysis window",
	})
	m.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run",
	})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run completed",
	})

	m.registry.MustRegister(
		m.linesProcessed,
		m.rowsWritten, m.rowsFailed,
		m.flagsWritten, m.flagsFailed,
		m.inWindow, m.distinct,
		m.runDuration, m.lastRun,
	)

	return m
}

// IncrementLinesProcessedByResult implements ports.ProcessingObserver.
func (m *PrometheusMetrics) IncrementLinesProcessedByResult(result string) {
	m.linesProcessed.WithLabelValues(result).Inc()
}

// OnRunComplete records the run totals and exports them. Export failures are
// logged; they do not fail the run.
func (m *PrometheusMetrics) OnRunComplete(ctx context.Context, run ports.RunRecord) {
	sum := run.Summary
	m.rowsWritten.Add(float64(sum.RowsWritten))
	m.rowsFailed.Add(float64(sum.RowsFailed))
	m.flagsWritten.Add(float64(sum.FlagsWritten))
	m.flagsFailed.Add(float64(sum.FlagsFailed))
	m.inWindow.Set(float64(sum.InWindow))
	m.distinct.Set(float64(sum.DistinctAddresses))
	m.runDuration.Set(sum.Elapsed.Seconds())
	m.lastRun.Set(float64(time.Now().Unix()))

	if err := m.Export(ctx); err != nil {
		log.Warn().Err(err).Msg("Metrics export failed")
	}
}

// Export writes the textfile and pushes to the gateway, whichever are set.
func (m *PrometheusMetrics) Export(ctx context.Context) error {
	if m.config.Textfile != "" {
		if err := os.MkdirAll(filepath.Dir(m.config.Textfile), 0755); err != nil {
			return fmt.Errorf("failed to create textfile directory: %w", err)
		}
		if err := prometheus.WriteToTextfile(m.config.Textfile, m.registry); err != nil {
			return fmt.Errorf("failed to write metrics textfile: %w", err)
		}
		log.Debug().Str("path", m.config.Textfile).Msg("Metrics textfile written")
	}

	if m.config.Pushgateway != "" {
		err := push.New(m.config.Pushgateway, m.config.Job).
			Gatherer(m.registry).
			PushContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to push metrics: %w", err)
		}
		log.Debug().Str("url", m.config.Pushgateway).Str("job", m.config.Job).Msg("Metrics pushed")
	}
	return nil
}
