// Package metrics provides Prometheus instrumentation for log parser
// operations.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	collector, err := metrics.NewCollector(reg)
//	if err != nil {
//	    return err
//	}
//
//	parser, err := logparser.New(path, cfg, logparser.WithMetrics(collector))
//
// # Metrics
//
//   - logpress_rows_written_total{format}: rows written by saves
//   - logpress_saves_total{format,status}: save attempts by outcome
//   - logpress_matches_total{status}: match calls by outcome
//   - logpress_operation_duration_seconds{operation}: latency of parser operations
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusEmpty   = "empty"
)

// Collector groups the logpress metrics registered on one registerer
type Collector struct {
	rowsWritten *prometheus.CounterVec   // Rows written by format
	saves       *prometheus.CounterVec   // Save attempts by format and status
	matches     *prometheus.CounterVec   // Match calls by status
	duration    *prometheus.HistogramVec // Operation latency in seconds
}

// NewCollector creates the logpress metrics and registers them on reg.
// A nil reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		rowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logpress_rows_written_total",
				Help: "Total number of rows written by saves",
			},
			[]string{"format"},
		),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logpress_saves_total",
				Help: "Total number of save attempts",
			},
			[]string{"format", "status"},
		),
		matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logpress_matches_total",
				Help: "Total number of match calls",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "logpress_operation_duration_seconds",
				Help: "Duration of log parser operations in seconds",
				Buckets: []float64{
					0.001, // 1ms - schema-only work
					0.01,  // 10ms - small samples
					0.1,   // 100ms - small files
					1,     // 1s
					10,    // 10s - large scans
					60,    // 1m - archival compression
					600,   // 10m
				},
			},
			[]string{"operation"},
		),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{c.rowsWritten, c.saves, c.matches, c.duration} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// RecordSave counts a save attempt and, on success, the rows written
func (c *Collector) RecordSave(format string, rows int64, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.saves.WithLabelValues(format, StatusFailure).Inc()
		return
	}
	c.saves.WithLabelValues(format, StatusSuccess).Inc()
	c.rowsWritten.WithLabelValues(format).Add(float64(rows))
}

// RecordMatch counts a match call. status is one of the Status constants.
func (c *Collector) RecordMatch(status string) {
	if c == nil {
		return
	}
	c.matches.WithLabelValues(status).Inc()
}

// ObserveDuration records how long operation took
func (c *Collector) ObserveDuration(operation string, d time.Duration) {
	if c == nil {
		return
	}
	c.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and reports elapsed time on stop.
type Timer struct {
	start     time.Time
	operation string
	collector *Collector
}

// NewTimer creates a new timer for operation and starts timing immediately.
//
// Example:
//
//	timer := collector.NewTimer("save")
//	defer timer.Stop()
func (c *Collector) NewTimer(operation string) *Timer {
	return &Timer{start: time.Now(), operation: operation, collector: c}
}

// Stop observes the elapsed duration since creation and returns it. Each call
// records a new observation.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	t.collector.ObserveDuration(t.operation, d)
	return d
}
