// Package logparser binds a log configuration to an on-disk log and exposes
// lazy summary, match and save operations over it.
//
// Construction inspects only the schema of the log. Data is read by the
// terminal operations: Summary reads at most MaxDisplayRows rows, Match
// materializes the filtered rows and Save streams the whole log to a
// sibling file.
//
// # Known limitations
//
// The existence check that protects Save destinations is not atomic with
// the write that follows it. Two concurrent saves to the same destination
// race, and a crash mid-write can leave a partial destination file.
package logparser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/logpress/pkg/config"
	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/formats"
	"github.com/ajitpratap0/logpress/pkg/frame"
	"github.com/ajitpratap0/logpress/pkg/metrics"
	"github.com/ajitpratap0/logpress/pkg/observability"
)

const (
	// ZstdCompressionLevel is the zstd level of parquet saves. Maximum
	// compression is slow but very space efficient.
	ZstdCompressionLevel = 22

	// MaxDisplayRows bounds the rows a summary reads: the first and last
	// MaxDisplayRows/2 rows of the log.
	MaxDisplayRows = 6
)

// Option configures a LogParser
type Option func(*options)

type options struct {
	logger      *zap.Logger
	metrics     *metrics.Collector
	memoryLimit int64
	inferLength int
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records operation metrics on c
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}

// WithMemoryLimit bounds the bytes Match may materialize. Zero means no limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithInferLength sets how many JSON records are sampled for type inference
func WithInferLength(n int) Option {
	return func(o *options) {
		o.inferLength = n
	}
}

// LogParser is a lazy view over one log file. It is immutable after New and
// safe for concurrent reads.
type LogParser struct {
	path    string
	stem    string
	format  formats.Format
	cfg     config.LogConfig
	lf      *frame.LazyFrame
	schema  *arrow.Schema
	columns []string

	logger      *zap.Logger
	metrics     *metrics.Collector
	memoryLimit int64
}

// New binds cfg to the log at path. The file extension selects the scan:
// .parquet logs use their embedded schema, .json logs are line-delimited
// JSON typed by the config's schema overrides and inference. New fails with
// ErrUnsupportedFormat for any other extension, before touching the file,
// and with ErrInvalidComparator when the comparator is not a field of the log.
func New(path string, cfg config.LogConfig, opts ...Option) (*LogParser, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	ext := filepath.Ext(path)
	format, err := formats.FromExtension(ext)
	if err != nil {
		return nil, err
	}

	p := &LogParser{
		path:        path,
		stem:        strings.TrimSuffix(path, ext),
		format:      format,
		cfg:         cfg,
		logger:      o.logger.With(zap.String("log", path)),
		metrics:     o.metrics,
		memoryLimit: o.memoryLimit,
	}

	timer := p.metrics.NewTimer("open")
	defer timer.Stop()

	switch format {
	case formats.Parquet:
		if len(cfg.SchemaOverrides()) > 0 {
			p.logger.Debug("schema overrides ignored for parquet log")
		}
		p.lf, err = frame.ScanParquet(path)
	case formats.JSON:
		var scanOpts []frame.ScanOption
		scanOpts, err = jsonScanOptions(cfg, o.inferLength)
		if err == nil {
			p.lf, err = frame.ScanNDJSON(path, scanOpts...)
		}
	default:
		err = errors.Newf(errors.ErrorTypeUnsupportedFormat, "unknown file extension type '%s'", ext).
			WithDetail("extension", ext).
			WithDetail("readable", "parquet, json")
	}
	if err != nil {
		return nil, err
	}

	columns, err := p.lf.Columns()
	if err != nil {
		return nil, err
	}
	if !contains(columns, cfg.Comparator()) {
		return nil, errors.Newf(errors.ErrorTypeInvalidComparator,
			"LogParser requires a valid comparator: '%s' not found in %v", cfg.Comparator(), columns).
			WithDetail("comparator", cfg.Comparator()).
			WithDetail("columns", columns)
	}

	if preferred := cfg.PreferredOrder(); len(preferred) > 0 {
		order, err := preferredOrder(columns, preferred)
		if err != nil {
			return nil, err
		}
		p.lf = p.lf.Select(order...)
		if columns, err = p.lf.Columns(); err != nil {
			return nil, err
		}
	}

	p.columns = columns
	p.schema, _ = p.lf.Schema()

	p.logger.Debug("log opened",
		zap.Stringer("format", format),
		zap.Strings("columns", columns),
		zap.String("comparator", cfg.Comparator()))

	return p, nil
}

func jsonScanOptions(cfg config.LogConfig, inferLength int) ([]frame.ScanOption, error) {
	var opts []frame.ScanOption
	if inferLength > 0 {
		opts = append(opts, frame.WithInferLength(inferLength))
	}

	overrides := cfg.SchemaOverrides()
	if len(overrides) == 0 {
		return opts, nil
	}
	fields := make([]arrow.Field, 0, len(overrides))
	for _, name := range config.OverrideFields(overrides) {
		dt := overrides[name]
		if dt.Kind() == config.KindInvalid {
			return nil, errors.Newf(errors.ErrorTypeValidation, "schema override for %q has no type", name)
		}
		fields = append(fields, dt.Field(name))
	}
	return append(opts, frame.WithSchemaOverrides(fields...)), nil
}

// preferredOrder lists the preferred columns first, then the remaining
// columns in schema order.
func preferredOrder(columns, preferred []string) ([]string, error) {
	order := make([]string, 0, len(columns))
	seen := make(map[string]struct{}, len(preferred))
	for _, name := range preferred {
		if !contains(columns, name) {
			return nil, errors.Newf(errors.ErrorTypeValidation, "preferred column '%s' not found in %v", name, columns).
				WithDetail("column", name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}
	for _, name := range columns {
		if _, ok := seen[name]; !ok {
			order = append(order, name)
		}
	}
	return order, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Path returns the log file path
func (p *LogParser) Path() string { return p.path }

// Stem returns the log path without its extension
func (p *LogParser) Stem() string { return p.stem }

// Format returns the format of the log file
func (p *LogParser) Format() formats.Format { return p.format }

// Config returns the bound configuration
func (p *LogParser) Config() config.LogConfig { return p.cfg }

// Schema returns the resolved output schema
func (p *LogParser) Schema() *arrow.Schema { return p.schema }

// Columns returns the output column names in order
func (p *LogParser) Columns() []string { return append([]string(nil), p.columns...) }

// LazyFrame gives access to the log in lazy form. Collecting it on a log
// larger than memory fails.
func (p *LogParser) LazyFrame() *frame.LazyFrame { return p.lf }

// Count returns the number of log entries
func (p *LogParser) Count(ctx context.Context) (int64, error) {
	return p.lf.Count(ctx)
}

// Summary renders the entry count and the distinct first and last rows of
// the log, sorted by the comparator. At most MaxDisplayRows rows are read.
func (p *LogParser) Summary(ctx context.Context) (_ string, err error) {
	timer := p.metrics.NewTimer("summary")
	defer timer.Stop()
	ctx, span := observability.StartSpan(ctx, "logparser.summary", attribute.String("log.path", p.path))
	defer func() { span.End(err) }()

	n := int64(MaxDisplayRows / 2)
	rows, err := p.lf.Count(ctx)
	if err != nil {
		return "", err
	}

	sample := frame.Concat(p.lf.Head(n), p.lf.Tail(n)).Unique().Sort(p.cfg.Comparator())
	df, err := sample.Collect(ctx)
	if err != nil {
		return "", err
	}
	defer df.Release()

	span.SetAttributes(attribute.Int64("log.rows", rows))

	var b strings.Builder
	fmt.Fprintf(&b, "LogParser (%p) with %d log entries\n", p, rows)
	if rows > MaxDisplayRows {
		fmt.Fprintf(&b, "Showing first and last %d rows\n", n)
	}
	b.WriteString(df.String())
	return b.String(), nil
}

// String implements fmt.Stringer with Summary
func (p *LogParser) String() string {
	s, err := p.Summary(context.Background())
	if err != nil {
		return fmt.Sprintf("LogParser (%p) for %s: %v", p, p.path, err)
	}
	return s
}

// Match returns every entry for which pred is true, sorted by the comparator
// when returnOrdered is set. It returns nil and no error when nothing
// matches.
//
// The whole filtered set is materialized. With a memory limit set, a result
// over the limit fails with ErrResourceExhausted; callers should retry with
// a narrower predicate.
func (p *LogParser) Match(ctx context.Context, pred frame.Predicate, returnOrdered bool) (df *frame.DataFrame, err error) {
	timer := p.metrics.NewTimer("match")
	defer timer.Stop()
	ctx, span := observability.StartSpan(ctx, "logparser.match",
		attribute.String("log.path", p.path),
		attribute.Bool("match.ordered", returnOrdered))
	defer func() { span.End(err) }()

	lf := p.lf.Filter(pred)
	if returnOrdered {
		lf = lf.Sort(p.cfg.Comparator())
	}

	df, err = lf.Collect(ctx, frame.WithMemoryLimit(p.memoryLimit))
	if err != nil {
		p.metrics.RecordMatch(metrics.StatusFailure)
		if errors.IsType(err, errors.ErrorTypeResourceExhausted) {
			if e, ok := err.(*errors.Error); ok {
				e.WithDetail("hint", "narrow the predicate")
			}
		}
		return nil, err
	}
	if df.IsEmpty() {
		df.Release()
		p.metrics.RecordMatch(metrics.StatusEmpty)
		p.logger.Debug("match found no entries")
		return nil, nil
	}

	span.SetAttributes(attribute.Int64("match.rows", df.Height()))
	p.metrics.RecordMatch(metrics.StatusSuccess)
	p.logger.Debug("match collected entries", zap.Int64("rows", df.Height()))
	return df, nil
}
