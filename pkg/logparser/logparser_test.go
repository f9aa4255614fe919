package logparser

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/logpress/pkg/config"
	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/expr"
	"github.com/ajitpratap0/logpress/pkg/metrics"
	"github.com/ajitpratap0/logpress/pkg/testutil"
)

type LogParserSuite struct {
	testutil.LogSuite
}

func TestLogParserSuite(t *testing.T) {
	suite.Run(t, new(LogParserSuite))
}

func (s *LogParserSuite) newParser(path string, cfg config.LogConfig, opts ...Option) *LogParser {
	opts = append([]Option{WithLogger(testutil.TestLogger(s.T()))}, opts...)
	p, err := New(path, cfg, opts...)
	s.Require().NoError(err)
	return p
}

func (s *LogParserSuite) fixture(n, errorCount int) string {
	return s.WriteJSONLog("app.json", testutil.SampleRecords(n, errorCount))
}

func typedConfig(opts ...config.Option) config.LogConfig {
	return config.New("timestamp", append([]config.Option{config.WithSchemaOverrides(map[string]config.DataType{
		"timestamp": config.TypeDatetime(arrow.Nanosecond, ""),
		"container": config.TypeCategorical(),
		"level":     config.TypeEnum("DEBUG", "INFO", "WARN", "ERROR", "FATAL"),
	})}, opts...)...)
}

func (s *LogParserSuite) TestUnsupportedExtensionTouchesNothing() {
	path := filepath.Join(s.Dir(), "app.txt")

	for _, name := range []string{"app.txt", "app.csv", "app.log", "app.JSON", "app"} {
		_, err := New(filepath.Join(s.Dir(), name), config.New("timestamp"))
		s.Require().Error(err, name)
		s.True(errors.IsType(err, errors.ErrorTypeUnsupportedFormat), name)
		s.ErrorIs(err, errors.ErrUnsupportedFormat)
	}

	s.False(testutil.Exists(s.T(), path))
	s.Empty(testutil.DirEntries(s.T(), s.Dir()))
}

func (s *LogParserSuite) TestInvalidComparator() {
	path := s.fixture(10, 2)

	p, err := New(path, config.New("time"))
	s.Nil(p)
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrInvalidComparator)
	s.Contains(err.Error(), "'time' not found")
}

func (s *LogParserSuite) TestMissingFile() {
	_, err := New(filepath.Join(s.Dir(), "missing.json"), config.New("timestamp"))
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeFile))
}

func (s *LogParserSuite) TestAccessors() {
	path := s.fixture(3, 0)
	cfg := config.New("timestamp")
	p := s.newParser(path, cfg)

	s.Equal(path, p.Path())
	s.Equal(strings.TrimSuffix(path, ".json"), p.Stem())
	s.Equal("json", p.Format().String())
	s.Equal("timestamp", p.Config().Comparator())
	s.Equal([]string{"timestamp", "container", "level", "message"}, p.Columns())
	s.Equal(4, p.Schema().NumFields())
	s.NoError(p.LazyFrame().Err())

	n, err := p.Count(s.Context())
	s.Require().NoError(err)
	s.Equal(int64(3), n)
}

func (s *LogParserSuite) TestPreferredOrder() {
	records := testutil.SampleRecords(4, 0)
	var b strings.Builder
	for _, r := range records {
		b.WriteString(`{"timestamp":"` + r.Timestamp.Format("2006-01-02T15:04:05Z") +
			`","container":"` + r.Container + `","level":"` + r.Level + `"}` + "\n")
	}
	path := s.WriteFile("short.json", []byte(b.String()))

	p := s.newParser(path, config.New("timestamp", config.WithPreferredOrder("level", "timestamp")))
	s.Equal([]string{"level", "timestamp", "container"}, p.Columns())

	df, err := p.Match(s.Context(), expr.Col("level").IsNotNull(), false)
	s.Require().NoError(err)
	defer df.Release()
	s.Equal([]string{"level", "timestamp", "container"}, df.Columns())
}

func (s *LogParserSuite) TestPreferredOrderUnknownField() {
	path := s.fixture(3, 0)

	_, err := New(path, config.New("timestamp", config.WithPreferredOrder("severity")))
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
}

func (s *LogParserSuite) TestMatch() {
	ctx := s.Context()
	p := s.newParser(s.fixture(10, 2), typedConfig())

	df, err := p.Match(ctx, expr.Col("level").Eq("ERROR"), false)
	s.Require().NoError(err)
	s.Require().NotNil(df)
	defer df.Release()
	s.Equal(int64(2), df.Height())
}

func (s *LogParserSuite) TestMatchNoResults() {
	p := s.newParser(s.fixture(10, 0), typedConfig())

	df, err := p.Match(s.Context(), expr.Col("level").Eq("ERROR"), false)
	s.Require().NoError(err)
	s.Nil(df)
}

func (s *LogParserSuite) TestMatchOrdered() {
	p := s.newParser(s.fixture(10, 0), config.New("timestamp"))

	df, err := p.Match(s.Context(), expr.Col("level").In("INFO", "WARN"), true)
	s.Require().NoError(err)
	defer df.Release()

	values, ok := df.Column("timestamp")
	s.Require().True(ok)
	s.Require().Len(values, 10)
	for i := 1; i < len(values); i++ {
		s.Less(values[i-1].(string), values[i].(string))
	}
}

func (s *LogParserSuite) TestMatchUnknownColumn() {
	p := s.newParser(s.fixture(3, 0), config.New("timestamp"))

	_, err := p.Match(s.Context(), expr.Col("severity").Eq("ERROR"), false)
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
}

func (s *LogParserSuite) TestMatchCEL() {
	p := s.newParser(s.fixture(10, 2), typedConfig())

	pred, err := expr.CEL(`level == "ERROR" && container == "cat"`, p.Schema())
	s.Require().NoError(err)

	df, err := p.Match(s.Context(), pred, false)
	s.Require().NoError(err)
	defer df.Release()
	s.Equal(int64(1), df.Height())
}

func (s *LogParserSuite) TestMatchMemoryLimit() {
	p := s.newParser(s.fixture(10, 0), config.New("timestamp"), WithMemoryLimit(8))

	_, err := p.Match(s.Context(), expr.Col("level").IsNotNull(), false)
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrResourceExhausted)
}

func (s *LogParserSuite) TestSummary() {
	p := s.newParser(s.fixture(10, 2), typedConfig())

	first, err := p.Summary(s.Context())
	s.Require().NoError(err)
	second, err := p.Summary(s.Context())
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(first, p.String())

	lines := strings.Split(first, "\n")
	s.Require().GreaterOrEqual(len(lines), 3)
	s.True(strings.HasPrefix(lines[0], "LogParser (0x"))
	s.True(strings.HasSuffix(lines[0], ") with 10 log entries"))
	s.Equal("Showing first and last 3 rows", lines[1])
	s.Equal("shape: (6, 4)", lines[2])

	// The sample comes back sorted by timestamp: the tail rows were
	// written last but carry the earliest timestamps.
	s.Less(strings.Index(first, "#9"), strings.Index(first, "#0"))
}

func (s *LogParserSuite) TestSummarySmallLog() {
	p := s.newParser(s.fixture(4, 0), config.New("timestamp"))

	out, err := p.Summary(s.Context())
	s.Require().NoError(err)
	s.NotContains(out, "Showing first and last")
	s.Contains(out, "with 4 log entries")
	s.Contains(out, "shape: (4, 4)")
}

func (s *LogParserSuite) TestSaveParquetRoundTrip() {
	ctx := s.Context()
	p := s.newParser(s.fixture(10, 2), typedConfig())

	dest, err := p.SaveCompressedLog(ctx, false)
	s.Require().NoError(err)
	s.Equal(p.Stem()+".parquet", dest)

	back := s.newParser(dest, config.New("timestamp"))
	s.Equal(p.Columns(), back.Columns())
	s.Equal(p.Schema().NumFields(), back.Schema().NumFields())

	want, err := p.Count(ctx)
	s.Require().NoError(err)
	got, err := back.Count(ctx)
	s.Require().NoError(err)
	s.Equal(want, got)

	df, err := back.Match(ctx, expr.Col("level").Eq("ERROR"), false)
	s.Require().NoError(err)
	defer df.Release()
	s.Equal(int64(2), df.Height())
}

func (s *LogParserSuite) TestSaveParquetOntoSourceWithoutOverwrite() {
	ctx := s.Context()
	p := s.newParser(s.fixture(3, 0), config.New("timestamp"))
	dest, err := p.SaveCompressedLog(ctx, false)
	s.Require().NoError(err)

	back := s.newParser(dest, config.New("timestamp"))
	_, err = back.SaveCompressedLog(ctx, false)
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrDestinationExists)
}

func (s *LogParserSuite) TestSaveParquetOntoSourceRejected() {
	ctx := s.Context()
	p := s.newParser(s.fixture(3, 0), config.New("timestamp"))
	dest, err := p.SaveCompressedLog(ctx, false)
	s.Require().NoError(err)

	back := s.newParser(dest, config.New("timestamp"))
	before := testutil.ReadFile(s.T(), dest)

	_, err = back.SaveCompressedLog(ctx, true)
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
	s.Equal(before, testutil.ReadFile(s.T(), dest))
}

func (s *LogParserSuite) TestSaveNoOverwrite() {
	p := s.newParser(s.fixture(5, 0), config.New("timestamp"))
	existing := s.WriteFile("app.csv", []byte("keep me\n"))

	_, err := p.Save(s.Context(), "csv", false)
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrDestinationExists)
	s.Equal([]byte("keep me\n"), testutil.ReadFile(s.T(), existing))
}

func (s *LogParserSuite) TestSaveOverwrite() {
	p := s.newParser(s.fixture(3, 0), config.New("timestamp"))
	existing := s.WriteFile("app.csv", []byte("replace me\n"))

	dest, err := p.Save(s.Context(), ".csv", true)
	s.Require().NoError(err)
	s.Equal(existing, dest)

	content := string(testutil.ReadFile(s.T(), dest))
	s.True(strings.HasPrefix(content, "timestamp,container,level,message\n"))
	s.NotContains(content, "replace me")
	s.Len(strings.Split(strings.TrimSpace(content), "\n"), 4)
}

func (s *LogParserSuite) TestSaveJSON() {
	ctx := s.Context()
	src := s.WriteJSONLog("src.json", testutil.SampleRecords(4, 1))
	p := s.newParser(src, typedConfig())

	before := testutil.ReadFile(s.T(), src)
	_, err := p.Save(ctx, ".json", false)
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrDestinationExists)
	_, err = p.Save(ctx, ".json", true)
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
	s.Equal(before, testutil.ReadFile(s.T(), src))

	compressed, err := p.Save(ctx, ".parquet", false)
	s.Require().NoError(err)

	back := s.newParser(compressed, config.New("timestamp"))
	dest, err := back.Save(ctx, ".json", true)
	s.Require().NoError(err)

	lines := strings.Split(strings.TrimSpace(string(testutil.ReadFile(s.T(), dest))), "\n")
	s.Len(lines, 4)
	s.True(strings.HasPrefix(lines[0], `{"timestamp":"2024-03-01T12:00:04Z","container":"cat","level":"ERROR"`))
}

func (s *LogParserSuite) TestSaveLog() {
	p := s.newParser(s.fixture(3, 1), config.New("timestamp"))

	dest, err := p.Save(s.Context(), "log", false)
	s.Require().NoError(err)
	s.Equal(".log", filepath.Ext(dest))

	content := testutil.ReadFile(s.T(), dest)
	lines := bytes.Split(bytes.TrimSpace(content), []byte("\n"))
	s.Require().Len(lines, 3)
	s.NotContains(string(lines[0]), "timestamp\tcontainer")
	for _, line := range lines {
		s.Len(bytes.Split(line, []byte("\t")), 4)
		s.NotContains(string(line), ",")
	}
	s.Contains(string(lines[0]), "\tERROR\t")

	info, err := os.Stat(dest)
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o644), info.Mode().Perm())

	s.ElementsMatch([]string{"app.json", "app.log"}, testutil.DirEntries(s.T(), s.Dir()))
}

func (s *LogParserSuite) TestSaveUnsupported() {
	p := s.newParser(s.fixture(3, 0), config.New("timestamp"))

	_, err := p.Save(s.Context(), ".xml", false)
	s.Require().Error(err)
	s.ErrorIs(err, errors.ErrUnsupportedFormat)
	s.ElementsMatch([]string{"app.json"}, testutil.DirEntries(s.T(), s.Dir()))
}

func (s *LogParserSuite) TestSaveCancelled() {
	p := s.newParser(s.fixture(3, 0), config.New("timestamp"))

	ctx, cancel := context.WithCancel(s.Context())
	cancel()

	_, err := p.Save(ctx, ".csv", false)
	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)
	s.False(testutil.Exists(s.T(), p.Stem()+".csv"))
}

func (s *LogParserSuite) TestMetrics() {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	s.Require().NoError(err)

	p := s.newParser(s.fixture(10, 2), typedConfig(), WithMetrics(collector))
	ctx := s.Context()

	_, err = p.Save(ctx, ".csv", false)
	s.Require().NoError(err)
	_, err = p.Save(ctx, ".csv", false)
	s.Require().Error(err)

	df, err := p.Match(ctx, expr.Col("level").Eq("ERROR"), false)
	s.Require().NoError(err)
	df.Release()
	_, err = p.Match(ctx, expr.Col("level").Eq("FATAL"), false)
	s.Require().NoError(err)

	expected := `
# HELP logpress_saves_total Total number of save attempts
# TYPE logpress_saves_total counter
logpress_saves_total{format="csv",status="failure"} 1
logpress_saves_total{format="csv",status="success"} 1
`
	s.NoError(promtest.GatherAndCompare(reg, strings.NewReader(expected), "logpress_saves_total"))

	expected = `
# HELP logpress_rows_written_total Total number of rows written by saves
# TYPE logpress_rows_written_total counter
logpress_rows_written_total{format="csv"} 10
`
	s.NoError(promtest.GatherAndCompare(reg, strings.NewReader(expected), "logpress_rows_written_total"))

	expected = `
# HELP logpress_matches_total Total number of match calls
# TYPE logpress_matches_total counter
logpress_matches_total{status="empty"} 1
logpress_matches_total{status="success"} 1
`
	s.NoError(promtest.GatherAndCompare(reg, strings.NewReader(expected), "logpress_matches_total"))
}

func (s *LogParserSuite) TestTracing() {
	prev := otel.GetTracerProvider()
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	defer otel.SetTracerProvider(prev)

	ctx := s.Context()
	p := s.newParser(s.fixture(10, 2), config.New("timestamp"))

	_, err := p.Summary(ctx)
	s.Require().NoError(err)
	df, err := p.Match(ctx, expr.Col("level").Eq("ERROR"), false)
	s.Require().NoError(err)
	df.Release()
	_, err = p.Save(ctx, ".json", false)
	s.Require().Error(err)

	spans := sr.Ended()
	s.Require().Len(spans, 3)
	s.Equal("logparser.summary", spans[0].Name())
	s.Equal("logparser.match", spans[1].Name())
	s.Equal(codes.Ok, spans[1].Status().Code)
	s.Equal("logparser.save", spans[2].Name())
	s.Equal(codes.Error, spans[2].Status().Code)
}

func TestPreferredOrderHelper(t *testing.T) {
	order, err := preferredOrder(
		[]string{"timestamp", "container", "level", "message"},
		[]string{"level", "timestamp", "level"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"level", "timestamp", "container", "message"}, order)
}

func (s *LogParserSuite) TestWriteFile() {
	ctx := s.Context()
	p := s.newParser(s.fixture(6, 2), config.New("timestamp"))
	df, err := p.Match(ctx, expr.Col("level").Eq("ERROR"), true)
	s.Require().NoError(err)
	defer df.Release()

	dest := filepath.Join(s.Dir(), "errors.log")
	rows, err := WriteFile(ctx, df.Lazy(), dest, false)
	s.Require().NoError(err)
	s.Equal(int64(2), rows)
	s.Len(bytes.Split(bytes.TrimSpace(testutil.ReadFile(s.T(), dest)), []byte("\n")), 2)

	_, err = WriteFile(ctx, df.Lazy(), dest, false)
	s.ErrorIs(err, errors.ErrDestinationExists)
	_, err = WriteFile(ctx, df.Lazy(), dest, true)
	s.NoError(err)

	_, err = WriteFile(ctx, df.Lazy(), filepath.Join(s.Dir(), "errors"), false)
	s.ErrorIs(err, errors.ErrUnsupportedFormat)

	s.ElementsMatch([]string{"app.json", "errors.log"}, testutil.DirEntries(s.T(), s.Dir()))
}
