package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(viper.New())
	root := a.rootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(testutil.TestContext(t))
	require.NoError(t, a.close(context.Background()))
	return out.String(), err
}

func sampleLog(t *testing.T, n, errorCount int) string {
	t.Helper()
	return testutil.WriteJSONLog(t, t.TempDir(), "app.json", testutil.SampleRecords(n, errorCount))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "logpress v"+version)
}

func TestSummary(t *testing.T) {
	out, err := run(t, "summary", sampleLog(t, 10, 2))
	require.NoError(t, err)
	assert.Contains(t, out, "with 10 log entries")
	assert.Contains(t, out, "Showing first and last 3 rows")
}

func TestSchema(t *testing.T) {
	path := sampleLog(t, 3, 0)

	out, err := run(t, "schema", path,
		"--override", "level=enum[DEBUG,INFO,WARN,ERROR]",
		"--override", "container=cat",
		"--order", "level,message")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"level", "enum"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"message", "str"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"timestamp", "str"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"container", "cat"}, strings.Fields(lines[3]))
}

func TestSchemaFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteJSONLog(t, dir, "app.json", testutil.SampleRecords(3, 0))
	cfgPath := testutil.WriteFile(t, dir, "logpress.yaml", []byte(`
comparator: timestamp
schema_overrides:
  timestamp: datetime[us]
preferred_order: [message]
`))

	out, err := run(t, "schema", path, "--config", cfgPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "message", strings.Fields(lines[0])[0])
	assert.Equal(t, []string{"timestamp", "datetime[us]"}, strings.Fields(lines[1]))
}

func TestComparatorFromEnvironment(t *testing.T) {
	t.Setenv("LOGPRESS_COMPARATOR", "time")

	_, err := run(t, "summary", sampleLog(t, 3, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidComparator)
}

func TestOrderFromEnvironment(t *testing.T) {
	t.Setenv("LOGPRESS_ORDER", "message, level")

	out, err := run(t, "schema", sampleLog(t, 3, 0))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "message", strings.Fields(lines[0])[0])
	assert.Equal(t, "level", strings.Fields(lines[1])[0])
}

func TestInvalidMemoryLimit(t *testing.T) {
	_, err := run(t, "summary", sampleLog(t, 3, 0), "--memory-limit", "lots")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestMatch(t *testing.T) {
	path := sampleLog(t, 10, 2)

	out, err := run(t, "match", path, "--where", `level == "ERROR"`, "--ordered")
	require.NoError(t, err)
	assert.Contains(t, out, "shape: (2, 4)")

	out, err = run(t, "match", path, "--where", `level == "FATAL"`)
	require.NoError(t, err)
	assert.Equal(t, "no matching log entries\n", out)
}

func TestMatchOutput(t *testing.T) {
	path := sampleLog(t, 10, 2)
	dest := filepath.Join(filepath.Dir(path), "errors.csv")

	out, err := run(t, "match", path, "--where", `level == "ERROR"`, "--output", dest)
	require.NoError(t, err)
	assert.Equal(t, "wrote 2 rows to "+dest+"\n", out)

	lines := strings.Split(strings.TrimSpace(string(testutil.ReadFile(t, dest))), "\n")
	assert.Len(t, lines, 3)

	_, err = run(t, "match", path, "--where", `level == "ERROR"`, "--output", dest)
	assert.ErrorIs(t, err, errors.ErrDestinationExists)
}

func TestMatchInvalidExpression(t *testing.T) {
	_, err := run(t, "match", sampleLog(t, 3, 0), "--where", `level + 1`)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestSaveAndCompress(t *testing.T) {
	path := sampleLog(t, 10, 2)
	stem := strings.TrimSuffix(path, ".json")

	out, err := run(t, "save", path, "--to", "log")
	require.NoError(t, err)
	assert.Equal(t, stem+".log\n", out)

	_, err = run(t, "save", path, "--to", "log")
	assert.ErrorIs(t, err, errors.ErrDestinationExists)

	_, err = run(t, "save", path, "--to", "xml")
	assert.ErrorIs(t, err, errors.ErrUnsupportedFormat)

	out, err = run(t, "compress", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, stem+".parquet"))

	out, err = run(t, "summary", stem+".parquet")
	require.NoError(t, err)
	assert.Contains(t, out, "with 10 log entries")
}

func TestTraceFlag(t *testing.T) {
	out, err := run(t, "summary", sampleLog(t, 4, 0), "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "with 4 log entries")
}

func TestMatchOutputLog(t *testing.T) {
	path := sampleLog(t, 10, 2)
	dir := filepath.Dir(path)
	dest := filepath.Join(dir, "errors.log")

	_, err := run(t, "match", path, "--where", `level == "ERROR"`, "--output", dest)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(testutil.ReadFile(t, dest))), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, strings.Split(lines[0], "\t"), 4)
	assert.ElementsMatch(t, []string{"app.json", "errors.log"}, testutil.DirEntries(t, dir))
}

func TestSchemaExplain(t *testing.T) {
	out, err := run(t, "schema", sampleLog(t, 3, 0), "--explain", "--order", "level")
	require.NoError(t, err)

	_, plan, ok := strings.Cut(out, "\n\n")
	require.True(t, ok, out)
	assert.Contains(t, plan, "SELECT [level")
	assert.Contains(t, plan, "SCAN ndjson ")
}

func TestFormats(t *testing.T) {
	out, err := run(t, "formats")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{"EXTENSION", "NAME", "READ", "WRITE", "DESCRIPTION"}, strings.Fields(lines[0]))
	assert.True(t, strings.HasPrefix(lines[1], ".parquet"))
	assert.Equal(t, "no", strings.Fields(lines[3])[2])
	assert.True(t, strings.HasPrefix(lines[4], ".log"))
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	logPath := testutil.WriteJSONLog(t, dir, "app.json", testutil.SampleRecords(3, 0))
	cfgPath := filepath.Join(dir, "logpress.yaml")

	out, err := run(t, "init-config", cfgPath,
		"--override", "timestamp=datetime[us]",
		"--order", "message")
	require.NoError(t, err)
	assert.Equal(t, cfgPath+"\n", out)

	_, err = run(t, "init-config", cfgPath)
	assert.ErrorIs(t, err, errors.ErrDestinationExists)

	out, err = run(t, "schema", logPath, "--config", cfgPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "message", strings.Fields(lines[0])[0])
	assert.Equal(t, []string{"timestamp", "datetime[us]"}, strings.Fields(lines[1]))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.New(errors.ErrorTypeValidation, "bad"), 2},
		{"unsupported format", errors.New(errors.ErrorTypeUnsupportedFormat, "xml"), 2},
		{"wrapped comparator", errors.Wrap(errors.ErrInvalidComparator, errors.ErrorTypeInvalidComparator, "time"), 2},
		{"destination exists", errors.New(errors.ErrorTypeDestinationExists, "app.log"), 1},
		{"foreign", context.Canceled, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
