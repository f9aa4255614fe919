package logmaker

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/logpress/pkg/config"
	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/expr"
	"github.com/ajitpratap0/logpress/pkg/json"
	"github.com/ajitpratap0/logpress/pkg/logparser"
	"github.com/ajitpratap0/logpress/pkg/testutil"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "FATAL"},
		{1, "ERROR"},
		{10, "ERROR"},
		{11, "WARN"},
		{139, "WARN"},
		{140, "INFO"},
		{499, "INFO"},
		{500, "DEBUG"},
		{9999, "DEBUG"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.n), "draw %d", tt.n)
	}
}

func TestGenerator_Entry(t *testing.T) {
	g := NewGenerator(WithSeed(7), WithClock(fixedClock))

	sounds := make(map[string]bool, len(Sounds))
	for _, s := range Sounds {
		sounds[s] = true
	}

	for i := 0; i < 1000; i++ {
		e := g.Entry(i)
		assert.Equal(t, i, e.ID)
		assert.Contains(t, Sounds, e.Container)
		assert.True(t, sounds[e.Msg], e.Msg)
		assert.Contains(t, []string{"FATAL", "ERROR", "WARN", "INFO", "DEBUG"}, e.Level)
		assert.GreaterOrEqual(t, e.Happiness, 0)
		assert.Equal(t, fixedClock(), e.Timestamp)
	}
}

func TestGenerator_Seeded(t *testing.T) {
	var a, b bytes.Buffer
	ctx := context.Background()

	require.NoError(t, NewGenerator(WithSeed(42), WithClock(fixedClock)).Write(ctx, &a, 50, nil))
	require.NoError(t, NewGenerator(WithSeed(42), WithClock(fixedClock)).Write(ctx, &b, 50, nil))
	assert.Equal(t, a.String(), b.String())

	var c bytes.Buffer
	require.NoError(t, NewGenerator(WithSeed(43), WithClock(fixedClock)).Write(ctx, &c, 50, nil))
	assert.NotEqual(t, a.String(), c.String())
}

func TestGenerator_Write(t *testing.T) {
	var buf bytes.Buffer
	g := NewGenerator(WithSeed(1), WithClock(fixedClock))
	require.NoError(t, g.Write(context.Background(), &buf, 3, testutil.TestLogger(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], `{"container":`))

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &e))
	assert.Equal(t, 2, e.ID)
	assert.Equal(t, fixedClock(), e.Timestamp)
}

func TestGenerator_WriteErrors(t *testing.T) {
	g := NewGenerator(WithSeed(1))

	err := g.Write(context.Background(), &bytes.Buffer{}, -1, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = g.Write(ctx, &bytes.Buffer{}, 10, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_WriteFileCancelledRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewGenerator().WriteFile(ctx, path, 10, nil)
	require.Error(t, err)
	assert.False(t, testutil.Exists(t, path))
}

func TestGenerator_WriteFileParses(t *testing.T) {
	ctx := testutil.TestContext(t)
	path := filepath.Join(t.TempDir(), "example.json")

	g := NewGenerator(WithSeed(99))
	require.NoError(t, g.WriteFile(ctx, path, 500, testutil.TestLogger(t)))

	cfg := config.New("timestamp", config.WithSchemaOverrides(map[string]config.DataType{
		"level": config.TypeEnum("DEBUG", "INFO", "WARN", "ERROR", "FATAL"),
	}))
	p, err := logparser.New(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"container", "timestamp", "msg", "level", "happiness", "id"}, p.Columns())

	n, err := p.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)

	df, err := p.Match(ctx, expr.Col("id").Lt(int64(10)), true)
	require.NoError(t, err)
	require.NotNil(t, df)
	defer df.Release()
	assert.Equal(t, int64(10), df.Height())
}
