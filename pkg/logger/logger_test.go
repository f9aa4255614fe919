package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"console debug", Config{Level: "debug", Encoding: "console"}, false},
		{"development", Config{Level: "warn", Development: true, Encoding: "console"}, false},
		{"bad level", Config{Level: "chatty"}, true},
		{"bad encoding", Config{Encoding: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "error"}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, Init(Config{Level: "debug"}))
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
}

func TestWithContext(t *testing.T) {
	ctx := ContextWithSource(context.Background(), "app.json")
	ctx = ContextWithOperation(ctx, "save")

	assert.NotNil(t, WithContext(ctx))
	assert.Equal(t, "app.json", ctx.Value(SourceKey))
	assert.Equal(t, "save", ctx.Value(OperationKey))
}
