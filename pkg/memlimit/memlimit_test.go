package memlimit

import (
	stderrors "errors"
	"testing"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

func fakeMemory(t *testing.T, available uint64, err error) {
	t.Helper()
	orig := virtualMemory
	virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		if err != nil {
			return nil, err
		}
		return &mem.VirtualMemoryStat{Available: available, UsedPercent: 50}, nil
	}
	t.Cleanup(func() { virtualMemory = orig })
}

func TestResolve(t *testing.T) {
	fakeMemory(t, 8<<30, nil)

	tests := []struct {
		setting string
		want    int64
	}{
		{"", 0},
		{"0", 0},
		{"auto", 6 << 30},
		{"AUTO", 6 << 30},
		{"512", 512 << 20},
		{"512mb", 512 << 20},
		{"2GB", 2 << 30},
		{" 64 MB ", 64 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			got, err := Resolve(tt.setting)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Invalid(t *testing.T) {
	for _, setting := range []string{"lots", "-1", "1.5GB", "12TB"} {
		_, err := Resolve(setting)
		require.Error(t, err, setting)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), setting)
	}
}

func TestResolve_AutoWithoutMemoryInfo(t *testing.T) {
	fakeMemory(t, 0, stderrors.New("no /proc"))

	_, err := Resolve(Auto)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestCurrent(t *testing.T) {
	fakeMemory(t, 1<<30, nil)

	usage, err := Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<30), usage.SystemAvailable)
	assert.Equal(t, float64(50), usage.SystemUsedPercent)
}
