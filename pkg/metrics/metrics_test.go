package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordSave(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.RecordSave("parquet", 10, nil)
	c.RecordSave("parquet", 5, nil)
	c.RecordSave("csv", 0, errors.New("disk full"))

	assert.Equal(t, float64(15), testutil.ToFloat64(c.rowsWritten.WithLabelValues("parquet")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.saves.WithLabelValues("parquet", StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.saves.WithLabelValues("csv", StatusFailure)))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.rowsWritten.WithLabelValues("csv")))
}

func TestCollector_RecordMatch(t *testing.T) {
	c, err := NewCollector(nil)
	require.NoError(t, err)

	c.RecordMatch(StatusSuccess)
	c.RecordMatch(StatusEmpty)
	c.RecordMatch(StatusEmpty)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.matches.WithLabelValues(StatusSuccess)))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.matches.WithLabelValues(StatusEmpty)))
}

func TestCollector_Timer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	timer := c.NewTimer("summary")
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(c.duration, "logpress_operation_duration_seconds"))
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordSave("json", 1, nil)
		c.RecordMatch(StatusSuccess)
		c.ObserveDuration("save", time.Second)
		c.NewTimer("save").Stop()
	})
}
