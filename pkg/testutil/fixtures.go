package testutil

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"
)

// LogRecord is one line of a fixture JSON log
type LogRecord struct {
	Timestamp time.Time
	Container string
	Level     string
	Message   string
}

// JSON renders the record with keys in the order
// timestamp, container, level, message.
func (r LogRecord) JSON() string {
	return fmt.Sprintf(`{"timestamp":%s,"container":%s,"level":%s,"message":%s}`,
		strconv.Quote(r.Timestamp.UTC().Format(time.RFC3339Nano)),
		strconv.Quote(r.Container),
		strconv.Quote(r.Level),
		strconv.Quote(r.Message))
}

// FixtureStart is the timestamp of the first fixture record
var FixtureStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var fixtureContainers = []string{"cat", "dog", "cow", "duck", "sheep"}

// SampleRecords returns n records one second apart. The first errors records
// have level ERROR; the rest alternate INFO and WARN. Timestamps are emitted
// in reverse order so sorting is observable.
func SampleRecords(n, errors int) []LogRecord {
	records := make([]LogRecord, n)
	for i := range records {
		level := "INFO"
		switch {
		case i < errors:
			level = "ERROR"
		case i%2 == 1:
			level = "WARN"
		}
		container := fixtureContainers[i%len(fixtureContainers)]
		records[i] = LogRecord{
			Timestamp: FixtureStart.Add(time.Duration(n-i) * time.Second),
			Container: container,
			Level:     level,
			Message:   fmt.Sprintf("%s said hello #%d", container, i),
		}
	}
	return records
}

// NDJSON renders records as a line-delimited JSON document
func NDJSON(records []LogRecord) []byte {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.JSON())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// WriteJSONLog writes records as a line-delimited JSON file and returns its path
func WriteJSONLog(t *testing.T, dir, name string, records []LogRecord) string {
	t.Helper()
	return WriteFile(t, dir, name, NDJSON(records))
}
