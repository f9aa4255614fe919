package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"
)

// LogSuite provides a per-test temporary directory and context for tests
// that read and write log files.
type LogSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	dir    string
}

// SetupTest runs before each test in the suite
func (s *LogSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.dir = s.T().TempDir()
}

// TearDownTest runs after each test in the suite
func (s *LogSuite) TearDownTest() {
	s.cancel()
}

// Context returns the test context
func (s *LogSuite) Context() context.Context {
	return s.ctx
}

// Dir returns the temporary directory of the current test
func (s *LogSuite) Dir() string {
	return s.dir
}

// WriteJSONLog writes records to name in the test directory
func (s *LogSuite) WriteJSONLog(name string, records []LogRecord) string {
	return WriteJSONLog(s.T(), s.dir, name, records)
}

// WriteFile writes raw content to name in the test directory
func (s *LogSuite) WriteFile(name string, content []byte) string {
	return WriteFile(s.T(), s.dir, name, content)
}
