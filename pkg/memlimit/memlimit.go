// Package memlimit turns memory limit settings into a byte budget for
// materializing query results.
package memlimit

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

// Auto is the setting that derives the limit from available system memory
const Auto = "auto"

// AutoFraction is the share of available memory an automatic limit allows
const AutoFraction = 0.75

// virtualMemory is replaced in tests
var virtualMemory = mem.VirtualMemory

// Usage describes the memory situation of the host and this process
type Usage struct {
	SystemAvailable   uint64
	SystemUsedPercent float64
	ProcessRSS        uint64
}

// Available returns the bytes of memory the system reports as available
func Available() (uint64, error) {
	vm, err := virtualMemory()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read system memory")
	}
	return vm.Available, nil
}

var (
	selfOnce sync.Once
	self     *process.Process
	selfErr  error
)

// Current returns system and process memory usage
func Current() (*Usage, error) {
	vm, err := virtualMemory()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read system memory")
	}
	usage := &Usage{SystemAvailable: vm.Available, SystemUsedPercent: vm.UsedPercent}

	selfOnce.Do(func() {
		self, selfErr = process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits int32
	})
	if selfErr == nil {
		if info, err := self.MemoryInfo(); err == nil {
			usage.ProcessRSS = info.RSS
		}
	}
	return usage, nil
}

// Resolve converts a limit setting to bytes. "" and "0" mean no limit and
// resolve to 0. "auto" allows AutoFraction of available memory. Anything
// else is a size in megabytes, optionally suffixed MB or GB.
func Resolve(setting string) (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(setting))
	switch s {
	case "", "0":
		return 0, nil
	case strings.ToUpper(Auto):
		avail, err := Available()
		if err != nil {
			return 0, err
		}
		return int64(float64(avail) * AutoFraction), nil
	}

	multiplier := int64(1 << 20)
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		s = strings.TrimSuffix(s, "MB")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.ErrorTypeConfig, "invalid memory limit %q", setting).
			WithDetail("expected", "auto, 0, or a size in MB or GB")
	}
	return n * multiplier, nil
}
