// Package logmaker generates synthetic animal container logs as
// line-delimited JSON, for exercising the log parser on realistic volumes.
package logmaker

import (
	"bufio"
	"context"
	"io"
	"math/rand/v2"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/json"
)

const (
	// ProgressInterval is how many entries are written between progress logs
	ProgressInterval = 1_000_000

	// DefaultOutput is the file written when no path is given
	DefaultOutput = "example.json"

	// atypicalSoundRate is the share of entries where an animal makes
	// another animal's sound
	atypicalSoundRate = 0.01

	cancelCheckInterval = 4096
)

// Sounds maps each container animal to the sound it usually logs
var Sounds = map[string]string{
	"cow":   "moo",
	"pig":   "oink",
	"dog":   "woof",
	"cat":   "meow",
	"bird":  "squawk",
	"horse": "neigh",
	"goat":  "??",
	"mouse": "squeak",
	"sheep": "bahh",
}

// Entry is one generated log line
type Entry struct {
	Container string    `json:"container"`
	Timestamp time.Time `json:"timestamp"`
	Msg       string    `json:"msg"`
	Level     string    `json:"level"`
	Happiness int       `json:"happiness"`
	ID        int       `json:"id"`
}

// LevelFor maps a draw from [0, 10000) to a level so that rare levels stay
// rare: FATAL 1, ERROR 10, WARN 129 and INFO 360 per 10000, DEBUG otherwise.
func LevelFor(n int) string {
	switch {
	case n == 0:
		return "FATAL"
	case n <= 10:
		return "ERROR"
	case n < 140:
		return "WARN"
	case n < 500:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Option configures a Generator
type Option func(*Generator)

// WithSeed makes the generated entries reproducible
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock sets the source of entry timestamps
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// Generator produces entries. It is not safe for concurrent use.
type Generator struct {
	rng     *rand.Rand
	now     func() time.Time
	animals []string
}

// NewGenerator creates a generator seeded from the current time unless
// WithSeed is given.
func NewGenerator(opts ...Option) *Generator {
	seed := uint64(time.Now().UnixNano())
	g := &Generator{
		rng: rand.New(rand.NewPCG(seed, seed>>1)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.animals = make([]string, 0, len(Sounds))
	for animal := range Sounds {
		g.animals = append(g.animals, animal)
	}
	sort.Strings(g.animals)
	return g
}

// Entry generates the entry with the given id
func (g *Generator) Entry(id int) Entry {
	animal := g.animals[g.rng.IntN(len(g.animals))]
	sound := Sounds[animal]
	if g.rng.Float32() <= atypicalSoundRate {
		sound = Sounds[g.animals[g.rng.IntN(len(g.animals))]]
	}

	return Entry{
		Container: animal,
		Timestamp: g.now().UTC(),
		Msg:       sound,
		Level:     LevelFor(g.rng.IntN(10000)),
		Happiness: g.rng.Int(),
		ID:        id,
	}
}

// Write encodes n entries to w, one JSON object per line
func (g *Generator) Write(ctx context.Context, w io.Writer, n int, logger *zap.Logger) error {
	if n < 0 {
		return errors.Newf(errors.ErrorTypeValidation, "entry count must not be negative, got %d", n)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	logger.Info("creating log", zap.Int("entries", n))
	for i := 0; i < n; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeQuery, "log generation cancelled").
					WithDetail("written", i)
			}
		}
		if i%ProgressInterval == 0 {
			logger.Info("logging", zap.Int("entryNumber", i), zap.Int("remaining", n-i))
		}
		if err := enc.Encode(g.Entry(i)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write entry").
				WithDetail("id", i)
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush log")
	}
	logger.Info("done", zap.Int("entries", n))
	return nil
}

// WriteFile creates or truncates path and writes n entries to it.
// A failed write removes the partial file.
func (g *Generator) WriteFile(ctx context.Context, path string, n int, logger *zap.Logger) (err error) {
	if path == "" {
		path = DefaultOutput
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create log file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close log file")
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	return g.Write(ctx, f, n, logger)
}
