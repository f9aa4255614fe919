package frame

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

// ErrResourceExhausted is returned by Collect when the memory limit is exceeded
var ErrResourceExhausted = errors.ErrResourceExhausted

// CollectOption configures Collect
type CollectOption func(*collectOptions)

type collectOptions struct {
	memoryLimit int64
}

// WithMemoryLimit bounds the bytes Collect may hold. Zero or less disables
// the limit.
func WithMemoryLimit(bytes int64) CollectOption {
	return func(o *collectOptions) {
		o.memoryLimit = bytes
	}
}

// execute opens the plan and hands every output record to fn. The record is
// released after fn returns; fn must Retain it to keep it.
func (lf *LazyFrame) execute(ctx context.Context, fn func(arrow.Record) error) error {
	if lf.err != nil {
		return lf.err
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	s, err := lf.root.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	return drain(ctx, s, fn)
}

// Count returns the number of rows the plan produces. Plans that only
// project a source with a known row count are answered from metadata.
func (lf *LazyFrame) Count(ctx context.Context) (int64, error) {
	if lf.err != nil {
		return 0, lf.err
	}
	if n, ok := knownRows(lf.root); ok {
		return n, nil
	}

	var total int64
	err := lf.execute(ctx, func(rec arrow.Record) error {
		total += rec.NumRows()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func knownRows(n node) (int64, bool) {
	switch x := n.(type) {
	case *scanNode:
		return x.src.NumRows()
	case *selectNode:
		return knownRows(x.input)
	default:
		return 0, false
	}
}

// Collect executes the plan and materializes the result
func (lf *LazyFrame) Collect(ctx context.Context, opts ...CollectOption) (*DataFrame, error) {
	var o collectOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		records []arrow.Record
		held    int64
	)
	err := lf.execute(ctx, func(rec arrow.Record) error {
		if o.memoryLimit > 0 {
			held += recordBytes(rec)
			if held > o.memoryLimit {
				return errors.Newf(errors.ErrorTypeResourceExhausted,
					"materialized result exceeds memory limit of %d bytes", o.memoryLimit).
					WithDetail("held_bytes", held).
					WithDetail("rows_collected", countRows(records))
			}
		}
		rec.Retain()
		records = append(records, rec)
		return nil
	})
	if err != nil {
		for _, r := range records {
			r.Release()
		}
		return nil, err
	}

	return newDataFrame(lf.schema, records), nil
}

func countRows(records []arrow.Record) int64 {
	var n int64
	for _, r := range records {
		n += r.NumRows()
	}
	return n
}

// recordBytes approximates the buffer bytes referenced by rec. Slices
// report their full parent buffers.
func recordBytes(rec arrow.Record) int64 {
	var n int64
	for _, col := range rec.Columns() {
		n += dataBytes(col.Data())
	}
	return n
}

func dataBytes(d arrow.ArrayData) int64 {
	if d == nil {
		return 0
	}
	var n int64
	for _, b := range d.Buffers() {
		if b != nil {
			n += int64(b.Len())
		}
	}
	for _, c := range d.Children() {
		n += dataBytes(c)
	}
	if d.DataType().ID() == arrow.DICTIONARY {
		n += dataBytes(d.Dictionary())
	}
	return n
}
