package frame

import (
	"context"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

// DefaultBatchSize is the number of rows sources put in one record batch
const DefaultBatchSize = 64 * 1024

// Source is the data a LazyFrame plan starts from
type Source interface {
	// Schema returns the source schema without reading data
	Schema() *arrow.Schema
	// Open starts a new scan. The caller must Release the reader.
	Open(ctx context.Context) (array.RecordReader, error)
	// NumRows returns the row count when it is known without a scan
	NumRows() (int64, bool)
	// Describe names the source for plan explanations
	Describe() string
}

// ScanOption configures a scan
type ScanOption func(*scanOptions)

type scanOptions struct {
	batchSize   int
	inferLength int
	overrides   []arrow.Field
	mem         memory.Allocator
}

func defaultScanOptions() scanOptions {
	return scanOptions{
		batchSize:   DefaultBatchSize,
		inferLength: DefaultInferLength,
		mem:         memory.DefaultAllocator,
	}
}

// WithBatchSize sets the number of rows per record batch
func WithBatchSize(n int) ScanOption {
	return func(o *scanOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithInferLength sets how many JSON records are sampled for type inference
func WithInferLength(n int) ScanOption {
	return func(o *scanOptions) {
		if n > 0 {
			o.inferLength = n
		}
	}
}

// WithSchemaOverrides declares field types for a JSON scan. Overridden
// fields replace inferred ones in place; fields absent from the sample are
// appended in the given order. Parquet scans ignore overrides.
func WithSchemaOverrides(fields ...arrow.Field) ScanOption {
	return func(o *scanOptions) {
		o.overrides = append([]arrow.Field(nil), fields...)
	}
}

// WithAllocator sets the arrow allocator used by the scan
func WithAllocator(mem memory.Allocator) ScanOption {
	return func(o *scanOptions) {
		if mem != nil {
			o.mem = mem
		}
	}
}

// parquetSource scans a parquet file through pqarrow
type parquetSource struct {
	path    string
	schema  *arrow.Schema
	numRows int64
	opts    scanOptions
}

// ScanParquet binds a LazyFrame to a parquet file. Only the footer is read.
func ScanParquet(path string, opts ...ScanOption) (*LazyFrame, error) {
	o := defaultScanOptions()
	for _, opt := range opts {
		opt(&o)
	}

	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open parquet file").
			WithDetail("path", path)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: int64(o.batchSize)}, o.mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow reader").
			WithDetail("path", path)
	}

	schema, err := fr.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read parquet schema").
			WithDetail("path", path)
	}

	return FromSource(&parquetSource{
		path:    path,
		schema:  schema,
		numRows: rdr.NumRows(),
		opts:    o,
	}), nil
}

func (s *parquetSource) Schema() *arrow.Schema  { return s.schema }
func (s *parquetSource) NumRows() (int64, bool) { return s.numRows, true }
func (s *parquetSource) Describe() string       { return "parquet " + s.path }

func (s *parquetSource) Open(ctx context.Context) (array.RecordReader, error) {
	rdr, err := file.OpenParquetFile(s.path, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open parquet file").
			WithDetail("path", s.path)
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: int64(s.opts.batchSize)}, s.opts.mem)
	if err != nil {
		rdr.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow reader").
			WithDetail("path", s.path)
	}

	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		rdr.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read parquet row groups").
			WithDetail("path", s.path)
	}

	return &closingReader{RecordReader: rr, closeFn: func() { _ = rdr.Close() }, refs: 1}, nil
}

// closingReader runs closeFn when the last reference is released
type closingReader struct {
	array.RecordReader
	closeFn func()
	refs    int64
}

func (r *closingReader) Retain() {
	atomic.AddInt64(&r.refs, 1)
	r.RecordReader.Retain()
}

func (r *closingReader) Release() {
	r.RecordReader.Release()
	if atomic.AddInt64(&r.refs, -1) == 0 {
		r.closeFn()
	}
}

// memorySource serves records already in memory
type memorySource struct {
	schema  *arrow.Schema
	records []arrow.Record
	rows    int64
}

func newMemorySource(schema *arrow.Schema, records []arrow.Record) *memorySource {
	var rows int64
	for _, r := range records {
		rows += r.NumRows()
	}
	return &memorySource{schema: schema, records: records, rows: rows}
}

func (s *memorySource) Schema() *arrow.Schema  { return s.schema }
func (s *memorySource) NumRows() (int64, bool) { return s.rows, true }
func (s *memorySource) Describe() string       { return "memory" }

func (s *memorySource) Open(_ context.Context) (array.RecordReader, error) {
	rr, err := array.NewRecordReader(s.schema, s.records)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read in-memory records")
	}
	return rr, nil
}
