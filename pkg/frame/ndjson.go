package frame

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/logpress/pkg/errors"
	jsonx "github.com/ajitpratap0/logpress/pkg/json"
)

// DefaultInferLength is the number of JSON records sampled for inference
const DefaultInferLength = 100

// maxLineBytes bounds a single JSON record
const maxLineBytes = 64 << 20

// ndjsonSource scans a line-delimited JSON file
type ndjsonSource struct {
	path   string
	schema *arrow.Schema
	opts   scanOptions
}

// ScanNDJSON binds a LazyFrame to a line-delimited JSON file. The schema is
// inferred from the first records (see WithInferLength) and adjusted by any
// WithSchemaOverrides fields. No further data is read until execution.
func ScanNDJSON(path string, opts ...ScanOption) (*LazyFrame, error) {
	o := defaultScanOptions()
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path) //nolint:gosec // G304: path belongs to the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open JSON log").
			WithDetail("path", path)
	}
	defer f.Close()

	schema, err := inferNDJSONSchema(f, o.inferLength, o.overrides)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.WithDetail("path", path)
		}
		return nil, err
	}

	return FromSource(&ndjsonSource{path: path, schema: schema, opts: o}), nil
}

func (s *ndjsonSource) Schema() *arrow.Schema  { return s.schema }
func (s *ndjsonSource) NumRows() (int64, bool) { return 0, false }
func (s *ndjsonSource) Describe() string       { return "ndjson " + s.path }

func (s *ndjsonSource) Open(_ context.Context) (array.RecordReader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open JSON log").
			WithDetail("path", s.path)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	enums := make([]map[string]struct{}, s.schema.NumFields())
	for i, field := range s.schema.Fields() {
		if cats := EnumCategories(field); cats != nil {
			allowed := make(map[string]struct{}, len(cats))
			for _, c := range cats {
				allowed[c] = struct{}{}
			}
			enums[i] = allowed
		}
	}

	return &ndjsonReader{
		refs:      1,
		path:      s.path,
		schema:    s.schema,
		file:      f,
		scanner:   scanner,
		builder:   array.NewRecordBuilder(s.opts.mem, s.schema),
		enums:     enums,
		batchSize: s.opts.batchSize,
	}, nil
}

// ndjsonReader decodes JSON lines into record batches
type ndjsonReader struct {
	refs      int64
	path      string
	schema    *arrow.Schema
	file      *os.File
	scanner   *bufio.Scanner
	builder   *array.RecordBuilder
	enums     []map[string]struct{}
	batchSize int

	cur  arrow.Record
	err  error
	line int
	done bool
}

func (r *ndjsonReader) Retain() { atomic.AddInt64(&r.refs, 1) }

func (r *ndjsonReader) Release() {
	if atomic.AddInt64(&r.refs, -1) != 0 {
		return
	}
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	r.builder.Release()
	_ = r.file.Close()
}

func (r *ndjsonReader) Schema() *arrow.Schema { return r.schema }
func (r *ndjsonReader) Record() arrow.Record  { return r.cur }
func (r *ndjsonReader) Err() error            { return r.err }

func (r *ndjsonReader) Next() bool {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.done {
		return false
	}

	rows := 0
	for rows < r.batchSize && r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := r.appendLine(line); err != nil {
			r.err = err
			r.done = true
			return false
		}
		rows++
	}

	if rows < r.batchSize {
		r.done = true
		if err := r.scanner.Err(); err != nil {
			r.err = errors.Wrap(err, errors.ErrorTypeFile, "failed to read JSON log").
				WithDetail("path", r.path).
				WithDetail("line", r.line+1)
			return false
		}
	}
	if rows == 0 {
		return false
	}

	r.cur = r.builder.NewRecord()
	return true
}

func (r *ndjsonReader) appendLine(line []byte) error {
	obj, err := jsonx.DecodeObject(line)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "invalid JSON record").
			WithDetail("path", r.path).
			WithDetail("line", r.line)
	}

	for i, field := range r.schema.Fields() {
		v := obj[field.Name]
		if allowed := r.enums[i]; allowed != nil && v != nil {
			s, _ := v.(string)
			if _, ok := allowed[s]; !ok {
				return errors.Newf(errors.ErrorTypeData, "value %v is not a category of enum column %q", v, field.Name).
					WithDetail("path", r.path).
					WithDetail("line", r.line)
			}
		}
		if err := appendJSONValue(r.builder.Field(i), field.Type, v); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to decode field").
				WithDetail("path", r.path).
				WithDetail("line", r.line).
				WithDetail("field", field.Name)
		}
	}
	return nil
}

// jsonKind is the inferred type family of a JSON field
type jsonKind int

const (
	kindNull jsonKind = iota
	kindBool
	kindInt
	kindFloat
	kindString
	kindNested
)

func kindOf(v any) jsonKind {
	switch x := v.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case jsonx.Number:
		if _, err := x.Int64(); err == nil {
			return kindInt
		}
		return kindFloat
	case string:
		return kindString
	default:
		return kindNested
	}
}

func mergeKinds(a, b jsonKind) jsonKind {
	switch {
	case a == b:
		return a
	case a == kindNull:
		return b
	case b == kindNull:
		return a
	case (a == kindInt && b == kindFloat) || (a == kindFloat && b == kindInt):
		return kindFloat
	default:
		return kindString
	}
}

func (k jsonKind) arrowType() arrow.DataType {
	switch k {
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// inferNDJSONSchema samples up to limit records. Field order is the order in
// which keys are first seen.
func inferNDJSONSchema(r io.Reader, limit int, overrides []arrow.Field) (*arrow.Schema, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var order []string
	kinds := make(map[string]jsonKind)

	lineNo, sampled := 0, 0
	for sampled < limit && scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := scanKeys(line, func(key string, v any) {
			k, seen := kinds[key]
			if !seen {
				order = append(order, key)
				kinds[key] = kindOf(v)
				return
			}
			kinds[key] = mergeKinds(k, kindOf(v))
		}); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid JSON record").
				WithDetail("line", lineNo)
		}
		sampled++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read JSON log")
	}

	fields := make([]arrow.Field, 0, len(order)+len(overrides))
	position := make(map[string]int, len(order))
	for _, name := range order {
		position[name] = len(fields)
		fields = append(fields, arrow.Field{Name: name, Type: kinds[name].arrowType(), Nullable: true})
	}
	for _, ov := range overrides {
		ov.Nullable = true
		if i, ok := position[ov.Name]; ok {
			fields[i] = ov
			continue
		}
		position[ov.Name] = len(fields)
		fields = append(fields, ov)
	}

	return arrow.NewSchema(fields, nil), nil
}

// scanKeys walks the top-level members of a JSON object in document order.
func scanKeys(line []byte, fn func(key string, v any)) error {
	dec := jsonx.NewDecoder(bytes.NewReader(line))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(jsonx.Delim); !ok || delim != '{' {
		return errors.New(errors.ErrorTypeData, "JSON record is not an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New(errors.ErrorTypeData, "JSON object key is not a string")
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		fn(key, v)
	}

	_, err = dec.Token()
	return err
}
