package frame

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

// LazyFrame is an immutable, deferred query plan. Builder methods return a
// new frame and never read data; Count, Collect and the Sink methods execute
// the plan.
//
// Plan errors (unknown columns, mismatched schemas) are recorded on the
// returned frame and surface from Schema, Err and every terminal operation.
type LazyFrame struct {
	root   node
	schema *arrow.Schema
	err    error
}

// node is one step of a plan
type node interface {
	schema() (*arrow.Schema, error)
	open(ctx context.Context) (stream, error)
	explain(b *strings.Builder, depth int)
}

// stream produces the output of a node. next returns (nil, nil) at the end;
// the caller owns, and must release, every returned record.
type stream interface {
	next(ctx context.Context) (arrow.Record, error)
	close()
}

// FromSource starts a plan at src
func FromSource(src Source) *LazyFrame {
	return newLazyFrame(&scanNode{src: src})
}

func newLazyFrame(n node) *LazyFrame {
	s, err := n.schema()
	return &LazyFrame{root: n, schema: s, err: err}
}

// Schema returns the output schema of the plan
func (lf *LazyFrame) Schema() (*arrow.Schema, error) {
	return lf.schema, lf.err
}

// Columns returns the output column names of the plan
func (lf *LazyFrame) Columns() ([]string, error) {
	if lf.err != nil {
		return nil, lf.err
	}
	return FieldNames(lf.schema), nil
}

// Err returns the plan error, if any
func (lf *LazyFrame) Err() error {
	return lf.err
}

// Explain renders the plan tree, outermost step first
func (lf *LazyFrame) Explain() string {
	var b strings.Builder
	lf.root.explain(&b, 0)
	return strings.TrimRight(b.String(), "\n")
}

// Select projects and reorders columns
func (lf *LazyFrame) Select(cols ...string) *LazyFrame {
	return newLazyFrame(&selectNode{input: lf.root, cols: append([]string(nil), cols...)})
}

// Filter keeps the rows for which pred is true. If pred implements
// ColumnReferencer its columns are checked against the schema now.
func (lf *LazyFrame) Filter(pred Predicate) *LazyFrame {
	return newLazyFrame(&filterNode{input: lf.root, pred: pred})
}

// Sort orders rows ascending by the given columns. The sort is stable and
// nulls sort last. Sort buffers its whole input.
func (lf *LazyFrame) Sort(cols ...string) *LazyFrame {
	return newLazyFrame(&sortNode{input: lf.root, cols: append([]string(nil), cols...)})
}

// Head keeps the first n rows
func (lf *LazyFrame) Head(n int64) *LazyFrame {
	return newLazyFrame(&headNode{input: lf.root, n: n})
}

// Tail keeps the last n rows. Only the batches covering those rows are held.
func (lf *LazyFrame) Tail(n int64) *LazyFrame {
	return newLazyFrame(&tailNode{input: lf.root, n: n})
}

// Unique drops rows equal to an earlier row, keeping first occurrences.
// The rows kept so far are held in memory.
func (lf *LazyFrame) Unique() *LazyFrame {
	return newLazyFrame(&uniqueNode{input: lf.root})
}

// Concat appends the rows of frames in order. All frames must share one schema.
func Concat(frames ...*LazyFrame) *LazyFrame {
	inputs := make([]node, len(frames))
	for i, f := range frames {
		inputs[i] = f.root
	}
	return newLazyFrame(&concatNode{inputs: inputs})
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

func columnIndex(schema *arrow.Schema, name string) (int, error) {
	idx := schema.FieldIndices(name)
	if len(idx) == 0 {
		return 0, errors.Newf(errors.ErrorTypeValidation, "column %q not found", name).
			WithDetail("columns", FieldNames(schema))
	}
	return idx[0], nil
}

func cancelled(err error) error {
	return errors.Wrap(err, errors.ErrorTypeQuery, "execution cancelled")
}

// drain reads s to the end, handing every record to fn
func drain(ctx context.Context, s stream, fn func(arrow.Record) error) error {
	for {
		rec, err := s.next(ctx)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		err = fn(rec)
		rec.Release()
		if err != nil {
			return err
		}
	}
}

// scan

type scanNode struct {
	src Source
}

func (n *scanNode) schema() (*arrow.Schema, error) { return n.src.Schema(), nil }

func (n *scanNode) explain(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "SCAN %s\n", n.src.Describe())
}

func (n *scanNode) open(ctx context.Context) (stream, error) {
	rr, err := n.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &scanStream{rr: rr}, nil
}

type scanStream struct {
	rr array.RecordReader
}

func (s *scanStream) next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	for s.rr.Next() {
		rec := s.rr.Record()
		if rec.NumRows() == 0 {
			continue
		}
		rec.Retain()
		return rec, nil
	}
	if err := s.rr.Err(); err != nil && err != io.EOF {
		if _, typed := err.(*errors.Error); typed {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "scan failed")
	}
	return nil, nil
}

func (s *scanStream) close() { s.rr.Release() }

// select

type selectNode struct {
	input node
	cols  []string
}

func (n *selectNode) resolve() (*arrow.Schema, []int, error) {
	in, err := n.input.schema()
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]struct{}, len(n.cols))
	idx := make([]int, len(n.cols))
	fields := make([]arrow.Field, len(n.cols))
	for i, c := range n.cols {
		if _, dup := seen[c]; dup {
			return nil, nil, errors.Newf(errors.ErrorTypeValidation, "column %q selected twice", c)
		}
		seen[c] = struct{}{}
		j, err := columnIndex(in, c)
		if err != nil {
			return nil, nil, err
		}
		idx[i] = j
		fields[i] = in.Field(j)
	}
	md := in.Metadata()
	return arrow.NewSchema(fields, &md), idx, nil
}

func (n *selectNode) schema() (*arrow.Schema, error) {
	s, _, err := n.resolve()
	return s, err
}

func (n *selectNode) explain(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "SELECT [%s]\n", strings.Join(n.cols, ", "))
	n.input.explain(b, depth+1)
}

func (n *selectNode) open(ctx context.Context) (stream, error) {
	schema, idx, err := n.resolve()
	if err != nil {
		return nil, err
	}
	in, err := n.input.open(ctx)
	if err != nil {
		return nil, err
	}
	return &selectStream{in: in, schema: schema, idx: idx}, nil
}

type selectStream struct {
	in     stream
	schema *arrow.Schema
	idx    []int
}

func (s *selectStream) next(ctx context.Context) (arrow.Record, error) {
	rec, err := s.in.next(ctx)
	if rec == nil || err != nil {
		return nil, err
	}
	defer rec.Release()

	cols := make([]arrow.Array, len(s.idx))
	for i, j := range s.idx {
		cols[i] = rec.Column(j)
	}
	return array.NewRecord(s.schema, cols, rec.NumRows()), nil
}

func (s *selectStream) close() { s.in.close() }

// filter

type filterNode struct {
	input node
	pred  Predicate
}

func (n *filterNode) schema() (*arrow.Schema, error) {
	in, err := n.input.schema()
	if err != nil {
		return nil, err
	}
	if n.pred == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "filter predicate is nil")
	}
	if ref, ok := n.pred.(ColumnReferencer); ok {
		for _, c := range ref.Columns() {
			if _, err := columnIndex(in, c); err != nil {
				return nil, err
			}
		}
	}
	return in, nil
}

func (n *filterNode) explain(b *strings.Builder, depth int) {
	indent(b, depth)
	if s, ok := n.pred.(fmt.Stringer); ok {
		fmt.Fprintf(b, "FILTER %s\n", s.String())
	} else {
		b.WriteString("FILTER <func>\n")
	}
	n.input.explain(b, depth+1)
}

func (n *filterNode) open(ctx context.Context) (stream, error) {
	schema, err := n.schema()
	if err != nil {
		return nil, err
	}
	in, err := n.input.open(ctx)
	if err != nil {
		return nil, err
	}
	return &filterStream{in: in, pred: n.pred, row: newRecordRow(schema)}, nil
}

type filterStream struct {
	in   stream
	pred Predicate
	row  *recordRow
	keep []int
}

func (s *filterStream) next(ctx context.Context) (arrow.Record, error) {
	for {
		rec, err := s.in.next(ctx)
		if rec == nil || err != nil {
			return nil, err
		}

		s.row.rec = rec
		s.keep = s.keep[:0]
		rows := int(rec.NumRows())
		for i := 0; i < rows; i++ {
			s.row.i = i
			ok, err := s.pred.Eval(s.row)
			if err != nil {
				rec.Release()
				return nil, errors.Wrap(err, errors.ErrorTypeQuery, "filter evaluation failed").
					WithDetail("row", i)
			}
			if ok {
				s.keep = append(s.keep, i)
			}
		}
		s.row.rec = nil

		switch len(s.keep) {
		case 0:
			rec.Release()
		case rows:
			return rec, nil
		default:
			out, err := takeRows(rec, s.keep)
			rec.Release()
			return out, err
		}
	}
}

func (s *filterStream) close() { s.in.close() }

// head

type headNode struct {
	input node
	n     int64
}

func (n *headNode) schema() (*arrow.Schema, error) { return n.input.schema() }

func (n *headNode) explain(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "HEAD %d\n", n.n)
	n.input.explain(b, depth+1)
}

func (n *headNode) open(ctx context.Context) (stream, error) {
	if n.n <= 0 {
		return emptyStream{}, nil
	}
	in, err := n.input.open(ctx)
	if err != nil {
		return nil, err
	}
	return &headStream{in: in, remaining: n.n}, nil
}

type headStream struct {
	in        stream
	remaining int64
}

func (s *headStream) next(ctx context.Context) (arrow.Record, error) {
	if s.remaining <= 0 {
		return nil, nil
	}
	rec, err := s.in.next(ctx)
	if rec == nil || err != nil {
		return nil, err
	}
	if rec.NumRows() <= s.remaining {
		s.remaining -= rec.NumRows()
		return rec, nil
	}
	out := rec.NewSlice(0, s.remaining)
	rec.Release()
	s.remaining = 0
	return out, nil
}

func (s *headStream) close() { s.in.close() }

// tail

type tailNode struct {
	input node
	n     int64
}

func (n *tailNode) schema() (*arrow.Schema, error) { return n.input.schema() }

func (n *tailNode) explain(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "TAIL %d\n", n.n)
	n.input.explain(b, depth+1)
}

func (n *tailNode) open(ctx context.Context) (stream, error) {
	if n.n <= 0 {
		return emptyStream{}, nil
	}
	in, err := n.input.open(ctx)
	if err != nil {
		return nil, err
	}
	return &tailStream{in: in, n: n.n}, nil
}

type tailStream struct {
	in      stream
	n       int64
	buf     []arrow.Record
	drained bool
}

func (s *tailStream) fill(ctx context.Context) error {
	var total int64
	err := drain(ctx, s.in, func(rec arrow.Record) error {
		rec.Retain()
		s.buf = append(s.buf, rec)
		total += rec.NumRows()
		for len(s.buf) > 1 && total-s.buf[0].NumRows() >= s.n {
			total -= s.buf[0].NumRows()
			s.buf[0].Release()
			s.buf = s.buf[1:]
		}
		return nil
	})
	if err != nil {
		return err
	}
	if skip := total - s.n; skip > 0 {
		first := s.buf[0]
		s.buf[0] = first.NewSlice(skip, first.NumRows())
		first.Release()
	}
	return nil
}

func (s *tailStream) next(ctx context.Context) (arrow.Record, error) {
	if !s.drained {
		s.drained = true
		if err := s.fill(ctx); err != nil {
			return nil, err
		}
	}
	if len(s.buf) == 0 {
		return nil, nil
	}
	rec := s.buf[0]
	s.buf = s.buf[1:]
	return rec, nil
}

func (s *tailStream) close() {
	for _, r := range s.buf {
		r.Release()
	}
	s.buf = nil
	s.in.close()
}

// concat

type concatNode struct {
	inputs []node
}

func (n *concatNode) schema() (*arrow.Schema, error) {
	if len(n.inputs) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "concat needs at least one frame")
	}
	first, err := n.inputs[0].schema()
	if err != nil {
		return nil, err
	}
	for i, in := range n.inputs[1:] {
		s, err := in.schema()
		if err != nil {
			return nil, err
		}
		if !s.Equal(first) {
			return nil, errors.New(errors.ErrorTypeValidation, "concat frames have different schemas").
				WithDetail("frame", i+1).
				WithDetail("expected", first.String()).
				WithDetail("actual", s.String())
		}
	}
	return first, nil
}

func (n *concatNode) explain(b *strings.Builder, depth int) {
	indent(b, depth)
	b.WriteString("CONCAT\n")
	for _, in := range n.inputs {
		in.explain(b, depth+1)
	}
}

func (n *concatNode) open(_ context.Context) (stream, error) {
	if _, err := n.schema(); err != nil {
		return nil, err
	}
	return &concatStream{inputs: n.inputs}, nil
}

// concatStream opens each input only when the previous one is exhausted
type concatStream struct {
	inputs []node
	cur    stream
}

func (s *concatStream) next(ctx context.Context) (arrow.Record, error) {
	for {
		if s.cur == nil {
			if len(s.inputs) == 0 {
				return nil, nil
			}
			in, err := s.inputs[0].open(ctx)
			if err != nil {
				return nil, err
			}
			s.cur = in
			s.inputs = s.inputs[1:]
		}
		rec, err := s.cur.next(ctx)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
		s.cur.close()
		s.cur = nil
	}
}

func (s *concatStream) close() {
	if s.cur != nil {
		s.cur.close()
		s.cur = nil
	}
}

type emptyStream struct{}

func (emptyStream) next(context.Context) (arrow.Record, error) { return nil, nil }
func (emptyStream) close()                                     {}
