package frame

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

// sort

type sortNode struct {
	input node
	cols  []string
}

func (n *sortNode) resolve() (*arrow.Schema, []int, error) {
	in, err := n.input.schema()
	if err != nil {
		return nil, nil, err
	}
	if len(n.cols) == 0 {
		return nil, nil, errors.New(errors.ErrorTypeValidation, "sort needs at least one column")
	}
	keys := make([]int, len(n.cols))
	for i, c := range n.cols {
		j, err := columnIndex(in, c)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = j
	}
	return in, keys, nil
}

func (n *sortNode) schema() (*arrow.Schema, error) {
	s, _, err := n.resolve()
	return s, err
}

func (n *sortNode) explain(b *strings.Builder, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "SORT [%s]\n", strings.Join(n.cols, ", "))
	n.input.explain(b, depth+1)
}

func (n *sortNode) open(ctx context.Context) (stream, error) {
	schema, keys, err := n.resolve()
	if err != nil {
		return nil, err
	}
	in, err := n.input.open(ctx)
	if err != nil {
		return nil, err
	}
	return &sortStream{in: in, schema: schema, keys: keys}, nil
}

type sortStream struct {
	in      stream
	schema  *arrow.Schema
	keys    []int
	batches []arrow.Record
	order   []rowRef
	sorted  bool
}

type sortRow struct {
	ref  rowRef
	keys []any
}

func (s *sortStream) fill(ctx context.Context) error {
	var rows []sortRow
	err := drain(ctx, s.in, func(rec arrow.Record) error {
		rec.Retain()
		b := len(s.batches)
		s.batches = append(s.batches, rec)
		for i := 0; i < int(rec.NumRows()); i++ {
			keys := make([]any, len(s.keys))
			for k, col := range s.keys {
				keys[k] = ValueAt(rec.Column(col), i)
			}
			rows = append(rows, sortRow{ref: rowRef{batch: b, row: i}, keys: keys})
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return compareKeys(rows[i].keys, rows[j].keys) < 0
	})

	s.order = make([]rowRef, len(rows))
	for i, r := range rows {
		s.order[i] = r.ref
	}
	return nil
}

// compareKeys orders key tuples ascending with nulls last
func compareKeys(a, b []any) int {
	for k := range a {
		x, y := a[k], b[k]
		switch {
		case x == nil && y == nil:
			continue
		case x == nil:
			return 1
		case y == nil:
			return -1
		}
		c, ok := Compare(x, y)
		if !ok {
			c = strings.Compare(fmt.Sprint(x), fmt.Sprint(y))
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func (s *sortStream) next(ctx context.Context) (arrow.Record, error) {
	if !s.sorted {
		s.sorted = true
		if err := s.fill(ctx); err != nil {
			return nil, err
		}
	}
	if len(s.order) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	n := min(len(s.order), DefaultBatchSize)
	chunk := s.order[:n]
	s.order = s.order[n:]
	return gather(s.schema, s.batches, chunk)
}

func (s *sortStream) close() {
	for _, b := range s.batches {
		b.Release()
	}
	s.batches = nil
	s.in.close()
}

// unique

type uniqueNode struct {
	input node
}

func (n *uniqueNode) schema() (*arrow.Schema, error) { return n.input.schema() }

func (n *uniqueNode) explain(b *strings.Builder, depth int) {
	indent(b, depth)
	b.WriteString("UNIQUE\n")
	n.input.explain(b, depth+1)
}

func (n *uniqueNode) open(ctx context.Context) (stream, error) {
	in, err := n.input.open(ctx)
	if err != nil {
		return nil, err
	}
	return &uniqueStream{in: in, seen: make(map[uint64][][]any), digest: xxhash.New()}, nil
}

// uniqueStream fingerprints rows with xxhash; rows sharing a fingerprint are
// compared value by value.
type uniqueStream struct {
	in     stream
	seen   map[uint64][][]any
	digest *xxhash.Digest
	keep   []int
}

func (s *uniqueStream) add(values []any) bool {
	h := hashRow(s.digest, values)
	for _, prev := range s.seen[h] {
		if rowsEqual(prev, values) {
			return false
		}
	}
	s.seen[h] = append(s.seen[h], values)
	return true
}

func rowsEqual(a, b []any) bool {
	for i := range a {
		if !equalValues(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (s *uniqueStream) next(ctx context.Context) (arrow.Record, error) {
	for {
		rec, err := s.in.next(ctx)
		if rec == nil || err != nil {
			return nil, err
		}

		s.keep = s.keep[:0]
		rows, cols := int(rec.NumRows()), int(rec.NumCols())
		for i := 0; i < rows; i++ {
			values := make([]any, cols)
			for c := 0; c < cols; c++ {
				values[c] = ValueAt(rec.Column(c), i)
			}
			if s.add(values) {
				s.keep = append(s.keep, i)
			}
		}

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

func (s *uniqueStream) close() {
	s.seen = nil
	s.in.close()
}
