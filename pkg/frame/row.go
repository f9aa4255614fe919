package frame

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Row gives a predicate access to the values of one record
type Row interface {
	// Value returns the value of the named column. ok is false when the
	// column does not exist; a null value is (nil, true).
	Value(name string) (v any, ok bool)
}

// Predicate decides whether a row belongs to a filtered result
type Predicate interface {
	Eval(row Row) (bool, error)
}

// PredicateFunc adapts a function to Predicate
type PredicateFunc func(row Row) (bool, error)

// Eval calls f(row)
func (f PredicateFunc) Eval(row Row) (bool, error) {
	return f(row)
}

// ColumnReferencer is implemented by predicates that can list the columns
// they read. Filter uses it to reject unknown columns before execution.
type ColumnReferencer interface {
	Columns() []string
}

// recordRow is a Row over one row of an arrow record
type recordRow struct {
	rec   arrow.Record
	index map[string]int
	i     int
}

func newRecordRow(schema *arrow.Schema) *recordRow {
	index := make(map[string]int, schema.NumFields())
	for i, f := range schema.Fields() {
		index[f.Name] = i
	}
	return &recordRow{index: index}
}

func (r *recordRow) Value(name string) (any, bool) {
	col, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return ValueAt(r.rec.Column(col), r.i), true
}

// Values returns every column of the row by name
func (r *recordRow) Values() map[string]any {
	out := make(map[string]any, len(r.index))
	for name, col := range r.index {
		out[name] = ValueAt(r.rec.Column(col), r.i)
	}
	return out
}

// MapRow is a Row backed by a map, mostly useful in tests
type MapRow map[string]any

// Value implements Row
func (m MapRow) Value(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Values returns the map itself
func (m MapRow) Values() map[string]any {
	return m
}
