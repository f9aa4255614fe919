package frame

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow"
)

const (
	displayRows  = 10
	displayEdge  = 5
	displayWidth = 64
)

// DataFrame is a materialized result. It owns its records until Release.
type DataFrame struct {
	schema  *arrow.Schema
	records []arrow.Record
	height  int64
}

func newDataFrame(schema *arrow.Schema, records []arrow.Record) *DataFrame {
	return &DataFrame{schema: schema, records: records, height: countRows(records)}
}

// Height returns the number of rows
func (df *DataFrame) Height() int64 { return df.height }

// Width returns the number of columns
func (df *DataFrame) Width() int { return df.schema.NumFields() }

// IsEmpty reports whether the frame has no rows
func (df *DataFrame) IsEmpty() bool { return df.height == 0 }

// Schema returns the frame schema
func (df *DataFrame) Schema() *arrow.Schema { return df.schema }

// Columns returns the column names in order
func (df *DataFrame) Columns() []string { return FieldNames(df.schema) }

// Records returns the underlying record batches. They stay owned by df.
func (df *DataFrame) Records() []arrow.Record { return df.records }

// Release frees the record batches
func (df *DataFrame) Release() {
	for _, r := range df.records {
		r.Release()
	}
	df.records = nil
	df.height = 0
}

// locate maps a row number to its batch and offset
func (df *DataFrame) locate(row int64) (arrow.Record, int, bool) {
	if row < 0 || row >= df.height {
		return nil, 0, false
	}
	for _, r := range df.records {
		if row < r.NumRows() {
			return r, int(row), true
		}
		row -= r.NumRows()
	}
	return nil, 0, false
}

// Value returns the value of column col at row, and false when either is
// out of range.
func (df *DataFrame) Value(col string, row int64) (any, bool) {
	idx := df.schema.FieldIndices(col)
	if len(idx) == 0 {
		return nil, false
	}
	rec, i, ok := df.locate(row)
	if !ok {
		return nil, false
	}
	return ValueAt(rec.Column(idx[0]), i), true
}

// Row returns the values of one row in column order, or nil when out of range
func (df *DataFrame) Row(row int64) []any {
	rec, i, ok := df.locate(row)
	if !ok {
		return nil
	}
	values := make([]any, rec.NumCols())
	for c := range values {
		values[c] = ValueAt(rec.Column(c), i)
	}
	return values
}

// Column returns every value of the named column
func (df *DataFrame) Column(name string) ([]any, bool) {
	idx := df.schema.FieldIndices(name)
	if len(idx) == 0 {
		return nil, false
	}
	out := make([]any, 0, df.height)
	for _, r := range df.records {
		col := r.Column(idx[0])
		for i := 0; i < col.Len(); i++ {
			out = append(out, ValueAt(col, i))
		}
	}
	return out, true
}

// Lazy returns a plan over the frame's records. The frame must outlive it.
func (df *DataFrame) Lazy() *LazyFrame {
	return FromSource(newMemorySource(df.schema, df.records))
}

// String renders a table: the shape, the column names, their types and the
// rows. Long frames show the first and last rows around an ellipsis.
func (df *DataFrame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "shape: (%d, %d)\n", df.height, df.Width())

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	writeCells(tw, df.Columns())
	types := make([]string, df.Width())
	for i, f := range df.schema.Fields() {
		types[i] = TypeLabel(f)
	}
	writeCells(tw, types)

	printRow := func(i int64) {
		values := df.Row(i)
		cells := make([]string, len(values))
		for c, v := range values {
			cells[c] = displayCell(v)
		}
		writeCells(tw, cells)
	}

	if df.height <= displayRows {
		for i := int64(0); i < df.height; i++ {
			printRow(i)
		}
	} else {
		for i := int64(0); i < displayEdge; i++ {
			printRow(i)
		}
		ellipsis := make([]string, df.Width())
		for i := range ellipsis {
			ellipsis[i] = "…"
		}
		writeCells(tw, ellipsis)
		for i := df.height - displayEdge; i < df.height; i++ {
			printRow(i)
		}
	}
	_ = tw.Flush()

	return strings.TrimRight(b.String(), "\n")
}

func writeCells(tw *tabwriter.Writer, cells []string) {
	fmt.Fprintln(tw, strings.Join(cells, "\t"))
}

func displayCell(v any) string {
	if v == nil {
		return "null"
	}
	s := strings.NewReplacer("\t", " ", "\n", " ").Replace(FormatValue(v))
	if r := []rune(s); len(r) > displayWidth {
		return string(r[:displayWidth-1]) + "…"
	}
	return s
}
