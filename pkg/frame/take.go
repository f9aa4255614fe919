package frame

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

// rowRef addresses one row of a buffered batch
type rowRef struct {
	batch int
	row   int
}

// takeRows builds a record holding the given rows of rec, in order
func takeRows(rec arrow.Record, rows []int) (arrow.Record, error) {
	refs := make([]rowRef, len(rows))
	for i, r := range rows {
		refs[i] = rowRef{row: r}
	}
	return gather(rec.Schema(), []arrow.Record{rec}, refs)
}

// gather builds a record from rows spread over batches. Runs of adjacent
// rows become zero-copy slices that are concatenated per column.
func gather(schema *arrow.Schema, batches []arrow.Record, refs []rowRef) (arrow.Record, error) {
	type span struct {
		batch      int
		start, end int64
	}

	var spans []span
	for _, ref := range refs {
		if n := len(spans); n > 0 {
			last := &spans[n-1]
			if last.batch == ref.batch && last.end == int64(ref.row) {
				last.end++
				continue
			}
		}
		spans = append(spans, span{batch: ref.batch, start: int64(ref.row), end: int64(ref.row) + 1})
	}

	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	parts := make([]arrow.Array, len(spans))
	for c := range cols {
		for i, sp := range spans {
			parts[i] = array.NewSlice(batches[sp.batch].Column(c), sp.start, sp.end)
		}

		if len(parts) == 1 {
			cols[c] = parts[0]
			continue
		}

		col, err := array.Concatenate(parts, memory.DefaultAllocator)
		for _, p := range parts {
			p.Release()
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to gather rows").
				WithDetail("column", schema.Field(c).Name)
		}
		cols[c] = col
	}

	return array.NewRecord(schema, cols, int64(len(refs))), nil
}
