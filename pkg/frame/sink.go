package frame

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/logpress/pkg/errors"
	jsonx "github.com/ajitpratap0/logpress/pkg/json"
)

// ParquetOptions configures parquet output. Pages are always zstd compressed.
type ParquetOptions struct {
	// CompressionLevel is the zstd level; zero uses the codec default
	CompressionLevel int
	// RowGroupRows caps rows per row group; zero uses the library default
	RowGroupRows int64
}

// CSVOptions configures delimited text output
type CSVOptions struct {
	Comma  rune
	Header bool
}

// DefaultCSVOptions returns comma separated output with a header row
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Comma: ',', Header: true}
}

// noCloseWriter keeps the parquet writer from closing the caller's writer
type noCloseWriter struct {
	io.Writer
}

// WriteParquet executes the plan and writes the result to w as parquet.
// The arrow schema is stored in the file so scans restore the same types.
func (lf *LazyFrame) WriteParquet(ctx context.Context, w io.Writer, opts ParquetOptions) (int64, error) {
	if lf.err != nil {
		return 0, lf.err
	}

	writerOpts := []parquet.WriterProperty{parquet.WithCompression(compress.Codecs.Zstd)}
	if opts.CompressionLevel != 0 {
		writerOpts = append(writerOpts, parquet.WithCompressionLevel(opts.CompressionLevel))
	}
	if opts.RowGroupRows > 0 {
		writerOpts = append(writerOpts, parquet.WithMaxRowGroupLength(opts.RowGroupRows))
	}

	fw, err := pqarrow.NewFileWriter(
		lf.schema,
		noCloseWriter{w},
		parquet.NewWriterProperties(writerOpts...),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
	)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet writer")
	}

	var rows int64
	err = lf.execute(ctx, func(rec arrow.Record) error {
		if err := fw.WriteBuffered(rec); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write parquet rows")
		}
		rows += rec.NumRows()
		return nil
	})
	if cerr := fw.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to finish parquet file")
	}
	return rows, err
}

// WriteNDJSON executes the plan and writes one JSON object per row to w,
// keys in schema order.
func (lf *LazyFrame) WriteNDJSON(ctx context.Context, w io.Writer) (int64, error) {
	if lf.err != nil {
		return 0, lf.err
	}

	bw := bufio.NewWriterSize(w, 256*1024)
	names := FieldNames(lf.schema)
	obj := jsonx.NewObjectWriter(512)

	var rows int64
	err := lf.execute(ctx, func(rec arrow.Record) error {
		for i := 0; i < int(rec.NumRows()); i++ {
			obj.Reset()
			for c, name := range names {
				if err := obj.WriteField(name, jsonValue(ValueAt(rec.Column(c), i))); err != nil {
					return errors.Wrap(err, errors.ErrorTypeData, "failed to encode JSON row").
						WithDetail("column", name)
				}
			}
			line := append(obj.Bytes(), '\n')
			if _, err := bw.Write(line); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to write JSON row")
			}
		}
		rows += rec.NumRows()
		return nil
	})
	if err != nil {
		return rows, err
	}
	if err := bw.Flush(); err != nil {
		return rows, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush JSON output")
	}
	return rows, nil
}

// WriteCSV executes the plan and writes delimited text to w
func (lf *LazyFrame) WriteCSV(ctx context.Context, w io.Writer, opts CSVOptions) (int64, error) {
	if lf.err != nil {
		return 0, lf.err
	}

	cw := csv.NewWriter(w)
	if opts.Comma != 0 {
		cw.Comma = opts.Comma
	}
	if opts.Header {
		if err := cw.Write(FieldNames(lf.schema)); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to write CSV header")
		}
	}

	var rows int64
	cells := make([]string, lf.schema.NumFields())
	err := lf.execute(ctx, func(rec arrow.Record) error {
		for i := 0; i < int(rec.NumRows()); i++ {
			for c := range cells {
				cells[c] = FormatValue(ValueAt(rec.Column(c), i))
			}
			if err := cw.Write(cells); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to write CSV row")
			}
		}
		rows += rec.NumRows()
		return nil
	})
	if err != nil {
		return rows, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush CSV output")
	}
	return rows, nil
}

// SinkParquet writes the plan result to a new parquet file at path
func (lf *LazyFrame) SinkParquet(ctx context.Context, path string, opts ParquetOptions) (int64, error) {
	return sinkFile(path, func(w io.Writer) (int64, error) {
		return lf.WriteParquet(ctx, w, opts)
	})
}

// SinkNDJSON writes the plan result to a new line-delimited JSON file at path
func (lf *LazyFrame) SinkNDJSON(ctx context.Context, path string) (int64, error) {
	return sinkFile(path, func(w io.Writer) (int64, error) {
		return lf.WriteNDJSON(ctx, w)
	})
}

// SinkCSV writes the plan result to a new delimited text file at path
func (lf *LazyFrame) SinkCSV(ctx context.Context, path string, opts CSVOptions) (int64, error) {
	return sinkFile(path, func(w io.Writer) (int64, error) {
		return lf.WriteCSV(ctx, w, opts)
	})
}

// sinkFile creates or truncates path and runs write against it. The partial
// file is removed when write fails.
func sinkFile(path string, write func(io.Writer) (int64, error)) (int64, error) {
	f, err := os.Create(path) //nolint:gosec // G304: path belongs to the caller
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}

	rows, err := write(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output file")
	}
	if err != nil {
		_ = os.Remove(path)
		if e, ok := err.(*errors.Error); ok {
			e.WithDetail("path", path)
		}
		return 0, err
	}
	return rows, nil
}
