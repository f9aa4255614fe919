package logparser

import (
	"context"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/formats"
	"github.com/ajitpratap0/logpress/pkg/frame"
	"github.com/ajitpratap0/logpress/pkg/observability"
)

// Save writes the whole log to the sibling file stem+ext and returns its
// path. ext may be given with or without the leading dot.
//
//   - .parquet: zstd at ZstdCompressionLevel
//   - .json: line-delimited JSON
//   - .csv: comma separated with a header row
//   - .log: tab separated without a header
//
// An existing destination fails with ErrDestinationExists unless overwrite
// is set, and nothing is written.
func (p *LogParser) Save(ctx context.Context, ext string, overwrite bool) (string, error) {
	format, err := formats.FromExtension(ext)
	if err != nil {
		return "", err
	}

	timer := p.metrics.NewTimer("save")
	defer timer.Stop()

	dest := p.stem + format.Extension()
	logger := p.logger.With(zap.String("destination", dest), zap.Stringer("format", format))
	ctx, span := observability.StartSpan(ctx, "logparser.save",
		attribute.String("log.path", p.path),
		attribute.String("save.destination", dest),
		attribute.String("save.format", format.String()))

	rows, err := p.save(ctx, format, dest, overwrite)
	p.metrics.RecordSave(format.String(), rows, err)
	span.SetAttributes(attribute.Int64("save.rows", rows))
	span.End(err)
	if err != nil {
		logger.Debug("save failed", zap.Error(err))
		return "", err
	}

	logger.Info("log saved", zap.Int64("rows", rows))
	return dest, nil
}

// SaveCompressedLog writes a maximally compressed parquet copy of the log
func (p *LogParser) SaveCompressedLog(ctx context.Context, overwrite bool) (string, error) {
	return p.Save(ctx, formats.ExtParquet, overwrite)
}

func (p *LogParser) save(ctx context.Context, format formats.Format, dest string, overwrite bool) (int64, error) {
	if err := checkDestination(dest, p.path, overwrite); err != nil {
		return 0, err
	}
	return writeFormat(ctx, p.lf, format, dest)
}

// WriteFile executes lf into dest, encoded as the extension of dest names.
// Encodings and the overwrite rule are those of Save.
func WriteFile(ctx context.Context, lf *frame.LazyFrame, dest string, overwrite bool) (int64, error) {
	format, err := formats.FromExtension(filepath.Ext(dest))
	if err != nil {
		return 0, err
	}
	if err := checkDestination(dest, "", overwrite); err != nil {
		return 0, err
	}
	return writeFormat(ctx, lf, format, dest)
}

func writeFormat(ctx context.Context, lf *frame.LazyFrame, format formats.Format, dest string) (int64, error) {
	if !format.Writable() {
		return 0, errors.Newf(errors.ErrorTypeUnsupportedFormat, "unknown file extension type '%s'", format.Extension())
	}
	switch format {
	case formats.Parquet:
		return lf.SinkParquet(ctx, dest, frame.ParquetOptions{CompressionLevel: ZstdCompressionLevel})
	case formats.JSON:
		return lf.SinkNDJSON(ctx, dest)
	case formats.CSV:
		return lf.SinkCSV(ctx, dest, frame.DefaultCSVOptions())
	default:
		return writeLog(ctx, lf, dest)
	}
}

// checkDestination rejects any existing file unless overwrite is set, and
// the source file, when there is one, even then.
func checkDestination(dest, source string, overwrite bool) error {
	_, err := os.Stat(dest)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to check destination").
			WithDetail("path", dest)
	case !overwrite:
		return errors.New(errors.ErrorTypeDestinationExists, "destination already exists").
			WithDetail("path", dest)
	}

	if source == "" {
		return nil
	}
	srcAbs, err := filepath.Abs(source)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to resolve log path")
	}
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to resolve destination path")
	}
	if srcAbs == destAbs {
		return errors.New(errors.ErrorTypeValidation, "cannot overwrite the log being saved").
			WithDetail("path", dest)
	}
	return nil
}

// writeLog has no writer of its own: the frame is written as headerless tab
// separated CSV into a temporary sibling file that is renamed to dest.
func writeLog(ctx context.Context, lf *frame.LazyFrame, dest string) (int64, error) {
	dir, base := filepath.Split(dest)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*"+formats.ExtCSV)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create temporary file").
			WithDetail("dir", dir)
	}
	tmpPath := tmp.Name()

	var rows int64
	if err = tmp.Chmod(0o644); err != nil {
		err = errors.Wrap(err, errors.ErrorTypeFile, "failed to set output permissions").
			WithDetail("path", tmpPath)
	} else {
		rows, err = lf.WriteCSV(ctx, tmp, frame.CSVOptions{Comma: '\t', Header: false})
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close temporary file")
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to rename output").
			WithDetail("from", tmpPath).
			WithDetail("to", dest)
	}
	return rows, nil
}
