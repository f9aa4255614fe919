// Package formats defines the closed set of file encodings logpress reads
// and writes, and the extension dispatch that selects between them.
package formats

import (
	"strings"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

// Format represents a supported file encoding
type Format int

const (
	// Unknown is the zero value and never a valid format
	Unknown Format = iota
	// Parquet is Apache Parquet, the archival encoding
	Parquet
	// JSON is line-delimited JSON
	JSON
	// CSV is comma separated text with a header row
	CSV
	// Log is tab separated text without a header. It has no writer of its
	// own: it is produced by the CSV writer and then renamed.
	Log
)

// Extensions (case-sensitive, with leading dot)
const (
	ExtParquet = ".parquet"
	ExtJSON    = ".json"
	ExtCSV     = ".csv"
	ExtLog     = ".log"
)

// FromExtension maps a file extension to its Format. The leading dot is
// optional; matching is case-sensitive.
func FromExtension(ext string) (Format, error) {
	switch "." + strings.TrimPrefix(ext, ".") {
	case ExtParquet:
		return Parquet, nil
	case ExtJSON:
		return JSON, nil
	case ExtCSV:
		return CSV, nil
	case ExtLog:
		return Log, nil
	default:
		return Unknown, errors.Newf(errors.ErrorTypeUnsupportedFormat, "unknown file extension type '%s'", ext).
			WithDetail("extension", ext)
	}
}

// Extension returns the file extension with leading dot, or "" for Unknown
func (f Format) Extension() string {
	switch f {
	case Parquet:
		return ExtParquet
	case JSON:
		return ExtJSON
	case CSV:
		return ExtCSV
	case Log:
		return ExtLog
	default:
		return ""
	}
}

// String returns the short format name
func (f Format) String() string {
	switch f {
	case Parquet:
		return "parquet"
	case JSON:
		return "json"
	case CSV:
		return "csv"
	case Log:
		return "log"
	default:
		return "unknown"
	}
}

// Readable reports whether logs in this format can be scanned
func (f Format) Readable() bool {
	return f == Parquet || f == JSON
}

// Writable reports whether logs can be saved in this format
func (f Format) Writable() bool {
	return f != Unknown
}

// FormatInfo provides information about a format
type FormatInfo struct {
	Format        Format
	Name          string
	Description   string
	FileExtension string
	MIMEType      string
	Readable      bool
	Compressed    bool
}

// GetFormatInfo returns information about a format, or nil for Unknown
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case Parquet:
		return &FormatInfo{
			Format:        Parquet,
			Name:          "Apache Parquet",
			Description:   "Columnar archive, written with maximum zstd compression",
			FileExtension: ExtParquet,
			MIMEType:      "application/vnd.apache.parquet",
			Readable:      true,
			Compressed:    true,
		}
	case JSON:
		return &FormatInfo{
			Format:        JSON,
			Name:          "JSON Lines",
			Description:   "One JSON object per line",
			FileExtension: ExtJSON,
			MIMEType:      "application/x-ndjson",
			Readable:      true,
		}
	case CSV:
		return &FormatInfo{
			Format:        CSV,
			Name:          "CSV",
			Description:   "Comma separated values with a header row",
			FileExtension: ExtCSV,
			MIMEType:      "text/csv",
		}
	case Log:
		return &FormatInfo{
			Format:        Log,
			Name:          "Plain log",
			Description:   "Tab separated values without a header row",
			FileExtension: ExtLog,
			MIMEType:      "text/plain",
		}
	default:
		return nil
	}
}

// All returns every known format in declaration order
func All() []Format {
	return []Format{Parquet, JSON, CSV, Log}
}
