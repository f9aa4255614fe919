// Package logpress summarizes, filters and compresses structured logs.
//
// Logs are line-delimited JSON or parquet files. They are scanned lazily
// through an Apache Arrow plan, so a summary of a multi-gigabyte log reads
// only the rows it prints.
//
// # Architecture
//
//   - pkg/frame: lazy scans, plan operators (select, filter, sort, head, tail,
//     unique, concat) and sinks for parquet, JSON and CSV
//   - pkg/expr: row predicates, either built from column expressions or
//     compiled from CEL
//   - pkg/config: the LogConfig that binds a comparator, schema overrides
//     and a preferred column order to a log
//   - pkg/logparser: the LogParser with its summary, match and save operations
//   - cmd/logpress: the command line interface
//   - cmd/logmaker: a generator of synthetic logs
//
// # Quick Start
//
//	cfg := config.New("timestamp",
//	    config.WithSchemaOverrides(map[string]config.DataType{
//	        "timestamp": config.TypeDatetime(arrow.Nanosecond, ""),
//	        "container": config.TypeCategorical(),
//	        "level":     config.TypeEnum("DEBUG", "INFO", "WARN", "ERROR", "FATAL"),
//	    }),
//	    config.WithPreferredOrder("timestamp", "level"),
//	)
//
//	parser, err := logparser.New("example.json", cfg)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(parser)
//
//	errorsOnly, err := parser.Match(ctx, expr.Col("level").Eq("ERROR"), true)
//	if err != nil {
//	    return err
//	}
//	if errorsOnly != nil {
//	    defer errorsOnly.Release()
//	    fmt.Println(errorsOnly)
//	}
//
//	// example.parquet, zstd level 22
//	if _, err := parser.SaveCompressedLog(ctx, false); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Errors are *errors.Error values from pkg/errors carrying a type and
// details. Sentinels such as errors.ErrUnsupportedFormat and
// errors.ErrDestinationExists match with errors.Is.
package logpress
