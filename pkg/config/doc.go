// Package config describes how logpress interprets a log file.
//
// A LogConfig names the comparator field used to order records, optional
// per-field type overrides for JSON scans, and an optional preferred column
// order for output. Constructing a LogConfig never fails; the comparator is
// validated only when the configuration is bound to a log.
//
// # Usage
//
//	cfg := config.New("timestamp",
//		config.WithSchemaOverrides(map[string]config.DataType{
//			"timestamp": config.TypeDatetime(arrow.Nanosecond, ""),
//			"container": config.TypeCategorical(),
//			"level":     config.TypeEnum("DEBUG", "INFO", "WARN", "ERROR", "FATAL"),
//		}),
//		config.WithPreferredOrder("timestamp", "level"),
//	)
//
// # YAML files
//
// Load reads the same information from YAML, with ${VAR_NAME} environment
// substitution:
//
//	comparator: timestamp
//	schema_overrides:
//	  timestamp: datetime[ns]
//	  container: categorical
//	  level: enum[DEBUG,INFO,WARN,ERROR,FATAL]
//	preferred_order: [timestamp, level]
package config
