// Package frame is a small lazy query engine over Apache Arrow.
//
// A LazyFrame is an immutable plan of declarative operations (select,
// filter, sort, head, tail, unique, concat) over a Source. Building a plan
// performs no I/O beyond reading the source schema. Work happens only in the
// terminal operations:
//
//   - Count returns the number of rows the plan produces
//   - Collect materializes the result as a DataFrame
//   - SinkParquet, SinkNDJSON and SinkCSV stream the result to a file
//
// Select, Filter and Head stream record batch by record batch. Tail keeps a
// bounded window of batches. Sort buffers its whole input; Unique keeps the
// distinct rows it has seen.
//
// Sources are parquet files (schema read from the footer) and line-delimited
// JSON files (schema inferred from a sample of records, with optional
// per-field overrides).
package frame
