// Package queryir defines the Query value shared by every query-building
// component: the aggregation parser, the schema adapter, the pagination
// engine and the filter composer.
//
// # Value semantics
//
// A Query is immutable by convention. Clone produces a deep copy and every
// With*/Add*/Remove* helper returns a new value, so one Query can be handed
// to several goroutines or kept as undo history without locking.
//
// # Shape
//
//	Query
//	├── builder
//	│   ├── queryData           []BuilderQuery    (A, B, ...)
//	│   ├── queryFormulas       []BuilderFormula  (F1, F2, ...)
//	│   └── queryTraceOperator  []TraceOperator   (T1, ...)
//	├── promql                  []PromQuery
//	└── clickhouse_sql          []ClickHouseQuery
//
// Filters are one flat AND group (TagFilter). Nested OR/AND groups are not
// representable.
//
// # Invariants
//
//   - Sub-query names are unique within a Query
//   - Formula expressions reference existing names only ("A", "A.0", "A.alias")
//   - Keyset pagination requires a single ordering on the timestamp column
//
// Validate reports violations as warnings; nothing in this package refuses
// to build a Query.
package queryir
