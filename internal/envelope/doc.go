// Package envelope adapts the Query IR to and from the flat v5 wire schema.
//
// The legacy schema nests queries by kind:
//
//	{queryType, builder: {queryData, queryFormulas, queryTraceOperator}, promql, clickhouse_sql}
//
// The v5 schema is a flat list of type-tagged entries:
//
//	{queries: [{type: "builder_query", spec: {...}}, {type: "builder_formula", spec: {...}}, ...]}
//
// Every function here is a pure conversion at the edge of the system. Core
// packages only ever see queryir values; v5 shapes live in this package.
//
// Entry kinds are always explicit. The name-based classification used by
// older saved data (F1 is a formula, T1 a trace operator) is available only
// as the one-time MigrateLegacyKinds step.
package envelope
