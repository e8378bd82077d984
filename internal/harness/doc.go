// Package harness runs conversion scenarios through the schema adapter.
//
// A scenario feeds one input through one conversion and checks the result,
// both with assertions and against a golden canonical-JSON snapshot.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: logs_table
//	description: "Logs count grouped by service on a table panel"
//	operation: prepare
//	panel: table
//	range: {start: 1700000000000, end: 1700003600000}
//	source: |
//	  query: A: {dataSource: "logs", aggregations: ["count()"]}
//	assertions:
//	  - type: names
//	    names: [A]
//	  - type: request_type
//	    request_type: scalar
//
// # Operations
//
//   - envelope: compile the CUE source and convert it to a composite query
//   - prepare: compile the CUE source and build a query_range request
//   - legacy: convert the nested v3 composite query in legacy to envelopes
//   - entries: build the query from the flat name -> entry map in entries,
//     tagged by kinds or, without it, by their legacy names
//   - composite: convert the v5 composite query in composite back to the
//     editor's query and out to envelopes again
//
// # Assertion Types
//
//   - names: envelope names, in order
//   - kinds: envelope types, in order
//   - request_type: request type of a prepare scenario
//   - legend: legend of one named envelope
//   - problems: number of composite validation problems
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON of the output (the request for
// prepare, the composite query otherwise) with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
