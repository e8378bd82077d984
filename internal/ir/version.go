package ir

// Schema versions understood by the adapter.
const (
	// LegacySchemaVersion is the nested builder/promql/clickhouse_sql layout.
	LegacySchemaVersion = "v3"

	// EnvelopeSchemaVersion is the flat, type-tagged envelope layout.
	EnvelopeSchemaVersion = "v5"

	// PayloadSchemaVersion is the schemaVersion field sent in v5 range requests.
	PayloadSchemaVersion = "v1"

	// ToolVersion is the qb release version.
	ToolVersion = "0.1.0"
)
