package queryir

import (
	"fmt"
	"regexp"
	"strconv"
)

// ValidationResult reports problems that do not stop a query from running.
//
// Conversion functions never fail on a well-typed Query: a malformed
// aggregation becomes count(), an untagged entry becomes a plain query.
// Validate is where those silent defaults become visible.
type ValidationResult struct {
	// Valid is true when no warnings were produced.
	Valid bool

	// Warnings lists every problem found, in query order.
	Warnings []string
}

// Validate checks the structural invariants of a Query:
//  1. Sub-query names are unique across queries, formulas and trace operators
//  2. Formula and trace-operator expressions reference only existing names
//  3. Builder queries use a known data source
//  4. Order directions are asc or desc
//
// Validate is a pure function with no side effects.
func Validate(q Query) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validateQuery(q)
	return ValidationResult{
		Valid:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if !q.QueryType.Valid() {
		v.addWarning("unknown query type %q", q.QueryType)
	}

	seen := make(map[string]string)
	check := func(name, kind string) {
		if name == "" {
			v.addWarning("%s has an empty name", kind)
			return
		}
		if prev, ok := seen[name]; ok {
			v.addWarning("duplicate name %q (%s and %s)", name, prev, kind)
			return
		}
		seen[name] = kind
	}

	for _, bq := range q.Builder.QueryData {
		check(bq.QueryName, "query")
		if !bq.DataSource.Valid() {
			v.addWarning("query %q: unknown data source %q (treated as metrics)", bq.QueryName, bq.DataSource)
		}
		if bq.ReduceTo != "" && !bq.ReduceTo.Valid() {
			v.addWarning("query %q: unknown reduceTo %q", bq.QueryName, bq.ReduceTo)
		}
		v.validateOrderBy(bq.QueryName, bq.OrderBy)
	}
	for _, t := range q.Builder.QueryTraceOperator {
		check(t.QueryName, "trace operator")
	}
	for _, f := range q.Builder.QueryFormulas {
		check(f.QueryName, "formula")
	}

	for _, f := range q.Builder.QueryFormulas {
		if f.Expression == "" {
			v.addWarning("formula %q has an empty expression", f.QueryName)
			continue
		}
		for _, ref := range FormulaReferences(f.Expression) {
			if _, ok := seen[ref]; !ok {
				v.addWarning("formula %q references unknown query %q", f.QueryName, ref)
			}
		}
	}
	for _, t := range q.Builder.QueryTraceOperator {
		for _, ref := range FormulaReferences(t.Expression) {
			if kind, ok := seen[ref]; !ok || kind != "query" {
				v.addWarning("trace operator %q references unknown query %q", t.QueryName, ref)
			}
		}
	}

	for _, p := range q.PromQL {
		if q.QueryType == QueryTypePromQL && !p.Disabled && p.Query == "" {
			v.addWarning("promql query %q is empty", p.Name)
		}
	}
	for _, c := range q.ClickHouseSQL {
		if q.QueryType == QueryTypeClickHouse && !c.Disabled && c.Query == "" {
			v.addWarning("clickhouse query %q is empty", c.Name)
		}
	}
}

func (v *validator) validateOrderBy(name string, orders []OrderBy) {
	for _, o := range orders {
		if o.Order != OrderAsc && o.Order != OrderDesc {
			v.addWarning("query %q: order on %q has unknown direction %q", name, o.ColumnName, o.Order)
		}
	}
}

// IsKeysetEligible reports whether orders allow cursor pagination: exactly
// one entry, keyed on the timestamp column.
func IsKeysetEligible(orders []OrderBy) bool {
	return len(orders) == 1 && orders[0].Key().Key == TimestampColumn
}

// referencePattern matches "A", "A.0" and "A.alias" style references.
// A trailing "(" marks a function call and is excluded by the caller.
var referencePattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)?(\s*\()?`)

var referenceBase = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)

// traceKeywords join trace operator operands and are never query names.
var traceKeywords = map[string]bool{"NOT": true, "AND": true, "OR": true}

// FormulaReferences returns the distinct query names an expression refers to,
// in order of first appearance. Function names ("abs(", "sqrt("), numbers and
// the trace operator keywords NOT, AND and OR are skipped; "A.0" and
// "A.count" resolve to "A".
func FormulaReferences(expression string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range referencePattern.FindAllStringSubmatchIndex(expression, -1) {
		if m[2] >= 0 {
			continue
		}
		if m[0] > 0 && isWordByte(expression[m[0]-1]) {
			continue
		}
		token := expression[m[0]:m[1]]
		if _, err := strconv.ParseFloat(token, 64); err == nil {
			continue
		}
		base := referenceBase.FindString(token)
		if base == "" || seen[base] || traceKeywords[base] {
			continue
		}
		seen[base] = true
		refs = append(refs, base)
	}
	return refs
}

func isWordByte(b byte) bool {
	return b == '_' || b == '.' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
