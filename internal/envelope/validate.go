package envelope

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/prometheus/promql/parser"

	"github.com/roach88/querybuilder/internal/queryir"
)

// MaxQueryLimit is the largest limit the backend accepts.
const MaxQueryLimit = 10000

// ValidationError describes one problem with a composite query. Name is a
// readable identifier such as "query 'A'" or "formula at position 2".
type ValidationError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Name + ": " + e.Message
}

// ValidateComposite checks a composite query the way the backend would
// before running it. Conversions never fail, so this is where silently
// defaulted or inconsistent entries surface. The result is empty, never nil,
// when the query is valid.
//
// Aggregation checks are skipped for raw and trace requests, which return
// rows rather than aggregates.
func ValidateComposite(cq CompositeQuery, rt RequestType) []ValidationError {
	v := &compositeValidator{
		errs:     []ValidationError{},
		rt:       rt,
		queries:  make(map[string]bool),
		firstUse: make(map[string]int),
	}
	v.validate(cq)
	return v.errs
}

type compositeValidator struct {
	errs     []ValidationError
	rt       RequestType
	queries  map[string]bool
	firstUse map[string]int
}

func (v *compositeValidator) add(name, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Name: name, Message: fmt.Sprintf(format, args...)})
}

func (v *compositeValidator) validate(cq CompositeQuery) {
	if len(cq.Queries) == 0 {
		v.add("composite query", "at least one query is required")
		return
	}

	for _, env := range cq.Queries {
		if s, ok := env.Spec.(BuilderQuerySpec); ok && s.Name != "" {
			v.queries[s.Name] = true
		}
	}

	allDisabled := true
	for i, env := range cq.Queries {
		id := identifier(env, i)
		v.validateName(env, id, i)
		if !env.Disabled() {
			allDisabled = false
		}

		switch s := env.Spec.(type) {
		case BuilderQuerySpec:
			v.validateBuilder(id, s)
		case FormulaSpec:
			v.validateFormula(id, s)
		case TraceOperatorSpec:
			v.validateTraceOperator(id, s)
		case PromQLSpec:
			v.validatePromQL(id, s)
		case ClickHouseSpec:
			if strings.TrimSpace(s.Query) == "" {
				v.add(id, "query is required")
			}
		default:
			v.add(id, "unknown envelope type %q", env.Type)
		}
	}

	if allDisabled {
		v.add("composite query", "all queries are disabled")
	}
}

func (v *compositeValidator) validateName(env QueryEnvelope, id string, i int) {
	name := env.Name()
	if name == "" {
		v.add(id, "name is required")
		return
	}
	if first, ok := v.firstUse[name]; ok {
		v.add(id, "duplicate name, first used at position %d", first+1)
		return
	}
	v.firstUse[name] = i
}

func (v *compositeValidator) validateBuilder(id string, s BuilderQuerySpec) {
	switch s.Signal {
	case SignalMetrics, SignalLogs, SignalTraces, "":
	default:
		v.add(id, "invalid signal %q; valid signals are metrics, traces, logs", s.Signal)
	}

	if v.rt != RequestTypeRaw && v.rt != RequestTypeTrace {
		v.validateAggregations(id, s.Aggregations, s.Disabled)
	}
	v.validateBase(id, s.BaseSpec)
}

func (v *compositeValidator) validateAggregations(id string, aggs queryir.Aggregations, disabled bool) {
	if len(aggs) == 0 && !disabled {
		v.add(id, "at least one aggregation is required")
	}
	aliases := make(map[string]bool)
	for i, agg := range aggs {
		switch a := agg.(type) {
		case queryir.MetricAggregation:
			if a.MetricName == "" {
				v.add(id, "metric name is required for aggregation #%d", i+1)
			}
			if a.ReduceTo != "" && !a.ReduceTo.Valid() {
				v.add(id, "invalid reduceTo %q for aggregation #%d", a.ReduceTo, i+1)
			}
		case queryir.ExpressionAggregation:
			if a.Expression == "" {
				v.add(id, "expression is required for aggregation #%d", i+1)
			}
			if a.Alias != "" {
				if aliases[a.Alias] {
					v.add(id, "duplicate aggregation alias %q", a.Alias)
				}
				aliases[a.Alias] = true
			}
		}
	}
}

func (v *compositeValidator) validateBase(id string, b BaseSpec) {
	if b.Limit != nil {
		switch {
		case *b.Limit < 0:
			v.add(id, "limit must be non-negative, got %d", *b.Limit)
		case *b.Limit > MaxQueryLimit:
			v.add(id, "limit %d exceeds maximum allowed value of %d", *b.Limit, MaxQueryLimit)
		}
	}
	if b.Offset != nil && *b.Offset < 0 {
		v.add(id, "offset must be non-negative, got %d", *b.Offset)
	}
	v.validateOrder(id, b.Order)
	for i, fn := range b.Functions {
		if !IsKnownFunction(fn.Name) {
			v.add(id, "invalid function name %q at function #%d", fn.Name, i+1)
		}
	}
}

func (v *compositeValidator) validateOrder(id string, orders []OrderBy) {
	for i, o := range orders {
		if o.Direction != queryir.OrderAsc && o.Direction != queryir.OrderDesc {
			v.add(id, "invalid direction %q for order by clause #%d; valid directions are asc, desc", o.Direction, i+1)
		}
	}
}

func (v *compositeValidator) validateFormula(id string, s FormulaSpec) {
	if strings.TrimSpace(s.Expression) == "" {
		v.add(id, "expression is required")
		return
	}
	v.validateReferences(id, s.Expression)
	if s.Limit != nil && *s.Limit < 0 {
		v.add(id, "limit must be non-negative, got %d", *s.Limit)
	}
	v.validateOrder(id, s.Order)
}

func (v *compositeValidator) validateTraceOperator(id string, s TraceOperatorSpec) {
	if strings.TrimSpace(s.Expression) == "" {
		v.add(id, "expression is required")
		return
	}
	v.validateReferences(id, s.Expression)
	if v.rt != RequestTypeRaw && v.rt != RequestTypeTrace {
		v.validateAggregations(id, s.Aggregations, s.Disabled)
	}
	v.validateBase(id, s.BaseSpec)
}

func (v *compositeValidator) validateReferences(id, expression string) {
	for _, ref := range queryir.FormulaReferences(expression) {
		if !v.queries[ref] {
			v.add(id, "expression references unknown query %q", ref)
		}
	}
}

func (v *compositeValidator) validatePromQL(id string, s PromQLSpec) {
	if strings.TrimSpace(s.Query) == "" {
		v.add(id, "query is required")
		return
	}
	if err := CheckPromQL(s.Query); err != nil {
		v.add(id, "invalid PromQL: %v", err)
	}
}

// rangeVariable matches a dashboard variable used as a range, e.g.
// rate(x[$__rate_interval]).
var rangeVariable = regexp.MustCompile(`\[\s*\$\{?[A-Za-z_][A-Za-z0-9_]*\}?\s*\]`)

// CheckPromQL parses query with the Prometheus parser. Dashboard variables
// used as ranges are replaced by a fixed range first; variables inside
// label matcher strings need no substitution.
func CheckPromQL(query string) error {
	_, err := parser.ParseExpr(rangeVariable.ReplaceAllString(query, "[1m]"))
	return err
}

func identifier(env QueryEnvelope, i int) string {
	name := env.Name()
	switch env.Type {
	case KindBuilderQuery:
		if name != "" {
			return fmt.Sprintf("query '%s'", name)
		}
		if s, ok := env.Spec.(BuilderQuerySpec); ok && s.Signal != "" {
			return fmt.Sprintf("%s query at position %d", strings.TrimSuffix(string(s.Signal), "s"), i+1)
		}
		return fmt.Sprintf("query at position %d", i+1)
	case KindFormula:
		if name != "" {
			return fmt.Sprintf("formula '%s'", name)
		}
		return fmt.Sprintf("formula at position %d", i+1)
	case KindTraceOperator:
		if name != "" {
			return fmt.Sprintf("trace operator '%s'", name)
		}
		return fmt.Sprintf("trace operator at position %d", i+1)
	case KindPromQL:
		if name != "" {
			return fmt.Sprintf("PromQL query '%s'", name)
		}
		return fmt.Sprintf("PromQL query at position %d", i+1)
	case KindClickHouseSQL:
		if name != "" {
			return fmt.Sprintf("ClickHouse query '%s'", name)
		}
		return fmt.Sprintf("ClickHouse query at position %d", i+1)
	}
	return fmt.Sprintf("query at position %d", i+1)
}
