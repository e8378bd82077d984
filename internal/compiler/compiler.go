package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
)

//go:embed schema.cue
var schemaCUE string

const schemaFilename = "schema.cue"

// Result is a compiled query definition.
type Result struct {
	Query queryir.Query
	Panel queryir.PanelType
}

// fileSpec mirrors the scalar and list parts of #File. Sections keyed by
// query name are walked field by field to keep declaration positions.
type fileSpec struct {
	QueryType string                 `json:"queryType"`
	Panel     string                 `json:"panel"`
	Unit      string                 `json:"unit"`
	Keys      []queryir.AttributeKey `json:"keys"`
}

type rawSpec struct {
	Query    string `json:"query"`
	Legend   string `json:"legend"`
	Disabled bool   `json:"disabled"`
}

// Compile checks v against the query file schema and compiles it into a
// Query. v must come from the same cue.Context the schema is compiled in,
// which is v.Context().
//
// The file looks like:
//
//	panel: "graph"
//	query: {
//		A: {dataSource: "logs", filter: "service.name = 'api'"}
//		B: {dataSource: "logs"}
//		F1: {expression: "A / B"}
//	}
func Compile(v cue.Value) (*Result, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaCUE, cue.Filename(schemaFilename))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	file := schema.LookupPath(cue.ParsePath("#File")).Unify(v)
	if err := file.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var spec fileSpec
	if err := file.Decode(&spec); err != nil {
		return nil, formatCUEError(err)
	}

	res := &Result{Panel: queryir.PanelTimeSeries}
	if spec.Panel != "" {
		panel, ok := queryir.ParsePanelType(spec.Panel)
		if !ok {
			return nil, &CompileError{
				Field:   "panel",
				Message: fmt.Sprintf("unknown panel type %q", spec.Panel),
				Pos:     file.LookupPath(cue.ParsePath("panel")).Pos(),
			}
		}
		res.Panel = panel
	}

	q := queryir.Query{
		Builder: queryir.Builder{
			QueryData:          []queryir.BuilderQuery{},
			QueryFormulas:      []queryir.BuilderFormula{},
			QueryTraceOperator: []queryir.TraceOperator{},
		},
		Unit: spec.Unit,
	}

	c := &entryCompiler{keys: spec.Keys}
	if err := c.compileBuilder(file.LookupPath(cue.ParsePath("query")), &q.Builder); err != nil {
		return nil, err
	}

	var err error
	q.PromQL, err = compileRaw(file, "promql", func(name string, r rawSpec) (queryir.PromQuery, error) {
		if err := envelope.CheckPromQL(r.Query); err != nil {
			return queryir.PromQuery{}, err
		}
		return queryir.PromQuery{Name: name, Query: r.Query, Legend: r.Legend, Disabled: r.Disabled}, nil
	})
	if err != nil {
		return nil, err
	}
	q.ClickHouseSQL, err = compileRaw(file, "clickhouse", func(name string, r rawSpec) (queryir.ClickHouseQuery, error) {
		return queryir.ClickHouseQuery{Name: name, Query: r.Query, Legend: r.Legend, Disabled: r.Disabled}, nil
	})
	if err != nil {
		return nil, err
	}

	q.QueryType = queryir.QueryType(spec.QueryType)
	if q.QueryType == "" {
		switch {
		case len(q.Builder.QueryData)+len(q.Builder.QueryFormulas)+len(q.Builder.QueryTraceOperator) > 0:
			q.QueryType = queryir.QueryTypeBuilder
		case len(q.PromQL) > 0:
			q.QueryType = queryir.QueryTypePromQL
		case len(q.ClickHouseSQL) > 0:
			q.QueryType = queryir.QueryTypeClickHouse
		default:
			return nil, &CompileError{Field: "query", Message: "no queries defined", Pos: v.Pos()}
		}
	}

	if err := checkReferences(q, file); err != nil {
		return nil, err
	}

	res.Query = q
	return res, nil
}

// CompileString compiles CUE source text. filename is used in error
// positions only.
func CompileString(src, filename string) (*Result, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// compileRaw compiles the promql or clickhouse section in declaration order.
func compileRaw[T any](file cue.Value, section string, build func(name string, r rawSpec) (T, error)) ([]T, error) {
	out := []T{}
	sv := file.LookupPath(cue.ParsePath(section))
	if !sv.Exists() {
		return out, nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		var r rawSpec
		if err := iter.Value().Decode(&r); err != nil {
			return nil, formatCUEError(err)
		}
		item, err := build(name, r)
		if err != nil {
			return nil, &CompileError{
				Field:   section + "." + name,
				Message: err.Error(),
				Pos:     iter.Value().LookupPath(cue.ParsePath("query")).Pos(),
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Point at the user's file, not the schema it was checked against.
	firstErr := errs[0]
	var pos token.Pos
	for _, p := range errors.Positions(firstErr) {
		if !pos.IsValid() || pos.Filename() == schemaFilename {
			pos = p
		}
	}
	if pos.IsValid() {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     pos,
		}
	}

	return err
}
