package harness

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/querybuilder/internal/compiler"
	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
)

// Harness runs scenarios. The zero value is ready to use and logs nothing.
type Harness struct {
	log zerolog.Logger
}

// New returns a Harness that logs each run to log.
func New(log zerolog.Logger) *Harness {
	return &Harness{log: log}
}

// Run executes a scenario with a silent logger.
func Run(scenario *Scenario) (*Result, error) {
	h := Harness{log: zerolog.Nop()}
	return h.Run(scenario)
}

// Run converts the scenario input and evaluates its assertions.
//
// An error means the scenario could not be executed (bad CUE source,
// malformed legacy input). Failed assertions are reported in the result.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	result := NewResult()

	var rt envelope.RequestType
	switch scenario.Operation {
	case OpEnvelope, OpPrepare:
		compiled, err := compiler.CompileString(scenario.Source, scenario.Name+".cue")
		if err != nil {
			return nil, fmt.Errorf("compile source: %w", err)
		}
		panel := compiled.Panel
		if scenario.Panel != "" {
			panel, _ = queryir.ParsePanelType(scenario.Panel)
		}
		rt = envelope.MapPanelTypeToRequestType(panel)

		if scenario.Operation == OpPrepare {
			req, legends := envelope.PrepareQueryRange(envelope.PrepareParams{
				Query:     compiled.Query,
				PanelType: panel,
				Start:     time.UnixMilli(scenario.Range.Start),
				End:       time.UnixMilli(scenario.Range.End),
				Variables: scenario.Variables,
			})
			result.Request = &req
			result.Composite = req.CompositeQuery
			result.Legends = legends
		} else {
			result.Composite = envelope.FromQuery(compiled.Query, panel)
		}

	case OpLegacy:
		lc, err := decodeLegacy(scenario.Legacy)
		if err != nil {
			return nil, err
		}
		if scenario.Panel != "" {
			lc.PanelType, _ = queryir.ParsePanelType(scenario.Panel)
		}
		rt = envelope.MapPanelTypeToRequestType(lc.PanelType)
		result.Composite, err = envelope.CompositeQueryToQueryEnvelope(lc)
		if err != nil {
			return nil, fmt.Errorf("convert legacy query: %w", err)
		}

	case OpEntries:
		entries := make(map[string]json.RawMessage, len(scenario.Entries))
		for name, entry := range scenario.Entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return nil, fmt.Errorf("encode entry %q: %w", name, err)
			}
			entries[name] = data
		}
		kinds := envelope.MigrateLegacyKinds(entries)
		if scenario.Kinds != nil {
			kinds = make(map[string]envelope.Kind, len(scenario.Kinds))
			for name, k := range scenario.Kinds {
				kinds[name] = envelope.Kind(k)
			}
		}
		b, err := envelope.TransformQueryBuilderDataModel(entries, kinds)
		if err != nil {
			return nil, fmt.Errorf("transform entries: %w", err)
		}
		q := queryir.NewQuery(queryir.DataSourceMetrics)
		q.Builder = b
		panel := scenarioPanel(scenario)
		rt = envelope.MapPanelTypeToRequestType(panel)
		result.Composite = envelope.FromQuery(q, panel)

	case OpComposite:
		var cq envelope.CompositeQuery
		if err := viaJSON(scenario.Composite, &cq); err != nil {
			return nil, fmt.Errorf("composite query: %w", err)
		}
		panel := scenarioPanel(scenario)
		rt = envelope.MapPanelTypeToRequestType(panel)
		result.Composite = envelope.FromQuery(envelope.ToQuery(cq), panel)

	default:
		return nil, fmt.Errorf("unknown operation %q", scenario.Operation)
	}

	if result.Request == nil {
		for _, env := range result.Composite.Queries {
			result.Legends[env.Name()] = legendOf(env)
		}
	}
	result.Problems = envelope.ValidateComposite(result.Composite, rt)

	for _, a := range scenario.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(err.Error())
		}
	}

	h.log.Debug().
		Str("scenario", scenario.Name).
		Str("operation", scenario.Operation).
		Int("queries", len(result.Composite.Queries)).
		Bool("pass", result.Pass).
		Msg("scenario run")
	return result, nil
}

// decodeLegacy turns the YAML mapping into the v3 composite query by way of
// its JSON form, so the wire decoders apply unchanged.
func decodeLegacy(in map[string]any) (envelope.LegacyCompositeQuery, error) {
	var lc envelope.LegacyCompositeQuery
	if err := viaJSON(in, &lc); err != nil {
		return lc, fmt.Errorf("legacy query: %w", err)
	}
	return lc, nil
}

func viaJSON(in map[string]any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// scenarioPanel is the scenario's panel, time series when unset.
func scenarioPanel(s *Scenario) queryir.PanelType {
	if p, ok := queryir.ParsePanelType(s.Panel); ok {
		return p
	}
	return queryir.PanelTimeSeries
}

func legendOf(env envelope.QueryEnvelope) string {
	switch s := env.Spec.(type) {
	case envelope.BuilderQuerySpec:
		return s.Legend
	case envelope.FormulaSpec:
		return s.Legend
	case envelope.TraceOperatorSpec:
		return s.Legend
	case envelope.PromQLSpec:
		return s.Legend
	case envelope.ClickHouseSpec:
		return s.Legend
	}
	return ""
}
