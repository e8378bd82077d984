package queryir

import (
	"encoding/json"
	"fmt"
)

// Aggregation is a normalized aggregation descriptor.
//
// This is a sealed interface - only MetricAggregation and
// ExpressionAggregation implement it. Metrics use the structured form;
// logs and traces use free-form expressions.
type Aggregation interface {
	aggregationNode()
}

// MetricAggregation is the structured metric aggregation contract.
// ReduceTo is only set for scalar panels.
type MetricAggregation struct {
	MetricName       string   `json:"metricName"`
	Temporality      string   `json:"temporality,omitempty"`
	TimeAggregation  string   `json:"timeAggregation,omitempty"`
	SpaceAggregation string   `json:"spaceAggregation,omitempty"`
	ReduceTo         ReduceTo `json:"reduceTo,omitempty"`
}

func (MetricAggregation) aggregationNode() {}

// ExpressionAggregation is a logs/traces aggregation such as
// "count()" or "p99(duration_nano)" with an optional alias.
type ExpressionAggregation struct {
	Expression string `json:"expression"`
	Alias      string `json:"alias,omitempty"`
}

func (ExpressionAggregation) aggregationNode() {}

// CountAggregation is the fallback used whenever no usable aggregation exists.
func CountAggregation() ExpressionAggregation {
	return ExpressionAggregation{Expression: "count()"}
}

// Aggregations is a list of descriptors that decodes either variant from JSON.
type Aggregations []Aggregation

// UnmarshalJSON picks the variant per element: objects carrying an
// "expression" field are expressions, everything else is a metric aggregation.
func (a *Aggregations) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	if raws == nil {
		*a = nil
		return nil
	}
	out := make(Aggregations, 0, len(raws))
	for i, raw := range raws {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("aggregations[%d]: %w", i, err)
		}
		if _, ok := fields["expression"]; ok {
			var e ExpressionAggregation
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("aggregations[%d]: %w", i, err)
			}
			out = append(out, e)
			continue
		}
		var m MetricAggregation
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("aggregations[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	*a = out
	return nil
}
