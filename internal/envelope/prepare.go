package envelope

import (
	"strings"
	"time"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// MapPanelTypeToRequestType maps a panel to the result shape it needs.
// Unknown panels map to RequestTypeUnknown.
func MapPanelTypeToRequestType(panel queryir.PanelType) RequestType {
	switch panel {
	case queryir.PanelTimeSeries, queryir.PanelBar:
		return RequestTypeTimeSeries
	case queryir.PanelTable, queryir.PanelPie, queryir.PanelValue:
		return RequestTypeScalar
	case queryir.PanelTrace:
		return RequestTypeTrace
	case queryir.PanelList:
		return RequestTypeRaw
	case queryir.PanelHistogram:
		return RequestTypeDistribution
	}
	return RequestTypeUnknown
}

// PrepareParams are the inputs of PrepareQueryRange.
type PrepareParams struct {
	Query     queryir.Query
	PanelType queryir.PanelType

	// OriginalPanelType is the panel the query was built for when it is
	// being rendered in a different one, e.g. a table widget shown as a graph.
	OriginalPanelType queryir.PanelType

	Start time.Time
	End   time.Time

	FormatForWeb bool
	FillGaps     bool

	Variables     map[string]any
	VariableTypes map[string]string
}

// PrepareQueryRange builds the v5 query_range payload for a legacy Query
// and returns it with the legend of every included entry keyed by name.
func PrepareQueryRange(p PrepareParams) (QueryRangeRequest, map[string]string) {
	cq := FromQuery(p.Query, p.PanelType)

	formatTable := p.FormatForWeb
	if !formatTable {
		if p.OriginalPanelType != "" {
			formatTable = p.OriginalPanelType == queryir.PanelTable
		} else {
			formatTable = p.PanelType == queryir.PanelTable
		}
	}

	variables := make(map[string]VariableItem, len(p.Variables))
	for name, value := range p.Variables {
		variables[name] = VariableItem{
			Value: value,
			Type:  strings.ToLower(p.VariableTypes[name]),
		}
	}

	req := QueryRangeRequest{
		SchemaVersion:  ir.PayloadSchemaVersion,
		Start:          p.Start.UnixMilli(),
		End:            p.End.UnixMilli(),
		RequestType:    MapPanelTypeToRequestType(p.PanelType),
		CompositeQuery: cq,
		FormatOptions: FormatOptions{
			FormatTableResultForUI: formatTable,
			FillGaps:               p.FillGaps,
		},
		Variables: variables,
	}
	return req, legendMap(cq)
}

func legendMap(cq CompositeQuery) map[string]string {
	legends := make(map[string]string, len(cq.Queries))
	for _, env := range cq.Queries {
		var legend string
		switch s := env.Spec.(type) {
		case BuilderQuerySpec:
			legend = s.Legend
		case FormulaSpec:
			legend = s.Legend
		case TraceOperatorSpec:
			legend = s.Legend
		case PromQLSpec:
			legend = s.Legend
		case ClickHouseSpec:
			legend = s.Legend
		}
		legends[env.Name()] = legend
	}
	return legends
}
