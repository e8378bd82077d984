package session

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/querybuilder/internal/queryir"
)

// actionJSON is the wire form of every action. Type selects the action;
// only the fields that action reads are looked at.
type actionJSON struct {
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Query      *queryir.Query         `json:"query"`
	QueryType  queryir.QueryType      `json:"queryType"`
	DataSource queryir.DataSource     `json:"dataSource"`
	Expression string                 `json:"expression"`
	Item       *queryir.TagFilterItem `json:"item"`
	Key        string                 `json:"key"`
	Text       string                 `json:"text"`
	Keys       []queryir.AttributeKey `json:"keys"`
	OrderBy    []queryir.OrderBy      `json:"orderBy"`
	Limit      *int                   `json:"limit"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"pageSize"`
	ListItemID string                 `json:"listItemId"`
}

// DecodeAction reads one action from its JSON form, e.g.
//
//	{"type": "upsert_filter", "name": "A", "item": {"key": {"key": "service.name"}, "op": "=", "value": "api"}}
//
// The type names are the ones used in session logs.
func DecodeAction(data []byte) (Action, error) {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding action: %w", err)
	}

	switch raw.Type {
	case "replace":
		if raw.Query == nil {
			return nil, fmt.Errorf("replace: query is required")
		}
		return Replace{Query: *raw.Query}, nil
	case "set_query_type":
		return SetQueryType{Type: raw.QueryType}, nil
	case "add_query":
		return AddQuery{DataSource: raw.DataSource}, nil
	case "add_formula":
		return AddFormula{Expression: raw.Expression}, nil
	case "add_trace_operator":
		return AddTraceOperator{Expression: raw.Expression}, nil
	case "remove_query":
		return RemoveQuery{Name: raw.Name}, nil
	case "set_data_source":
		return SetDataSource{Name: raw.Name, DataSource: raw.DataSource}, nil
	case "upsert_filter":
		if raw.Item == nil {
			return nil, fmt.Errorf("upsert_filter: item is required")
		}
		return UpsertFilter{Name: raw.Name, Item: *raw.Item}, nil
	case "remove_filter":
		return RemoveFilter{Name: raw.Name, Key: raw.Key}, nil
	case "set_filter_text":
		return SetFilterText{Name: raw.Name, Text: raw.Text, Keys: raw.Keys}, nil
	case "set_aggregations":
		return SetAggregations{Name: raw.Name, Expression: raw.Expression}, nil
	case "set_group_by":
		return SetGroupBy{Name: raw.Name, Keys: raw.Keys}, nil
	case "set_order_by":
		return SetOrderBy{Name: raw.Name, Orders: raw.OrderBy}, nil
	case "set_limit":
		return SetLimit{Name: raw.Name, Limit: raw.Limit}, nil
	case "paginate":
		return Paginate{Name: raw.Name, Page: raw.Page, PageSize: raw.PageSize, ListItemID: raw.ListItemID}, nil
	case "toggle_disabled":
		return ToggleDisabled{Name: raw.Name}, nil
	case "undo":
		return Undo{}, nil
	case "":
		return nil, fmt.Errorf("action type is required")
	}
	return nil, fmt.Errorf("unknown action type %q", raw.Type)
}
