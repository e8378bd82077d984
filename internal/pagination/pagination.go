// Package pagination computes next-page parameters for ordered list queries.
//
// Two strategies exist. Keyset pagination filters on the last-seen row id
// ("id < last" for descending timestamp order), which stays correct while
// rows are inserted ahead of the scroll window. Offset pagination skips
// (page-1)*pageSize rows and is used whenever no stable single sort key is
// available or no cursor is known yet.
package pagination

import (
	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// CursorKey is the column the synthetic keyset term filters on.
const CursorKey = "id"

// Mode names the strategy chosen for a request.
type Mode string

const (
	ModeOffset Mode = "offset"
	ModeKeyset Mode = "keyset"
)

// Params describes the page being requested.
type Params struct {
	// Query is the staged list query. Nil means no query is staged yet.
	Query *queryir.BuilderQuery

	// ListItemID is the id of the last row on the previous page.
	// Empty on the first page.
	ListItemID string

	// OrderByTimestamp is the timestamp ordering in effect, if any.
	OrderByTimestamp *queryir.OrderBy

	// Page is 1-based.
	Page int

	PageSize int
}

// Result is the filter group and offset/limit to send for the page.
// Offset is nil in keyset mode.
type Result struct {
	Filters queryir.TagFilter `json:"filters"`
	Offset  *int              `json:"offset,omitempty"`
	Limit   *int              `json:"limit"`
	Mode    Mode              `json:"-"`
}

// GetPaginationQueryData derives the next-page parameters.
//
//  1. Any synthetic id term already in the filters is stripped, so the
//     function can be re-applied to its own output.
//  2. Without a timestamp ordering, with more than one order column, or
//     without a cursor, offset = (page-1)*pageSize.
//  3. Otherwise a term id > cursor (ascending) or id < cursor (descending)
//     is appended and no offset is sent.
//
// A nil query yields {limit: null, filters: empty AND}.
func GetPaginationQueryData(p Params) Result {
	if p.Query == nil {
		return Result{Filters: queryir.EmptyFilter(), Limit: nil, Mode: ModeOffset}
	}

	filters := StripCursor(p.Query.Filters)
	var limit *int
	if p.PageSize > 0 {
		limit = queryir.IntPtr(p.PageSize)
	}

	if !keysetApplies(p) {
		page := p.Page
		if page < 1 {
			page = 1
		}
		return Result{
			Filters: filters,
			Offset:  queryir.IntPtr((page - 1) * p.PageSize),
			Limit:   limit,
			Mode:    ModeOffset,
		}
	}

	filters.Items = append(filters.Items, CursorItem(p.ListItemID, p.OrderByTimestamp.Order))
	return Result{Filters: filters, Limit: limit, Mode: ModeKeyset}
}

func keysetApplies(p Params) bool {
	if p.OrderByTimestamp == nil || p.ListItemID == "" {
		return false
	}
	return len(p.Query.OrderBy) <= 1
}

// CursorItem builds the synthetic keyset term for cursor under order.
func CursorItem(cursor string, order queryir.Order) queryir.TagFilterItem {
	op := ">"
	if order == queryir.OrderDesc {
		op = "<"
	}
	return queryir.TagFilterItem{
		Key: queryir.AttributeKey{
			Key:      CursorKey,
			DataType: queryir.DataTypeString,
			IsColumn: true,
		},
		Op:    op,
		Value: ir.String(cursor),
	}
}

// IsCursorItem reports whether item has the shape CursorItem builds: a
// string id column compared with > or <. A user's own filter on an id
// attribute does not.
func IsCursorItem(item queryir.TagFilterItem) bool {
	if item.Key.Key != CursorKey || !item.Key.IsColumn {
		return false
	}
	if item.Op != ">" && item.Op != "<" {
		return false
	}
	_, ok := item.Value.(ir.String)
	return ok
}

// StripCursor returns a copy of f without synthetic id terms.
func StripCursor(f queryir.TagFilter) queryir.TagFilter {
	out := f.Clone()
	items := make([]queryir.TagFilterItem, 0, len(out.Items))
	for _, item := range out.Items {
		if IsCursorItem(item) {
			continue
		}
		items = append(items, item)
	}
	out.Items = items
	return out
}

// Apply returns a copy of q carrying the page parameters in r.
func Apply(q queryir.BuilderQuery, r Result) queryir.BuilderQuery {
	out := q.WithFilters(r.Filters)
	out.Offset = 0
	if r.Offset != nil {
		out.Offset = *r.Offset
	}
	if r.Limit != nil {
		out.PageSize = *r.Limit
		out.Limit = queryir.IntPtr(*r.Limit)
	}
	return out
}

// TimestampOrder returns the query's timestamp ordering when it is the sole
// sort key, or nil.
func TimestampOrder(q queryir.BuilderQuery) *queryir.OrderBy {
	if !queryir.IsKeysetEligible(q.OrderBy) {
		return nil
	}
	o := q.OrderBy[0]
	return &o
}
