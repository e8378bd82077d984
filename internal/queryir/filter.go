package queryir

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/querybuilder/internal/ir"
)

// DataType is the declared type of an attribute.
type DataType string

const (
	DataTypeEmpty       DataType = ""
	DataTypeString      DataType = "string"
	DataTypeInt64       DataType = "int64"
	DataTypeFloat64     DataType = "float64"
	DataTypeNumber      DataType = "number"
	DataTypeBool        DataType = "bool"
	DataTypeArrayString DataType = "array(string)"
	DataTypeArrayInt64  DataType = "array(int64)"
)

// FieldContext says where an attribute lives on the signal.
type FieldContext string

const (
	FieldContextUnspecified FieldContext = ""
	FieldContextResource    FieldContext = "resource"
	FieldContextTag         FieldContext = "tag"
	FieldContextAttribute   FieldContext = "attribute"
	FieldContextSpan        FieldContext = "span"
	FieldContextLog         FieldContext = "log"
	FieldContextMetric      FieldContext = "metric"
)

// FilterOpAnd is the only boolean operator a TagFilter supports.
const FilterOpAnd = "AND"

// AttributeKey identifies an attribute together with its declared type.
//
// Type is the field context in the legacy schema; the envelope schema calls
// the same thing fieldContext.
type AttributeKey struct {
	ID          string       `json:"id,omitempty"`
	Key         string       `json:"key"`
	DataType    DataType     `json:"dataType"`
	Type        FieldContext `json:"type,omitempty"`
	IsColumn    bool         `json:"isColumn"`
	IsJSON      bool         `json:"isJSON,omitempty"`
	Temporality string       `json:"temporality,omitempty"`
}

// ComposedKeyID returns the legacy key id "name--dataType--fieldContext".
func ComposedKeyID(name string, dataType DataType, ctx FieldContext) string {
	return strings.Join([]string{name, string(dataType), string(ctx)}, "--")
}

// WithComposedID returns k with ID set to its composed legacy id.
func (k AttributeKey) WithComposedID() AttributeKey {
	k.ID = ComposedKeyID(k.Key, k.DataType, k.Type)
	return k
}

// TagFilter is a single flat AND group of filter items.
// Nested boolean groups are not representable.
type TagFilter struct {
	Op    string          `json:"op"`
	Items []TagFilterItem `json:"items"`
}

// EmptyFilter returns an AND group with no items.
func EmptyFilter() TagFilter {
	return TagFilter{Op: FilterOpAnd, Items: []TagFilterItem{}}
}

// Len returns the number of items.
func (f TagFilter) Len() int {
	return len(f.Items)
}

// Clone returns a deep copy of f. A zero-value filter clones to EmptyFilter.
func (f TagFilter) Clone() TagFilter {
	out := TagFilter{Op: f.Op, Items: make([]TagFilterItem, len(f.Items))}
	if out.Op == "" {
		out.Op = FilterOpAnd
	}
	for i, item := range f.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// Find returns the first item filtering on key.
func (f TagFilter) Find(key string) (TagFilterItem, bool) {
	for _, item := range f.Items {
		if item.Key.Key == key {
			return item, true
		}
	}
	return TagFilterItem{}, false
}

// TagFilterItem is one "key op value" term.
type TagFilterItem struct {
	ID    string       `json:"id,omitempty"`
	Key   AttributeKey `json:"key"`
	Op    string       `json:"op"`
	Value ir.Value     `json:"value"`
}

// Clone returns a deep copy of the item.
func (t TagFilterItem) Clone() TagFilterItem {
	t.Value = cloneValue(t.Value)
	return t
}

// UnmarshalJSON decodes the untyped value field into an ir.Value.
func (t *TagFilterItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string          `json:"id"`
		Key   AttributeKey    `json:"key"`
		Op    string          `json:"op"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ir.UnmarshalValue(raw.Value)
	if err != nil {
		return fmt.Errorf("filter item %q: %w", raw.Key.Key, err)
	}
	*t = TagFilterItem{ID: raw.ID, Key: raw.Key, Op: raw.Op, Value: v}
	return nil
}

// OrderBy sorts results by one column.
type OrderBy struct {
	ColumnName string `json:"columnName"`
	Order      Order  `json:"order"`
}

// TimestampColumn is the column keyset pagination requires as sole sort key.
const TimestampColumn = "timestamp"

// Key splits ColumnName into its parts. Columns converted from typed v5
// order keys carry a composed "name--dataType--fieldContext" name; a bare
// column name has no data type or context.
func (o OrderBy) Key() AttributeKey {
	parts := strings.SplitN(o.ColumnName, "--", 3)
	k := AttributeKey{Key: parts[0]}
	if len(parts) > 1 {
		k.DataType = DataType(parts[1])
	}
	if len(parts) > 2 {
		k.Type = FieldContext(parts[2])
	}
	return k
}

// Having filters aggregated rows, e.g. "value > 10".
type Having struct {
	ColumnName string   `json:"columnName"`
	Op         string   `json:"op"`
	Value      ir.Value `json:"value"`
}

// UnmarshalJSON decodes the untyped value field into an ir.Value.
func (h *Having) UnmarshalJSON(data []byte) error {
	var raw struct {
		ColumnName string          `json:"columnName"`
		Op         string          `json:"op"`
		Value      json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ir.UnmarshalValue(raw.Value)
	if err != nil {
		return fmt.Errorf("having %q: %w", raw.ColumnName, err)
	}
	*h = Having{ColumnName: raw.ColumnName, Op: raw.Op, Value: v}
	return nil
}

// Expression renders the having clause as "column op value".
func (h Having) Expression() string {
	if l, ok := h.Value.(ir.List); ok {
		parts := make([]string, len(l))
		for i, v := range l {
			parts[i] = ir.Text(v)
		}
		return h.ColumnName + " " + h.Op + " [" + strings.Join(parts, ", ") + "]"
	}
	return h.ColumnName + " " + h.Op + " " + ir.Text(h.Value)
}

func cloneValue(v ir.Value) ir.Value {
	l, ok := v.(ir.List)
	if !ok {
		return v
	}
	out := make(ir.List, len(l))
	for i, e := range l {
		out[i] = cloneValue(e)
	}
	return out
}

// ParseNumber reports whether s is a number literal and returns its value.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
