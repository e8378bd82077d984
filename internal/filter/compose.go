package filter

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// KeyResolver looks up the declared type of an attribute by name.
type KeyResolver func(name string) (queryir.AttributeKey, bool)

// KeysResolver resolves names against a fixed key list.
func KeysResolver(keys []queryir.AttributeKey) KeyResolver {
	index := make(map[string]queryir.AttributeKey, len(keys))
	for _, k := range keys {
		if _, ok := index[k.Key]; !ok {
			index[k.Key] = k
		}
	}
	return func(name string) (queryir.AttributeKey, bool) {
		k, ok := index[name]
		return k, ok
	}
}

// Upsert returns a copy of f with item applied. An existing term on the same
// key is replaced in place; otherwise the item is appended. Any further terms
// on that key are dropped, so a key appears at most once.
func Upsert(f queryir.TagFilter, item queryir.TagFilterItem) queryir.TagFilter {
	out := f.Clone()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item = item.Clone()

	items := make([]queryir.TagFilterItem, 0, len(out.Items)+1)
	replaced := false
	for _, existing := range out.Items {
		if existing.Key.Key != item.Key.Key {
			items = append(items, existing)
			continue
		}
		if !replaced {
			items = append(items, item)
			replaced = true
		}
	}
	if !replaced {
		items = append(items, item)
	}
	out.Items = items
	return out
}

// Remove returns a copy of f without any term on key.
func Remove(f queryir.TagFilter, key string) queryir.TagFilter {
	out := f.Clone()
	items := out.Items[:0]
	for _, item := range out.Items {
		if item.Key.Key != key {
			items = append(items, item)
		}
	}
	out.Items = items
	return out
}

// Check verifies that item's operator is known and permitted for its key's
// declared type.
func Check(item queryir.TagFilterItem) error {
	op, ok := Normalize(item.Op)
	if !ok {
		return fmt.Errorf("filter %q: unknown operator %q", item.Key.Key, item.Op)
	}
	if !Allowed(item.Key.DataType, op) {
		return fmt.Errorf("filter %q: operator %s is not available for %s attributes",
			item.Key.Key, op, KindOf(item.Key.DataType))
	}
	return nil
}

// ToItems resolves parsed terms into filter items. Keys the resolver does
// not know become string attributes. Operand types are coerced to the key's
// kind where the text allows it ("500" on a number key becomes 500).
func ToItems(terms []Term, resolve KeyResolver) ([]queryir.TagFilterItem, error) {
	items := make([]queryir.TagFilterItem, 0, len(terms))
	for _, term := range terms {
		key := queryir.AttributeKey{Key: term.Key, DataType: queryir.DataTypeString}
		if resolve != nil {
			if k, ok := resolve(term.Key); ok {
				key = k
			}
		}
		if !Allowed(key.DataType, term.Op) {
			return nil, &ParseError{
				Pos: term.Pos,
				Msg: fmt.Sprintf("operator %s is not available for %s attribute %q", term.Op, KindOf(key.DataType), term.Key),
			}
		}
		items = append(items, queryir.TagFilterItem{
			ID:    uuid.NewString(),
			Key:   key,
			Op:    string(term.Op),
			Value: coerce(term.Value, KindOf(key.DataType)),
		})
	}
	return items, nil
}

// FromExpression parses text into a filter group, de-duplicating by key
// with later terms winning.
func FromExpression(text string, resolve KeyResolver) (queryir.TagFilter, error) {
	terms, err := Parse(text)
	if err != nil {
		return queryir.TagFilter{}, err
	}
	items, err := ToItems(terms, resolve)
	if err != nil {
		return queryir.TagFilter{}, err
	}
	f := queryir.EmptyFilter()
	for _, item := range items {
		f = Upsert(f, item)
	}
	return f, nil
}

// Merge applies every item of add onto base with Upsert semantics.
func Merge(base, add queryir.TagFilter) queryir.TagFilter {
	out := base.Clone()
	for _, item := range add.Items {
		out = Upsert(out, item)
	}
	return out
}

func coerce(v ir.Value, kind Kind) ir.Value {
	switch val := v.(type) {
	case ir.List:
		out := make(ir.List, len(val))
		for i, e := range val {
			out[i] = coerce(e, kind)
		}
		return out
	case ir.String:
		if isVariable(val) {
			return val
		}
		switch kind {
		case KindNumber:
			if f, ok := queryir.ParseNumber(string(val)); ok {
				return ir.Number(f)
			}
		case KindBool:
			switch string(val) {
			case "true":
				return ir.Bool(true)
			case "false":
				return ir.Bool(false)
			}
		}
	case ir.Number, ir.Bool:
		if kind == KindString {
			return ir.String(ir.Text(val))
		}
	}
	return v
}
