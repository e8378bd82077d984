package filter

import (
	"slices"
	"strings"

	"github.com/roach88/querybuilder/internal/queryir"
)

// Operator is a canonical filter operator.
type Operator string

const (
	OpEqual       Operator = "="
	OpNotEqual    Operator = "!="
	OpLess        Operator = "<"
	OpLessEq      Operator = "<="
	OpGreater     Operator = ">"
	OpGreaterEq   Operator = ">="
	OpIn          Operator = "IN"
	OpNotIn       Operator = "NOT IN"
	OpLike        Operator = "LIKE"
	OpNotLike     Operator = "NOT LIKE"
	OpILike       Operator = "ILIKE"
	OpNotILike    Operator = "NOT ILIKE"
	OpRegexp      Operator = "REGEXP"
	OpNotRegexp   Operator = "NOT REGEXP"
	OpContains    Operator = "CONTAINS"
	OpNotContains Operator = "NOT CONTAINS"
	OpBetween     Operator = "BETWEEN"
	OpNotBetween  Operator = "NOT BETWEEN"
	OpExists      Operator = "EXISTS"
	OpNotExists   Operator = "NOT EXISTS"
)

// Kind is the operand family an attribute belongs to.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
)

// KindOf maps a declared data type to its operand family.
// Unknown and array types behave as strings.
func KindOf(dt queryir.DataType) Kind {
	switch dt {
	case queryir.DataTypeInt64, queryir.DataTypeFloat64, queryir.DataTypeNumber:
		return KindNumber
	case queryir.DataTypeBool:
		return KindBool
	}
	return KindString
}

var comparisonOperators = []Operator{OpEqual, OpNotEqual, OpLess, OpLessEq, OpGreater, OpGreaterEq}

var operatorsByKind = map[Kind][]Operator{
	KindString: {
		OpEqual, OpNotEqual,
		OpIn, OpNotIn,
		OpLike, OpNotLike, OpILike, OpNotILike,
		OpRegexp, OpNotRegexp,
		OpContains, OpNotContains,
		OpExists, OpNotExists,
	},
	KindNumber: append(slices.Clone(comparisonOperators),
		OpIn, OpNotIn,
		OpBetween, OpNotBetween,
		OpExists, OpNotExists,
	),
	KindBool: {OpEqual, OpNotEqual, OpExists, OpNotExists},
}

// OperatorsFor returns the operators offered for attributes of type dt,
// in display order. Numeric attributes never offer LIKE.
func OperatorsFor(dt queryir.DataType) []Operator {
	return slices.Clone(operatorsByKind[KindOf(dt)])
}

// Allowed reports whether op may be applied to an attribute of type dt.
func Allowed(dt queryir.DataType, op Operator) bool {
	return slices.Contains(operatorsByKind[KindOf(dt)], op)
}

// IsList reports whether op takes a list operand.
func (op Operator) IsList() bool {
	return op == OpIn || op == OpNotIn
}

// IsRange reports whether op takes a two-value range.
func (op Operator) IsRange() bool {
	return op == OpBetween || op == OpNotBetween
}

// TakesValue reports whether op has an operand at all.
func (op Operator) TakesValue() bool {
	return op != OpExists && op != OpNotExists
}

// legacyOperators maps the lowercase and abbreviated spellings stored by
// older filter items to canonical operators.
var legacyOperators = map[string]Operator{
	"in":           OpIn,
	"nin":          OpNotIn,
	"not_in":       OpNotIn,
	"like":         OpLike,
	"nlike":        OpNotLike,
	"not_like":     OpNotLike,
	"ilike":        OpILike,
	"nilike":       OpNotILike,
	"not_ilike":    OpNotILike,
	"regex":        OpRegexp,
	"regexp":       OpRegexp,
	"nregex":       OpNotRegexp,
	"not_regex":    OpNotRegexp,
	"contains":     OpContains,
	"ncontains":    OpNotContains,
	"not_contains": OpNotContains,
	"exists":       OpExists,
	"nexists":      OpNotExists,
	"not_exists":   OpNotExists,
	"between":      OpBetween,
	"nbetween":     OpNotBetween,
	"not_between":  OpNotBetween,
	"==":           OpEqual,
	"<>":           OpNotEqual,
}

// Normalize converts any accepted spelling of an operator to its canonical
// form. The second result is false for unknown operators.
func Normalize(op string) (Operator, bool) {
	trimmed := strings.Join(strings.Fields(op), " ")
	upper := Operator(strings.ToUpper(trimmed))
	for _, known := range operatorsByKind[KindString] {
		if upper == known {
			return known, true
		}
	}
	for _, known := range operatorsByKind[KindNumber] {
		if upper == known {
			return known, true
		}
	}
	if canonical, ok := legacyOperators[strings.ToLower(trimmed)]; ok {
		return canonical, true
	}
	return "", false
}
