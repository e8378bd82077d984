package filter

import (
	"strings"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// FormatExpression renders a filter group as expression text, the inverse
// of Parse. Items without a key are skipped; items are joined with " AND ".
//
//	service.name in ['api', 'web'] AND status >= 500 AND trace_id exists
func FormatExpression(f queryir.TagFilter) string {
	parts := make([]string, 0, len(f.Items))
	for _, item := range f.Items {
		if s := FormatItem(item); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " AND ")
}

// FormatItem renders one filter item. Unknown operators are emitted as-is
// lower-cased so the backend can report them.
func FormatItem(item queryir.TagFilterItem) string {
	if item.Key.Key == "" {
		return ""
	}
	op, ok := Normalize(item.Op)
	if !ok {
		op = Operator(strings.TrimSpace(item.Op))
	}
	opText := strings.ToLower(string(op))

	if !op.TakesValue() {
		return item.Key.Key + " " + opText
	}
	return item.Key.Key + " " + opText + " " + formatValue(item.Value, op)
}

func formatValue(v ir.Value, op Operator) string {
	if isVariable(v) {
		return ir.Text(v)
	}
	if op.IsRange() {
		if l, ok := v.(ir.List); ok && len(l) == 2 {
			return formatSingle(l[0]) + " AND " + formatSingle(l[1])
		}
	}
	if op.IsList() {
		l, ok := v.(ir.List)
		if !ok {
			l = ir.List{v}
		}
		return formatList(l)
	}
	if l, ok := v.(ir.List); ok {
		return formatList(l)
	}
	return formatSingle(v)
}

func formatList(l ir.List) string {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = formatSingle(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// quoteEscaper escapes what the lexer treats as special inside '...'.
var quoteEscaper = strings.NewReplacer(`\`, `\\`, "'", `\'`)

// formatSingle quotes strings with single quotes, escaping embedded quotes
// and backslashes.
// Numbers, booleans and $variables are emitted bare.
func formatSingle(v ir.Value) string {
	switch val := v.(type) {
	case ir.String:
		if isVariable(val) {
			return string(val)
		}
		return "'" + quoteEscaper.Replace(string(val)) + "'"
	case nil, ir.Null:
		return "''"
	default:
		return ir.Text(val)
	}
}

func isVariable(v ir.Value) bool {
	s, ok := v.(ir.String)
	return ok && strings.HasPrefix(string(s), "$")
}
