package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

func TestFormatExpression(t *testing.T) {
	f := queryir.TagFilter{Op: "AND", Items: []queryir.TagFilterItem{
		{Key: serviceKey, Op: "in", Value: ir.Strings("api", "web")},
		{Key: statusKey, Op: ">=", Value: ir.Number(500)},
		{Key: queryir.AttributeKey{Key: "trace_id"}, Op: "nexists", Value: ir.Null{}},
		{Key: queryir.AttributeKey{Key: "owner"}, Op: "=", Value: ir.String("o'brien")},
		{Key: queryir.AttributeKey{Key: "env"}, Op: "=", Value: ir.String("$env")},
		{Key: queryir.AttributeKey{Key: ""}, Op: "=", Value: ir.String("skipped")},
		{Key: queryir.AttributeKey{Key: "code"}, Op: "IN", Value: ir.Number(200)},
		{Key: statusKey, Op: "BETWEEN", Value: ir.List{ir.Number(400), ir.Number(499)}},
		{Key: rootKey, Op: "=", Value: ir.Bool(true)},
	}}

	expected := "service.name in ['api', 'web']" +
		" AND status >= 500" +
		" AND trace_id not exists" +
		` AND owner = 'o\'brien'` +
		" AND env = $env" +
		" AND code in [200]" +
		" AND status between 400 AND 499" +
		" AND is_root = true"
	assert.Equal(t, expected, FormatExpression(f))
}

func TestFormatExpressionEmpty(t *testing.T) {
	assert.Equal(t, "", FormatExpression(queryir.EmptyFilter()))
	assert.Equal(t, "", FormatExpression(queryir.TagFilter{}))
}

func TestFormatParseRoundTrip(t *testing.T) {
	resolve := KeysResolver([]queryir.AttributeKey{serviceKey, statusKey, rootKey})
	inputs := []string{
		"service.name in ['api', 'web'] AND status >= 500",
		"status between 400 AND 499 AND is_root = false",
		"service.name not like '%test%' AND status exists",
		`service.name = 'o\'brien'`,
		`service.name = 'C:\\logs\\api'`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			f, err := FromExpression(input, resolve)
			require.NoError(t, err)
			assert.Equal(t, input, FormatExpression(f))
		})
	}
}

func TestFormatParseKeepsBackslashes(t *testing.T) {
	body := queryir.AttributeKey{Key: "body", DataType: queryir.DataTypeString}
	for _, value := range []string{`err\d+`, `C:\logs\`, `it\'s`} {
		t.Run(value, func(t *testing.T) {
			f := queryir.TagFilter{Op: "AND", Items: []queryir.TagFilterItem{
				{Key: body, Op: "REGEXP", Value: ir.String(value)},
			}}

			parsed, err := FromExpression(FormatExpression(f), KeysResolver([]queryir.AttributeKey{body}))
			require.NoError(t, err)
			require.Len(t, parsed.Items, 1)
			assert.Equal(t, ir.String(value), parsed.Items[0].Value)
		})
	}
}
