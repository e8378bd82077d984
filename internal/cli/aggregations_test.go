package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/queryir"
)

func TestAggregationsJSON(t *testing.T) {
	out, err := execute(NewAggregationsCommand(jsonOpts()), "", "count() as total,", "avg(duration_nano)", "--alias", "latency")
	require.NoError(t, err)

	var aggs []queryir.ExpressionAggregation
	resp := decodeResponse(t, out, &aggs)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []queryir.ExpressionAggregation{
		{Expression: "count()", Alias: "total"},
		{Expression: "avg(duration_nano)", Alias: "latency"},
	}, aggs)
}

func TestAggregationsQuotedAlias(t *testing.T) {
	out, err := execute(NewAggregationsCommand(textOpts()), "", `p99(duration_nano) as 'p 99'`)
	require.NoError(t, err)

	assert.Contains(t, out, "p99(duration_nano)")
	assert.Contains(t, out, "p 99")
}

func TestAggregationsNoCalls(t *testing.T) {
	out, err := execute(NewAggregationsCommand(jsonOpts()), "", "just text")
	require.NoError(t, err)
	assert.Contains(t, out, `"data": []`)
}
