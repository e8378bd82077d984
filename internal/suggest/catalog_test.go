package suggest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

const catalogYAML = `
keys:
  logs:
    - {key: service.name, dataType: string, type: resource}
    - {key: severity_text, dataType: string, isColumn: true}
    - {key: http.status_code, dataType: int64, type: tag}
  traces:
    - {key: durationNano, dataType: float64, isColumn: true}
values:
  logs:
    service.name: [api, Web, worker]
    http.status_code: [200, 500]
`

func TestCatalogKeys(t *testing.T) {
	c, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	keys, err := c.Keys(context.Background(), Request{DataSource: queryir.DataSourceLogs, SearchText: "S"})
	require.NoError(t, err)

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.Key)
	}
	assert.Equal(t, []string{"http.status_code", "service.name", "severity_text"}, names)
	assert.Equal(t, "service.name--string--resource", keys[1].ID)
	assert.True(t, keys[2].IsColumn)

	keys, err = c.Keys(context.Background(), Request{DataSource: queryir.DataSourceMetrics})
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.NotNil(t, keys)
}

func TestCatalogValues(t *testing.T) {
	c, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	values, err := c.Values(context.Background(), Request{DataSource: queryir.DataSourceLogs, Key: "service.name", SearchText: "w"})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.String("Web"), ir.String("worker")}, values)

	values, err = c.Values(context.Background(), Request{DataSource: queryir.DataSourceLogs, Key: "http.status_code"})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Number(200), ir.Number(500)}, values)
}

func TestCatalogHonorsCancelledContext(t *testing.T) {
	c, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Keys(ctx, Request{DataSource: queryir.DataSourceLogs})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "keyz: {}\n", "parse catalog"},
		{"unknown data source", "keys:\n  events: []\n", `unknown data source "events"`},
		{"nested value", "values:\n  logs:\n    k: [[1, 2]]\n", "is not a scalar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.KeysBySource[queryir.DataSourceLogs], 3)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read catalog")
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("service"), Fold("SERVICE"))
}
