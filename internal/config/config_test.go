package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 300*time.Millisecond, cfg.Suggest.Debounce)
	assert.Equal(t, 256, cfg.Suggest.CacheSize)
	assert.Equal(t, 10, cfg.Pagination.PageSize)
	assert.Equal(t, "qb.db", cfg.Store.Path)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
server:
  addr: ":9090"
suggest:
  debounce: 50ms
  catalog: catalog.yaml
pagination:
  page_size: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.Suggest.Debounce)
	assert.Equal(t, "catalog.yaml", cfg.Suggest.Catalog)
	assert.Equal(t, 256, cfg.Suggest.CacheSize)
	assert.Equal(t, 25, cfg.Pagination.PageSize)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "store:\n  path: file.db\n")
	t.Setenv("QB_STORE_PATH", "env.db")
	t.Setenv("QB_PAGINATION_PAGE_SIZE", "100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Store.Path)
	assert.Equal(t, 100, cfg.Pagination.PageSize)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"page size", "pagination:\n  page_size: 0\n", "pagination.page_size"},
		{"log format", "log:\n  format: xml\n", "log.format"},
		{"cache size", "suggest:\n  cache_size: -1\n", "suggest.cache_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
