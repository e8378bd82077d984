package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	logConfig struct {
		Level  string `json:"level" mapstructure:"level"`
		Format string `json:"format" mapstructure:"format"` // "json" or "console"
	}

	serverConfig struct {
		Addr string `json:"addr" mapstructure:"addr"`
	}

	storeConfig struct {
		Path string `json:"path" mapstructure:"path"`
	}

	suggestConfig struct {
		Debounce  time.Duration `json:"debounce" mapstructure:"debounce"`
		CacheSize int           `json:"cache_size" mapstructure:"cache_size"`
		Catalog   string        `json:"catalog" mapstructure:"catalog"` // YAML catalog of keys and values
	}

	paginationConfig struct {
		PageSize int `json:"page_size" mapstructure:"page_size"`
	}

	Config struct {
		Log        logConfig        `json:"log" mapstructure:"log"`
		Server     serverConfig     `json:"server" mapstructure:"server"`
		Store      storeConfig      `json:"store" mapstructure:"store"`
		Suggest    suggestConfig    `json:"suggest" mapstructure:"suggest"`
		Pagination paginationConfig `json:"pagination" mapstructure:"pagination"`
	}
)

// EnvPrefix is prepended to every environment override, e.g. QB_LOG_LEVEL.
const EnvPrefix = "QB"

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "qb.yaml"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("store.path", "qb.db")
	v.SetDefault("suggest.debounce", 300*time.Millisecond)
	v.SetDefault("suggest.cache_size", 256)
	v.SetDefault("suggest.catalog", "")
	v.SetDefault("pagination.page_size", 10)
}

// Load reads configuration from path, or from qb.yaml in the working
// directory when path is empty. A missing default file is not an error;
// a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func (c *Config) validate() error {
	if c.Suggest.Debounce < 0 {
		return fmt.Errorf("suggest.debounce must not be negative, got %s", c.Suggest.Debounce)
	}
	if c.Suggest.CacheSize < 0 {
		return fmt.Errorf("suggest.cache_size must not be negative, got %d", c.Suggest.CacheSize)
	}
	if c.Pagination.PageSize <= 0 {
		return fmt.Errorf("pagination.page_size must be positive, got %d", c.Pagination.PageSize)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
