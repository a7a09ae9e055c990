// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/valuationhq/propcache/cache"
)

// Config is the process configuration. Duration fields accept day suffixes
// ("7d") in addition to the standard Go forms.
type Config struct {
	CacheEnabled     bool          `env:"PROPCACHE_ENABLE_CACHE" envDefault:"true"`
	MaxMemoryItems   int           `env:"PROPCACHE_MEMORY_MAX_ITEMS" envDefault:"100"`
	MemoryTTL        time.Duration `env:"PROPCACHE_MEMORY_TTL" envDefault:"24h"`
	DiskCacheDir     string        `env:"PROPCACHE_DISK_CACHE_DIR" envDefault:"cache"`
	DiskTTL          time.Duration `env:"PROPCACHE_DISK_TTL" envDefault:"7d"`
	DiskCacheEnabled bool          `env:"PROPCACHE_ENABLE_DISK_CACHE" envDefault:"true"`
	MaxConcurrent    int64         `env:"PROPCACHE_MAX_CONCURRENT_ANALYSES" envDefault:"2"`
	LogLevel         string        `env:"PROPCACHE_LOG_LEVEL" envDefault:"info"`
}

// durationParser accepts "90m", "24h", "7d" and combinations like "1d12h".
func durationParser(v string) (interface{}, error) {
	d, err := str2duration.ParseDuration(v)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing duration %q", v)
	}
	return d, nil
}

// Load reads configuration from the process environment. A .env file in the
// working directory is applied first when present; a missing file is not an
// error.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): durationParser,
		},
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "loading configuration")
	}
	return cfg, nil
}

// CacheOptions maps the configuration onto cache construction options.
func (c Config) CacheOptions() []cache.Option {
	opts := []cache.Option{
		cache.WithMaxMemoryItems(c.MaxMemoryItems),
		cache.WithMemoryTTL(c.MemoryTTL),
		cache.WithDiskDir(c.DiskCacheDir),
		cache.WithDiskTTL(c.DiskTTL),
	}
	if !c.DiskCacheEnabled {
		opts = append(opts, cache.WithDiskDisabled())
	}
	return opts
}
