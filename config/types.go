// Package config loads depcache settings from YAML files and DEPCACHE_*
// environment variables and turns them into depcache.Options.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unkn0wn-root/depcache"
)

// Provider kinds.
const (
	ProviderGoCache   = "gocache"
	ProviderRistretto = "ristretto"
	ProviderBigCache  = "bigcache"
	ProviderRedis     = "redis"
)

// Logging backends.
const (
	BackendSlog   = "slog"
	BackendZap    = "zap"
	BackendLogrus = "logrus"
	BackendNone   = "none"
)

// Config is the effective configuration after defaults, files and env.
type Config struct {
	Cache        CacheConfig        `koanf:"cache"`
	Provider     ProviderConfig     `koanf:"provider"`
	Logging      LoggingConfig      `koanf:"logging"`
	Dependencies []DependencyConfig `koanf:"dependencies"`
}

type CacheConfig struct {
	Name                string        `koanf:"name"`
	Disabled            bool          `koanf:"disabled"`
	SerializePopulation bool          `koanf:"serializePopulation"`
	DefaultTTL          time.Duration `koanf:"defaultTTL"`
}

type ProviderConfig struct {
	Kind  string `koanf:"kind"`
	Codec string `koanf:"codec"` // byte providers only: json | msgpack | cbor
	// MaxEntryBytes bounds encoded values in byte providers; 0 disables it.
	MaxEntryBytes int `koanf:"maxEntryBytes"`

	// gocache
	CleanupInterval time.Duration `koanf:"cleanupInterval"`

	// ristretto
	NumCounters int64 `koanf:"numCounters"`
	MaxCost     int64 `koanf:"maxCost"`
	BufferItems int64 `koanf:"bufferItems"`

	// bigcache
	LifeWindow         time.Duration `koanf:"lifeWindow"`
	Shards             int           `koanf:"shards"`
	HardMaxCacheSizeMB int           `koanf:"hardMaxCacheSizeMB"`

	Redis RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Address         string `koanf:"address"`
	Username        string `koanf:"username"`
	Password        string `koanf:"password"`
	DB              int    `koanf:"db"`
	Prefix          string `koanf:"prefix"`
	Notifications   bool   `koanf:"notifications"`
	ConfigureServer bool   `koanf:"configureServer"`
}

type LoggingConfig struct {
	Level   string `koanf:"level"`
	Backend string `koanf:"backend"`
	Format  string `koanf:"format"` // json | text
}

// DependencyConfig declares From -> each of To. Reverse flips every edge, for
// listing the types that depend on From instead of the ones it depends on.
type DependencyConfig struct {
	From    string   `koanf:"from"`
	To      []string `koanf:"to"`
	Reverse bool     `koanf:"reverse"`
}

// DefaultConfig returns the values used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Name:       "default",
			DefaultTTL: 10 * time.Minute,
		},
		Provider: ProviderConfig{
			Kind:            ProviderGoCache,
			Codec:           "json",
			CleanupInterval: time.Minute,
			NumCounters:     1e6,
			MaxCost:         1e5,
			BufferItems:     64,
			LifeWindow:      10 * time.Minute,
			Shards:          1024,
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "depcache:",
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			Backend: BackendSlog,
			Format:  "json",
		},
	}
}

// Validate enforces the invariants the builders rely on.
func (c Config) Validate() error {
	var errs []error
	switch c.Provider.Kind {
	case ProviderGoCache, ProviderBigCache:
	case ProviderRistretto:
		if c.Provider.NumCounters <= 0 || c.Provider.MaxCost <= 0 || c.Provider.BufferItems <= 0 {
			errs = append(errs, errors.New("config: provider.numCounters, maxCost and bufferItems must be positive"))
		}
	case ProviderRedis:
		if strings.TrimSpace(c.Provider.Redis.Address) == "" {
			errs = append(errs, errors.New("config: provider.redis.address is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown provider.kind %q", c.Provider.Kind))
	}
	switch c.Provider.Codec {
	case "", "json", "msgpack", "cbor":
	default:
		errs = append(errs, fmt.Errorf("config: unknown provider.codec %q", c.Provider.Codec))
	}
	if c.Provider.Kind == ProviderBigCache && c.Provider.Shards > 0 && c.Provider.Shards&(c.Provider.Shards-1) != 0 {
		errs = append(errs, fmt.Errorf("config: provider.shards must be a power of two, got %d", c.Provider.Shards))
	}
	if c.Provider.MaxEntryBytes < 0 {
		errs = append(errs, errors.New("config: provider.maxEntryBytes must not be negative"))
	}

	switch strings.ToLower(c.Logging.Backend) {
	case BackendSlog, BackendZap, BackendLogrus, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("config: unknown logging.backend %q", c.Logging.Backend))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown logging.level %q", c.Logging.Level))
	}

	for i, d := range c.Dependencies {
		if strings.TrimSpace(d.From) == "" {
			errs = append(errs, fmt.Errorf("config: dependencies[%d].from is required", i))
		}
		if len(d.To) == 0 {
			errs = append(errs, fmt.Errorf("config: dependencies[%d].to is empty", i))
		}
		for j, to := range d.To {
			if strings.TrimSpace(to) == "" {
				errs = append(errs, fmt.Errorf("config: dependencies[%d].to[%d] is empty", i, j))
			}
		}
	}
	return errors.Join(errs...)
}

// Edges expands Dependencies into graph edges, honouring Reverse.
func (c Config) Edges() []depcache.Edge {
	var out []depcache.Edge
	for _, d := range c.Dependencies {
		from := depcache.Type(strings.TrimSpace(d.From))
		for _, to := range d.To {
			t := depcache.Type(strings.TrimSpace(to))
			if d.Reverse {
				out = append(out, depcache.Edge{From: t, To: from})
			} else {
				out = append(out, depcache.Edge{From: from, To: t})
			}
		}
	}
	return out
}
