package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the conventional prefix for environment overrides.
const EnvPrefix = "DEPCACHE"

// Loader hydrates the configuration with env > file > default precedence.
// Later files override earlier ones.
type Loader struct {
	envPrefix string
	files     []string
}

func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Files returns the non-empty files the loader reads.
func (l *Loader) Files() []string {
	out := make([]string, 0, len(l.files))
	for _, f := range l.files {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Load assembles and validates the effective configuration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.Files() {
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := canonicalKeys()
		transform := func(s string) string {
			// Double underscores signal a nested path (DEPCACHE_PROVIDER__REDIS__DB -> provider.redis.db).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			key = strings.ReplaceAll(key, "_", "")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			return lower
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// canonicalKeys maps lowercased env paths onto the camelCase keys used in files,
// so an env override replaces the file value instead of sitting next to it.
func canonicalKeys() map[string]string {
	out := make(map[string]string)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(path, sub)
				continue
			}
			out[strings.ToLower(path)] = path
		}
	}
	walk("", structToMap(DefaultConfig()))
	return out
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"cache": map[string]any{
			"name":                cfg.Cache.Name,
			"disabled":            cfg.Cache.Disabled,
			"serializePopulation": cfg.Cache.SerializePopulation,
			"defaultTTL":          cfg.Cache.DefaultTTL.String(),
		},
		"provider": map[string]any{
			"kind":               cfg.Provider.Kind,
			"codec":              cfg.Provider.Codec,
			"cleanupInterval":    cfg.Provider.CleanupInterval.String(),
			"numCounters":        cfg.Provider.NumCounters,
			"maxCost":            cfg.Provider.MaxCost,
			"bufferItems":        cfg.Provider.BufferItems,
			"lifeWindow":         cfg.Provider.LifeWindow.String(),
			"shards":             cfg.Provider.Shards,
			"hardMaxCacheSizeMB": cfg.Provider.HardMaxCacheSizeMB,
			"redis": map[string]any{
				"address":         cfg.Provider.Redis.Address,
				"username":        cfg.Provider.Redis.Username,
				"password":        cfg.Provider.Redis.Password,
				"db":              cfg.Provider.Redis.DB,
				"prefix":          cfg.Provider.Redis.Prefix,
				"notifications":   cfg.Provider.Redis.Notifications,
				"configureServer": cfg.Provider.Redis.ConfigureServer,
			},
		},
		"logging": map[string]any{
			"level":   cfg.Logging.Level,
			"backend": cfg.Logging.Backend,
			"format":  cfg.Logging.Format,
		},
	}
}
