package config

import (
	"context"
	"fmt"
	"io"
	stdslog "log/slog"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/depcache"
	"github.com/unkn0wn-root/depcache/codec"
	logruslog "github.com/unkn0wn-root/depcache/log/logrus"
	sloglog "github.com/unkn0wn-root/depcache/log/slog"
	zaplog "github.com/unkn0wn-root/depcache/log/zap"
	pr "github.com/unkn0wn-root/depcache/provider"
	"github.com/unkn0wn-root/depcache/provider/bigcache"
	"github.com/unkn0wn-root/depcache/provider/gocache"
	"github.com/unkn0wn-root/depcache/provider/redis"
	"github.com/unkn0wn-root/depcache/provider/ristretto"
)

// NewLogger builds the configured logging backend writing to w (os.Stderr when nil).
func NewLogger(cfg LoggingConfig, w io.Writer) (depcache.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level := strings.ToLower(cfg.Level)
	asJSON := !strings.EqualFold(cfg.Format, "text")

	switch strings.ToLower(cfg.Backend) {
	case BackendNone:
		return depcache.NopLogger{}, nil

	case "", BackendSlog:
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("config: logging level: %w", err)
		}
		opts := &stdslog.HandlerOptions{Level: lvl}
		var h stdslog.Handler = stdslog.NewJSONHandler(w, opts)
		if !asJSON {
			h = stdslog.NewTextHandler(w, opts)
		}
		return sloglog.New(stdslog.New(h)), nil

	case BackendZap:
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("config: logging level: %w", err)
		}
		encCfg := zap.NewProductionEncoderConfig()
		enc := zapcore.NewJSONEncoder(encCfg)
		if !asJSON {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		return zaplog.New(zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))), nil

	case BackendLogrus:
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("config: logging level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(lvl)
		if asJSON {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		return logruslog.New(l), nil
	}
	return nil, fmt.Errorf("config: unknown logging.backend %q", cfg.Backend)
}

// NewProvider builds the configured store. cd serializes values for the byte
// providers; nil selects cfg.Codec. Either is bounded by cfg.MaxEntryBytes.
func NewProvider[V any](ctx context.Context, cfg ProviderConfig, cd codec.Codec[V]) (pr.Provider[V], error) {
	byteCodec := func() (codec.Codec[V], error) {
		c := cd
		if c == nil {
			var err error
			if c, err = codec.ByName[V](cfg.Codec); err != nil {
				return nil, err
			}
		}
		if cfg.MaxEntryBytes > 0 {
			c = codec.LimitCodec[V]{Inner: c, MaxEncode: cfg.MaxEntryBytes, MaxDecode: cfg.MaxEntryBytes}
		}
		return c, nil
	}

	switch cfg.Kind {
	case "", ProviderGoCache:
		return gocache.New[V](gocache.Config{CleanupInterval: cfg.CleanupInterval}), nil

	case ProviderRistretto:
		p, err := ristretto.New[V](ristretto.Config{
			NumCounters: cfg.NumCounters,
			MaxCost:     cfg.MaxCost,
			BufferItems: cfg.BufferItems,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case ProviderBigCache:
		c, err := byteCodec()
		if err != nil {
			return nil, err
		}
		p, err := bigcache.New[V](ctx, bigcache.Config{
			LifeWindow:         cfg.LifeWindow,
			Shards:             cfg.Shards,
			HardMaxCacheSizeMB: cfg.HardMaxCacheSizeMB,
		}, c)
		if err != nil {
			return nil, err
		}
		return p, nil

	case ProviderRedis:
		c, err := byteCodec()
		if err != nil {
			return nil, err
		}
		rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Address},
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		p, err := redis.New[V](ctx, redis.Config{
			Client:          rdb,
			CloseClient:     true,
			Prefix:          cfg.Redis.Prefix,
			Notifications:   cfg.Redis.Notifications,
			DB:              cfg.Redis.DB,
			ConfigureServer: cfg.Redis.ConfigureServer,
		}, c)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("config: unknown provider.kind %q", cfg.Kind)
}

// Options turns cfg into depcache.Options. Logs go to w (os.Stderr when nil).
// Hooks, Cost and anything else not expressible in a file are left for the
// caller to fill in.
func Options[V any](ctx context.Context, cfg Config, cd codec.Codec[V], w io.Writer) (depcache.Options[V], error) {
	log, err := NewLogger(cfg.Logging, w)
	if err != nil {
		return depcache.Options[V]{}, err
	}
	opts := depcache.Options[V]{
		Logger:              log,
		DefaultTTL:          cfg.Cache.DefaultTTL,
		Disabled:            cfg.Cache.Disabled,
		SerializePopulation: cfg.Cache.SerializePopulation,
		Dependencies:        cfg.Edges(),
	}
	if cfg.Cache.Disabled {
		return opts, nil
	}
	p, err := NewProvider[V](ctx, cfg.Provider, cd)
	if err != nil {
		return depcache.Options[V]{}, err
	}
	opts.Provider = p
	return opts, nil
}

// DependencyGraph is the part of depcache.Cache that dependency reloads touch.
type DependencyGraph interface {
	AddDependency(from, to depcache.Type)
	Dependencies() []depcache.Edge
}

// ApplyDependencies adds the edges of cfg missing from g and returns how many
// were added. Edges are never removed: entries tagged under the old graph keep
// their closure anyway, and edges may also come from code.
func ApplyDependencies(g DependencyGraph, cfg Config) int {
	have := make(map[depcache.Edge]struct{})
	for _, e := range g.Dependencies() {
		have[e] = struct{}{}
	}
	added := 0
	for _, e := range cfg.Edges() {
		if _, ok := have[e]; ok {
			continue
		}
		have[e] = struct{}{}
		g.AddDependency(e.From, e.To)
		added++
	}
	return added
}
