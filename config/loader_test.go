package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/depcache"
	"github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/provider/bigcache"
	"github.com/unkn0wn-root/depcache/provider/gocache"
	"github.com/unkn0wn-root/depcache/provider/redis"
	"github.com/unkn0wn-root/depcache/provider/ristretto"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("").Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "depcache.yaml", `
cache:
  defaultTTL: 5m
  serializePopulation: true
provider:
  kind: ristretto
  maxCost: 500
logging:
  backend: zap
  level: debug
dependencies:
  - from: Order
    to: [User, Product]
  - from: Tenant
    to: [User]
    reverse: true
`)
	t.Setenv("DEPCACHE_CACHE__DEFAULTTTL", "90s")
	t.Setenv("DEPCACHE_PROVIDER__REDIS__DB", "3")
	t.Setenv("DEPCACHE_LOGGING__LEVEL", "warn")

	cfg, err := NewLoader(EnvPrefix, path).Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, 90*time.Second, cfg.Cache.DefaultTTL, "env beats file")
	require.True(t, cfg.Cache.SerializePopulation)
	require.Equal(t, ProviderRistretto, cfg.Provider.Kind)
	require.EqualValues(t, 500, cfg.Provider.MaxCost)
	require.EqualValues(t, 1e6, cfg.Provider.NumCounters, "untouched defaults survive")
	require.Equal(t, 3, cfg.Provider.Redis.DB)
	require.Equal(t, BackendZap, cfg.Logging.Backend)
	require.Equal(t, "warn", cfg.Logging.Level)

	require.Equal(t, []depcache.Edge{
		{From: "Order", To: "User"},
		{From: "Order", To: "Product"},
		{From: "User", To: "Tenant"},
	}, cfg.Edges())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader("", filepath.Join(t.TempDir(), "nope.yaml")).Load(context.Background())
	require.ErrorContains(t, err, "not found")
}

func TestLoad_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", `
provider:
  kind: memcached
  codec: gob
logging:
  backend: glog
dependencies:
  - from: ""
    to: []
`)
	_, err := NewLoader("", path).Load(context.Background())
	require.Error(t, err)
	for _, want := range []string{"provider.kind", "provider.codec", "logging.backend", "dependencies[0].from", "dependencies[0].to"} {
		require.ErrorContains(t, err, want)
	}
}

func TestValidate_BigCacheShards(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.Kind = ProviderBigCache
	cfg.Provider.Shards = 100
	require.ErrorContains(t, cfg.Validate(), "power of two")
}

func TestNewLogger_Backends(t *testing.T) {
	for _, backend := range []string{BackendSlog, BackendZap, BackendLogrus} {
		t.Run(backend, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := NewLogger(LoggingConfig{Backend: backend, Level: "info", Format: "json"}, &buf)
			require.NoError(t, err)
			l.Debug("hidden", nil)
			l.Warn("visible", depcache.Fields{"key": "k"})
			require.NotContains(t, buf.String(), "hidden")
			require.Contains(t, buf.String(), "visible")
			require.Contains(t, buf.String(), `"key":"k"`)
		})
	}

	l, err := NewLogger(LoggingConfig{Backend: BackendNone}, nil)
	require.NoError(t, err)
	require.Equal(t, depcache.NopLogger{}, l)

	_, err = NewLogger(LoggingConfig{Backend: BackendSlog, Level: "loud"}, nil)
	require.Error(t, err)
}

func TestNewProvider_Kinds(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cases := map[string]struct {
		cfg  ProviderConfig
		want any
	}{
		ProviderGoCache:   {cfg: DefaultConfig().Provider, want: &gocache.Provider[string]{}},
		ProviderRistretto: {cfg: withKind(ProviderRistretto, nil), want: &ristretto.Provider[string]{}},
		ProviderBigCache:  {cfg: withKind(ProviderBigCache, nil), want: &bigcache.Provider[string]{}},
		ProviderRedis: {cfg: withKind(ProviderRedis, func(p *ProviderConfig) {
			p.Redis.Address = mr.Addr()
		}), want: &redis.Redis[string]{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := NewProvider[string](ctx, tc.cfg, nil)
			require.NoError(t, err)
			defer p.Close(ctx)
			require.IsType(t, tc.want, p)

			ok, err := p.Set(ctx, "k", "v", entryOpts(), nil)
			require.NoError(t, err)
			require.True(t, ok)
			if name == ProviderRistretto {
				return // admission is asynchronous
			}
			v, hit, err := p.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, hit)
			require.Equal(t, "v", v)
		})
	}

	_, err := NewProvider[string](ctx, ProviderConfig{Kind: "memcached"}, nil)
	require.Error(t, err)
}

func TestNewProvider_MaxEntryBytes(t *testing.T) {
	ctx := context.Background()
	cfg := withKind(ProviderBigCache, func(p *ProviderConfig) {
		p.Codec = "msgpack"
		p.MaxEntryBytes = 8
	})
	p, err := NewProvider[string](ctx, cfg, nil)
	require.NoError(t, err)
	defer p.Close(ctx)

	_, err = p.Set(ctx, "k", "a value well over eight bytes", entryOpts(), nil)
	require.ErrorIs(t, err, codec.ErrTooLarge)
	ok, err := p.Set(ctx, "k", "tiny", entryOpts(), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOptions_BuildsWorkingCache(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Logging.Backend = BackendNone
	cfg.Dependencies = []DependencyConfig{{From: "Order", To: []string{"User"}}}

	opts, err := Options[string](ctx, cfg, nil, nil)
	require.NoError(t, err)
	c, err := depcache.New(opts)
	require.NoError(t, err)
	defer c.Close(ctx)

	require.NoError(t, c.Set(ctx, "order:1", "v", []depcache.Type{"Order"}))
	require.NoError(t, c.InvalidateType(ctx, "User"))
	_, ok, err := c.Get(ctx, "order:1")
	require.NoError(t, err)
	require.False(t, ok)

	cfg.Cache.Disabled = true
	opts, err = Options[string](ctx, cfg, nil, nil)
	require.NoError(t, err)
	require.Nil(t, opts.Provider)
	require.True(t, opts.Disabled)
}

func TestApplyDependencies_Additive(t *testing.T) {
	c := depcache.NewNop[string]()
	c.AddDependency("Invoice", "User")

	cfg := Config{Dependencies: []DependencyConfig{{From: "Order", To: []string{"User", "User"}}}}
	require.Equal(t, 1, ApplyDependencies(c, cfg))
	require.Equal(t, 0, ApplyDependencies(c, cfg))
	require.Equal(t, []depcache.Edge{
		{From: "Invoice", To: "User"},
		{From: "Order", To: "User"},
	}, c.Dependencies())
}
