package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/typegraph/compiler"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:4000", cfg.Address())
	assert.Equal(t, "/graphql", cfg.Server.GraphQLPath)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.URL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.CRUD.Enabled)
	assert.Equal(t, 2, cfg.CRUD.Depth)
	assert.Equal(t, compiler.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `
server:
  host: 0.0.0.0
  port: 8080
  cors_origins: ["https://app.test"]
database:
  driver: postgres
  url: postgres://localhost/blog
redis:
  addr: localhost:6379
ratelimit:
  enabled: true
  backend: redis
  limit: 10
  window: 30s
compiler:
  models: 3
log:
  format: json
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "typegraph.yaml"), []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, []string{"https://app.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/blog", cfg.Database.URL)
	assert.Equal(t, RateLimitConfig{Enabled: true, Backend: "redis", Limit: 10, Window: 30 * time.Second}, cfg.RateLimit)
	assert.Equal(t, 3, cfg.Policy().Models)
	assert.Equal(t, 1, cfg.Policy().Roots)

	logger, err := cfg.Log.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TYPEGRAPH_SERVER_PORT", "9090")
	t.Setenv("TYPEGRAPH_DATABASE_URL", "file:test.db")
	t.Setenv("TYPEGRAPH_CRUD_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file:test.db", cfg.Database.URL)
	assert.False(t, cfg.CRUD.Enabled)
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")

	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 5000\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad graphql path", func(c *Config) { c.Server.GraphQLPath = "graphql" }, "server.graphql_path"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"redis without addr", func(c *Config) {
			c.RateLimit = RateLimitConfig{Enabled: true, Backend: "redis", Limit: 1, Window: time.Second}
		}, "redis.addr"},
		{"bad backend", func(c *Config) {
			c.RateLimit = RateLimitConfig{Enabled: true, Backend: "memcached", Limit: 1, Window: time.Second}
		}, "ratelimit.backend"},
		{"zero limit", func(c *Config) {
			c.RateLimit = RateLimitConfig{Enabled: true, Backend: "memory", Window: time.Second}
		}, "ratelimit.limit"},
		{"negative depth", func(c *Config) { c.CRUD.Depth = -1 }, "crud.depth"},
		{"zero threshold", func(c *Config) { c.Compiler.Args = 0 }, "compiler"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
