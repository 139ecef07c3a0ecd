package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/conduit-lang/typegraph/compiler"
	"github.com/conduit-lang/typegraph/internal/app"
	"github.com/conduit-lang/typegraph/internal/cli/config"
	d "github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/pubsub"
)

func blog(t *testing.T) *metadata.Application {
	t.Helper()
	md, err := compiler.New().Compile(d.App("blog").
		Model("Post", d.Object(
			d.Field("id", d.Number()),
			d.Field("title", d.String()),
		)))
	require.NoError(t, err)
	return md
}

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func sqliteConfig(t *testing.T, extra string) *config.Config {
	dsn := filepath.Join(t.TempDir(), "blog.db")
	return loadConfig(t, fmt.Sprintf("database:\n  driver: sqlite3\n  url: %s\n%s", dsn, extra))
}

func graphql(t *testing.T, url, query string) map[string]any {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"query": query})
	resp, err := http.Post(url+"/graphql", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNew_CRUD(t *testing.T) {
	cfg := sqliteConfig(t, "")

	a, err := app.New(context.Background(), cfg, blog(t), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	require.NotNil(t, a.Store)
	require.NotNil(t, a.CRUD)
	assert.Contains(t, a.CRUD.Models, "Post")
	assert.IsType(t, &pubsub.Hub{}, a.Broker)

	srv := httptest.NewServer(a.Handler)
	defer srv.Close()

	out := graphql(t, srv.URL, `mutation { postSave(values: {title: "hello"}) { id title } }`)
	assert.Nil(t, out["errors"])

	out = graphql(t, srv.URL, `{ postMany { title } postCount }`)
	assert.Equal(t, map[string]any{
		"postMany":  []any{map[string]any{"title": "hello"}},
		"postCount": 1.0,
	}, out["data"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_CRUDDisabled(t *testing.T) {
	cfg := sqliteConfig(t, "crud:\n  enabled: false\n")

	a, err := app.New(context.Background(), cfg, blog(t), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	assert.NotNil(t, a.Store)
	assert.Nil(t, a.CRUD)

	srv := httptest.NewServer(a.Handler)
	defer srv.Close()

	out := graphql(t, srv.URL, `{ _schema }`)
	assert.Equal(t, map[string]any{"_schema": "blog"}, out["data"])
}

func TestNew_RedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := sqliteConfig(t, fmt.Sprintf(`redis:
  addr: %s
ratelimit:
  enabled: true
  backend: redis
  limit: 1
  window: 1m
`, mr.Addr()))

	a, err := app.New(context.Background(), cfg, blog(t), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	assert.IsType(t, &pubsub.RedisBroker{}, a.Broker)

	srv := httptest.NewServer(a.Handler)
	defer srv.Close()

	out := graphql(t, srv.URL, `{ postCount }`)
	assert.Nil(t, out["errors"])

	out = graphql(t, srv.URL, `{ postCount }`)
	require.NotNil(t, out["errors"])
	assert.Contains(t, fmt.Sprint(out["errors"]), "rate limit exceeded")
}

func TestNew_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := sqliteConfig(t, fmt.Sprintf("redis:\n  addr: %s\n", addr))
	_, err := app.New(context.Background(), cfg, blog(t), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestApp_Run(t *testing.T) {
	cfg := sqliteConfig(t, "server:\n  port: 0\n  shutdown_timeout: 5s\n")

	a, err := app.New(context.Background(), cfg, blog(t), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = a.Store.Repository("Post")
	require.NoError(t, err)
	assert.Error(t, a.Store.DB().Ping(), "the store is closed after Run")
}
