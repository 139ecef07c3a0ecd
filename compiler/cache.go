package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"go.uber.org/zap"
)

// Cache stores compiled applications on disk keyed by the declaration
// fingerprint and the reference policy.
type Cache struct {
	Dir string
}

// NewCache creates a cache rooted at dir
func NewCache(dir string) *Cache {
	return &Cache{Dir: dir}
}

// Key computes the cache key for an application under a policy
func (c *Cache) Key(app *declare.Application, policy ReferencePolicy) string {
	hasher := sha256.New()
	hasher.Write([]byte(app.Fingerprint()))
	hasher.Write([]byte("\n" + policy.String()))
	return hex.EncodeToString(hasher.Sum(nil))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get loads a cached application. A missing entry is not an error.
func (c *Cache) Get(key string) (*metadata.Application, bool, error) {
	path := c.path(key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	app, err := metadata.Load(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	return app, true, nil
}

// Put stores a compiled application
func (c *Cache) Put(key string, app *metadata.Application) error {
	return app.Save(c.path(key))
}

// Invalidate removes a cached entry
func (c *Cache) Invalidate(key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CompileCached returns the cached compile result for app when one exists and
// still validates, otherwise it compiles and stores the result. Without a
// configured cache it is the same as Compile.
func (c *Compiler) CompileCached(app *declare.Application) (*metadata.Application, error) {
	if c.cache == nil {
		return c.Compile(app)
	}

	key := c.cache.Key(app, c.policy)
	cached, ok, err := c.cache.Get(key)
	if err != nil {
		c.logger.Warn("ignoring unreadable cache entry", zap.String("key", key), zap.Error(err))
	}
	if ok {
		if verr := cached.Validate(); verr == nil {
			c.logger.Debug("compile cache hit", zap.String("key", key))
			return cached, nil
		}
		c.logger.Warn("cached metadata failed validation, recompiling", zap.String("key", key))
	}

	out, err := c.Compile(app)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(key, out); err != nil {
		return nil, fmt.Errorf("failed to write compile cache: %w", err)
	}
	c.logger.Debug("compile cache stored", zap.String("key", key))
	return out, nil
}
