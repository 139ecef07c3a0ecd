// Package config loads typegraph.yaml and TYPEGRAPH_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/typegraph/compiler"
)

// EnvPrefix prefixes every environment override, e.g. TYPEGRAPH_SERVER_PORT
const EnvPrefix = "TYPEGRAPH"

// Config represents the typegraph configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CRUD      CRUDConfig      `mapstructure:"crud"`
	Compiler  CompilerConfig  `mapstructure:"compiler"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GraphQLPath     string        `mapstructure:"graphql_path"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	Profiling       bool          `mapstructure:"profiling"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig represents database configuration. An empty URL serves the
// schema without persistence.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// RedisConfig represents the Redis connection shared by the rate limiter and
// the pub/sub broker
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig represents resolver rate limiting
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"` // memory or redis
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// CRUDConfig represents the generated CRUD extension
type CRUDConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Depth   int  `mapstructure:"depth"`
}

// CompilerConfig holds the reference thresholds of the declaration compiler
type CompilerConfig struct {
	Roots  int `mapstructure:"roots"`
	Models int `mapstructure:"models"`
	Inputs int `mapstructure:"inputs"`
	Args   int `mapstructure:"args"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

func setDefaults(v *viper.Viper) {
	policy := compiler.DefaultPolicy()

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.graphql_path", "/graphql")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.profiling", false)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.limit", 100)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("crud.enabled", true)
	v.SetDefault("crud.depth", 2)
	v.SetDefault("compiler.roots", policy.Roots)
	v.SetDefault("compiler.models", policy.Models)
	v.SetDefault("compiler.inputs", policy.Inputs)
	v.SetDefault("compiler.args", policy.Args)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads the configuration. With an empty path typegraph.yaml (or .yml)
// is looked up in the working directory and may be absent; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("typegraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks option values and their combinations
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.GraphQLPath, "/") {
		return fmt.Errorf("server.graphql_path must start with '/', got: %s", c.Server.GraphQLPath)
	}

	switch c.Database.Driver {
	case "postgres", "pgx", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be one of postgres, pgx, sqlite3, got: %s", c.Database.Driver)
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if c.Redis.Addr == "" {
				return fmt.Errorf("ratelimit.backend redis requires redis.addr")
			}
		default:
			return fmt.Errorf("ratelimit.backend must be memory or redis, got: %s", c.RateLimit.Backend)
		}
		if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("ratelimit.limit and ratelimit.window must be positive")
		}
	}

	if c.CRUD.Depth < 0 {
		return fmt.Errorf("crud.depth must not be negative, got: %d", c.CRUD.Depth)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("compiler: %w", err)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got: %s", c.Log.Format)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

// Address returns the server listen address
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Policy returns the configured compiler reference policy
func (c *Config) Policy() compiler.ReferencePolicy {
	return compiler.ReferencePolicy{
		Roots:  c.Compiler.Roots,
		Models: c.Compiler.Models,
		Inputs: c.Compiler.Inputs,
		Args:   c.Compiler.Args,
	}
}

func (l LogConfig) level() (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Logger builds a JSON production logger or a console development logger
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if l.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
