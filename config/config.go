// Package config loads recipe_back settings with koanf.
//
// Sources are layered, later ones win:
//
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_PATH, config.yaml or config.yml)
//  3. RECIPE_* environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix is stripped from environment variables before mapping.
const EnvPrefix = "RECIPE_"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
	// Mode is the gin mode: debug, release or test.
	Mode        string   `koanf:"mode"`
	CORSOrigins []string `koanf:"cors_origins"`
	// AuthRateLimit is the burst of token/register requests allowed per client IP
	// within AuthRateWindow. Zero disables limiting.
	AuthRateLimit  int           `koanf:"auth_rate_limit"`
	AuthRateWindow time.Duration `koanf:"auth_rate_window"`
}

type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	// SlowQuery is the threshold above which gorm logs a query as slow.
	SlowQuery    time.Duration `koanf:"slow_query"`
	MaxOpenConns int           `koanf:"max_open_conns"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	Issuer     string        `koanf:"issuer"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":1234",
			Mode:           "debug",
			CORSOrigins:    []string{"*"},
			AuthRateLimit:  20,
			AuthRateWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "recipe.db",
			SlowQuery:    200 * time.Millisecond,
			MaxOpenConns: 10,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "127.0.0.1:6379",
		},
		Auth: AuthConfig{
			Issuer:     "recipe_back",
			TokenTTL:   24 * time.Hour,
			BcryptCost: 12,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads defaults, the optional YAML file and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitCommaList(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Server.Mode == "release" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters in release mode"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKeys maps RECIPE_-stripped, lower-cased variable names to koanf paths.
// Keys contain underscores themselves, so a blind "_" -> "." replace is not usable.
var envKeys = map[string]string{
	"addr":             "server.addr",
	"server_addr":      "server.addr",
	"mode":             "server.mode",
	"cors_origins":     "server.cors_origins",
	"auth_rate_limit":  "server.auth_rate_limit",
	"auth_rate_window": "server.auth_rate_window",
	"database_driver":  "database.driver",
	"database_dsn":     "database.dsn",
	"database_slow":    "database.slow_query",
	"database_conns":   "database.max_open_conns",
	"redis_enabled":    "redis.enabled",
	"redis_addr":       "redis.addr",
	"redis_password":   "redis.password",
	"redis_db":         "redis.db",
	"jwt_secret":       "auth.jwt_secret",
	"jwt_issuer":       "auth.issuer",
	"token_ttl":        "auth.token_ttl",
	"bcrypt_cost":      "auth.bcrypt_cost",
	"log_level":        "log.level",
	"log_format":       "log.format",
}

func envTransform(key string) string {
	return envKeys[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))]
}

func splitCommaList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}
