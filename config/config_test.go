package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  addr: ":9000"
database:
  driver: postgres
  dsn: "host=db user=recipe"
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("RECIPE_LOG_LEVEL", "warn")
	t.Setenv("RECIPE_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RECIPE_TOKEN_TTL", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("env should override file: Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 2h", cfg.Auth.TokenTTL)
	}
	want := []string{"https://a.example", "https://b.example"}
	if strings.Join(cfg.Server.CORSOrigins, "|") != strings.Join(want, "|") {
		t.Errorf("Server.CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "database.driver",
		},
		{
			name:    "empty dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database.dsn",
		},
		{
			name:    "short secret in release",
			mutate:  func(c *Config) { c.Server.Mode = "release"; c.Auth.JWTSecret = "short" },
			wantErr: "jwt_secret",
		},
		{
			name: "release with long secret",
			mutate: func(c *Config) {
				c.Server.Mode = "release"
				c.Auth.JWTSecret = strings.Repeat("s", 40)
			},
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Server.Mode = "prod" },
			wantErr: "server.mode",
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" },
			wantErr: "redis.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
