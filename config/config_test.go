package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"questchain/storage"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != storage.BackendLevelDB {
		t.Fatalf("unexpected backend %q", cfg.DBBackend)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to be written: %v", err)
	}
	if cfg.EventLogPath != filepath.Join(cfg.DataDir, "events.db") {
		t.Fatalf("unexpected event log path %q", cfg.EventLogPath)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ListenAddress != cfg.ListenAddress || reloaded.RPC.RateLimitPerMinute != cfg.RPC.RateLimitPerMinute {
		t.Fatalf("reloaded config differs: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "./data"
DBBackend = "bolt"
GenesisFile = "genesis.yaml"
AddressPrefix = "quest"

[RPC]
JWTSecret = "0123456789abcdef0123456789abcdef"
RateLimitPerMinute = 30
MaxRequestBytes = 4096

[Log]
Level = "debug"
File = "./logs/questd.log"

[Telemetry]
Endpoint = "otel:4318"
Traces = true
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != storage.BackendBolt || cfg.GenesisFile != "genesis.yaml" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.RPC.RateLimitPerMinute != 30 || cfg.RPC.MaxRequestBytes != 4096 {
		t.Fatalf("unexpected rpc section: %+v", cfg.RPC)
	}
	if cfg.RPC.JWTIssuer != "questchain" {
		t.Fatalf("expected default issuer to survive partial section, got %q", cfg.RPC.JWTIssuer)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxBackups != 5 {
		t.Fatalf("unexpected log section: %+v", cfg.Log)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Endpoint != "otel:4318" {
		t.Fatalf("unexpected telemetry section: %+v", cfg.Telemetry)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("Bootnodes = [\"x\"]\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "Bootnodes") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestEnvOverridesSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "fedcba9876543210fedcba9876543210")
	t.Setenv(EnvEnvironment, "staging")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("DataDir = \"./d\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPC.JWTSecret != "fedcba9876543210fedcba9876543210" || cfg.Environment != "staging" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"listen":       func(c *Config) { c.ListenAddress = " " },
		"backend":      func(c *Config) { c.DBBackend = "redis" },
		"datadir":      func(c *Config) { c.DataDir = "" },
		"prefix":       func(c *Config) { c.AddressPrefix = "" },
		"short secret": func(c *Config) { c.RPC.JWTSecret = "short" },
		"rate":         func(c *Config) { c.RPC.RateLimitPerMinute = 0 },
		"body":         func(c *Config) { c.RPC.MaxRequestBytes = 0 },
		"telemetry": func(c *Config) {
			c.Telemetry.Traces = true
			c.Telemetry.Endpoint = ""
		},
	}
	if err := ValidateConfig(Default()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	cfg := Default()
	cfg.AddressPrefix = ""
	cfg.AllowPlainAddresses = true
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("plain addresses without prefix should validate: %v", err)
	}
}
