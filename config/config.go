package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"questchain/storage"
)

const (
	// EnvEnvironment names the deployment environment attached to logs.
	EnvEnvironment = "QUEST_ENV"
	// EnvJWTSecret overrides RPC.JWTSecret.
	EnvJWTSecret = "QUEST_JWT_SECRET"
)

type Config struct {
	ListenAddress       string    `toml:"ListenAddress"`
	DataDir             string    `toml:"DataDir"`
	DBBackend           string    `toml:"DBBackend"`
	GenesisFile         string    `toml:"GenesisFile"`
	EventLogPath        string    `toml:"EventLogPath"`
	AddressPrefix       string    `toml:"AddressPrefix"`
	AllowPlainAddresses bool      `toml:"AllowPlainAddresses"`
	AllowMigrate        bool      `toml:"AllowMigrate"`
	Environment         string    `toml:"Environment"`
	RPC                 RPC       `toml:"RPC"`
	Log                 Log       `toml:"Log"`
	Telemetry           Telemetry `toml:"Telemetry"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		ListenAddress: ":8545",
		DataDir:       "./quest-data",
		DBBackend:     storage.BackendLevelDB,
		EventLogPath:  "",
		AddressPrefix: "quest",
		RPC: RPC{
			JWTIssuer:          "questchain",
			RateLimitPerMinute: 600,
			MaxRequestBytes:    1 << 20,
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   15,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Telemetry: Telemetry{
			Endpoint: "localhost:4318",
		},
	}
}

// Load loads the configuration from the given path, writing the defaults
// there first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := createDefault(path)
		if err != nil {
			return nil, err
		}
		cfg.applyEnv()
		return cfg, nil
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyEnv()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		c.RPC.JWTSecret = secret
	}
	if env := strings.TrimSpace(os.Getenv(EnvEnvironment)); env != "" {
		c.Environment = env
	}
	if strings.TrimSpace(c.EventLogPath) == "" && strings.TrimSpace(c.DataDir) != "" {
		c.EventLogPath = filepath.Join(c.DataDir, "events.db")
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
