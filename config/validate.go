package config

import (
	"fmt"
	"strings"

	"questchain/storage"
)

var (
	MinRateLimitPerMinute = uint32(1)
	MinJWTSecretBytes     = 32
)

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress: required")
	}
	switch cfg.DBBackend {
	case "", storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt:
	default:
		return fmt.Errorf("DBBackend: unsupported backend %q", cfg.DBBackend)
	}
	if cfg.DBBackend != storage.BackendMemory && strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir: required for %q backend", cfg.DBBackend)
	}
	if strings.TrimSpace(cfg.AddressPrefix) == "" && !cfg.AllowPlainAddresses {
		return fmt.Errorf("AddressPrefix: required unless AllowPlainAddresses is set")
	}
	if secret := cfg.RPC.JWTSecret; secret != "" && len(secret) < MinJWTSecretBytes {
		return fmt.Errorf("RPC.JWTSecret: must be at least %d bytes", MinJWTSecretBytes)
	}
	if cfg.RPC.RateLimitPerMinute < MinRateLimitPerMinute {
		return fmt.Errorf("RPC.RateLimitPerMinute: must be >= %d", MinRateLimitPerMinute)
	}
	if cfg.RPC.MaxRequestBytes <= 0 {
		return fmt.Errorf("RPC.MaxRequestBytes: must be > 0")
	}
	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			return fmt.Errorf("Telemetry.Endpoint: required when export is enabled")
		}
	}
	return nil
}
