package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"questchain/config"
	"questchain/core"
	"questchain/core/genesis"
	"questchain/crypto"
	"questchain/observability/logging"
	questotel "questchain/observability/otel"
	"questchain/rpc"
	"questchain/storage"
	"questchain/storage/eventlog"
)

const genesisPathEnv = "QUEST_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides QUEST_GENESIS and config GenesisFile)")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.SetupWithOptions("questd", cfg.Environment, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, resolveGenesisPath(*genesisFlag, cfg.GenesisFile), *allowMigrateFlag || cfg.AllowMigrate); err != nil {
		logger.Error("questd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, genesisPath string, allowMigrate bool) error {
	shutdownTelemetry, err := questotel.Init(ctx, questotel.FromTelemetry(cfg.Telemetry, cfg.Environment))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(cfg.DBBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	ledger, err := core.NewLedger(db, allowMigrate)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()
	ledger.SetLogger(logger)
	ledger.SetValidator(addressValidator(cfg))

	journal, err := openJournal(cfg.EventLogPath)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer journal.Close()
	ledger.SetJournal(journal)

	if genesisPath != "" {
		spec, err := genesis.LoadGenesisSpec(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		res, err := genesis.Apply(ctx, ledger, spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		if res != nil {
			logger.Info("genesis applied", slog.Uint64("height", res.Height), slog.String("path", genesisPath))
		}
	}

	head := ledger.Head()
	logger.Info("ledger ready",
		slog.Uint64("height", head.Height),
		slog.String("backend", cfg.DBBackend),
		slog.String("data_dir", cfg.DataDir))

	server, err := rpc.NewServer(ledger, journal, rpc.ServerConfig{
		JWTSecret:          cfg.RPC.JWTSecret,
		JWTIssuer:          cfg.RPC.JWTIssuer,
		RateLimitPerMinute: cfg.RPC.RateLimitPerMinute,
		TrustProxyHeaders:  cfg.RPC.TrustProxyHeaders,
		MaxRequestBytes:    cfg.RPC.MaxRequestBytes,
		ReadTimeout:        time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout:       time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
	}, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx, cfg.ListenAddress)
}

func addressValidator(cfg *config.Config) crypto.Validator {
	bech := crypto.Bech32Validator{Prefix: crypto.AddressPrefix(cfg.AddressPrefix)}
	if cfg.AllowPlainAddresses {
		return crypto.AnyValidator{bech, crypto.PlainValidator{}}
	}
	return bech
}

func openJournal(path string) (*eventlog.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	return eventlog.Open(path)
}

func resolveGenesisPath(flagValue, configValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(genesisPathEnv)); v != "" {
		return v
	}
	return strings.TrimSpace(configValue)
}
