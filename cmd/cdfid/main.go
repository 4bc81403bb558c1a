package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cdfichain/config"
	"cdfichain/core"
	"cdfichain/core/genesis"
	"cdfichain/indexer"
	"cdfichain/integrations/evm"
	"cdfichain/native/oracle"
	"cdfichain/observability/logging"
	telemetry "cdfichain/observability/otel"
	"cdfichain/rpc"
	"cdfichain/storage"
)

const (
	genesisPathEnv = "CDFI_GENESIS"
	serviceName    = "cdfid"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis spec (overrides CDFI_GENESIS and config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "cdfid: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var spec *genesis.GenesisSpec
	if path := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv); path != "" {
		spec, err = genesis.LoadGenesisSpec(path)
		if err != nil {
			return fmt.Errorf("load genesis spec: %w", err)
		}
	}

	directory, closeDirectory, err := buildDirectory(ctx, cfg.Oracle)
	if err != nil {
		return err
	}
	defer closeDirectory()

	nodeCfg := core.Config{
		ChainID:     cfg.ChainID,
		Directory:   directory,
		MaxPriceAge: cfg.Oracle.MaxPriceAge(),
		Logger:      logger,
	}
	if spec != nil {
		nodeCfg.Schedules = spec.ScheduleParams()
	}
	node, err := core.NewNode(db, nodeCfg, spec)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	logger.Info("node opened",
		"chainId", node.ChainID(),
		"height", node.Height(),
		"stateRoot", node.StateRoot().Hex())

	var events rpc.EventSource
	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		store, err := indexer.Open(dsn, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		node.AddReceiptSink(store)
		events = store
		logger.Info("event indexer enabled", "indexerDSN", dsn)
	}

	server := rpc.NewServer(node, rpc.ServerConfig{
		JWTSecret:         cfg.RPC.JWTSecret,
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
		Events:            events,
		Logger:            logger,
	})
	node.AddReceiptSink(server.Hub())

	logger.Info("cdfi node running",
		"rpc", cfg.RPCAddress,
		"env", cfg.Environment,
		"jwtSecret", cfg.RPC.JWTSecret,
		logging.MaskField("ethRPCURL", cfg.Oracle.EthRPCURL))
	if err := server.Start(ctx, cfg.RPCAddress); err != nil {
		return err
	}
	logger.Info("cdfi node stopped", "height", node.Height())
	return nil
}

func setupLogging(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if raw := strings.TrimSpace(cfg.Log.Level); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", raw, err)
		}
	}
	logger, closer := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        cfg.Environment,
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return logger, closer, nil
}

// buildDirectory reads live contracts when an Ethereum endpoint is configured
// and serves the configured static readings otherwise.
func buildDirectory(ctx context.Context, cfg config.Oracle) (oracle.Directory, func(), error) {
	if url := strings.TrimSpace(cfg.EthRPCURL); url != "" {
		dir, err := evm.Dial(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return dir, dir.Close, nil
	}
	dir, err := cfg.StaticDirectory(uint64(time.Now().Unix()))
	if err != nil {
		return nil, nil, err
	}
	return dir, func() {}, nil
}

type envLookupFunc func(string) (string, bool)

// resolveGenesisPath prefers the flag, then the environment, then the config.
// An empty result is valid once the database holds a head.
func resolveGenesisPath(cliPath string, cfgPath string, lookup envLookupFunc) string {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(cfgPath)
}
