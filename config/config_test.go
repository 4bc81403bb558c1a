package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "./data"
ChainID = 56
GenesisFile = "genesis.yaml"
Environment = "staging"

[Oracle]
MaxPriceAgeSeconds = 3600

[[Oracle.StaticFeeds]]
Address = "0x00000000000000000000000000000000000000f1"
Answer = "300000000000"
Decimals = 8

[[Oracle.StaticPools]]
Address = "0x00000000000000000000000000000000000000f2"
Token0 = "0x00000000000000000000000000000000000000a1"
Token1 = "0x00000000000000000000000000000000000000a3"
SqrtPriceX96 = "158456325028528675187087900672"

[RPC]
JWTSecret = "s3cret"
RequestsPerMinute = 120
Burst = 10

[Log]
Level = "debug"
File = "./logs/cdfid.log"
MaxSizeMB = 10
MaxBackups = 2
MaxAgeDays = 3

[Telemetry]
Endpoint = "localhost:4318"
Insecure = true
Traces = true
SampleRatio = 0.25

[Indexer]
DSN = "./data/index.db"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:9000" || cfg.DataDir != "./data" || cfg.ChainID != 56 {
		t.Fatalf("unexpected root keys: %+v", cfg)
	}
	if cfg.GenesisFile != "genesis.yaml" || cfg.Environment != "staging" {
		t.Fatalf("unexpected genesis/env: %s %s", cfg.GenesisFile, cfg.Environment)
	}
	if cfg.Oracle.MaxPriceAge() != time.Hour {
		t.Fatalf("unexpected max price age: %s", cfg.Oracle.MaxPriceAge())
	}
	if len(cfg.Oracle.StaticFeeds) != 1 || cfg.Oracle.StaticFeeds[0].Decimals != 8 {
		t.Fatalf("unexpected static feeds: %+v", cfg.Oracle.StaticFeeds)
	}
	if cfg.RPC.JWTSecret != "s3cret" || cfg.RPC.RequestsPerMinute != 120 || cfg.RPC.Burst != 10 {
		t.Fatalf("unexpected rpc section: %+v", cfg.RPC)
	}
	if cfg.Log.File != "./logs/cdfid.log" || cfg.Log.MaxBackups != 2 {
		t.Fatalf("unexpected log section: %+v", cfg.Log)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("unexpected telemetry section: %+v", cfg.Telemetry)
	}
	if cfg.Indexer.DSN != "./data/index.db" {
		t.Fatalf("unexpected indexer dsn: %s", cfg.Indexer.DSN)
	}

	staticDir, err := cfg.Oracle.StaticDirectory(42)
	if err != nil {
		t.Fatalf("static directory: %v", err)
	}
	feed, err := staticDir.PriceFeed(common.HexToAddress("0xf1"))
	if err != nil {
		t.Fatalf("feed lookup: %v", err)
	}
	round, err := feed.LatestRoundData(context.Background())
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if round.Answer.Int64() != 300000000000 || round.UpdatedAt != 42 {
		t.Fatalf("unexpected round: %+v", round)
	}
	pool, err := staticDir.Pool(common.HexToAddress("0xf2"))
	if err != nil {
		t.Fatalf("pool lookup: %v", err)
	}
	token1, _ := pool.Token1(context.Background())
	if token1 != common.HexToAddress("0xa3") {
		t.Fatalf("unexpected token1: %s", token1.Hex())
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ChainID != DefaultChainID || cfg.RPCAddress != DefaultRPCAddress {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RPC.RequestsPerMinute != DefaultRequestsPerMinute || reloaded.Log.MaxSizeMB != 100 {
		t.Fatalf("unexpected reloaded config: %+v", reloaded)
	}
}

func TestLoadAppliesDefaultsToSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("GenesisFile = \"g.json\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DataDir != DefaultDataDir || cfg.Environment != DefaultEnvironment || cfg.RPC.Burst != DefaultBurst {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("BlockTimeSeconds = 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "BlockTimeSeconds") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		cfg := &Config{ChainID: 1}
		cfg.applyDefaults()
		return cfg
	}

	if err := ValidateConfig(base()); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}

	cfg := base()
	cfg.Telemetry.Traces = true
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected missing endpoint error")
	}

	cfg = base()
	cfg.Telemetry.SampleRatio = 1.5
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected sample ratio error")
	}

	cfg = base()
	cfg.Oracle.EthRPCURL = "http://localhost:8545"
	cfg.Oracle.StaticFeeds = []StaticFeed{{Address: "0x01", Answer: "1"}}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected exclusive oracle source error")
	}

	cfg = base()
	cfg.Oracle.StaticFeeds = []StaticFeed{{Address: "0x01", Answer: "0"}}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected non-positive answer error")
	}

	cfg = base()
	cfg.Oracle.StaticPools = []StaticPool{{Address: "nope", Token0: "0x01", Token1: "0x02"}}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected bad pool address error")
	}

	cfg = base()
	cfg.RPC.RequestsPerMinute = MaxRequestsPerMinute + 1
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected rate limit bound error")
	}
}
