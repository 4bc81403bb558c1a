package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultChainID           = uint64(31337)
	DefaultRPCAddress        = ":8080"
	DefaultDataDir           = "./cdfi-data"
	DefaultEnvironment       = "dev"
	DefaultRequestsPerMinute = 600
	DefaultBurst             = 60
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	ChainID     uint64 `toml:"ChainID"`
	GenesisFile string `toml:"GenesisFile"`
	Environment string `toml:"Environment"`

	Oracle    Oracle    `toml:"Oracle"`
	RPC       RPC       `toml:"RPC"`
	Log       Log       `toml:"Log"`
	Telemetry Telemetry `toml:"Telemetry"`
	Indexer   Indexer   `toml:"Indexer"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = DefaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if c.ChainID == 0 {
		c.ChainID = DefaultChainID
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = DefaultEnvironment
	}
	if c.RPC.RequestsPerMinute == 0 {
		c.RPC.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.RPC.Burst == 0 {
		c.RPC.Burst = DefaultBurst
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  DefaultRPCAddress,
		DataDir:     DefaultDataDir,
		ChainID:     DefaultChainID,
		GenesisFile: "",
		Environment: DefaultEnvironment,
		RPC: RPC{
			RequestsPerMinute: DefaultRequestsPerMinute,
			Burst:             DefaultBurst,
		},
		Log: Log{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
	}
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
