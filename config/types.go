package config

import "time"

// Oracle selects where price feeds and pools are read from. When EthRPCURL is
// empty the node serves the static readings listed here.
type Oracle struct {
	EthRPCURL          string       `toml:"EthRPCURL"`
	MaxPriceAgeSeconds uint64       `toml:"MaxPriceAgeSeconds"`
	StaticFeeds        []StaticFeed `toml:"StaticFeeds"`
	StaticPools        []StaticPool `toml:"StaticPools"`
}

// MaxPriceAge is the staleness bound for feed readings. Zero disables it.
func (o Oracle) MaxPriceAge() time.Duration {
	return time.Duration(o.MaxPriceAgeSeconds) * time.Second
}

// StaticFeed is a fixed aggregator reading served at Address.
type StaticFeed struct {
	Address  string `toml:"Address"`
	Answer   string `toml:"Answer"`
	Decimals uint8  `toml:"Decimals"`
}

// StaticPool is a fixed pool price served at Address.
type StaticPool struct {
	Address      string `toml:"Address"`
	Token0       string `toml:"Token0"`
	Token1       string `toml:"Token1"`
	SqrtPriceX96 string `toml:"SqrtPriceX96"`
}

// RPC controls the JSON-RPC server. An empty JWTSecret leaves
// cdfi_sendTransaction open.
type RPC struct {
	JWTSecret         string `toml:"JWTSecret"`
	RequestsPerMinute int    `toml:"RequestsPerMinute"`
	Burst             int    `toml:"Burst"`
}

type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Indexer stores receipts and events for cdfi_getEvents. DSN selects the
// driver: postgres:// URLs use Postgres, anything else is a SQLite path.
// Empty disables the indexer.
type Indexer struct {
	DSN string `toml:"DSN"`
}
