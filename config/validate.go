package config

import (
	"fmt"
	"math/big"
	"strings"

	"cdfichain/crypto"
)

var (
	MaxRequestsPerMinute = 600_000
)

func ValidateConfig(c *Config) error {
	if c.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be set")
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.RequestsPerMinute > MaxRequestsPerMinute {
		return fmt.Errorf("rpc: RequestsPerMinute out of range")
	}
	if c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: Burst must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint required when traces or metrics are enabled")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	if strings.TrimSpace(c.Oracle.EthRPCURL) != "" && (len(c.Oracle.StaticFeeds) > 0 || len(c.Oracle.StaticPools) > 0) {
		return fmt.Errorf("oracle: EthRPCURL and static readings are mutually exclusive")
	}
	for i, feed := range c.Oracle.StaticFeeds {
		if _, err := crypto.ParseAddress(feed.Address); err != nil {
			return fmt.Errorf("oracle: StaticFeeds[%d].Address: %w", i, err)
		}
		if _, err := parsePositive(feed.Answer); err != nil {
			return fmt.Errorf("oracle: StaticFeeds[%d].Answer: %w", i, err)
		}
	}
	for i, pool := range c.Oracle.StaticPools {
		for field, value := range map[string]string{"Address": pool.Address, "Token0": pool.Token0, "Token1": pool.Token1} {
			if _, err := crypto.ParseAddress(value); err != nil {
				return fmt.Errorf("oracle: StaticPools[%d].%s: %w", i, field, err)
			}
		}
		if _, err := parseUintAmount(pool.SqrtPriceX96); err != nil {
			return fmt.Errorf("oracle: StaticPools[%d].SqrtPriceX96: %w", i, err)
		}
	}
	return nil
}

func parseUintAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parsePositive(value string) (*big.Int, error) {
	amount, err := parseUintAmount(value)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
