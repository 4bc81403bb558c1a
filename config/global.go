package config

import (
	"fmt"

	"cdfichain/crypto"
	"cdfichain/native/oracle"
)

// StaticDirectory parses the configured static readings into a directory the
// oracle resolvers can serve. Every feed reports updatedAt as its round time.
func (o Oracle) StaticDirectory(updatedAt uint64) (*oracle.StaticDirectory, error) {
	dir := oracle.NewStaticDirectory()
	for i, feed := range o.StaticFeeds {
		addr, err := crypto.ParseAddress(feed.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid oracle.StaticFeeds[%d].Address: %w", i, err)
		}
		answer, err := parsePositive(feed.Answer)
		if err != nil {
			return nil, fmt.Errorf("invalid oracle.StaticFeeds[%d].Answer: %w", i, err)
		}
		dir.AddFeed(addr, oracle.NewStaticFeed(answer, feed.Decimals, updatedAt))
	}
	for i, pool := range o.StaticPools {
		addr, err := crypto.ParseAddress(pool.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid oracle.StaticPools[%d].Address: %w", i, err)
		}
		token0, err := crypto.ParseAddress(pool.Token0)
		if err != nil {
			return nil, fmt.Errorf("invalid oracle.StaticPools[%d].Token0: %w", i, err)
		}
		token1, err := crypto.ParseAddress(pool.Token1)
		if err != nil {
			return nil, fmt.Errorf("invalid oracle.StaticPools[%d].Token1: %w", i, err)
		}
		sqrtP, err := parseUintAmount(pool.SqrtPriceX96)
		if err != nil {
			return nil, fmt.Errorf("invalid oracle.StaticPools[%d].SqrtPriceX96: %w", i, err)
		}
		dir.AddPool(addr, oracle.NewStaticPool(token0, token1, sqrtP))
	}
	return dir, nil
}
