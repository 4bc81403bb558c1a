package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// PriceDecimals is the working precision of every USD price the resolvers
// return.
const PriceDecimals = 8

// Binding ties a chain id to the feed pricing its native currency and the
// pool pricing the utility token. Zero addresses mean unset.
type Binding struct {
	ChainID uint64
	Feed    common.Address
	Pool    common.Address
}

// RoundData mirrors a Chainlink aggregator's latestRoundData tuple.
type RoundData struct {
	RoundID   *big.Int
	Answer    *big.Int
	UpdatedAt uint64
}

// Slot0 is the subset of a Uniswap V3 pool's slot0 the resolver reads.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         int32
}

// PriceFeed is a Chainlink-style aggregator.
type PriceFeed interface {
	LatestRoundData(ctx context.Context) (RoundData, error)
	Decimals(ctx context.Context) (uint8, error)
}

// Pool is a Uniswap-V3-style pool.
type Pool interface {
	Slot0(ctx context.Context) (Slot0, error)
	Token0(ctx context.Context) (common.Address, error)
	Token1(ctx context.Context) (common.Address, error)
}

// Directory resolves bound addresses to readable feeds and pools.
type Directory interface {
	PriceFeed(addr common.Address) (PriceFeed, error)
	Pool(addr common.Address) (Pool, error)
}

// StaticFeed is an in-process PriceFeed with a fixed reading.
type StaticFeed struct {
	mu       sync.RWMutex
	round    RoundData
	decimals uint8
}

func NewStaticFeed(answer *big.Int, decimals uint8, updatedAt uint64) *StaticFeed {
	f := &StaticFeed{decimals: decimals}
	f.Set(answer, updatedAt)
	return f
}

// Set replaces the current reading and bumps the round id.
func (f *StaticFeed) Set(answer *big.Int, updatedAt uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := big.NewInt(1)
	if f.round.RoundID != nil {
		next.Add(f.round.RoundID, big.NewInt(1))
	}
	f.round = RoundData{RoundID: next, Answer: cloneBigInt(answer), UpdatedAt: updatedAt}
}

func (f *StaticFeed) LatestRoundData(context.Context) (RoundData, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return RoundData{
		RoundID:   cloneBigInt(f.round.RoundID),
		Answer:    cloneBigInt(f.round.Answer),
		UpdatedAt: f.round.UpdatedAt,
	}, nil
}

func (f *StaticFeed) Decimals(context.Context) (uint8, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.decimals, nil
}

// StaticPool is an in-process Pool with a fixed slot0.
type StaticPool struct {
	mu     sync.RWMutex
	slot0  Slot0
	token0 common.Address
	token1 common.Address
}

func NewStaticPool(token0, token1 common.Address, sqrtPriceX96 *big.Int) *StaticPool {
	return &StaticPool{
		token0: token0,
		token1: token1,
		slot0:  Slot0{SqrtPriceX96: cloneBigInt(sqrtPriceX96)},
	}
}

func (p *StaticPool) SetSqrtPrice(sqrtPriceX96 *big.Int, tick int32) {
	p.mu.Lock()
	p.slot0 = Slot0{SqrtPriceX96: cloneBigInt(sqrtPriceX96), Tick: tick}
	p.mu.Unlock()
}

func (p *StaticPool) Slot0(context.Context) (Slot0, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Slot0{SqrtPriceX96: cloneBigInt(p.slot0.SqrtPriceX96), Tick: p.slot0.Tick}, nil
}

func (p *StaticPool) Token0(context.Context) (common.Address, error) { return p.token0, nil }
func (p *StaticPool) Token1(context.Context) (common.Address, error) { return p.token1, nil }

// StaticDirectory serves registered in-process feeds and pools. It backs
// local mode and tests.
type StaticDirectory struct {
	mu    sync.RWMutex
	feeds map[common.Address]PriceFeed
	pools map[common.Address]Pool
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		feeds: make(map[common.Address]PriceFeed),
		pools: make(map[common.Address]Pool),
	}
}

func (d *StaticDirectory) AddFeed(addr common.Address, feed PriceFeed) {
	d.mu.Lock()
	d.feeds[addr] = feed
	d.mu.Unlock()
}

func (d *StaticDirectory) AddPool(addr common.Address, pool Pool) {
	d.mu.Lock()
	d.pools[addr] = pool
	d.mu.Unlock()
}

func (d *StaticDirectory) PriceFeed(addr common.Address) (PriceFeed, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	feed, ok := d.feeds[addr]
	if !ok {
		return nil, fmt.Errorf("oracle: no price feed at %s", addr.Hex())
	}
	return feed, nil
}

func (d *StaticDirectory) Pool(addr common.Address) (Pool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pool, ok := d.pools[addr]
	if !ok {
		return nil, fmt.Errorf("oracle: no pool at %s", addr.Hex())
	}
	return pool, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
