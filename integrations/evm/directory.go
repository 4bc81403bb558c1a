// Package evm reads Chainlink aggregators and Uniswap V3 pools from an
// Ethereum JSON-RPC endpoint so the oracle resolvers can price against live
// contracts.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"cdfichain/native/oracle"
)

const aggregatorABI = `[
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"name":"latestRoundData","type":"function","stateMutability":"view","inputs":[],"outputs":[
    {"name":"roundId","type":"uint80"},
    {"name":"answer","type":"int256"},
    {"name":"startedAt","type":"uint256"},
    {"name":"updatedAt","type":"uint256"},
    {"name":"answeredInRound","type":"uint80"}]}
]`

const poolABI = `[
  {"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"name":"token1","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"name":"slot0","type":"function","stateMutability":"view","inputs":[],"outputs":[
    {"name":"sqrtPriceX96","type":"uint160"},
    {"name":"tick","type":"int24"},
    {"name":"observationIndex","type":"uint16"},
    {"name":"observationCardinality","type":"uint16"},
    {"name":"observationCardinalityNext","type":"uint16"},
    {"name":"feeProtocol","type":"uint8"},
    {"name":"unlocked","type":"bool"}]}
]`

var (
	parsedAggregator = mustParseABI(aggregatorABI)
	parsedPool       = mustParseABI(poolABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("evm: parse abi: %v", err))
	}
	return parsed
}

// Directory binds oracle addresses to contracts on a remote chain. Bound
// contracts are cached per address.
type Directory struct {
	caller bind.ContractCaller
	closer func()

	mu    sync.Mutex
	feeds map[common.Address]*Feed
	pools map[common.Address]*Pool
}

var _ oracle.Directory = (*Directory)(nil)

// Dial connects to rawURL and returns a directory over it.
func Dial(ctx context.Context, rawURL string) (*Directory, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", rawURL, err)
	}
	d := NewDirectory(client)
	d.closer = client.Close
	return d, nil
}

// NewDirectory wraps an existing contract caller.
func NewDirectory(caller bind.ContractCaller) *Directory {
	return &Directory{
		caller: caller,
		feeds:  make(map[common.Address]*Feed),
		pools:  make(map[common.Address]*Pool),
	}
}

// Close releases the RPC client when the directory owns one.
func (d *Directory) Close() {
	if d.closer != nil {
		d.closer()
	}
}

func (d *Directory) PriceFeed(addr common.Address) (oracle.PriceFeed, error) {
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("evm: zero price feed address")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if feed, ok := d.feeds[addr]; ok {
		return feed, nil
	}
	feed := &Feed{contract: bind.NewBoundContract(addr, parsedAggregator, d.caller, nil, nil)}
	d.feeds[addr] = feed
	return feed, nil
}

func (d *Directory) Pool(addr common.Address) (oracle.Pool, error) {
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("evm: zero pool address")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if pool, ok := d.pools[addr]; ok {
		return pool, nil
	}
	pool := &Pool{contract: bind.NewBoundContract(addr, parsedPool, d.caller, nil, nil)}
	d.pools[addr] = pool
	return pool, nil
}

// Feed is a Chainlink aggregator read over RPC.
type Feed struct {
	contract *bind.BoundContract
}

func (f *Feed) LatestRoundData(ctx context.Context) (oracle.RoundData, error) {
	var out []interface{}
	if err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "latestRoundData"); err != nil {
		return oracle.RoundData{}, fmt.Errorf("evm: latestRoundData: %w", err)
	}
	if len(out) != 5 {
		return oracle.RoundData{}, fmt.Errorf("evm: latestRoundData: unexpected %d outputs", len(out))
	}
	roundID := *abi.ConvertType(out[0], new(big.Int)).(*big.Int)
	answer := *abi.ConvertType(out[1], new(big.Int)).(*big.Int)
	updatedAt := *abi.ConvertType(out[3], new(big.Int)).(*big.Int)
	if !updatedAt.IsUint64() {
		return oracle.RoundData{}, fmt.Errorf("evm: latestRoundData: updatedAt %s out of range", updatedAt.String())
	}
	return oracle.RoundData{RoundID: &roundID, Answer: &answer, UpdatedAt: updatedAt.Uint64()}, nil
}

func (f *Feed) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("evm: decimals: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Pool is a Uniswap V3 pool read over RPC.
type Pool struct {
	contract *bind.BoundContract
}

func (p *Pool) Slot0(ctx context.Context) (oracle.Slot0, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "slot0"); err != nil {
		return oracle.Slot0{}, fmt.Errorf("evm: slot0: %w", err)
	}
	if len(out) != 7 {
		return oracle.Slot0{}, fmt.Errorf("evm: slot0: unexpected %d outputs", len(out))
	}
	sqrtP := *abi.ConvertType(out[0], new(big.Int)).(*big.Int)
	tick := *abi.ConvertType(out[1], new(big.Int)).(*big.Int)
	return oracle.Slot0{SqrtPriceX96: &sqrtP, Tick: int32(tick.Int64())}, nil
}

func (p *Pool) Token0(ctx context.Context) (common.Address, error) {
	return p.token(ctx, "token0")
}

func (p *Pool) Token1(ctx context.Context) (common.Address, error) {
	return p.token(ctx, "token1")
}

func (p *Pool) token(ctx context.Context, method string) (common.Address, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return common.Address{}, fmt.Errorf("evm: %s: %w", method, err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
