package evm

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cdfichain/native/oracle"
)

// fakeChain answers eth_call against canned return values keyed by contract
// and method.
type fakeChain struct {
	contracts map[common.Address]abi.ABI
	returns   map[common.Address]map[string][]interface{}
	calls     int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		contracts: make(map[common.Address]abi.ABI),
		returns:   make(map[common.Address]map[string][]interface{}),
	}
}

func (f *fakeChain) deploy(addr common.Address, parsed abi.ABI, returns map[string][]interface{}) {
	f.contracts[addr] = parsed
	f.returns[addr] = returns
}

func (f *fakeChain) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	if _, ok := f.contracts[contract]; ok {
		return []byte{0x60}, nil
	}
	return nil, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if msg.To == nil {
		return nil, fmt.Errorf("missing target")
	}
	parsed, ok := f.contracts[*msg.To]
	if !ok {
		return nil, nil
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	values, ok := f.returns[*msg.To][method.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return method.Outputs.Pack(values...)
}

var (
	feedAddr = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
	poolAddr = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	usdt     = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	cdfi     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func newTestDirectory(updatedAt int64) (*Directory, *fakeChain) {
	chain := newFakeChain()
	chain.deploy(feedAddr, parsedAggregator, map[string][]interface{}{
		"decimals": {uint8(8)},
		"latestRoundData": {
			big.NewInt(7), big.NewInt(300000000000), big.NewInt(updatedAt), big.NewInt(updatedAt), big.NewInt(7),
		},
	})
	chain.deploy(poolAddr, parsedPool, map[string][]interface{}{
		"token0": {usdt},
		"token1": {cdfi},
		"slot0": {
			new(big.Int).Lsh(big.NewInt(2), 96), big.NewInt(-120), uint16(1), uint16(1), uint16(1), uint8(0), true,
		},
	})
	return NewDirectory(chain), chain
}

func TestFeedReadsAggregator(t *testing.T) {
	dir, _ := newTestDirectory(1_700_000_000)
	feed, err := dir.PriceFeed(feedAddr)
	require.NoError(t, err)

	round, err := feed.LatestRoundData(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), round.RoundID.Int64())
	require.Equal(t, int64(300000000000), round.Answer.Int64())
	require.Equal(t, uint64(1_700_000_000), round.UpdatedAt)

	decimals, err := feed.Decimals(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint8(8), decimals)
}

func TestPoolReadsSlot0AndTokens(t *testing.T) {
	dir, _ := newTestDirectory(1)
	pool, err := dir.Pool(poolAddr)
	require.NoError(t, err)

	slot0, err := pool.Slot0(context.Background())
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Lsh(big.NewInt(2), 96), slot0.SqrtPriceX96)
	require.Equal(t, int32(-120), slot0.Tick)

	token0, err := pool.Token0(context.Background())
	require.NoError(t, err)
	require.Equal(t, usdt, token0)
	token1, err := pool.Token1(context.Background())
	require.NoError(t, err)
	require.Equal(t, cdfi, token1)
}

func TestDirectoryCachesBindings(t *testing.T) {
	dir, _ := newTestDirectory(1)
	a, err := dir.PriceFeed(feedAddr)
	require.NoError(t, err)
	b, err := dir.PriceFeed(feedAddr)
	require.NoError(t, err)
	require.Same(t, a, b)

	_, err = dir.PriceFeed(common.Address{})
	require.Error(t, err)
	_, err = dir.Pool(common.Address{})
	require.Error(t, err)
}

func TestMissingContractSurfacesError(t *testing.T) {
	dir, _ := newTestDirectory(1)
	feed, err := dir.PriceFeed(common.HexToAddress("0x01"))
	require.NoError(t, err)
	_, err = feed.LatestRoundData(context.Background())
	require.Error(t, err)
}

type fixedBindings struct{ binding *oracle.Binding }

func (f fixedBindings) Binding(uint64) (*oracle.Binding, error) { return f.binding, nil }

func TestResolversOverRemoteContracts(t *testing.T) {
	dir, _ := newTestDirectory(1_700_000_000)
	bindings := fixedBindings{binding: &oracle.Binding{ChainID: 1, Feed: feedAddr, Pool: poolAddr}}

	native := oracle.NewNativePriceResolver(bindings, dir, 1)
	price, err := native.GetNativePrice(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(300000000000), price.Int64())

	pool := oracle.NewPoolPriceResolver(bindings, dir, 1, native)
	usd := new(big.Int).Mul(big.NewInt(400), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	amount, err := pool.GetPriceInCDFi(context.Background(), oracle.PoolQuote{
		PriceUSD:        usd,
		DiscountPercent: 40,
		CDFi:            cdfi,
		Stables:         []common.Address{usdt},
	})
	require.NoError(t, err)
	want := new(big.Int).Mul(big.NewInt(960), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	require.Equal(t, want, amount)
}
