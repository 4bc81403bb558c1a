package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cdfichain/core/errors"
)

// q192 is 2^192, the denominator of sqrtPriceX96 squared.
var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PoolQuote carries the subscription terms the pool price is computed for.
type PoolQuote struct {
	PriceUSD        *big.Int
	DiscountPercent uint8
	CDFi            common.Address
	Stables         []common.Address
}

// PoolPriceResolver prices the subscription in the utility token through the
// pool bound to the active chain.
type PoolPriceResolver struct {
	bindings  bindingReader
	directory Directory
	chainID   uint64
	native    *NativePriceResolver
}

func NewPoolPriceResolver(bindings bindingReader, directory Directory, chainID uint64, native *NativePriceResolver) *PoolPriceResolver {
	return &PoolPriceResolver{bindings: bindings, directory: directory, chainID: chainID, native: native}
}

// GetPriceInCDFi returns the discounted utility token amount equal to the
// USD price. The pool's counter asset is valued at 1 USD when it is one of
// the accepted stables, otherwise it is treated as wrapped native and valued
// through the native feed. The result is truncated.
func (r *PoolPriceResolver) GetPriceInCDFi(ctx context.Context, q PoolQuote) (*big.Int, error) {
	binding, err := r.bindings.Binding(r.chainID)
	if err != nil {
		return nil, err
	}
	if binding.Pool == (common.Address{}) {
		return nil, coreerrors.Revertf("Pool does not exist.")
	}
	pool, err := r.directory.Pool(binding.Pool)
	if err != nil {
		return nil, err
	}
	token0, err := pool.Token0(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: token0: %w", err)
	}
	token1, err := pool.Token1(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: token1: %w", err)
	}
	var counter common.Address
	cdfiIsToken0 := false
	switch q.CDFi {
	case token0:
		counter, cdfiIsToken0 = token1, true
	case token1:
		counter = token0
	default:
		return nil, coreerrors.Revertf("Pool does not contain CDFi")
	}
	slot0, err := pool.Slot0(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: slot0: %w", err)
	}
	if slot0.SqrtPriceX96 == nil || slot0.SqrtPriceX96.Sign() == 0 {
		return new(big.Int), nil
	}

	// CDFi per unit of the counter asset.
	sq := new(big.Int).Mul(slot0.SqrtPriceX96, slot0.SqrtPriceX96)
	rateNum, rateDen := sq, q192
	if cdfiIsToken0 {
		rateNum, rateDen = q192, sq
	}

	price := q.PriceUSD
	if price == nil {
		price = new(big.Int)
	}
	pairNum, pairDen := new(big.Int).Set(price), big.NewInt(1)
	if !containsAddress(q.Stables, counter) {
		nativePrice, err := r.native.GetNativePrice(ctx)
		if err != nil {
			return nil, err
		}
		pairNum.Mul(pairNum, pow10(PriceDecimals))
		pairDen = nativePrice
	}

	discount := uint64(q.DiscountPercent)
	if discount > 100 {
		discount = 100
	}
	num := new(big.Int).Mul(pairNum, rateNum)
	num.Mul(num, new(big.Int).SetUint64(100-discount))
	den := new(big.Int).Mul(pairDen, rateDen)
	den.Mul(den, big.NewInt(100))
	return num.Quo(num, den), nil
}

func containsAddress(list []common.Address, addr common.Address) bool {
	if addr == (common.Address{}) {
		return false
	}
	for _, candidate := range list {
		if candidate == addr {
			return true
		}
	}
	return false
}
