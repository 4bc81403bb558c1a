package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cdfichain/core/errors"
)

type bindingReader interface {
	Binding(chainID uint64) (*Binding, error)
}

// NativePriceResolver prices the native currency in USD through the feed
// bound to the active chain.
type NativePriceResolver struct {
	bindings  bindingReader
	directory Directory
	chainID   uint64
	maxAge    time.Duration
	nowFn     func() int64
}

func NewNativePriceResolver(bindings bindingReader, directory Directory, chainID uint64) *NativePriceResolver {
	return &NativePriceResolver{
		bindings:  bindings,
		directory: directory,
		chainID:   chainID,
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetMaxAge enables the staleness bound. Zero disables it, which is the
// default.
func (r *NativePriceResolver) SetMaxAge(maxAge time.Duration) { r.maxAge = maxAge }

func (r *NativePriceResolver) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// GetNativePrice returns USD per native unit at PriceDecimals precision.
func (r *NativePriceResolver) GetNativePrice(ctx context.Context) (*big.Int, error) {
	binding, err := r.bindings.Binding(r.chainID)
	if err != nil {
		return nil, err
	}
	if binding.Feed == (common.Address{}) {
		return nil, coreerrors.Revertf("feed not set")
	}
	feed, err := r.directory.PriceFeed(binding.Feed)
	if err != nil {
		return nil, err
	}
	round, err := feed.LatestRoundData(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: latest round: %w", err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, coreerrors.Revertf("invalid price")
	}
	if r.maxAge > 0 {
		now := r.nowFn()
		if round.UpdatedAt == 0 || now-int64(round.UpdatedAt) > int64(r.maxAge/time.Second) {
			return nil, coreerrors.Revertf("stale price")
		}
	}
	decimals, err := feed.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: decimals: %w", err)
	}
	price := scaleDecimals(round.Answer, decimals, PriceDecimals)
	if price.Sign() == 0 {
		return nil, coreerrors.Revertf("invalid price")
	}
	return price, nil
}

// RequiredNative converts a USD amount into native units:
// usd * 10^PriceDecimals / price, truncated.
func RequiredNative(usd, price *big.Int) *big.Int {
	if usd == nil || price == nil || price.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(usd, pow10(PriceDecimals))
	return out.Quo(out, price)
}

func scaleDecimals(v *big.Int, from, to uint8) *big.Int {
	out := new(big.Int).Set(v)
	switch {
	case from < to:
		out.Mul(out, pow10(to-from))
	case from > to:
		out.Quo(out, pow10(from-to))
	}
	return out
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
