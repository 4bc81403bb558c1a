package subscription

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cdfichain/core/errors"
)

// ValidateStablePayment accepts only the configured USDT or USDC and only an
// amount exactly equal to the USD price. Stables are assumed to carry 18
// decimals.
func ValidateStablePayment(cfg *Config, token common.Address, amount *big.Int) error {
	if cfg == nil {
		return errNotInitialised
	}
	if token == (common.Address{}) || (token != cfg.USDT && token != cfg.USDC) {
		return coreerrors.Revertf("Invalid stable address")
	}
	if amount == nil || cfg.PriceUSD == nil || amount.Cmp(cfg.PriceUSD) != 0 {
		return coreerrors.Revertf("Stable amount should be equal subscription price!")
	}
	return nil
}
