package subscription

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cdfichain/core/errors"
	"cdfichain/core/events"
	"cdfichain/native/oracle"
)

const refundFailedReason = "Failed to send excess amount"

func nonexistentToken(id uint64) error {
	return coreerrors.Revertf("ERC721NonexistentToken(%d)", id)
}

// BuySubWithNative sells a subscription for native currency. value must
// already sit in the vault; the executor credits it before dispatch. Any
// excess over the required amount is returned to the caller. A failed return
// does not undo the purchase: it is reported through a Failed event and
// PurchaseResult.RefundErr.
func (e *Engine) BuySubWithNative(caller common.Address, value *big.Int, req PurchaseRequest) (*PurchaseResult, error) {
	if e.native == nil {
		return nil, errNilNativePricer
	}
	cfg, err := e.purchaseConfig()
	if err != nil {
		return nil, err
	}
	price, err := e.native.GetNativePrice(e.ctx)
	if err != nil {
		return nil, err
	}
	required := oracle.RequiredNative(cfg.PriceUSD, price)
	if value == nil || value.Cmp(required) < 0 {
		return nil, coreerrors.Revertf("Native value should be equal or bigger subscription price!")
	}
	id, err := e.mint(cfg, caller, req)
	if err != nil {
		return nil, err
	}

	result := &PurchaseResult{TokenID: id, Asset: AssetNative, Paid: new(big.Int).Set(required), Refunded: big.NewInt(0)}
	excess := new(big.Int).Sub(value, required)
	if excess.Sign() > 0 {
		if err := e.state.TransferNative(e.vault, caller, excess); err != nil {
			result.RefundErr = fmt.Errorf("subscription: refund %s to %s: %w", excess, caller.Hex(), err)
			e.emitter.Emit(events.Failed{Reason: refundFailedReason})
		} else {
			result.Refunded = excess
		}
	}
	e.emitPurchase(caller, result)
	return result, nil
}

// BuySubWithCDFi sells a subscription for the utility token, pulled from the
// caller against the allowance granted to the vault.
func (e *Engine) BuySubWithCDFi(caller common.Address, req PurchaseRequest) (*PurchaseResult, error) {
	if e.pool == nil {
		return nil, errNilPoolPricer
	}
	cfg, err := e.purchaseConfig()
	if err != nil {
		return nil, err
	}
	amount, err := e.pool.GetPriceInCDFi(e.ctx, oracle.PoolQuote{
		PriceUSD:        cfg.PriceUSD,
		DiscountPercent: cfg.DiscountPercent,
		CDFi:            cfg.CDFi,
		Stables:         cfg.Stables(),
	})
	if err != nil {
		return nil, err
	}
	if err := e.state.TokenTransferFrom(cfg.CDFi, e.vault, caller, e.vault, amount); err != nil {
		return nil, err
	}
	id, err := e.mint(cfg, caller, req)
	if err != nil {
		return nil, err
	}
	result := &PurchaseResult{TokenID: id, Asset: AssetCDFi, Paid: amount, Refunded: big.NewInt(0)}
	e.emitPurchase(caller, result)
	return result, nil
}

// BuySubWithStable sells a subscription for exactly PriceUSD of an accepted
// stablecoin.
func (e *Engine) BuySubWithStable(caller, stable common.Address, amount *big.Int, req PurchaseRequest) (*PurchaseResult, error) {
	cfg, err := e.purchaseConfig()
	if err != nil {
		return nil, err
	}
	if err := ValidateStablePayment(cfg, stable, amount); err != nil {
		return nil, err
	}
	if err := e.state.TokenTransferFrom(stable, e.vault, caller, e.vault, amount); err != nil {
		return nil, err
	}
	id, err := e.mint(cfg, caller, req)
	if err != nil {
		return nil, err
	}
	result := &PurchaseResult{TokenID: id, Asset: AssetStable, Paid: new(big.Int).Set(amount), Refunded: big.NewInt(0)}
	e.emitPurchase(caller, result)
	return result, nil
}

// purchaseConfig loads the config and enforces the supply cap.
func (e *Engine) purchaseConfig() (*Config, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	if new(big.Int).SetUint64(cfg.Minted).Cmp(cfg.MaxSupply) >= 0 {
		return nil, coreerrors.Revertf("Max supply reached!")
	}
	return cfg, nil
}

func (e *Engine) mint(cfg *Config, to common.Address, req PurchaseRequest) (uint64, error) {
	id, err := e.selectTokenID(cfg, req.TokenID)
	if err != nil {
		return 0, err
	}
	if err := e.state.NFTMint(e.vault, to, id, req.URI, req.AdditionalURI); err != nil {
		return 0, err
	}
	cfg.Minted++
	if id >= cfg.NextTokenID {
		cfg.NextTokenID = id + 1
	}
	if err := e.state.PutSubscriptionConfig(cfg); err != nil {
		return 0, err
	}
	return id, nil
}

// selectTokenID assigns ids from a monotonic counter. A requested id must be
// the next one, unless the collection allows caller-chosen ids, in which case
// any free id below the cap is accepted and a missing request takes the
// lowest free id.
func (e *Engine) selectTokenID(cfg *Config, requested *uint64) (uint64, error) {
	if !cfg.AllowCallerTokenID {
		if requested != nil && *requested != cfg.NextTokenID {
			return 0, coreerrors.Revertf("Token id must be the next sequential id")
		}
		return cfg.NextTokenID, nil
	}
	if requested == nil {
		// Minted ids occupy at most Minted slots of [0, Minted].
		for id := uint64(0); id <= cfg.Minted; id++ {
			_, taken, err := e.state.NFTOwnerOf(e.vault, id)
			if err != nil {
				return 0, err
			}
			if !taken {
				return id, nil
			}
		}
		return 0, coreerrors.Revertf("Max supply reached!")
	}
	id := *requested
	if new(big.Int).SetUint64(id).Cmp(cfg.MaxSupply) >= 0 {
		return 0, coreerrors.Revertf("Token id exceeds max supply")
	}
	_, taken, err := e.state.NFTOwnerOf(e.vault, id)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, coreerrors.Revertf("Token already minted")
	}
	return id, nil
}

func (e *Engine) emitPurchase(buyer common.Address, result *PurchaseResult) {
	e.emitter.Emit(events.SubscriptionPurchased{
		Buyer:   buyer,
		TokenID: result.TokenID,
		Asset:   result.Asset,
		Amount:  result.Paid,
	})
}
