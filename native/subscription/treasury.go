package subscription

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cdfichain/core/errors"
	"cdfichain/core/events"
	nativecommon "cdfichain/native/common"
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Withdraw sweeps the USDT, USDC and CDFi vault balances to receiver. One
// event per asset is emitted even when nothing was held.
func (e *Engine) Withdraw(caller, receiver common.Address) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if receiver == (common.Address{}) {
		return coreerrors.Revertf("Invalid receiver")
	}
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	sweeps := []struct {
		token common.Address
		kind  string
	}{
		{cfg.USDT, events.TypeUSDTWithdrawn},
		{cfg.USDC, events.TypeUSDCWithdrawn},
		{cfg.CDFi, events.TypeCDFiWithdrawn},
	}
	for _, sweep := range sweeps {
		amount := big.NewInt(0)
		if sweep.token != (common.Address{}) {
			amount, err = e.state.TokenBalance(sweep.token, e.vault)
			if err != nil {
				return err
			}
			if amount.Sign() > 0 {
				if err := e.state.TokenTransfer(sweep.token, e.vault, receiver, amount); err != nil {
					return err
				}
			}
		}
		e.emitter.Emit(events.Withdrawn{Kind: sweep.kind, Receiver: receiver, Amount: amount})
	}
	return nil
}

// WithdrawEther sends the whole native vault balance to receiver.
func (e *Engine) WithdrawEther(caller, receiver common.Address) (*big.Int, error) {
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if receiver == (common.Address{}) {
		return nil, coreerrors.Revertf("Invalid receiver")
	}
	balance, err := e.state.NativeBalance(e.vault)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, coreerrors.Revertf("No ether left to withdraw")
	}
	if err := e.state.TransferNative(e.vault, receiver, balance); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.Withdrawn{Kind: events.TypeNativeWithdrawn, Receiver: receiver, Amount: balance})
	return balance, nil
}

func (e *Engine) ChangeUSDTAddress(caller, addr common.Address) error {
	return e.updateConfig(caller, func(cfg *Config) (events.Event, error) {
		cfg.USDT = addr
		return events.AddressChanged{Kind: events.TypeAddressUSDTChanged, Address: addr}, nil
	})
}

func (e *Engine) ChangeUSDCAddress(caller, addr common.Address) error {
	return e.updateConfig(caller, func(cfg *Config) (events.Event, error) {
		cfg.USDC = addr
		return events.AddressChanged{Kind: events.TypeAddressUSDCChanged, Address: addr}, nil
	})
}

func (e *Engine) ChangeCDFiAddress(caller, addr common.Address) error {
	return e.updateConfig(caller, func(cfg *Config) (events.Event, error) {
		cfg.CDFi = addr
		return events.AddressChanged{Kind: events.TypeAddressCDFiChanged, Address: addr}, nil
	})
}

// SetMaxSupply raises or lowers the cap. It must stay above the minted count
// and above the highest id already minted.
func (e *Engine) SetMaxSupply(caller common.Address, n *big.Int) error {
	return e.updateConfig(caller, func(cfg *Config) (events.Event, error) {
		if n == nil || n.Sign() < 0 || n.Cmp(maxUint256) > 0 {
			return nil, coreerrors.Revertf("Max supply out of range")
		}
		if n.Cmp(new(big.Int).SetUint64(cfg.Minted)) <= 0 || n.Cmp(new(big.Int).SetUint64(cfg.NextTokenID)) < 0 {
			return nil, coreerrors.Revertf("New max supply must be greater than minted count")
		}
		cfg.MaxSupply = new(big.Int).Set(n)
		return events.MaxSupplyChanged{Amount: new(big.Int).Set(n)}, nil
	})
}

// SetCDFiDiscount sets the percentage taken off CDFi purchases.
func (e *Engine) SetCDFiDiscount(caller common.Address, percent uint64) error {
	return e.updateConfig(caller, func(cfg *Config) (events.Event, error) {
		if percent >= 100 || percent > math.MaxUint8 {
			return nil, coreerrors.Revertf("Discount must be less than 100")
		}
		cfg.DiscountPercent = uint8(percent)
		return events.CDFiDiscountChanged{Percent: uint8(percent)}, nil
	})
}

// SetSubPrice overwrites the USD price (18 decimals).
func (e *Engine) SetSubPrice(caller common.Address, price *big.Int) error {
	return e.updateConfig(caller, func(cfg *Config) (events.Event, error) {
		if price == nil || price.Sign() < 0 || price.Cmp(maxUint256) > 0 {
			return nil, coreerrors.Revertf("Price out of range")
		}
		cfg.PriceUSD = new(big.Int).Set(price)
		return events.PriceChanged{Amount: new(big.Int).Set(price)}, nil
	})
}

// TransferOwnership hands the subscription module, and with it the price
// registry, to newOwner.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return coreerrors.Revertf("OwnableInvalidOwner(%s)", newOwner.Hex())
	}
	if err := e.state.SetModuleOwner(nativecommon.ModuleSubscription, newOwner); err != nil {
		return err
	}
	e.emitter.Emit(events.OwnershipTransferred{Module: nativecommon.ModuleSubscription, Previous: caller, Owner: newOwner})
	return nil
}

func (e *Engine) updateConfig(caller common.Address, apply func(*Config) (events.Event, error)) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	cfg, err := e.Config()
	if err != nil {
		return err
	}
	evt, err := apply(cfg)
	if err != nil {
		return err
	}
	if err := e.state.PutSubscriptionConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(evt)
	return nil
}
