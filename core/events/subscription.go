package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core/types"
)

const (
	TypeAddressUSDTChanged    = "AddressUSDTChanged"
	TypeAddressUSDCChanged    = "AddressUSDCChanged"
	TypeAddressCDFiChanged    = "AddressCDFiChanged"
	TypeMaxSupplyChanged      = "MaxSupplyChanged"
	TypeCDFiDiscountChanged   = "CDFiDiscountChanged"
	TypePriceChanged          = "PriceChanged"
	TypeUSDTWithdrawn         = "USDTWithdrawn"
	TypeUSDCWithdrawn         = "USDCWithdrawn"
	TypeCDFiWithdrawn         = "CDFiWithdrawn"
	TypeNativeWithdrawn       = "NativeWithdrawn"
	TypeFailed                = "Failed"
	TypeSubscriptionPurchased = "SubscriptionPurchased"
	TypeOwnershipTransferred  = "OwnershipTransferred"
)

// AddressChanged covers the three accepted-token rebinding events. Kind is
// one of the TypeAddress*Changed constants.
type AddressChanged struct {
	Kind    string
	Address common.Address
}

func (e AddressChanged) EventType() string { return e.Kind }

func (e AddressChanged) Event() *types.Event {
	return &types.Event{
		Type:       e.Kind,
		Attributes: map[string]string{"address": addressString(e.Address)},
	}
}

type MaxSupplyChanged struct {
	Amount *big.Int
}

func (MaxSupplyChanged) EventType() string { return TypeMaxSupplyChanged }

func (e MaxSupplyChanged) Event() *types.Event {
	return &types.Event{
		Type:       TypeMaxSupplyChanged,
		Attributes: map[string]string{"amount": amountString(e.Amount)},
	}
}

type CDFiDiscountChanged struct {
	Percent uint8
}

func (CDFiDiscountChanged) EventType() string { return TypeCDFiDiscountChanged }

func (e CDFiDiscountChanged) Event() *types.Event {
	return &types.Event{
		Type:       TypeCDFiDiscountChanged,
		Attributes: map[string]string{"percent": strconv.FormatUint(uint64(e.Percent), 10)},
	}
}

type PriceChanged struct {
	Amount *big.Int
}

func (PriceChanged) EventType() string { return TypePriceChanged }

func (e PriceChanged) Event() *types.Event {
	return &types.Event{
		Type:       TypePriceChanged,
		Attributes: map[string]string{"amount": amountString(e.Amount)},
	}
}

// Withdrawn reports a treasury sweep. Kind is one of the Type*Withdrawn
// constants.
type Withdrawn struct {
	Kind     string
	Receiver common.Address
	Amount   *big.Int
}

func (e Withdrawn) EventType() string { return e.Kind }

func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"receiver": addressString(e.Receiver),
			"amount":   amountString(e.Amount),
		},
	}
}

// Failed signals a secondary step that failed without aborting the call.
type Failed struct {
	Reason string
}

func (Failed) EventType() string { return TypeFailed }

func (e Failed) Event() *types.Event {
	return &types.Event{
		Type:       TypeFailed,
		Attributes: map[string]string{"reason": e.Reason},
	}
}

type SubscriptionPurchased struct {
	Buyer   common.Address
	TokenID uint64
	Asset   string
	Amount  *big.Int
}

func (SubscriptionPurchased) EventType() string { return TypeSubscriptionPurchased }

func (e SubscriptionPurchased) Event() *types.Event {
	return &types.Event{
		Type: TypeSubscriptionPurchased,
		Attributes: map[string]string{
			"buyer":   addressString(e.Buyer),
			"tokenId": strconv.FormatUint(e.TokenID, 10),
			"asset":   e.Asset,
			"amount":  amountString(e.Amount),
		},
	}
}

type OwnershipTransferred struct {
	Module   string
	Previous common.Address
	Owner    common.Address
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

func (e OwnershipTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnershipTransferred,
		Attributes: map[string]string{
			"module":   e.Module,
			"previous": addressString(e.Previous),
			"owner":    addressString(e.Owner),
		},
	}
}
