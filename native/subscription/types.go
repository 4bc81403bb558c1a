package subscription

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Payment rails, used as the asset label on purchase events.
const (
	AssetNative = "native"
	AssetCDFi   = "cdfi"
	AssetStable = "stable"
)

// Config is the singleton subscription configuration. The owner lives in the
// module owner slot rather than here.
type Config struct {
	Name               string
	Symbol             string
	PriceUSD           *big.Int
	DiscountPercent    uint8
	MaxSupply          *big.Int
	USDT               common.Address
	USDC               common.Address
	CDFi               common.Address
	Minted             uint64
	NextTokenID        uint64
	AllowCallerTokenID bool
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.PriceUSD = cloneBigInt(c.PriceUSD)
	out.MaxSupply = cloneBigInt(c.MaxSupply)
	return &out
}

// Stables returns the accepted stablecoin slots.
func (c *Config) Stables() []common.Address {
	return []common.Address{c.USDT, c.USDC}
}

// PurchaseRequest carries the caller's mint parameters. TokenID is optional;
// when nil the engine assigns the id.
type PurchaseRequest struct {
	TokenID       *uint64
	URI           string
	AdditionalURI string
}

// PurchaseResult describes a committed purchase. RefundErr is set when the
// purchase went through but returning the excess native value failed.
type PurchaseResult struct {
	TokenID   uint64
	Asset     string
	Paid      *big.Int
	Refunded  *big.Int
	RefundErr error
}

// Token is a minted subscription.
type Token struct {
	ID            uint64
	Owner         common.Address
	URI           string
	AdditionalURI string
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
