package common

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "cdfichain/core/errors"
)

// Module identifiers. Each owns an owner slot and a vault address in state.
const (
	ModuleSubscription     = "subscription"
	ModuleVestingTeam      = "vesting.team"
	ModuleVestingLiquidity = "vesting.liquidity"
)

// OwnerView exposes the owner slot of a module.
type OwnerView interface {
	ModuleOwner(module string) (ethcommon.Address, error)
}

// RequireOwner fails with an authorization error unless caller owns module.
// A module without an owner rejects everyone.
func RequireOwner(view OwnerView, module string, caller ethcommon.Address) error {
	if view == nil {
		return fmt.Errorf("%s: owner view not configured", module)
	}
	owner, err := view.ModuleOwner(module)
	if err != nil {
		return err
	}
	if owner == (ethcommon.Address{}) || owner != caller {
		return coreerrors.Unauthorized(caller)
	}
	return nil
}

// ModuleAddress derives the account that holds a module's funds.
func ModuleAddress(module string) ethcommon.Address {
	return ethcommon.BytesToAddress(ethcrypto.Keccak256([]byte("cdfichain/module/" + module))[12:])
}
