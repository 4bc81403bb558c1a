package common

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	coreerrors "cdfichain/core/errors"
)

type ownerMap map[string]ethcommon.Address

func (m ownerMap) ModuleOwner(module string) (ethcommon.Address, error) { return m[module], nil }

func TestRequireOwner(t *testing.T) {
	owner := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	other := ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
	view := ownerMap{ModuleSubscription: owner}

	if err := RequireOwner(view, ModuleSubscription, owner); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if err := RequireOwner(view, ModuleSubscription, other); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := RequireOwner(view, ModuleVestingTeam, ethcommon.Address{}); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("unowned module must reject, got %v", err)
	}
}

func TestModuleAddressDistinct(t *testing.T) {
	a := ModuleAddress(ModuleVestingTeam)
	b := ModuleAddress(ModuleVestingLiquidity)
	if a == b || a == (ethcommon.Address{}) {
		t.Fatalf("module addresses must be distinct and non-zero")
	}
	if a != ModuleAddress(ModuleVestingTeam) {
		t.Fatalf("module address must be deterministic")
	}
}
