package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core/types"
)

const (
	TypeVestingStarted     = "VestingStarted"
	TypeTokenAddressSetted = "TokenAddressSetted"
	TypeTeamWalletChanged  = "TeamWalletChanged"
	TypeTokenClaimed       = "TokenClaimed"
)

// Every vesting event carries the schedule id so the team and liquidity
// streams can be told apart downstream.

type VestingStarted struct {
	Schedule  string
	StartTime uint64
}

func (VestingStarted) EventType() string { return TypeVestingStarted }

func (e VestingStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeVestingStarted,
		Attributes: map[string]string{
			"schedule":  e.Schedule,
			"startTime": strconv.FormatUint(e.StartTime, 10),
		},
	}
}

type TokenAddressSetted struct {
	Schedule string
	Token    common.Address
}

func (TokenAddressSetted) EventType() string { return TypeTokenAddressSetted }

func (e TokenAddressSetted) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenAddressSetted,
		Attributes: map[string]string{
			"schedule": e.Schedule,
			"address":  addressString(e.Token),
		},
	}
}

type TeamWalletChanged struct {
	Schedule string
	Wallet   common.Address
}

func (TeamWalletChanged) EventType() string { return TypeTeamWalletChanged }

func (e TeamWalletChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeTeamWalletChanged,
		Attributes: map[string]string{
			"schedule": e.Schedule,
			"address":  addressString(e.Wallet),
		},
	}
}

type TokenClaimed struct {
	Schedule    string
	Beneficiary common.Address
	Amount      *big.Int
}

func (TokenClaimed) EventType() string { return TypeTokenClaimed }

func (e TokenClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenClaimed,
		Attributes: map[string]string{
			"schedule":    e.Schedule,
			"beneficiary": addressString(e.Beneficiary),
			"amount":      amountString(e.Amount),
		},
	}
}
