package vesting

import (
	"time"

	nativecommon "cdfichain/native/common"
)

const (
	ScheduleTeam      = "team"
	ScheduleLiquidity = "liquidity"
)

// Params fixes the timing of one schedule. ID names it in state and events;
// Module names its owner slot and vault.
type Params struct {
	ID       string
	Module   string
	Cliff    time.Duration
	Duration time.Duration
}

// TeamParams releases linearly over two years with claims open from the start.
func TeamParams() Params {
	return Params{
		ID:       ScheduleTeam,
		Module:   nativecommon.ModuleVestingTeam,
		Cliff:    0,
		Duration: 730 * 24 * time.Hour,
	}
}

// LiquidityParams releases linearly over ninety days after a 29 minute cliff.
func LiquidityParams() Params {
	return Params{
		ID:       ScheduleLiquidity,
		Module:   nativecommon.ModuleVestingLiquidity,
		Cliff:    29 * time.Minute,
		Duration: 90 * 24 * time.Hour,
	}
}
