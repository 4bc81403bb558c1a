package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core/types"
)

const (
	TypePriceFeedChanged = "PriceFeedChanged"
	TypePoolChanged      = "PoolChanged"
)

type PriceFeedChanged struct {
	ChainID uint64
	Feed    common.Address
}

func (PriceFeedChanged) EventType() string { return TypePriceFeedChanged }

func (e PriceFeedChanged) Event() *types.Event {
	return &types.Event{
		Type: TypePriceFeedChanged,
		Attributes: map[string]string{
			"chainId": strconv.FormatUint(e.ChainID, 10),
			"address": addressString(e.Feed),
		},
	}
}

type PoolChanged struct {
	ChainID uint64
	Pool    common.Address
}

func (PoolChanged) EventType() string { return TypePoolChanged }

func (e PoolChanged) Event() *types.Event {
	return &types.Event{
		Type: TypePoolChanged,
		Attributes: map[string]string{
			"chainId": strconv.FormatUint(e.ChainID, 10),
			"address": addressString(e.Pool),
		},
	}
}
