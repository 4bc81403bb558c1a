package types

import "github.com/ethereum/go-ethereum/common"

const (
	ReceiptStatusFailed  uint64 = 0
	ReceiptStatusSuccess uint64 = 1
)

// Receipt records the outcome of an executed transaction. A failed receipt
// carries no events: the state changes of the call were discarded.
type Receipt struct {
	TxHash       common.Hash       `json:"txHash"`
	From         common.Address    `json:"from"`
	Method       string            `json:"method"`
	Status       uint64            `json:"status"`
	RevertReason string            `json:"revertReason,omitempty"`
	Events       []Event           `json:"events"`
	Result       map[string]string `json:"result,omitempty"`
	Height       uint64            `json:"height"`
	StateRoot    common.Hash       `json:"stateRoot"`
}

func (r *Receipt) Succeeded() bool { return r != nil && r.Status == ReceiptStatusSuccess }
