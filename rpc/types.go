package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"

	"cdfichain/core"
	"cdfichain/core/types"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeRateLimited    = -32020
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string { return e.Message }

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data, status: http.StatusBadRequest}
}

func serverError(message string, err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: message, Data: err.Error(), status: http.StatusInternalServerError}
}

func notFound(message string) *RPCError {
	return &RPCError{Code: codeNotFound, Message: message, status: http.StatusNotFound}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// ReceiptResult is the wire form of an executed transaction.
type ReceiptResult struct {
	TxHash       string            `json:"txHash"`
	From         string            `json:"from"`
	Method       string            `json:"method"`
	Status       uint64            `json:"status"`
	RevertReason string            `json:"revertReason,omitempty"`
	Events       []types.Event     `json:"events"`
	Result       map[string]string `json:"result,omitempty"`
	Height       uint64            `json:"height"`
	StateRoot    string            `json:"stateRoot"`
}

func receiptResult(r *types.Receipt) ReceiptResult {
	evts := r.Events
	if evts == nil {
		evts = []types.Event{}
	}
	return ReceiptResult{
		TxHash:       r.TxHash.Hex(),
		From:         r.From.Hex(),
		Method:       r.Method,
		Status:       r.Status,
		RevertReason: r.RevertReason,
		Events:       evts,
		Result:       r.Result,
		Height:       r.Height,
		StateRoot:    r.StateRoot.Hex(),
	}
}

// ConfigResult describes the subscription collection and its terms.
type ConfigResult struct {
	Name               string `json:"name"`
	Symbol             string `json:"symbol"`
	Owner              string `json:"owner"`
	Vault              string `json:"vault"`
	PriceUSD           string `json:"priceUsd"`
	DiscountPercent    uint8  `json:"discountPercent"`
	MaxSupply          string `json:"maxSupply"`
	TotalMinted        uint64 `json:"totalMinted"`
	USDT               string `json:"usdt"`
	USDC               string `json:"usdc"`
	CDFi               string `json:"cdfi"`
	AllowCallerTokenID bool   `json:"allowCallerTokenId"`
	ChainID            uint64 `json:"chainId"`
	Height             uint64 `json:"height"`
}

func configResult(node *core.Node, info *core.SubscriptionInfo) ConfigResult {
	cfg := info.Config
	return ConfigResult{
		Name:               cfg.Name,
		Symbol:             cfg.Symbol,
		Owner:              info.Owner.Hex(),
		Vault:              info.Vault.Hex(),
		PriceUSD:           bigString(cfg.PriceUSD),
		DiscountPercent:    cfg.DiscountPercent,
		MaxSupply:          bigString(cfg.MaxSupply),
		TotalMinted:        cfg.Minted,
		USDT:               cfg.USDT.Hex(),
		USDC:               cfg.USDC.Hex(),
		CDFi:               cfg.CDFi.Hex(),
		AllowCallerTokenID: cfg.AllowCallerTokenID,
		ChainID:            node.ChainID(),
		Height:             node.Height(),
	}
}

// VestingResult is a schedule snapshot at the node's current time.
type VestingResult struct {
	Schedule    string `json:"schedule"`
	Phase       string `json:"phase"`
	Token       string `json:"token"`
	Beneficiary string `json:"beneficiary"`
	Vault       string `json:"vault"`
	StartTime   uint64 `json:"startTime"`
	Cliff       int64  `json:"cliffSeconds"`
	Duration    int64  `json:"durationSeconds"`
	Balance     string `json:"balance"`
	Claimed     string `json:"claimed"`
	Vested      string `json:"vested"`
	Releasable  string `json:"releasable"`
}

func vestingResult(info *core.VestingInfo) VestingResult {
	return VestingResult{
		Schedule:    info.Params.ID,
		Phase:       string(info.Phase),
		Token:       info.State.Token.Hex(),
		Beneficiary: info.State.Beneficiary.Hex(),
		Vault:       info.Vault.Hex(),
		StartTime:   info.State.StartTime,
		Cliff:       int64(info.Params.Cliff.Seconds()),
		Duration:    int64(info.Params.Duration.Seconds()),
		Balance:     bigString(info.Balance),
		Claimed:     bigString(info.State.Claimed),
		Vested:      bigString(info.Vested),
		Releasable:  bigString(info.Releasable),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
