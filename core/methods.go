package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/crypto"
	nativecommon "cdfichain/native/common"
	"cdfichain/native/subscription"
)

// Method names accepted by Execute.
const (
	MethodBuyWithNative     = "subscription_buyWithNative"
	MethodBuyWithCDFi       = "subscription_buyWithCDFi"
	MethodBuyWithStable     = "subscription_buyWithStable"
	MethodWithdraw          = "subscription_withdraw"
	MethodWithdrawEther     = "subscription_withdrawEther"
	MethodChangeUSDT        = "subscription_changeUSDT"
	MethodChangeUSDC        = "subscription_changeUSDC"
	MethodChangeCDFi        = "subscription_changeCDFi"
	MethodSetMaxSupply      = "subscription_setMaxSupply"
	MethodSetDiscount       = "subscription_setDiscount"
	MethodSetPrice          = "subscription_setPrice"
	MethodTransferOwnership = "subscription_transferOwnership"
	MethodUpdatePriceFeed   = "oracle_updatePriceFeed"
	MethodUpdatePool        = "oracle_updatePool"
	MethodVestingStart      = "vesting_start"
	MethodVestingWithdraw   = "vesting_withdraw"
	MethodVestingSetToken   = "vesting_setToken"
	MethodVestingSetWallet  = "vesting_setWallet"
	MethodTokenTransfer     = "token_transfer"
	MethodTokenApprove      = "token_approve"
	MethodNativeTransfer    = "native_transfer"
	MethodNFTTransfer       = "nft_transfer"
	MethodNFTApprove        = "nft_approve"
)

type callContext struct {
	from   common.Address
	value  *big.Int
	params json.RawMessage
}

type methodSpec struct {
	payable bool
	asset   string // purchase rail, for metrics
	run     func(*runtime, *callContext) (map[string]string, error)
}

var methods = map[string]methodSpec{
	MethodBuyWithNative: {payable: true, asset: subscription.AssetNative, run: buyWithNative},
	MethodBuyWithCDFi:   {asset: subscription.AssetCDFi, run: buyWithCDFi},
	MethodBuyWithStable: {asset: subscription.AssetStable, run: buyWithStable},
	MethodWithdraw:      {run: withdraw},
	MethodWithdrawEther: {run: withdrawEther},
	MethodChangeUSDT: {run: changeAddress(func(e *subscription.Engine) func(common.Address, common.Address) error {
		return e.ChangeUSDTAddress
	})},
	MethodChangeUSDC: {run: changeAddress(func(e *subscription.Engine) func(common.Address, common.Address) error {
		return e.ChangeUSDCAddress
	})},
	MethodChangeCDFi: {run: changeAddress(func(e *subscription.Engine) func(common.Address, common.Address) error {
		return e.ChangeCDFiAddress
	})},
	MethodSetMaxSupply:      {run: setMaxSupply},
	MethodSetDiscount:       {run: setDiscount},
	MethodSetPrice:          {run: setPrice},
	MethodTransferOwnership: {run: transferOwnership},
	MethodUpdatePriceFeed:   {run: updatePriceFeed},
	MethodUpdatePool:        {run: updatePool},
	MethodVestingStart:      {run: vestingStart},
	MethodVestingWithdraw:   {run: vestingWithdraw},
	MethodVestingSetToken:   {run: vestingSetToken},
	MethodVestingSetWallet:  {run: vestingSetWallet},
	MethodTokenTransfer:     {run: tokenTransfer},
	MethodTokenApprove:      {run: tokenApprove},
	MethodNativeTransfer:    {run: nativeTransfer},
	MethodNFTTransfer:       {run: subscriptionTransfer},
	MethodNFTApprove:        {run: subscriptionApprove},
}

// Methods lists the accepted method names.
func Methods() []string {
	out := make([]string, 0, len(methods))
	for name := range methods {
		out = append(out, name)
	}
	return out
}

// Param payloads. Amounts are base-10 integer strings and addresses accept
// 0x hex or bech32.

// PurchaseParams is shared by the three purchase methods. Stable and Amount
// are only read by subscription_buyWithStable.
type PurchaseParams struct {
	TokenID       *uint64 `json:"tokenId,omitempty"`
	URI           string  `json:"uri"`
	AdditionalURI string  `json:"additionalUri"`
	Stable        string  `json:"stable,omitempty"`
	Amount        string  `json:"amount,omitempty"`
}

type ReceiverParams struct {
	Receiver string `json:"receiver"`
}

type AddressParams struct {
	Address string `json:"address"`
}

type AmountParams struct {
	Amount string `json:"amount"`
}

type DiscountParams struct {
	Percent uint64 `json:"percent"`
}

type OwnerParams struct {
	Owner string `json:"owner"`
}

type BindingParams struct {
	ChainID uint64 `json:"chainId"`
	Address string `json:"address"`
}

type ScheduleParams struct {
	Schedule string `json:"schedule"`
	Address  string `json:"address,omitempty"`
}

type TransferParams struct {
	Token  string `json:"token,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApproveParams struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type NFTParams struct {
	To      string `json:"to"`
	TokenID uint64 `json:"tokenId"`
}

func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("core: invalid params: %w", err)
	}
	return nil
}

func parseAddress(field, value string) (common.Address, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("core: %s: %w", field, err)
	}
	return addr, nil
}

// ParseAmount parses a non-negative base-10 integer.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func purchaseResult(res *subscription.PurchaseResult) map[string]string {
	out := map[string]string{
		"tokenId":  strconv.FormatUint(res.TokenID, 10),
		"asset":    res.Asset,
		"paid":     res.Paid.String(),
		"refunded": res.Refunded.String(),
	}
	if res.RefundErr != nil {
		out["refundError"] = res.RefundErr.Error()
	}
	return out
}

func (p PurchaseParams) request() subscription.PurchaseRequest {
	return subscription.PurchaseRequest{TokenID: p.TokenID, URI: p.URI, AdditionalURI: p.AdditionalURI}
}

func buyWithNative(rt *runtime, call *callContext) (map[string]string, error) {
	var p PurchaseParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	res, err := rt.subscription.BuySubWithNative(call.from, call.value, p.request())
	if err != nil {
		return nil, err
	}
	return purchaseResult(res), nil
}

func buyWithCDFi(rt *runtime, call *callContext) (map[string]string, error) {
	var p PurchaseParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	res, err := rt.subscription.BuySubWithCDFi(call.from, p.request())
	if err != nil {
		return nil, err
	}
	return purchaseResult(res), nil
}

func buyWithStable(rt *runtime, call *callContext) (map[string]string, error) {
	var p PurchaseParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	stable, err := parseAddress("stable", p.Stable)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	res, err := rt.subscription.BuySubWithStable(call.from, stable, amount, p.request())
	if err != nil {
		return nil, err
	}
	return purchaseResult(res), nil
}

func withdraw(rt *runtime, call *callContext) (map[string]string, error) {
	var p ReceiverParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	receiver, err := parseAddress("receiver", p.Receiver)
	if err != nil {
		return nil, err
	}
	return nil, rt.subscription.Withdraw(call.from, receiver)
}

func withdrawEther(rt *runtime, call *callContext) (map[string]string, error) {
	var p ReceiverParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	receiver, err := parseAddress("receiver", p.Receiver)
	if err != nil {
		return nil, err
	}
	amount, err := rt.subscription.WithdrawEther(call.from, receiver)
	if err != nil {
		return nil, err
	}
	return map[string]string{"amount": amount.String()}, nil
}

func changeAddress(pick func(*subscription.Engine) func(common.Address, common.Address) error) func(*runtime, *callContext) (map[string]string, error) {
	return func(rt *runtime, call *callContext) (map[string]string, error) {
		var p AddressParams
		if err := decodeParams(call.params, &p); err != nil {
			return nil, err
		}
		addr, err := parseAddress("address", p.Address)
		if err != nil {
			return nil, err
		}
		return nil, pick(rt.subscription)(call.from, addr)
	}
}

func setMaxSupply(rt *runtime, call *callContext) (map[string]string, error) {
	var p AmountParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	return nil, rt.subscription.SetMaxSupply(call.from, amount)
}

func setDiscount(rt *runtime, call *callContext) (map[string]string, error) {
	var p DiscountParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	return nil, rt.subscription.SetCDFiDiscount(call.from, p.Percent)
}

func setPrice(rt *runtime, call *callContext) (map[string]string, error) {
	var p AmountParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	return nil, rt.subscription.SetSubPrice(call.from, amount)
}

func transferOwnership(rt *runtime, call *callContext) (map[string]string, error) {
	var p OwnerParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	return nil, rt.subscription.TransferOwnership(call.from, owner)
}

func updatePriceFeed(rt *runtime, call *callContext) (map[string]string, error) {
	var p BindingParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	feed, err := parseAddress("address", p.Address)
	if err != nil {
		return nil, err
	}
	return nil, rt.registry.UpdateChainlinkPriceFeed(call.from, p.ChainID, feed)
}

func updatePool(rt *runtime, call *callContext) (map[string]string, error) {
	var p BindingParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	pool, err := parseAddress("address", p.Address)
	if err != nil {
		return nil, err
	}
	return nil, rt.registry.UpdateV3Pools(call.from, p.ChainID, pool)
}

func vestingStart(rt *runtime, call *callContext) (map[string]string, error) {
	var p ScheduleParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	s, err := rt.schedule(p.Schedule)
	if err != nil {
		return nil, err
	}
	return nil, s.StartVesting(call.from)
}

func vestingWithdraw(rt *runtime, call *callContext) (map[string]string, error) {
	var p ScheduleParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	s, err := rt.schedule(p.Schedule)
	if err != nil {
		return nil, err
	}
	amount, err := s.WithdrawVestedTokens(call.from)
	if err != nil {
		return nil, err
	}
	return map[string]string{"amount": amount.String()}, nil
}

func vestingSetToken(rt *runtime, call *callContext) (map[string]string, error) {
	var p ScheduleParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	s, err := rt.schedule(p.Schedule)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("address", p.Address)
	if err != nil {
		return nil, err
	}
	return nil, s.SetTokenAddress(call.from, token)
}

func vestingSetWallet(rt *runtime, call *callContext) (map[string]string, error) {
	var p ScheduleParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	s, err := rt.schedule(p.Schedule)
	if err != nil {
		return nil, err
	}
	wallet, err := parseAddress("address", p.Address)
	if err != nil {
		return nil, err
	}
	return nil, s.SetTeamWallet(call.from, wallet)
}

func tokenTransfer(rt *runtime, call *callContext) (map[string]string, error) {
	var p TransferParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	token, err := parseAddress("token", p.Token)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", p.To)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	return nil, rt.state.TokenTransfer(token, call.from, to, amount)
}

func tokenApprove(rt *runtime, call *callContext) (map[string]string, error) {
	var p ApproveParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	token, err := parseAddress("token", p.Token)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", p.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	return nil, rt.state.TokenApprove(token, call.from, spender, amount)
}

func nativeTransfer(rt *runtime, call *callContext) (map[string]string, error) {
	var p TransferParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	to, err := parseAddress("to", p.To)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	return nil, rt.state.TransferNative(call.from, to, amount)
}

// Subscriptions live in the collection keyed by the subscription vault.
func subscriptionCollection() common.Address {
	return nativecommon.ModuleAddress(nativecommon.ModuleSubscription)
}

func subscriptionTransfer(rt *runtime, call *callContext) (map[string]string, error) {
	var p NFTParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	to, err := parseAddress("to", p.To)
	if err != nil {
		return nil, err
	}
	return nil, rt.state.NFTTransfer(subscriptionCollection(), call.from, to, p.TokenID)
}

func subscriptionApprove(rt *runtime, call *callContext) (map[string]string, error) {
	var p NFTParams
	if err := decodeParams(call.params, &p); err != nil {
		return nil, err
	}
	approved, err := parseAddress("to", p.To)
	if err != nil {
		return nil, err
	}
	return nil, rt.state.NFTApprove(subscriptionCollection(), call.from, approved, p.TokenID)
}
