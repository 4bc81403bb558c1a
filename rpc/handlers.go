package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core"
	coreerrors "cdfichain/core/errors"
	"cdfichain/core/types"
	"cdfichain/crypto"
)

type handlerFunc func(s *Server, r *http.Request, params []json.RawMessage) (interface{}, *RPCError)

var handlers = map[string]handlerFunc{
	"cdfi_sendTransaction":  (*Server).handleSendTransaction,
	"cdfi_chainId":          (*Server).handleChainID,
	"cdfi_getNativePrice":   (*Server).handleNativePrice,
	"cdfi_getPriceInCDFi":   (*Server).handlePriceInCDFi,
	"cdfi_requiredNative":   (*Server).handleRequiredNative,
	"cdfi_getConfig":        (*Server).handleGetConfig,
	"cdfi_priceFeed":        (*Server).handlePriceFeed,
	"cdfi_pool":             (*Server).handlePool,
	"cdfi_ownerOf":          (*Server).handleOwnerOf,
	"cdfi_tokenURI":         (*Server).handleTokenURI,
	"cdfi_getAdditionalURI": (*Server).handleAdditionalURI,
	"cdfi_balance":          (*Server).handleBalance,
	"cdfi_allowance":        (*Server).handleAllowance,
	"cdfi_nonce":            (*Server).handleNonce,
	"cdfi_getReceipt":       (*Server).handleGetReceipt,
	"cdfi_getEvents":        (*Server).handleGetEvents,
	"vesting_get":           (*Server).handleVestingGet,
	"vesting_vestedAmount":  (*Server).handleVestedAmount,
}

func (s *Server) dispatch(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	handler, ok := handlers[req.Method]
	if !ok {
		return nil, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method), status: http.StatusNotFound}
	}
	return handler(s, r, req.Params)
}

// queryError maps engine failures on reads. Reverts are caller mistakes such
// as an unknown token id.
func queryError(message string, err error) *RPCError {
	if coreerrors.IsRevert(err) {
		return &RPCError{Code: codeServerError, Message: coreerrors.RevertReason(err), status: http.StatusBadRequest}
	}
	return serverError(message, err)
}

func requireParams(params []json.RawMessage, n int) *RPCError {
	if len(params) < n {
		return invalidParams(fmt.Sprintf("expected %d parameter(s)", n), nil)
	}
	return nil
}

func stringParam(raw json.RawMessage, name string) (string, *RPCError) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", invalidParams(fmt.Sprintf("%s must be a string", name), nil)
	}
	return strings.TrimSpace(value), nil
}

func addressParam(raw json.RawMessage, name string) (common.Address, *RPCError) {
	value, rpcErr := stringParam(raw, name)
	if rpcErr != nil {
		return common.Address{}, rpcErr
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, invalidParams(fmt.Sprintf("invalid %s", name), err.Error())
	}
	return addr, nil
}

// uintParam accepts a JSON number or a decimal string.
func uintParam(raw json.RawMessage, name string) (uint64, *RPCError) {
	var number uint64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, nil
	}
	value, rpcErr := stringParam(raw, name)
	if rpcErr != nil {
		return 0, invalidParams(fmt.Sprintf("%s must be an unsigned integer", name), nil)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, invalidParams(fmt.Sprintf("%s must be an unsigned integer", name), err.Error())
	}
	return parsed, nil
}

func optionalChainID(s *Server, params []json.RawMessage) (uint64, *RPCError) {
	if len(params) == 0 {
		return s.node.ChainID(), nil
	}
	return uintParam(params[0], "chainId")
}

func (s *Server) handleSendTransaction(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	var tx types.Transaction
	if err := json.Unmarshal(params[0], &tx); err != nil {
		return nil, invalidParams("invalid transaction format", err.Error())
	}
	receipt, err := s.node.Execute(r.Context(), &tx)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidSignature),
			errors.Is(err, core.ErrInvalidChainID),
			errors.Is(err, core.ErrInvalidNonce),
			errors.Is(err, core.ErrUnknownMethod),
			errors.Is(err, core.ErrNotPayable):
			return nil, invalidParams(err.Error(), nil)
		default:
			return nil, serverError("failed to execute transaction", err)
		}
	}
	return receiptResult(receipt), nil
}

func (s *Server) handleChainID(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	return map[string]uint64{"chainId": s.node.ChainID(), "height": s.node.Height()}, nil
}

func (s *Server) handleNativePrice(r *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	price, err := s.node.NativePrice(r.Context())
	if err != nil {
		return nil, queryError("failed to read native price", err)
	}
	return price.String(), nil
}

func (s *Server) handlePriceInCDFi(r *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	price, err := s.node.PriceInCDFi(r.Context())
	if err != nil {
		return nil, queryError("failed to read pool price", err)
	}
	return price.String(), nil
}

func (s *Server) handleRequiredNative(r *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	amount, err := s.node.RequiredNative(r.Context())
	if err != nil {
		return nil, queryError("failed to compute native price", err)
	}
	return amount.String(), nil
}

func (s *Server) handleGetConfig(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	info, err := s.node.Subscription()
	if err != nil {
		return nil, queryError("failed to load subscription config", err)
	}
	return configResult(s.node, info), nil
}

func (s *Server) handlePriceFeed(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	chainID, rpcErr := optionalChainID(s, params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	binding, err := s.node.Binding(chainID)
	if err != nil {
		return nil, queryError("failed to load binding", err)
	}
	return binding.Feed.Hex(), nil
}

func (s *Server) handlePool(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	chainID, rpcErr := optionalChainID(s, params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	binding, err := s.node.Binding(chainID)
	if err != nil {
		return nil, queryError("failed to load binding", err)
	}
	return binding.Pool.Hex(), nil
}

func (s *Server) tokenFromParams(params []json.RawMessage) (uint64, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return 0, rpcErr
	}
	return uintParam(params[0], "tokenId")
}

func (s *Server) handleOwnerOf(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	id, rpcErr := s.tokenFromParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	tok, err := s.node.SubscriptionToken(id)
	if err != nil {
		return nil, queryError("failed to load token", err)
	}
	return tok.Owner.Hex(), nil
}

func (s *Server) handleTokenURI(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	id, rpcErr := s.tokenFromParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	tok, err := s.node.SubscriptionToken(id)
	if err != nil {
		return nil, queryError("failed to load token", err)
	}
	return tok.URI, nil
}

func (s *Server) handleAdditionalURI(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	id, rpcErr := s.tokenFromParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	tok, err := s.node.SubscriptionToken(id)
	if err != nil {
		return nil, queryError("failed to load token", err)
	}
	return tok.AdditionalURI, nil
}

// handleBalance reads a token balance. The token "native" (or an empty
// string) selects the native ledger.
func (s *Server) handleBalance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 2); rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := stringParam(params[0], "token")
	if rpcErr != nil {
		return nil, rpcErr
	}
	holder, rpcErr := addressParam(params[1], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var (
		balance *big.Int
		err     error
	)
	if token == "" || strings.EqualFold(token, "native") {
		balance, err = s.node.NativeBalance(holder)
	} else {
		addr, parseErr := crypto.ParseAddress(token)
		if parseErr != nil {
			return nil, invalidParams("invalid token", parseErr.Error())
		}
		balance, err = s.node.TokenBalance(addr, holder)
	}
	if err != nil {
		return nil, queryError("failed to load balance", err)
	}
	return balance.String(), nil
}

func (s *Server) handleAllowance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 3); rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := addressParam(params[0], "token")
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := addressParam(params[1], "owner")
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := addressParam(params[2], "spender")
	if rpcErr != nil {
		return nil, rpcErr
	}
	allowance, err := s.node.TokenAllowance(token, owner, spender)
	if err != nil {
		return nil, queryError("failed to load allowance", err)
	}
	return allowance.String(), nil
}

func (s *Server) handleNonce(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := addressParam(params[0], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		return nil, queryError("failed to load nonce", err)
	}
	return nonce, nil
}

func (s *Server) handleGetReceipt(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	value, rpcErr := stringParam(params[0], "hash")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if len(strings.TrimPrefix(value, "0x")) != 2*common.HashLength {
		return nil, invalidParams("hash must be 32 bytes of hex", nil)
	}
	receipt, err := s.node.Receipt(common.HexToHash(value))
	if errors.Is(err, core.ErrReceiptNotFound) {
		return nil, notFound("receipt not found")
	}
	if err != nil {
		return nil, serverError("failed to load receipt", err)
	}
	return receiptResult(receipt), nil
}

func (s *Server) handleGetEvents(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if s.events == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event indexer disabled", status: http.StatusServiceUnavailable}
	}
	var (
		eventType string
		limit     uint64
		rpcErr    *RPCError
	)
	if len(params) > 0 {
		if eventType, rpcErr = stringParam(params[0], "type"); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if len(params) > 1 {
		if limit, rpcErr = uintParam(params[1], "limit"); rpcErr != nil {
			return nil, rpcErr
		}
	}
	evts, err := s.events.Events(eventType, int(limit))
	if err != nil {
		return nil, serverError("failed to load events", err)
	}
	return evts, nil
}

func (s *Server) vestingFromParams(params []json.RawMessage) (*core.VestingInfo, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := stringParam(params[0], "schedule")
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.node.Vesting(id)
	if err != nil {
		if errors.Is(err, core.ErrUnknownSchedule) {
			return nil, invalidParams(err.Error(), nil)
		}
		return nil, queryError("failed to load vesting schedule", err)
	}
	return info, nil
}

func (s *Server) handleVestingGet(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	info, rpcErr := s.vestingFromParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return vestingResult(info), nil
}

func (s *Server) handleVestedAmount(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	info, rpcErr := s.vestingFromParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return bigString(info.Vested), nil
}
