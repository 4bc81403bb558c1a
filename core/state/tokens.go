package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Fungible token ledger. Each token is identified by its address; balances
// and allowances are stored per (token, holder) and (token, owner, spender).

var (
	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")
	tokenSupplyPrefix    = []byte("token/supply/")
)

func tokenBalanceKey(token, holder common.Address) []byte {
	return recordKey(tokenBalancePrefix, token.Bytes(), holder.Bytes())
}

func tokenAllowanceKey(token, owner, spender common.Address) []byte {
	return recordKey(tokenAllowancePrefix, token.Bytes(), owner.Bytes(), spender.Bytes())
}

func tokenSupplyKey(token common.Address) []byte {
	return recordKey(tokenSupplyPrefix, token.Bytes())
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := m.KVGet(key, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

// TokenBalance returns holder's balance of token.
func (m *Manager) TokenBalance(token, holder common.Address) (*big.Int, error) {
	return m.loadAmount(tokenBalanceKey(token, holder))
}

// TokenSupply returns the amount of token minted so far.
func (m *Manager) TokenSupply(token common.Address) (*big.Int, error) {
	return m.loadAmount(tokenSupplyKey(token))
}

// MintToken creates amount of token in holder's account.
func (m *Manager) MintToken(token, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal, err := m.TokenBalance(token, holder)
	if err != nil {
		return err
	}
	if err := m.storeAmount(tokenBalanceKey(token, holder), bal.Add(bal, amount)); err != nil {
		return err
	}
	supply, err := m.TokenSupply(token)
	if err != nil {
		return err
	}
	return m.storeAmount(tokenSupplyKey(token), supply.Add(supply, amount))
}

// TokenTransfer moves amount of token between holders.
func (m *Manager) TokenTransfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if to == (common.Address{}) {
		return fmt.Errorf("state: transfer of %s to the zero address", token.Hex())
	}
	fromBal, err := m.TokenBalance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token %s holder %s has %s, needs %s", ErrInsufficientBalance, token.Hex(), from.Hex(), fromBal, amount)
	}
	if err := m.storeAmount(tokenBalanceKey(token, from), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := m.TokenBalance(token, to)
	if err != nil {
		return err
	}
	return m.storeAmount(tokenBalanceKey(token, to), toBal.Add(toBal, amount))
}

// TokenApprove sets the amount spender may pull from owner.
func (m *Manager) TokenApprove(token, owner, spender common.Address, amount *big.Int) error {
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return m.storeAmount(tokenAllowanceKey(token, owner, spender), new(big.Int).Set(amount))
}

func (m *Manager) TokenAllowance(token, owner, spender common.Address) (*big.Int, error) {
	return m.loadAmount(tokenAllowanceKey(token, owner, spender))
}

// TokenTransferFrom moves amount from from to to on behalf of spender,
// consuming allowance.
func (m *Manager) TokenTransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	allowance, err := m.TokenAllowance(token, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token %s spender %s allowed %s, needs %s", ErrInsufficientAllowance, token.Hex(), spender.Hex(), allowance, amount)
	}
	if err := m.storeAmount(tokenAllowanceKey(token, from, spender), allowance.Sub(allowance, amount)); err != nil {
		return err
	}
	return m.TokenTransfer(token, from, to, amount)
}
