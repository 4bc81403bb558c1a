package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Native balances and nonces live in go-ethereum StateAccount records keyed
// by the hashed address, the same layout an Ethereum state trie uses.

func accountStateKey(addr common.Address) []byte {
	return ethcrypto.Keccak256(addr.Bytes())
}

func (m *Manager) loadStateAccount(addr common.Address) (*gethtypes.StateAccount, error) {
	data, err := m.trie.Get(accountStateKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return gethtypes.NewEmptyStateAccount(), nil
	}
	acc := new(gethtypes.StateAccount)
	if err := rlp.DecodeBytes(data, acc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr.Hex(), err)
	}
	if acc.Balance == nil {
		acc.Balance = new(uint256.Int)
	}
	return acc, nil
}

func (m *Manager) writeStateAccount(addr common.Address, acc *gethtypes.StateAccount) error {
	if acc.Root == (common.Hash{}) {
		acc.Root = gethtypes.EmptyRootHash
	}
	if len(acc.CodeHash) == 0 {
		acc.CodeHash = gethtypes.EmptyCodeHash.Bytes()
	}
	encoded, err := rlp.EncodeToBytes(acc)
	if err != nil {
		return err
	}
	return m.trie.Update(accountStateKey(addr), encoded)
}

// NativeBalance returns the native currency balance of addr.
func (m *Manager) NativeBalance(addr common.Address) (*big.Int, error) {
	acc, err := m.loadStateAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance.ToBig(), nil
}

// SetNativeBalance overwrites the native balance of addr.
func (m *Manager) SetNativeBalance(addr common.Address, amount *big.Int) error {
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	balance, overflow := uint256.FromBig(amount)
	if overflow {
		return fmt.Errorf("state: balance overflow")
	}
	acc, err := m.loadStateAccount(addr)
	if err != nil {
		return err
	}
	acc.Balance = balance
	return m.writeStateAccount(addr, acc)
}

// CreditNative adds amount to the native balance of addr.
func (m *Manager) CreditNative(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	current, err := m.NativeBalance(addr)
	if err != nil {
		return err
	}
	return m.SetNativeBalance(addr, current.Add(current, amount))
}

// TransferNative moves amount of native currency from one account to another.
func (m *Manager) TransferNative(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromBal, err := m.NativeBalance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: native %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal, amount)
	}
	if err := m.SetNativeBalance(from, fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.CreditNative(to, amount)
}

// Nonce returns the next expected transaction nonce of addr.
func (m *Manager) Nonce(addr common.Address) (uint64, error) {
	acc, err := m.loadStateAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

func (m *Manager) SetNonce(addr common.Address, nonce uint64) error {
	acc, err := m.loadStateAccount(addr)
	if err != nil {
		return err
	}
	acc.Nonce = nonce
	return m.writeStateAccount(addr, acc)
}
