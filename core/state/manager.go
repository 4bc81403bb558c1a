package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"cdfichain/storage/trie"
)

var (
	ErrInsufficientBalance   = errors.New("state: insufficient balance")
	ErrInsufficientAllowance = errors.New("state: insufficient allowance")
	ErrNegativeAmount        = errors.New("state: negative amount")

	errEmptyKey = errors.New("state: empty record key")
)

// Manager is the typed view over the state trie used by the ledgers and the
// native modules. Records are RLP values stored under keccak256 of a logical
// key built by recordKey; native accounts use the Ethereum account layout
// instead (see accounts.go).
type Manager struct {
	trie *trie.Trie
}

// NewManager binds a manager to tr. Writes land in tr and become durable
// only when the owner commits it.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// recordKey joins a namespace prefix with the fixed-width parts identifying
// one record, e.g. token/balance/<token><holder>.
func recordKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	key := make([]byte, 0, size)
	key = append(key, prefix...)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

// KVPut RLP-encodes value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.trie.Update(ethcrypto.Keccak256(key), encoded)
}

// KVGet decodes the record under key into out and reports whether it
// existed. A nil out only checks existence.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, errEmptyKey
	}
	data, err := m.trie.Get(ethcrypto.Keccak256(key))
	if err != nil || len(data) == 0 {
		return false, err
	}
	if out != nil {
		if err := rlp.DecodeBytes(data, out); err != nil {
			return false, fmt.Errorf("state: decode %q: %w", key, err)
		}
	}
	return true, nil
}

// KVDelete removes the record under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	return m.trie.Delete(ethcrypto.Keccak256(key))
}
