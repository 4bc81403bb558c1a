package types

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var ErrMissingSignature = errors.New("transaction: missing signature")

// Transaction is a signed call into one of the native modules. Method names a
// module operation (for example "subscription_buyWithNative") and Params
// carries its JSON arguments. Value is the native amount attached to payable
// methods.
type Transaction struct {
	ChainID *big.Int        `json:"chainId"`
	Nonce   uint64          `json:"nonce"`
	Method  string          `json:"method"`
	Value   *big.Int        `json:"value,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *common.Address
}

type unsignedTx struct {
	ChainID *big.Int
	Nonce   uint64
	Method  string
	Value   *big.Int
	Params  []byte
}

func (tx *Transaction) unsigned() unsignedTx {
	chainID := tx.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	return unsignedTx{
		ChainID: chainID,
		Nonce:   tx.Nonce,
		Method:  tx.Method,
		Value:   value,
		Params:  []byte(tx.Params),
	}
}

// Hash is keccak256 over the RLP encoding of the unsigned fields.
func (tx *Transaction) Hash() (common.Hash, error) {
	encoded, err := rlp.EncodeToBytes(tx.unsigned())
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer. The result is cached on the transaction.
func (tx *Transaction) From() (common.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return common.Address{}, ErrMissingSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return common.Address{}, err
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || tx.V.Uint64() < 27 {
		return common.Address{}, errors.New("transaction: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	addr := crypto.PubkeyToAddress(*pubKey)
	tx.from = &addr
	return addr, nil
}
