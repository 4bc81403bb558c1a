package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Bech32Prefix is the human-readable part of cdfi1... account strings.
const Bech32Prefix = "cdfi"

// EncodeBech32 renders addr as a cdfi1... string.
func EncodeBech32(addr common.Address) string {
	// Converting 20 bytes to 5-bit groups with padding cannot fail, and the
	// prefix is a valid lowercase hrp.
	groups, _ := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	encoded, _ := bech32.Encode(Bech32Prefix, groups)
	return encoded
}

// DecodeBech32 parses a cdfi1... string. Other prefixes are rejected.
func DecodeBech32(value string) (common.Address, error) {
	hrp, groups, err := bech32.Decode(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: invalid bech32 address: %w", err)
	}
	if hrp != Bech32Prefix {
		return common.Address{}, fmt.Errorf("crypto: unsupported address prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(groups, 5, 8, false)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: invalid bech32 payload: %w", err)
	}
	if len(raw) != common.AddressLength {
		return common.Address{}, fmt.Errorf("crypto: address must be %d bytes, got %d", common.AddressLength, len(raw))
	}
	return common.BytesToAddress(raw), nil
}

// ParseAddress accepts either a 0x-prefixed hex address or a bech32 cdfi1...
// string.
func ParseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		return common.Address{}, fmt.Errorf("address must be provided")
	case strings.HasPrefix(trimmed, "0x"), strings.HasPrefix(trimmed, "0X"):
		if !common.IsHexAddress(trimmed) {
			return common.Address{}, fmt.Errorf("invalid hex address %q", value)
		}
		return common.HexToAddress(trimmed), nil
	default:
		return DecodeBech32(trimmed)
	}
}

// PrivateKey is a secp256k1 signing key for transactions.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex parses a hex encoded secp256k1 key, with or without 0x.
func PrivateKeyFromHex(value string) (*PrivateKey, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Address returns the signer address transactions from this key recover to.
func (k *PrivateKey) Address() common.Address {
	return ethcrypto.PubkeyToAddress(k.PrivateKey.PublicKey)
}
