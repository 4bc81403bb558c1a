package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Non-fungible token ledger. A collection is identified by an address; for
// the subscription collection that is the module vault.

var (
	ErrTokenExists      = errors.New("state: token already minted")
	ErrNonexistentToken = errors.New("state: nonexistent token")
	ErrNotTokenOwner    = errors.New("state: caller is not token owner or approved")

	nftTokenPrefix      = []byte("nft/token/")
	nftBalancePrefix    = []byte("nft/balance/")
	nftCollectionPrefix = []byte("nft/collection/")
)

// NFTCollection holds the display metadata of a collection.
type NFTCollection struct {
	Name   string
	Symbol string
}

type nftRecord struct {
	Owner         common.Address
	Approved      common.Address
	URI           string
	AdditionalURI string
}

func nftTokenKey(collection common.Address, id uint64) []byte {
	return recordKey(nftTokenPrefix, collection.Bytes(), binary.BigEndian.AppendUint64(nil, id))
}

func nftBalanceKey(collection, owner common.Address) []byte {
	return recordKey(nftBalancePrefix, collection.Bytes(), owner.Bytes())
}

func (m *Manager) SetNFTCollection(collection common.Address, meta NFTCollection) error {
	return m.KVPut(recordKey(nftCollectionPrefix, collection.Bytes()), &meta)
}

func (m *Manager) NFTCollection(collection common.Address) (*NFTCollection, bool, error) {
	meta := new(NFTCollection)
	ok, err := m.KVGet(recordKey(nftCollectionPrefix, collection.Bytes()), meta)
	if err != nil || !ok {
		return nil, ok, err
	}
	return meta, true, nil
}

func (m *Manager) loadNFT(collection common.Address, id uint64) (*nftRecord, bool, error) {
	rec := new(nftRecord)
	ok, err := m.KVGet(nftTokenKey(collection, id), rec)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec, true, nil
}

func (m *Manager) adjustNFTBalance(collection, owner common.Address, delta int64) error {
	key := nftBalanceKey(collection, owner)
	var count uint64
	if _, err := m.KVGet(key, &count); err != nil {
		return err
	}
	if delta < 0 && count < uint64(-delta) {
		return fmt.Errorf("state: nft balance underflow for %s", owner.Hex())
	}
	count = uint64(int64(count) + delta)
	if count == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, count)
}

// NFTMint creates token id owned by to. Ids are never reused.
func (m *Manager) NFTMint(collection, to common.Address, id uint64, uri, additionalURI string) error {
	if to == (common.Address{}) {
		return fmt.Errorf("state: mint to the zero address")
	}
	_, exists, err := m.loadNFT(collection, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrTokenExists, id)
	}
	rec := &nftRecord{Owner: to, URI: uri, AdditionalURI: additionalURI}
	if err := m.KVPut(nftTokenKey(collection, id), rec); err != nil {
		return err
	}
	return m.adjustNFTBalance(collection, to, 1)
}

// NFTOwnerOf returns the owner of id and whether it exists.
func (m *Manager) NFTOwnerOf(collection common.Address, id uint64) (common.Address, bool, error) {
	rec, ok, err := m.loadNFT(collection, id)
	if err != nil || !ok {
		return common.Address{}, ok, err
	}
	return rec.Owner, true, nil
}

// NFTMetadata returns the primary and additional URIs of id.
func (m *Manager) NFTMetadata(collection common.Address, id uint64) (string, string, bool, error) {
	rec, ok, err := m.loadNFT(collection, id)
	if err != nil || !ok {
		return "", "", ok, err
	}
	return rec.URI, rec.AdditionalURI, true, nil
}

func (m *Manager) NFTBalanceOf(collection, owner common.Address) (uint64, error) {
	var count uint64
	if _, err := m.KVGet(nftBalanceKey(collection, owner), &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (m *Manager) NFTGetApproved(collection common.Address, id uint64) (common.Address, error) {
	rec, ok, err := m.loadNFT(collection, id)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	return rec.Approved, nil
}

// NFTApprove lets approved move id once. Only the owner may approve.
func (m *Manager) NFTApprove(collection, caller, approved common.Address, id uint64) error {
	rec, ok, err := m.loadNFT(collection, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	if rec.Owner != caller {
		return ErrNotTokenOwner
	}
	rec.Approved = approved
	return m.KVPut(nftTokenKey(collection, id), rec)
}

// NFTTransfer moves id to to. The caller must own the token or be approved
// for it; the approval is cleared by the transfer.
func (m *Manager) NFTTransfer(collection, caller, to common.Address, id uint64) error {
	if to == (common.Address{}) {
		return fmt.Errorf("state: transfer to the zero address")
	}
	rec, ok, err := m.loadNFT(collection, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	if rec.Owner != caller && rec.Approved != caller {
		return ErrNotTokenOwner
	}
	from := rec.Owner
	rec.Owner = to
	rec.Approved = common.Address{}
	if err := m.KVPut(nftTokenKey(collection, id), rec); err != nil {
		return err
	}
	if err := m.adjustNFTBalance(collection, from, -1); err != nil {
		return err
	}
	return m.adjustNFTBalance(collection, to, 1)
}
