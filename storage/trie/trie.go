package trie

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"cdfichain/storage"
)

// Trie is the ledger's Merkle Patricia state trie. It tracks the last
// committed root so pending writes can be discarded, and working copies let
// the executor throw away a failed transaction without touching the live
// state. Callers hash their keys; Trie stores them as given.
//
// Trie is not safe for concurrent use.
type Trie struct {
	db        *triedb.Database
	mpt       *gethtrie.Trie
	committed common.Hash
}

// NewTrie opens the trie at root. A nil or empty root opens the empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	committed := gethtypes.EmptyRootHash
	if len(root) > 0 {
		committed = common.BytesToHash(root)
	}
	t := &Trie{db: store.TrieDB()}
	if err := t.open(committed); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) open(root common.Hash) error {
	mpt, err := gethtrie.New(gethtrie.TrieID(root), t.db)
	if err != nil {
		return err
	}
	t.mpt = mpt
	t.committed = root
	return nil
}

func (t *Trie) Get(key []byte) ([]byte, error) { return t.mpt.Get(key) }
func (t *Trie) Update(key, value []byte) error { return t.mpt.Update(key, value) }
func (t *Trie) Delete(key []byte) error        { return t.mpt.Delete(key) }

// Hash is the root including uncommitted writes.
func (t *Trie) Hash() common.Hash { return t.mpt.Hash() }

// Root is the last committed root.
func (t *Trie) Root() common.Hash { return t.committed }

// Discard drops uncommitted writes.
func (t *Trie) Discard() error { return t.open(t.committed) }

// Copy returns a working copy backed by the same node database.
func (t *Trie) Copy() *Trie {
	return &Trie{db: t.db, mpt: t.mpt.Copy(), committed: t.committed}
}

// Commit persists pending nodes as the layer for height and returns the new
// root. The trie stays usable afterwards.
func (t *Trie) Commit(height uint64) (common.Hash, error) {
	root, nodes := t.mpt.Commit(false)
	if nodes != nil {
		layer := trienode.NewMergedNodeSet()
		if err := layer.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.db.Update(root, t.committed, height, layer, nil); err != nil {
			return common.Hash{}, err
		}
		if err := t.db.Commit(root, false); err != nil {
			return common.Hash{}, err
		}
	}
	if err := t.open(root); err != nil {
		return common.Hash{}, err
	}
	return root, nil
}
