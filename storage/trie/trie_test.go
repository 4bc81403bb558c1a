package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"cdfichain/storage"
)

func TestTrieRootsSurviveReopen(t *testing.T) {
	path := t.TempDir()
	ledger, err := storage.NewLevelDB(path)
	require.NoError(t, err)

	state, err := NewTrie(ledger, nil)
	require.NoError(t, err)
	priceKey := crypto.Keccak256([]byte("subscription/price/0"))
	ownerKey := crypto.Keccak256([]byte("subscription/owner"))

	require.NoError(t, state.Update(priceKey, []byte{0x64}))
	require.NoError(t, state.Update(ownerKey, []byte{0xb1}))
	first, err := state.Commit(1)
	require.NoError(t, err)
	require.Equal(t, first, state.Root())

	require.NoError(t, state.Update(priceKey, []byte{0xc8}))
	second, err := state.Commit(2)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	ledger.Close()

	reopened, err := storage.NewLevelDB(path)
	require.NoError(t, err)
	defer reopened.Close()

	for root, want := range map[[32]byte][]byte{first: {0x64}, second: {0xc8}} {
		view, err := NewTrie(reopened, root[:])
		require.NoError(t, err)
		price, err := view.Get(priceKey)
		require.NoError(t, err)
		require.Equal(t, want, price)
		owner, err := view.Get(ownerKey)
		require.NoError(t, err)
		require.Equal(t, []byte{0xb1}, owner)
	}
}

func TestTrieCopyIsolatesWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)
	key := crypto.Keccak256([]byte("k"))
	require.NoError(t, tr.Update(key, []byte("base")))
	_, err = tr.Commit(1)
	require.NoError(t, err)

	working := tr.Copy()
	require.NoError(t, working.Update(key, []byte("changed")))

	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("base"), got)

	got, err = working.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("changed"), got)
}

func TestTrieDiscardDropsPendingChanges(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)
	key := crypto.Keccak256([]byte("k"))
	require.NoError(t, tr.Update(key, []byte("v1")))
	root, err := tr.Commit(1)
	require.NoError(t, err)

	require.NoError(t, tr.Update(key, []byte("v2")))
	require.NoError(t, tr.Delete(crypto.Keccak256([]byte("missing"))))
	require.NotEqual(t, root, tr.Hash())

	require.NoError(t, tr.Discard())
	require.Equal(t, root, tr.Hash())
	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
}
