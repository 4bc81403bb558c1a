package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBGetMissing(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("absent"))
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLevelDBReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.Equal(t, dir, db.Path())
	require.NoError(t, db.Put([]byte("head"), []byte{1, 2, 3}))
	db.Close()

	db, err = NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Get([]byte("head"))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)

	_, err = db.Get([]byte("nope"))
	require.ErrorIs(t, err, ErrNotFound)
	require.NotNil(t, db.TrieDB())
}
