package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	ethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is the key-value store backing the node. Besides raw access it
// hands out the trie database that the state trie commits into, so every
// layer shares one set of trie nodes.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	TrieDB() *triedb.Database
	Close()
}

type ethBacked struct {
	db     ethdb.Database
	trieDB *triedb.Database
}

func newEthBacked(db ethdb.Database) ethBacked {
	return ethBacked{db: db, trieDB: triedb.NewDatabase(db, nil)}
}

func (b ethBacked) Put(key []byte, value []byte) error {
	return b.db.Put(key, value)
}

func (b ethBacked) Get(key []byte) ([]byte, error) {
	ok, err := b.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	value, err := b.db.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (b ethBacked) Has(key []byte) (bool, error) {
	return b.db.Has(key)
}

func (b ethBacked) TrieDB() *triedb.Database {
	return b.trieDB
}

func (b ethBacked) close() {
	_ = b.trieDB.Close()
	_ = b.db.Close()
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	ethBacked
}

func NewMemDB() *MemDB {
	return &MemDB{ethBacked: newEthBacked(rawdb.NewMemoryDatabase())}
}

// Close releases the trie database. The memory store itself holds no handles.
func (db *MemDB) Close() {
	db.close()
}

// --- Persistent DB ---

const (
	levelDBCacheMiB = 16
	levelDBHandles  = 64
)

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	ethBacked
	path string
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := ethleveldb.NewCustom(path, "cdfi/db/", func(o *opt.Options) {
		o.OpenFilesCacheCapacity = levelDBHandles
		o.BlockCacheCapacity = levelDBCacheMiB / 2 * opt.MiB
		o.WriteBuffer = levelDBCacheMiB / 4 * opt.MiB
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{ethBacked: newEthBacked(rawdb.NewDatabase(kv)), path: path}, nil
}

// Path reports the directory the database was opened from.
func (ldb *LevelDB) Path() string { return ldb.path }

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.close()
}
