package kvstore

import (
	"fmt"

	"github.com/go-errors/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvstore: not found")

const sublevelSeparator = "!"

var syncWrite = &opt.WriteOptions{Sync: true}

// Store is a LevelDB-backed key-value store partitioned into namespaces.
type Store struct {
	*Namespace
	db *leveldb.DB
}

// Open opens (or creates) an on-disk store at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if lerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return newStore(db), nil
}

// OpenMemory opens a store that lives in memory only.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return newStore(db), nil
}

func newStore(db *leveldb.DB) *Store {
	return &Store{
		Namespace: &Namespace{db: db},
		db:        db,
	}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Namespace is a prefix-partitioned view of the store (a "sublevel").
type Namespace struct {
	db     *leveldb.DB
	prefix string
}

// Sublevel returns a nested namespace. Keys are stored as "<prefix>!name!<key>".
func (n *Namespace) Sublevel(name string) *Namespace {
	return &Namespace{
		db:     n.db,
		prefix: n.prefix + sublevelSeparator + name + sublevelSeparator,
	}
}

// Prefix returns the raw key prefix of the namespace.
func (n *Namespace) Prefix() string {
	return n.prefix
}

func (n *Namespace) key(key string) []byte {
	return []byte(n.prefix + key)
}

// Get returns the value for key or ErrNotFound.
func (n *Namespace) Get(key string) ([]byte, error) {
	value, err := n.db.Get(n.key(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Has reports whether key exists.
func (n *Namespace) Has(key string) (bool, error) {
	ok, err := n.db.Has(n.key(key), nil)
	if err != nil {
		return false, fmt.Errorf("has %q: %w", key, err)
	}
	return ok, nil
}

// Put stores value under key.
func (n *Namespace) Put(key string, value []byte) error {
	if err := n.db.Put(n.key(key), value, syncWrite); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Batch starts a write batch scoped to the namespace.
func (n *Namespace) Batch() *Batch {
	return &Batch{ns: n, batch: new(leveldb.Batch)}
}

// Batch buffers puts until Write commits them atomically.
type Batch struct {
	ns    *Namespace
	batch *leveldb.Batch
}

// Put buffers a put in the batch namespace.
func (b *Batch) Put(key string, value []byte) {
	b.batch.Put(b.ns.key(key), value)
}

// PutIn buffers a put into another namespace of the same store, so a single
// batch can span sublevels.
func (b *Batch) PutIn(ns *Namespace, key string, value []byte) {
	b.batch.Put(ns.key(key), value)
}

// Len returns the number of buffered operations.
func (b *Batch) Len() int {
	return b.batch.Len()
}

// Write commits all buffered puts. Either all of them are applied or none.
func (b *Batch) Write() error {
	if err := b.ns.db.Write(b.batch, syncWrite); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}
