// Package db defines the key-value database interface used by the proofhost
// storage layer, with interchangeable backends (pebble, in-memory).
package db

import "errors"

var (
	// ErrKeyNotFound is returned when a key is not found in the database.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned on commit when a transaction conflicts with
	// a concurrent write.
	ErrConflict = errors.New("transaction conflict")
	// ErrTxnTooBig is returned when too many updates are batched in a
	// single transaction for the backend to handle.
	ErrTxnTooBig = errors.New("transaction too big")
)

// Options contains the configuration to open a database backend.
type Options struct {
	Path string
}

// Database is a key-value store with read access and atomic write
// transactions.
type Database interface {
	Reader
	// WriteTx creates a new write transaction. Writes are not visible to
	// other readers until Commit. The caller must end the transaction
	// with Commit or Discard.
	WriteTx() WriteTx
	// Close closes the database and releases its resources.
	Close() error
	// Compact triggers a backend compaction, if supported.
	Compact() error
}

// Reader is the read-only view of a database or transaction.
type Reader interface {
	// Get retrieves the value for the given key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback with all key-value pairs whose key starts
	// with prefix, in lexicographic key order, until callback returns
	// false. The callback must not keep the key or value slices.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is an atomic read-write transaction: either every Set and Delete
// is applied on Commit, or none is.
type WriteTx interface {
	Reader
	// Set stores the value under key.
	Set(key, value []byte) error
	// Delete removes the key.
	Delete(key []byte) error
	// Apply copies the pending writes of another transaction into this
	// one. Both transactions must come from the same Database.
	Apply(other WriteTx) error
	// Commit atomically applies the pending writes.
	Commit() error
	// Discard drops the pending writes. Calling Discard after Commit is
	// a no-op, so it is safe to defer.
	Discard()
}
