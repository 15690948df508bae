// Package pebbledb implements db.Database on top of cockroachdb/pebble.
// This is the default persistent backend of the proofhost storage layer.
//
// Note that pebble batches do not detect conflicts: a WriteTx is a batch of
// writes applied atomically on Commit, serialized by the storage layer's
// own locking.
package pebbledb

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/zkforge/proofhost/db"
)

// Database implements db.Database with a pebble store.
type Database struct {
	pdb *pebble.DB
}

var _ db.Database = (*Database)(nil)

// New opens or creates a pebble database at opts.Path.
func New(opts db.Options) (*Database, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("pebbledb requires a path")
	}
	pdb, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", opts.Path, err)
	}
	return &Database{pdb: pdb}, nil
}

func (d *Database) Close() error {
	return d.pdb.Close()
}

// Compact compacts the whole key space.
func (d *Database) Compact() error {
	iter, err := d.pdb.NewIter(nil)
	if err != nil {
		return err
	}
	var first, last []byte
	if iter.First() {
		first = append([]byte{}, iter.Key()...)
	}
	if iter.Last() {
		last = append([]byte{}, iter.Key()...)
	}
	if err := iter.Close(); err != nil {
		return err
	}
	if first == nil || last == nil {
		return nil
	}
	return d.pdb.Compact(first, last, true)
}

func (d *Database) Get(key []byte) ([]byte, error) {
	value, closer, err := d.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte{}, value...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Database) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := d.pdb.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	defer func() { _ = iter.Close() }()
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return nil
}

func (d *Database) WriteTx() db.WriteTx {
	return &writeTx{batch: d.pdb.NewIndexedBatch()}
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, or nil when the prefix is all 0xff.
func keyUpperBound(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func prefixIterOptions(prefix []byte) *pebble.IterOptions {
	if len(prefix) == 0 {
		return nil
	}
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	}
}

type writeTx struct {
	batch     *pebble.Batch
	committed bool
	discarded bool
}

var _ db.WriteTx = (*writeTx)(nil)

func (tx *writeTx) Get(key []byte) ([]byte, error) {
	value, closer, err := tx.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte{}, value...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (tx *writeTx) Iterate(prefix []byte, callback func(k, v []byte) bool) error {
	iter, err := tx.batch.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Close()
}

func (tx *writeTx) Set(key, value []byte) error {
	return tx.batch.Set(key, value, nil)
}

func (tx *writeTx) Delete(key []byte) error {
	return tx.batch.Delete(key, nil)
}

func (tx *writeTx) Apply(other db.WriteTx) error {
	otherTx, ok := other.(*writeTx)
	if !ok {
		return fmt.Errorf("cannot apply %T to a pebble tx", other)
	}
	return tx.batch.Apply(otherTx.batch, nil)
}

func (tx *writeTx) Commit() error {
	if tx.committed || tx.discarded {
		return fmt.Errorf("cannot commit pebble tx: already committed or discarded")
	}
	tx.committed = true
	return tx.batch.Commit(pebble.Sync)
}

func (tx *writeTx) Discard() {
	if tx.committed || tx.discarded {
		return
	}
	tx.discarded = true
	_ = tx.batch.Close()
}
