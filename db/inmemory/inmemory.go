// Package inmemory implements an ephemeral db.Database, used in tests and
// as the backing store of short-lived hosts.
package inmemory

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/zkforge/proofhost/db"
)

type entry struct {
	value   []byte
	version uint64
	deleted bool
}

// Database implements an in-memory db.Database with optimistic write
// transactions: commits fail with db.ErrConflict when a read key changed
// underneath the transaction.
type Database struct {
	mu          sync.RWMutex
	data        map[string]entry
	nextVersion uint64
}

var _ db.Database = (*Database)(nil)

// New returns a new in-memory database. Options are ignored.
func New(_ db.Options) (*Database, error) {
	return &Database{data: make(map[string]entry)}, nil
}

func (d *Database) Close() error { return nil }

func (d *Database) Compact() error { return nil }

func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ent, ok := d.data[string(key)]
	if !ok || ent.deleted {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(ent.value), nil
}

func (d *Database) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	d.mu.RLock()
	entries := d.snapshot(prefix)
	d.mu.RUnlock()
	iterateSorted(entries, callback)
	return nil
}

func (d *Database) WriteTx() db.WriteTx {
	d.mu.RLock()
	base := d.nextVersion
	d.mu.RUnlock()
	return &writeTx{
		db:      d,
		writes:  make(map[string]*[]byte),
		reads:   make(map[string]uint64),
		baseVer: base,
	}
}

// snapshot returns a copy of all live entries under prefix. Callers must
// hold at least a read lock.
func (d *Database) snapshot(prefix []byte) map[string][]byte {
	entries := make(map[string][]byte)
	for k, ent := range d.data {
		if ent.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		entries[k] = bytes.Clone(ent.value)
	}
	return entries
}

func (d *Database) version(key string) uint64 {
	return d.data[key].version
}

func (d *Database) apply(key string, value []byte, deleteKey bool) {
	d.nextVersion++
	ent := d.data[key]
	ent.version = d.nextVersion
	ent.deleted = deleteKey
	ent.value = nil
	if !deleteKey {
		ent.value = bytes.Clone(value)
	}
	d.data[key] = ent
}

type writeTx struct {
	db        *Database
	writes    map[string]*[]byte // nil value marks a delete
	reads     map[string]uint64
	baseVer   uint64
	committed bool
	discarded bool
}

var _ db.WriteTx = (*writeTx)(nil)

func (tx *writeTx) recordRead(key string) {
	if _, ok := tx.reads[key]; ok {
		return
	}
	tx.db.mu.RLock()
	version := tx.db.version(key)
	tx.db.mu.RUnlock()
	tx.reads[key] = version
}

func (tx *writeTx) Get(key []byte) ([]byte, error) {
	strKey := string(key)
	if pending, ok := tx.writes[strKey]; ok {
		if pending == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*pending), nil
	}
	tx.recordRead(strKey)
	return tx.db.Get(key)
}

func (tx *writeTx) Iterate(prefix []byte, callback func(k, v []byte) bool) error {
	tx.db.mu.RLock()
	entries := tx.db.snapshot(prefix)
	for k := range entries {
		if _, ok := tx.reads[k]; !ok {
			tx.reads[k] = tx.db.version(k)
		}
	}
	tx.db.mu.RUnlock()

	// Overlay the pending writes.
	for k, v := range tx.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(entries, k)
			continue
		}
		entries[k] = bytes.Clone(*v)
	}
	iterateSorted(entries, callback)
	return nil
}

func (tx *writeTx) Set(key, value []byte) error {
	strKey := string(key)
	tx.recordRead(strKey)
	valCopy := bytes.Clone(value)
	tx.writes[strKey] = &valCopy
	return nil
}

func (tx *writeTx) Delete(key []byte) error {
	strKey := string(key)
	tx.recordRead(strKey)
	tx.writes[strKey] = nil
	return nil
}

func (tx *writeTx) Apply(other db.WriteTx) error {
	return other.Iterate(nil, func(k, v []byte) bool {
		return tx.Set(k, v) == nil
	})
}

func (tx *writeTx) Commit() error {
	if tx.committed || tx.discarded {
		return fmt.Errorf("cannot commit inmemory tx: already committed or discarded")
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	for key, readVersion := range tx.reads {
		current := tx.db.version(key)
		if readVersion > tx.baseVer || current != readVersion {
			return db.ErrConflict
		}
	}
	for key, value := range tx.writes {
		if value == nil {
			tx.db.apply(key, nil, true)
			continue
		}
		tx.db.apply(key, *value, false)
	}
	tx.committed = true
	return nil
}

func (tx *writeTx) Discard() {
	tx.writes = map[string]*[]byte{}
	tx.reads = map[string]uint64{}
	tx.discarded = true
}

func iterateSorted(entries map[string][]byte, callback func(key, value []byte) bool) {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if !callback([]byte(key), entries[key]) {
			break
		}
	}
}
