/*
Package storage persists the host-side state of the proofhost pipeline on a
key-value database with prefixed namespaces:

  - vr/ : owner || index → VerificationRecord (one per instruction, immutable)
  - a/  : owner → account balance (uint64 big-endian)
  - vk/ : key id → wire VerifyingKey artifact

Records are written inside the instruction's own write transaction so that a
verification either commits its single record write or leaves no trace.
Decoded verifying keys are cached in memory, since every instruction needs
the same handful of keys.
*/
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zkforge/proofhost/db"
	"github.com/zkforge/proofhost/log"
	"github.com/zkforge/proofhost/types"
)

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRecordExists is returned when an instruction reuses an already
	// written (owner, index) record slot.
	ErrRecordExists = errors.New("verification record already exists")

	recordPrefix       = []byte("vr/")
	accountPrefix      = []byte("a/")
	verifyingKeyPrefix = []byte("vk/")
)

const vkCacheSize = 16

// Storage wraps a db.Database with the proofhost namespaces.
type Storage struct {
	database   db.Database
	globalLock sync.Mutex
	vkCache    *lru.Cache[string, *types.VerifyingKey]
}

// New creates a Storage on top of the given database.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, *types.VerifyingKey](vkCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &Storage{database: database, vkCache: cache}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.database.Close(); err != nil {
		log.Warnw("failed to close storage database", "error", err)
	}
}

// WriteTx opens a write transaction on the underlying database. Used by the
// host to scope one instruction's state changes.
func (s *Storage) WriteTx() db.WriteTx {
	return s.database.WriteTx()
}

// Lock serializes instruction execution, standing in for the host's
// external transaction ordering. Callers must Unlock.
func (s *Storage) Lock() { s.globalLock.Lock() }

// Unlock releases the instruction lock.
func (s *Storage) Unlock() { s.globalLock.Unlock() }

func recordKey(owner types.HexBytes, index uint64) []byte {
	key := make([]byte, 0, len(recordPrefix)+len(owner)+8)
	key = append(key, recordPrefix...)
	key = append(key, owner...)
	key = binary.BigEndian.AppendUint64(key, index)
	return key
}

// PutRecordTx writes a verification record inside the given transaction.
// The record slot must be empty: records are written exactly once.
func (s *Storage) PutRecordTx(tx db.WriteTx, record *types.VerificationRecord) error {
	key := recordKey(record.Owner, record.Index)
	if _, err := tx.Get(key); err == nil {
		return fmt.Errorf("%w: owner %s index %d", ErrRecordExists, record.Owner.String(), record.Index)
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	data, err := EncodeArtifact(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return tx.Set(key, data)
}

// HasRecordTx reports whether a record slot is already taken, inside the
// given transaction.
func (s *Storage) HasRecordTx(tx db.WriteTx, owner types.HexBytes, index uint64) (bool, error) {
	_, err := tx.Get(recordKey(owner, index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record loads a committed verification record, or ErrNotFound.
func (s *Storage) Record(owner types.HexBytes, index uint64) (*types.VerificationRecord, error) {
	data, err := s.database.Get(recordKey(owner, index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: record %s/%d", ErrNotFound, owner.String(), index)
	}
	if err != nil {
		return nil, err
	}
	record := new(types.VerificationRecord)
	if err := DecodeArtifact(data, record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

// ListRecords returns all committed records of one owner, ordered by index.
func (s *Storage) ListRecords(owner types.HexBytes) ([]*types.VerificationRecord, error) {
	prefix := append(append([]byte{}, recordPrefix...), owner...)
	var records []*types.VerificationRecord
	var decodeErr error
	err := s.database.Iterate(prefix, func(_, value []byte) bool {
		record := new(types.VerificationRecord)
		if decodeErr = DecodeArtifact(value, record); decodeErr != nil {
			return false
		}
		records = append(records, record)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode record: %w", decodeErr)
	}
	return records, nil
}

func accountKey(owner types.HexBytes) []byte {
	return append(append([]byte{}, accountPrefix...), owner...)
}

// Balance returns the account balance of owner. Missing accounts hold zero.
func (s *Storage) Balance(owner types.HexBytes) (uint64, error) {
	return balanceIn(s.database, owner)
}

// BalanceTx reads an account balance inside the given transaction.
func (s *Storage) BalanceTx(tx db.WriteTx, owner types.HexBytes) (uint64, error) {
	return balanceIn(tx, owner)
}

func balanceIn(r db.Reader, owner types.HexBytes) (uint64, error) {
	data, err := r.Get(accountKey(owner))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt balance entry of %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// CreditAccount adds amount to the owner's balance.
func (s *Storage) CreditAccount(owner types.HexBytes, amount uint64) (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	tx := s.database.WriteTx()
	defer tx.Discard()

	current, err := balanceIn(tx, owner)
	if err != nil {
		return 0, err
	}
	updated := current + amount
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, updated)
	if err := tx.Set(accountKey(owner), buf); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Debugw("account credited", "owner", owner.String(), "balance", updated)
	return updated, nil
}

// SetVerifyingKey stores a wire verifying key artifact under the given id.
func (s *Storage) SetVerifyingKey(id string, vk *types.VerifyingKey) error {
	data, err := vk.Marshal()
	if err != nil {
		return fmt.Errorf("marshal verifying key: %w", err)
	}
	tx := s.database.WriteTx()
	defer tx.Discard()
	key := append(append([]byte{}, verifyingKeyPrefix...), id...)
	if err := tx.Set(key, data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.vkCache.Add(id, vk)
	return nil
}

// VerifyingKey loads a verifying key artifact, serving repeated lookups
// from the in-memory cache.
func (s *Storage) VerifyingKey(id string) (*types.VerifyingKey, error) {
	if vk, ok := s.vkCache.Get(id); ok {
		return vk, nil
	}
	key := append(append([]byte{}, verifyingKeyPrefix...), id...)
	data, err := s.database.Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: verifying key %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	vk := new(types.VerifyingKey)
	if err := vk.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("unmarshal verifying key: %w", err)
	}
	s.vkCache.Add(id, vk)
	return vk, nil
}
