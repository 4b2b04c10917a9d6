package state

import (
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"questchain/storage"
)

var errNilManager = errors.New("state: manager unavailable")

// Manager reads and writes RLP-encoded ledger records on top of a key/value
// database. It performs no buffering of its own; callers wanting atomic
// multi-key updates hand it a storage.CacheDB.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// DB exposes the underlying database.
func (m *Manager) DB() storage.Database {
	if m == nil {
		return nil
	}
	return m.db
}

func (m *Manager) ready() error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	return nil
}

// identityKey derives a fixed-width key for an identity string so arbitrary
// address formats map to uniform key lengths.
func identityKey(prefix []byte, addr string) []byte {
	hashed := ethcrypto.Keccak256([]byte(addr))
	key := make([]byte, 0, len(prefix)+len(hashed))
	key = append(key, prefix...)
	return append(key, hashed...)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if err := m.ready(); err != nil {
		return err
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode %x: %w", key, err)
	}
	return true, nil
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok || elem.IsNil() {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
	return nil
}

// KVDelete removes the value stored under key. Missing keys are ignored.
func (m *Manager) KVDelete(key []byte) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.db.Delete(key)
}
