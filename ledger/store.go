package ledger

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
)

// Store is a byte-addressable key-value storage of the ledger records. Get
// returns storage.ErrKeyNotFound for missing keys. *storage.MemCachedStore
// satisfies Store.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte)
}

// partition is a Store region under a single-byte key prefix.
type partition struct {
	prefix byte
	st     Store
}

func (p partition) key(k []byte) []byte {
	res := make([]byte, 1+len(k))
	res[0] = p.prefix
	copy(res[1:], k)
	return res
}

// get returns value by the key and flag whether it exists.
func (p partition) get(k []byte) ([]byte, bool, error) {
	v, err := p.st.Get(p.key(k))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read storage item: %w", err)
	}
	return v, true, nil
}

func (p partition) contains(k []byte) (bool, error) {
	_, ok, err := p.get(k)
	return ok, err
}

func (p partition) set(k, v []byte) {
	p.st.Put(p.key(k), v)
}
