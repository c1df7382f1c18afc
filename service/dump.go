package service

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/nosedive/dump"
	"go.uber.org/zap"
)

// Dump writes all ledger storage items into c. Dump does not flush c.
func (s *Service) Dump(c *dump.Creator) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var err error
	var n int

	s.store.Seek(storage.SeekRange{}, func(k, v []byte) bool {
		err = c.Write(k, v)
		n++
		return err == nil
	})
	if err != nil {
		return fmt.Errorf("dump storage item #%d: %w", n-1, err)
	}

	s.log.Info("ledger state dumped", zap.Int("items", n))

	return nil
}

// Restore loads all storage items from r in a single commit. The ledger must
// be empty.
func (s *Service) Restore(r *dump.Reader) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	empty := true
	s.store.Seek(storage.SeekRange{}, func(_, _ []byte) bool {
		empty = false
		return false
	})
	if !empty {
		return errors.New("ledger is not empty")
	}

	var n int
	cache := storage.NewMemCachedStore(s.store)

	r.IterateStorage(func(key, value []byte) {
		cache.Put(key, value)
		n++
	})

	_, err := cache.PersistSync()
	if err != nil {
		return fmt.Errorf("persist restored items: %w", err)
	}

	s.metrics.registered.Set(float64(s.countUsers()))
	s.log.Info("ledger state restored", zap.Int("items", n))

	return nil
}
