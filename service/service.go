package service

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/nspcc-dev/nosedive/ledger/ledgerconst"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Prm groups parameters of the Service.
type Prm struct {
	// Writes invocation results into the log. Optional.
	Logger *zap.Logger

	// Persistent storage of the ledger. Required. Service takes ownership
	// and closes it in Close.
	Store storage.Store

	// Source of the invocation time. Defaults to the system clock.
	Clock clock.Clock

	// Identity allowed to patch the service state. Required.
	Admin ledger.Identity

	// Registers service metrics. Optional.
	Registerer prometheus.Registerer
}

// Service hosts the ledger: it runs every operation as a separate
// invocation which is serialized with all others and is committed to the
// persistent storage only if it succeeds.
type Service struct {
	log     *zap.Logger
	store   storage.Store
	clock   clock.Clock
	admin   ledger.Identity
	metrics *metrics

	mtx      sync.Mutex
	lastTime uint64
}

// New constructs Service from the given parameters.
func New(prm Prm) (*Service, error) {
	switch {
	case prm.Store == nil:
		return nil, errors.New("missing storage")
	case prm.Admin == "":
		return nil, errors.New("missing administrator identity")
	}

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.Clock == nil {
		prm.Clock = clock.New()
	}

	s := &Service{
		log:     prm.Logger,
		store:   prm.Store,
		clock:   prm.Clock,
		admin:   prm.Admin,
		metrics: newMetrics(prm.Registerer),
	}
	s.metrics.registered.Set(float64(s.countUsers()))
	s.lastTime = s.latestRatingTime()

	return s, nil
}

// Close closes the underlying storage.
func (s *Service) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.store.Close()
}

// Register registers the caller. See ledger.Engine.Register.
func (s *Service) Register(caller ledger.Identity) error {
	err := s.invoke("register", caller, func(e *ledger.Engine, inv ledger.Invocation) error {
		return e.Register(inv)
	})
	if err == nil {
		s.metrics.registered.Inc()
	}
	return err
}

// Status returns state of the identity. See ledger.Engine.Status.
func (s *Service) Status(id ledger.Identity) (ledger.UserState, error) {
	var res ledger.UserState
	err := s.invoke("status", "", func(e *ledger.Engine, _ ledger.Invocation) error {
		var err error
		res, err = e.Status(id)
		return err
	})
	return res, err
}

// RatingTimestamps returns times of the latest ratings between the caller and
// the identity. See ledger.Engine.RatingTimestamps.
func (s *Service) RatingTimestamps(caller, id ledger.Identity) (ledger.Timestamps, error) {
	var res ledger.Timestamps
	err := s.invoke("rating_timestamps", caller, func(e *ledger.Engine, inv ledger.Invocation) error {
		var err error
		res, err = e.RatingTimestamps(inv, id)
		return err
	})
	return res, err
}

// Rate rates the identity by the caller. See ledger.Engine.Rate.
func (s *Service) Rate(caller, id ledger.Identity, rating float32) error {
	return s.invoke("rate", caller, func(e *ledger.Engine, inv ledger.Invocation) error {
		return e.Rate(inv, id, rating)
	})
}

// PatchState applies administrative patches. See ledger.Engine.PatchState.
func (s *Service) PatchState(caller ledger.Identity, patches []ledger.Patch) error {
	return s.invoke("patch_state", caller, func(e *ledger.Engine, inv ledger.Invocation) error {
		return e.PatchState(inv, patches)
	})
}

// Policy returns the throttle policy in effect, nil if throttling is disabled.
func (s *Service) Policy() (*ledger.ThrottlePolicy, error) {
	var res *ledger.ThrottlePolicy
	err := s.invoke("policy", "", func(e *ledger.Engine, _ ledger.Invocation) error {
		var err error
		res, err = e.Policy()
		return err
	})
	return res, err
}

// invoke runs f over a write-back cache of the storage and persists the
// cache only if f succeeds.
func (s *Service) invoke(method string, caller ledger.Identity, f func(*ledger.Engine, ledger.Invocation) error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	inv := ledger.Invocation{
		Caller: caller,
		Time:   s.now(),
	}

	log := s.log.With(
		zap.String("method", method),
		zap.String("caller", string(caller)),
		zap.Stringer("invocation", uuid.New()),
	)

	cache := storage.NewMemCachedStore(s.store)

	err := f(ledger.New(cache, s.admin), inv)
	if err != nil {
		kind := ErrorKind(err)
		if kind == KindInternal {
			log.Error("invocation failed", zap.Error(err))
		} else {
			log.Info("invocation rejected", zap.Error(err))
		}
		s.metrics.observe(method, kind)
		return err
	}

	_, err = cache.PersistSync()
	if err != nil {
		log.Error("failed to persist invocation changes", zap.Error(err))
		s.metrics.observe(method, KindInternal)
		return fmt.Errorf("persist changes: %w", err)
	}

	log.Debug("invocation succeeded")
	s.metrics.observe(method, KindOK)

	return nil
}

// now returns the invocation time which never goes back even if the clock
// does.
func (s *Service) now() uint64 {
	var t uint64
	if ns := s.clock.Now().UnixNano(); ns > 0 {
		t = uint64(ns)
	}
	if t < s.lastTime {
		t = s.lastTime
	}
	s.lastTime = t
	return t
}

func (s *Service) countUsers() int {
	var n int
	s.store.Seek(storage.SeekRange{Prefix: []byte{ledgerconst.UsersPrefix}}, func(_, _ []byte) bool {
		n++
		return true
	})
	return n
}

// latestRatingTime returns the greatest time recorded in the rating history so
// that invocation time never goes back across restarts.
func (s *Service) latestRatingTime() uint64 {
	var res uint64
	s.store.Seek(storage.SeekRange{Prefix: []byte{ledgerconst.HistoryPrefix}}, func(_, v []byte) bool {
		if len(v) == 8 {
			if t := binary.LittleEndian.Uint64(v); t > res {
				res = t
			}
		}
		return true
	})
	return res
}
