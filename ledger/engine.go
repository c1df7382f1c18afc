package ledger

import (
	"fmt"
	"math"

	"github.com/nspcc-dev/nosedive/ledger/ledgerconst"
)

// Invocation describes the context of a single call.
type Invocation struct {
	// Authenticated identity of the acting party.
	Caller Identity
	// Unix time in nanoseconds. Must not decrease from call to call.
	Time uint64
}

// Engine executes ledger operations over a Store. Engine is intended for a
// single invocation: construct a new one over a fresh write-back cache for
// each call.
type Engine struct {
	admin Identity

	registry registry
	history  history
	policy   policyStore
}

// New returns Engine working over st. Only admin can call PatchState.
func New(st Store, admin Identity) *Engine {
	return &Engine{
		admin:    admin,
		registry: registry{users: partition{prefix: ledgerconst.UsersPrefix, st: st}},
		history:  history{ratings: partition{prefix: ledgerconst.HistoryPrefix, st: st}},
		policy:   policyStore{p: partition{prefix: ledgerconst.PolicyKey, st: st}},
	}
}

// ValidRating checks that rating is a multiple of 0.5 in [0, 5].
func ValidRating(rating float32) bool {
	// NaN fails both comparisons
	if !(rating >= 0 && rating <= ledgerconst.MaxRating) {
		return false
	}
	fract := rating - float32(math.Trunc(float64(rating)))
	return fract == 0 || fract == ledgerconst.RatingStep
}

// Register creates the default state of the caller. Fails with
// ErrAlreadyRegistered if the caller is registered.
func (e *Engine) Register(inv Invocation) error {
	return e.registry.register(inv.Caller)
}

// Status returns state of the identity. Fails with ErrNotRegistered.
func (e *Engine) Status(id Identity) (UserState, error) {
	return e.registry.lookup(id)
}

// Policy returns the throttle policy in effect, nil if throttling is
// disabled.
func (e *Engine) Policy() (*ThrottlePolicy, error) {
	return e.policy.get()
}

// Rate rates the ratee by the caller. The new rating of the ratee is
//
//	(rating * received + (submitted + rating of the caller) / 2) / (received + 1)
//
// computed in single precision. Fails with ErrInvalidRating, ErrSelfRating,
// ErrNotRegistered or *ThrottledError, leaving the Store untouched.
func (e *Engine) Rate(inv Invocation, ratee Identity, rating float32) error {
	if !ValidRating(rating) {
		return fmt.Errorf("%w: got %v", ErrInvalidRating, rating)
	}

	rater := inv.Caller
	if rater == ratee {
		return ErrSelfRating
	}

	raterState, err := e.registry.lookup(rater)
	if err != nil {
		return err
	}

	rateeState, err := e.registry.lookup(ratee)
	if err != nil {
		return err
	}

	policy, err := e.policy.get()
	if err != nil {
		return err
	}

	if policy != nil {
		last, ok, err := e.history.last(rater, ratee)
		if err != nil {
			return err
		}
		if ok {
			if left, throttled := policy.remaining(last, inv.Time); throttled {
				return &ThrottledError{
					Message:   policy.RejectionMessage,
					Remaining: left,
				}
			}
		}
	}

	aggregate(&raterState, &rateeState, rating)

	e.history.record(rater, ratee, inv.Time)

	if err = e.registry.put(rater, raterState); err != nil {
		return err
	}
	return e.registry.put(ratee, rateeState)
}

func aggregate(rater, ratee *UserState, rating float32) {
	// explicit conversion forbids fusing with the addition below
	total := float32(ratee.Rating * float32(ratee.Received))
	this := (rating + rater.Rating) / 2

	ratee.Received++
	rater.Given++

	ratee.Rating = (total + this) / float32(ratee.Received)
}

// RatingTimestamps returns times of the latest ratings of the identity by
// the caller and of the caller by the identity. Fails with ErrNotRegistered
// if any of them is not registered.
func (e *Engine) RatingTimestamps(inv Invocation, id Identity) (Timestamps, error) {
	var res Timestamps

	if _, err := e.registry.lookup(inv.Caller); err != nil {
		return res, err
	}
	if _, err := e.registry.lookup(id); err != nil {
		return res, err
	}

	you, ok, err := e.history.last(inv.Caller, id)
	if err != nil {
		return res, err
	}
	if ok {
		res.YouRatedAt = &you
	}

	they, ok, err := e.history.last(id, inv.Caller)
	if err != nil {
		return res, err
	}
	if ok {
		res.TheyRatedAt = &they
	}

	return res, nil
}

// PatchState applies patches in order. Only the administrator can call it,
// others get ErrUnauthorized.
func (e *Engine) PatchState(inv Invocation, patches []Patch) error {
	if e.admin == "" || inv.Caller != e.admin {
		return fmt.Errorf("%w: caller [%s]", ErrUnauthorized, inv.Caller)
	}

	for i := range patches {
		if err := patches[i].apply(e); err != nil {
			return fmt.Errorf("apply patch #%d: %w", i, err)
		}
	}
	return nil
}
