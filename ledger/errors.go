package ledger

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyRegistered is returned by Register if the caller already has
	// a record.
	ErrAlreadyRegistered = errors.New("this account has already been registered")

	// ErrNotRegistered is returned when any party of the call has no record.
	ErrNotRegistered = errors.New("account does not exist on this service")

	// ErrInvalidRating is returned by Rate if the rating is not a multiple of
	// 0.5 in [0, 5].
	ErrInvalidRating = errors.New("enter a valid rating: multiples of 0.5 between 0 and 5")

	// ErrSelfRating is returned by Rate if the caller rates itself.
	ErrSelfRating = errors.New("you can't rate yourself")

	// ErrThrottled is matched by ThrottledError.
	ErrThrottled = errors.New("rating is throttled")

	// ErrUnauthorized is returned by PatchState if the caller is not the
	// administrator.
	ErrUnauthorized = errors.New("only the administrator can patch the service state")
)

// ThrottledError is returned by Rate if the caller has rated the same
// counterpart less than the policy cooldown ago.
type ThrottledError struct {
	// Message configured in the throttle policy.
	Message string
	// Time left until the pair can be rated again.
	Remaining time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s (retry in %s)", e.Message, e.Remaining)
}

// Is makes ThrottledError match ErrThrottled.
func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

func notRegistered(id Identity) error {
	return fmt.Errorf("%w: [%s]", ErrNotRegistered, id)
}
