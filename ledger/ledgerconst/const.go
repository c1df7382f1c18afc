package ledgerconst

const (
	// UsersPrefix is a storage key prefix of the identity -> UserState records.
	UsersPrefix = 'u'
	// HistoryPrefix is a storage key prefix of the (rater, ratee) -> timestamp
	// records.
	HistoryPrefix = 'h'
	// PolicyKey is a storage key of the throttle policy singleton.
	PolicyKey = 'p'
)

const (
	// DefaultRating is a rating every identity gets upon registration.
	DefaultRating = 2.0
	// DefaultReceived is a number of received votes every identity gets upon
	// registration.
	DefaultReceived = 1

	// MaxRating is the upper bound of the rating scale.
	MaxRating = 5.0
	// RatingStep is the quantum of the rating scale.
	RatingStep = 0.5
)

const (
	// DefaultCooldownSeconds is a cooldown of the throttle policy in effect
	// until the administrator replaces it.
	DefaultCooldownSeconds = 300
	// DefaultRejectionMessage is a message of the throttle policy in effect
	// until the administrator replaces it.
	DefaultRejectionMessage = "you have rated this account recently, try again later"
)
