/*
Package ledger contains implementation of the peer-rating ledger.

Registered identities rate one another on a half-step scale from 0 to 5, and
the ledger maintains an aggregate rating of every identity. A submitted
rating is blended with the current rating of the rater, so ratings given by
well-rated identities weigh more. One identity can re-rate the same
counterpart only after a cooldown configured by the service administrator.

Engine works over a Store per invocation. Engine validates every precondition
of a call before the first write, but atomicity of the whole call is provided
by the Store: use a write-back cache (e.g. storage.MemCachedStore of neo-go)
and persist it only if the call succeeds.

# Errors

All failures of the public methods can be matched with errors.Is against
ErrAlreadyRegistered, ErrNotRegistered, ErrInvalidRating, ErrSelfRating,
ErrThrottled and ErrUnauthorized. Throttled calls return *ThrottledError.
*/
package ledger

/*
Ledger storage model.

Current conventions:
 <id>: identity as raw bytes
 <varbytes>: neo-go io var-length prefixed byte slice

# Summary
Key-value storage format:
 - 'u' + <id> -> u32le(float32 rating) | u64le(given) | u64le(received)
   state of the registered identity
 - 'h' + <varbytes rater> + <varbytes ratee> -> u64le
   time (Unix nanoseconds) of the latest rating of ratee by rater
 - 'p' -> bool [| u64le(cooldown seconds) | varstring(message)]
   throttle policy. Missing key means the default policy.

# Users
Records are created by Register and updated by Rate only. They are never
deleted.

# History
Record is created on the first successful rating of the ordered pair and is
overwritten on every next one.
*/
