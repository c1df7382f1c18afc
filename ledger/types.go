package ledger

import (
	"math"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/nosedive/ledger/ledgerconst"
)

// Identity is an opaque unique token of the ledger participant.
type Identity string

// Votes groups counters of the ratings given and received by the identity.
type Votes struct {
	Given    uint64 `json:"given"`
	Received uint64 `json:"received"`
}

// UserState is a ledger record of the registered identity. Votes are
// flattened in JSON.
type UserState struct {
	Rating float32 `json:"rating"`
	Votes
}

// DefaultUserState returns the state every identity gets upon registration.
func DefaultUserState() UserState {
	return UserState{
		Rating: ledgerconst.DefaultRating,
		Votes: Votes{
			Received: ledgerconst.DefaultReceived,
		},
	}
}

// EncodeBinary implements io.Serializable.
func (s *UserState) EncodeBinary(w *io.BinWriter) {
	w.WriteU32LE(math.Float32bits(s.Rating))
	w.WriteU64LE(s.Given)
	w.WriteU64LE(s.Received)
}

// DecodeBinary implements io.Serializable.
func (s *UserState) DecodeBinary(r *io.BinReader) {
	s.Rating = math.Float32frombits(r.ReadU32LE())
	s.Given = r.ReadU64LE()
	s.Received = r.ReadU64LE()
}

// DecodeUserState decodes UserState from the value of the users record.
func DecodeUserState(b []byte) (UserState, error) {
	var s UserState
	return s, decode(b, &s)
}

// Timestamps are the times (Unix nanoseconds) of the latest ratings between
// two identities. Nil field means there was no rating in that direction.
type Timestamps struct {
	YouRatedAt  *uint64 `json:"you_rated_at,omitempty"`
	TheyRatedAt *uint64 `json:"they_rated_at,omitempty"`
}

// ThrottlePolicy limits how often one identity may re-rate the same
// counterpart. Nil *ThrottlePolicy disables throttling.
type ThrottlePolicy struct {
	CooldownSeconds  uint64 `json:"cooldown_seconds"`
	RejectionMessage string `json:"rejection_message"`
}

// DefaultThrottlePolicy returns the policy in effect until the administrator
// replaces it.
func DefaultThrottlePolicy() *ThrottlePolicy {
	return &ThrottlePolicy{
		CooldownSeconds:  ledgerconst.DefaultCooldownSeconds,
		RejectionMessage: ledgerconst.DefaultRejectionMessage,
	}
}

// Patch is a single modification of the service state applied by
// Engine.PatchState.
type Patch interface {
	apply(*Engine) error
}

// SetVotingInterval replaces the throttle policy. Nil Interval disables
// throttling.
type SetVotingInterval struct {
	Interval *ThrottlePolicy
}

func (p SetVotingInterval) apply(e *Engine) error {
	return e.policy.set(p.Interval)
}

// policyRecord is a binary form of the optional ThrottlePolicy.
type policyRecord struct {
	policy *ThrottlePolicy
}

// EncodeBinary implements io.Serializable.
func (x *policyRecord) EncodeBinary(w *io.BinWriter) {
	w.WriteBool(x.policy != nil)
	if x.policy != nil {
		w.WriteU64LE(x.policy.CooldownSeconds)
		w.WriteString(x.policy.RejectionMessage)
	}
}

// DecodeBinary implements io.Serializable.
func (x *policyRecord) DecodeBinary(r *io.BinReader) {
	x.policy = nil
	if !r.ReadBool() {
		return
	}
	x.policy = new(ThrottlePolicy)
	x.policy.CooldownSeconds = r.ReadU64LE()
	x.policy.RejectionMessage = r.ReadString()
}

func encode(v io.Serializable) ([]byte, error) {
	w := io.NewBufBinWriter()
	v.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

func decode(b []byte, v io.Serializable) error {
	r := io.NewBinReaderFromBuf(b)
	v.DecodeBinary(r)
	return r.Err
}
