package ledger

import (
	"fmt"
)

// registry maps identities to their states.
type registry struct {
	users partition
}

func (r registry) register(id Identity) error {
	exists, err := r.users.contains([]byte(id))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: [%s]", ErrAlreadyRegistered, id)
	}

	return r.put(id, DefaultUserState())
}

// lookup returns state of the registered identity or ErrNotRegistered.
func (r registry) lookup(id Identity) (UserState, error) {
	v, ok, err := r.users.get([]byte(id))
	if err != nil {
		return UserState{}, err
	}
	if !ok {
		return UserState{}, notRegistered(id)
	}

	st, err := DecodeUserState(v)
	if err != nil {
		return UserState{}, fmt.Errorf("decode state of [%s]: %w", id, err)
	}
	return st, nil
}

func (r registry) put(id Identity, st UserState) error {
	v, err := encode(&st)
	if err != nil {
		return fmt.Errorf("encode state of [%s]: %w", id, err)
	}
	r.users.set([]byte(id), v)
	return nil
}
