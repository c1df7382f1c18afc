package ledger

import (
	"fmt"
	"math"
	"time"
)

// policyStore holds the optional ThrottlePolicy singleton.
type policyStore struct {
	p partition
}

// get returns the policy in effect. The default policy is returned until
// the first set.
func (s policyStore) get() (*ThrottlePolicy, error) {
	v, ok, err := s.p.get(nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return DefaultThrottlePolicy(), nil
	}

	var rec policyRecord
	if err = decode(v, &rec); err != nil {
		return nil, fmt.Errorf("decode throttle policy: %w", err)
	}
	return rec.policy, nil
}

func (s policyStore) set(p *ThrottlePolicy) error {
	if p != nil {
		cp := *p
		p = &cp
	}
	v, err := encode(&policyRecord{policy: p})
	if err != nil {
		return fmt.Errorf("encode throttle policy: %w", err)
	}
	s.p.set(nil, v)
	return nil
}

const maxCooldownSeconds = uint64(math.MaxInt64 / int64(time.Second))

// remaining checks whether a rating at now is too early after the one at
// last. Elapsed time is counted in whole seconds.
func (p *ThrottlePolicy) remaining(last, now uint64) (time.Duration, bool) {
	var elapsed uint64
	if now > last {
		elapsed = now - last
	}
	if elapsed/uint64(time.Second) >= p.CooldownSeconds {
		return 0, false
	}
	if p.CooldownSeconds > maxCooldownSeconds {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(p.CooldownSeconds*uint64(time.Second) - elapsed), true
}
