// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Reconnect tuning defaults. Observed production values; configurable
// via ReconnectConfig (and lib/config) rather than hard invariants.
const (
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 10
)

// ReconnectConfig tunes the backoff state machine.
type ReconnectConfig struct {
	// BaseDelay is the delay before the first reconnect attempt.
	// Zero means DefaultBaseDelay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth. Zero means DefaultMaxDelay.
	MaxDelay time.Duration

	// MaxAttempts is the consecutive-failure budget before the policy
	// reports exhaustion. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// withDefaults fills zero fields with the package defaults.
func (c ReconnectConfig) withDefaults() ReconnectConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// ReconnectPolicy is the exponential-backoff state machine governing
// reconnect timing. Delay for attempt N is min(base * 2^(N-1), max);
// attempts beyond the budget are refused with *ExhaustedError. At most
// one reconnect timer is pending at a time — scheduling while a timer
// is pending replaces it, so a disconnect/reconnect race can never
// stack timers.
//
// Safe for concurrent use. The attempt counter resets to zero on
// Reset, which the client calls on every successful connection.
type ReconnectPolicy struct {
	clock  clockwork.Clock
	config ReconnectConfig

	mu       sync.Mutex
	attempts int
	pending  clockwork.Timer
}

// NewReconnectPolicy creates a policy using the given clock for timer
// scheduling. Tests inject a fake clock to drive delays
// deterministically.
func NewReconnectPolicy(clock clockwork.Clock, config ReconnectConfig) *ReconnectPolicy {
	return &ReconnectPolicy{
		clock:  clock,
		config: config.withDefaults(),
	}
}

// Schedule registers fn to run after the next backoff delay,
// incrementing the attempt counter first. Any previously pending timer
// is replaced. Returns the scheduled delay, or an *ExhaustedError when
// the attempt budget is spent — in that case nothing is scheduled and
// the caller must surface a persistent disconnected state.
func (p *ReconnectPolicy) Schedule(fn func()) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attempts >= p.config.MaxAttempts {
		return 0, &ExhaustedError{Attempts: p.attempts}
	}
	p.attempts++

	delay := p.delayLocked(p.attempts)
	if p.pending != nil {
		p.pending.Stop()
	}
	p.pending = p.clock.AfterFunc(delay, fn)
	return delay, nil
}

// Cancel stops any pending reconnect timer without touching the
// attempt counter. Called on explicit disconnect so that a stopped
// client never wakes back up.
func (p *ReconnectPolicy) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
}

// Reset returns the policy to its initial state: attempt counter
// zeroed, delay back to base, pending timer cancelled. Called on every
// successful connection.
func (p *ReconnectPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = 0
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
}

// Attempts returns the current consecutive-failure count.
func (p *ReconnectPolicy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// NextDelay returns the delay the next Schedule call would use,
// without mutating state.
func (p *ReconnectPolicy) NextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delayLocked(p.attempts + 1)
}

// delayLocked computes min(base * 2^(attempt-1), max). The shift is
// guarded against overflow for large attempt counts.
func (p *ReconnectPolicy) delayLocked(attempt int) time.Duration {
	delay := p.config.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.config.MaxDelay || delay <= 0 {
			return p.config.MaxDelay
		}
	}
	if delay > p.config.MaxDelay {
		return p.config.MaxDelay
	}
	return delay
}
