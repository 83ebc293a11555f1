// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestReconnectDelayGrowth(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := NewReconnectPolicy(clock, ReconnectConfig{})

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped, not 32
		30 * time.Second,
	}
	for i, expected := range want {
		delay, err := policy.Schedule(func() {})
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i+1, err)
		}
		if delay != expected {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, delay, expected)
		}
	}
}

func TestReconnectExhaustion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := NewReconnectPolicy(clock, ReconnectConfig{MaxAttempts: 3})

	for i := 0; i < 3; i++ {
		if _, err := policy.Schedule(func() {}); err != nil {
			t.Fatalf("attempt %d refused early: %v", i+1, err)
		}
	}

	_, err := policy.Schedule(func() {})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %T, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if !IsExhausted(err) {
		t.Error("IsExhausted = false")
	}
}

func TestReconnectResetRestoresBudgetAndDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := NewReconnectPolicy(clock, ReconnectConfig{MaxAttempts: 2})

	policy.Schedule(func() {})
	policy.Schedule(func() {})
	if _, err := policy.Schedule(func() {}); err == nil {
		t.Fatal("expected exhaustion before reset")
	}

	policy.Reset()
	if policy.Attempts() != 0 {
		t.Errorf("Attempts after reset = %d, want 0", policy.Attempts())
	}
	delay, err := policy.Schedule(func() {})
	if err != nil {
		t.Fatalf("schedule after reset: %v", err)
	}
	if delay != DefaultBaseDelay {
		t.Errorf("delay after reset = %v, want base %v", delay, DefaultBaseDelay)
	}
}

func TestReconnectSingleTimerPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := NewReconnectPolicy(clock, ReconnectConfig{})

	fired := make(chan string, 4)
	policy.Schedule(func() { fired <- "first" })
	policy.Schedule(func() { fired <- "second" })

	// Advance far beyond both delays. Only the replacement timer may
	// fire: scheduling while a timer is pending replaces it.
	clock.Advance(time.Minute)

	select {
	case name := <-fired:
		if name != "second" {
			t.Fatalf("stale timer fired: %q", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reconnect timer")
	}
	select {
	case name := <-fired:
		t.Fatalf("extra timer fired: %q", name)
	default:
	}
}

func TestReconnectCancelStopsPendingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := NewReconnectPolicy(clock, ReconnectConfig{})

	fired := make(chan struct{}, 1)
	policy.Schedule(func() { fired <- struct{}{} })
	policy.Cancel()

	clock.Advance(time.Minute)
	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	default:
	}

	// Cancel does not touch the attempt counter.
	if policy.Attempts() != 1 {
		t.Errorf("Attempts after cancel = %d, want 1", policy.Attempts())
	}
}

func TestReconnectTimerFiresAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := NewReconnectPolicy(clock, ReconnectConfig{BaseDelay: 5 * time.Second})

	fired := make(chan struct{}, 1)
	delay, err := policy.Schedule(func() { fired <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	if delay != 5*time.Second {
		t.Fatalf("delay = %v, want 5s", delay)
	}

	clock.Advance(4 * time.Second)
	select {
	case <-fired:
		t.Fatal("timer fired before the scheduled delay")
	default:
	}

	clock.Advance(1 * time.Second)
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire at the scheduled delay")
	}
}

func TestNextDelayDoesNotMutate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := NewReconnectPolicy(clock, ReconnectConfig{})

	if d := policy.NextDelay(); d != 1*time.Second {
		t.Errorf("NextDelay = %v, want 1s", d)
	}
	if d := policy.NextDelay(); d != 1*time.Second {
		t.Errorf("NextDelay mutated state: second call = %v", d)
	}
	if policy.Attempts() != 0 {
		t.Errorf("Attempts = %d after NextDelay, want 0", policy.Attempts())
	}
}

func TestReconnectCustomConfig(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := NewReconnectPolicy(clock, ReconnectConfig{
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 5,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
	}
	for i, expected := range want {
		delay, err := policy.Schedule(func() {})
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if delay != expected {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, delay, expected)
		}
	}
	if _, err := policy.Schedule(func() {}); !IsExhausted(err) {
		t.Errorf("expected exhaustion after 5 attempts, got %v", err)
	}
}
