// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/arbor-works/arbor/cache"
	"github.com/arbor-works/arbor/lib/ref"
	"github.com/arbor-works/arbor/realtime"
)

// recordingSink captures sent messages, running an optional hook at
// send time so tests can observe surrounding state.
type recordingSink struct {
	msgs   []tea.Msg
	onSend func(tea.Msg)
}

func (r *recordingSink) Send(msg tea.Msg) {
	if r.onSend != nil {
		r.onSend(msg)
	}
	r.msgs = append(r.msgs, msg)
}

func TestStreamSubscriberDispatchesBeforeNotifying(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	store := cache.NewStore()
	reconciler := cache.NewReconciler(store, logger)
	presence := cache.NewPresenceTracker(nil, logger)
	router := realtime.NewRouter(logger)
	cache.Bind(router, reconciler, presence)

	alice, err := ref.ParseUserID("alice")
	if err != nil {
		t.Fatal(err)
	}

	// The roster refresh triggered by presenceChangedMsg reads the
	// tracker, so by the time the message is sent the frame must
	// already have been applied.
	var onlineWhenNotified bool
	sink := &recordingSink{onSend: func(msg tea.Msg) {
		if _, ok := msg.(presenceChangedMsg); ok {
			onlineWhenNotified = presence.IsOnline(alice)
		}
	}}

	subscriber := newStreamSubscriber(sink, router)
	subscriber.StreamFrame(realtime.Frame{
		Type: realtime.EventUserOnline,
		Data: map[string]any{"user_id": "alice"},
	})

	if len(sink.msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sink.msgs))
	}
	if _, ok := sink.msgs[0].(presenceChangedMsg); !ok {
		t.Fatalf("message = %T, want presenceChangedMsg", sink.msgs[0])
	}
	if !onlineWhenNotified {
		t.Error("presence change notified before the tracker was updated")
	}

	// Non-presence frames route without a presence notification.
	subscriber.StreamFrame(realtime.Frame{
		Type: realtime.EventMessageCreated,
		Data: map[string]any{"id": "m1", "conversation_id": "conv_1"},
	})
	if len(sink.msgs) != 1 {
		t.Errorf("sent %d messages after message frame, want still 1", len(sink.msgs))
	}
}
