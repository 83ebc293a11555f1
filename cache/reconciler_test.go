// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-works/arbor/realtime"
)

func newTestReconciler(t *testing.T) (*Reconciler, *Store, *[]Invalidation) {
	t.Helper()
	store := NewStore()
	var signals []Invalidation
	store.OnInvalidate(func(inv Invalidation) { signals = append(signals, inv) })
	return NewReconciler(store, nil), store, &signals
}

func createdFrame(id, conversation, body string, at time.Time) realtime.Frame {
	return realtime.Frame{
		Type: realtime.EventMessageCreated,
		Data: map[string]any{
			"id":              id,
			"conversation_id": conversation,
			"sender_id":       "alice",
			"body":            body,
			"status":          "sent",
			"created_at":      at.Format(time.RFC3339),
		},
	}
}

func TestReconcilerMessageCreated(t *testing.T) {
	reconciler, store, signals := newTestReconciler(t)
	conversation := mustConversationID(t, "conv_1")
	store.PopulateConversation(conversation, nil)

	reconciler.Apply(createdFrame("m1", "conv_1", "hello", base))

	list, _ := store.ConversationMessages(conversation)
	require.Len(t, list, 1)
	assert.Equal(t, "hello", list[0].Body)
	assert.Equal(t, "alice", list[0].SenderID.String())

	require.Len(t, *signals, 2)
	assert.Equal(t, InvalidateMessages, (*signals)[0].Kind)
	assert.Equal(t, InvalidateConversations, (*signals)[1].Kind)
	assert.Equal(t, conversation, (*signals)[0].Conversation)
}

func TestReconcilerDuplicateDeliveryIsIdempotent(t *testing.T) {
	reconciler, store, _ := newTestReconciler(t)
	conversation := mustConversationID(t, "conv_1")
	store.PopulateConversation(conversation, nil)

	frame := createdFrame("m1", "conv_1", "hello", base)
	reconciler.Apply(frame)
	reconciler.Apply(frame)

	list, _ := store.ConversationMessages(conversation)
	assert.Len(t, list, 1, "at-least-once delivery must not duplicate")
}

func TestReconcilerReceiptEvents(t *testing.T) {
	t.Run("read receipt", func(t *testing.T) {
		reconciler, store, signals := newTestReconciler(t)
		conversation := mustConversationID(t, "conv_1")
		store.PopulateConversation(conversation, []Message{testMessage(t, "m1", "conv_1", base)})

		reconciler.Apply(realtime.Frame{
			Type: realtime.EventMessageRead,
			Data: map[string]any{
				"id":              "m1",
				"conversation_id": "conv_1",
				"receipt": map[string]any{
					"user_id": "bob",
					"at":      base.Add(time.Minute).Format(time.RFC3339),
				},
			},
		})

		message, _ := store.Message(mustMessageID(t, "m1"))
		require.Len(t, message.Receipts, 1)
		assert.Equal(t, ReceiptRead, message.Receipts[0].Kind, "kind inferred from event type")
		assert.Equal(t, "bob", message.Receipts[0].UserID.String())

		// A read receipt changes the per-conversation unread count, so
		// conversation summaries go stale along with the message views.
		require.Len(t, *signals, 2)
		assert.Equal(t, InvalidateMessages, (*signals)[0].Kind)
		assert.Equal(t, InvalidateConversations, (*signals)[1].Kind)
		assert.Equal(t, conversation, (*signals)[1].Conversation)
	})

	t.Run("acknowledged receipt", func(t *testing.T) {
		reconciler, store, _ := newTestReconciler(t)
		conversation := mustConversationID(t, "conv_1")
		store.PopulateConversation(conversation, []Message{testMessage(t, "m1", "conv_1", base)})

		reconciler.Apply(realtime.Frame{
			Type: realtime.EventMessageAcknowledged,
			Data: map[string]any{
				"id": "m1",
				"receipt": map[string]any{
					"user_id": "bob",
				},
			},
		})

		message, _ := store.Message(mustMessageID(t, "m1"))
		require.Len(t, message.Receipts, 1)
		assert.Equal(t, ReceiptAcknowledged, message.Receipts[0].Kind)
	})

	t.Run("explicit kind wins over event type", func(t *testing.T) {
		reconciler, store, _ := newTestReconciler(t)
		conversation := mustConversationID(t, "conv_1")
		store.PopulateConversation(conversation, []Message{testMessage(t, "m1", "conv_1", base)})

		reconciler.Apply(realtime.Frame{
			Type: realtime.EventMessageRead,
			Data: map[string]any{
				"id": "m1",
				"receipt": map[string]any{
					"user_id": "bob",
					"kind":    "acknowledged",
				},
			},
		})

		message, _ := store.Message(mustMessageID(t, "m1"))
		require.Len(t, message.Receipts, 1)
		assert.Equal(t, ReceiptAcknowledged, message.Receipts[0].Kind)
	})
}

func TestReconcilerStatusUpdate(t *testing.T) {
	reconciler, store, _ := newTestReconciler(t)
	conversation := mustConversationID(t, "conv_1")
	store.PopulateConversation(conversation, []Message{testMessage(t, "m1", "conv_1", base)})

	reconciler.Apply(realtime.Frame{
		Type: realtime.EventMessageStatusUpdated,
		Data: map[string]any{
			"id":              "m1",
			"conversation_id": "conv_1",
			"status":          "delivered",
		},
	})

	message, _ := store.Message(mustMessageID(t, "m1"))
	assert.Equal(t, "delivered", message.Status)
}

func TestReconcilerMalformedPayloadStillInvalidates(t *testing.T) {
	tests := []struct {
		name string
		data any
	}{
		{"string payload", "not an object"},
		{"nil payload", nil},
		{"array payload", []any{1, 2}},
		{"missing id", map[string]any{"body": "x"}},
		{"invalid id", map[string]any{"id": "bad id with spaces"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reconciler, store, signals := newTestReconciler(t)
			conversation := mustConversationID(t, "conv_1")
			store.PopulateConversation(conversation, nil)

			reconciler.Apply(realtime.Frame{Type: realtime.EventMessageCreated, Data: tc.data})

			list, _ := store.ConversationMessages(conversation)
			assert.Empty(t, list, "no message fabricated from a bad payload")
			require.NotEmpty(t, *signals, "safety-net invalidation must fire")
			assert.Equal(t, InvalidateMessages, (*signals)[0].Kind)
		})
	}
}

func TestReconcilerNotificationEvents(t *testing.T) {
	reconciler, store, signals := newTestReconciler(t)
	store.PopulateNotifications(nil, 1)

	reconciler.Apply(realtime.Frame{
		Type: realtime.EventNotificationCreated,
		Data: map[string]any{"id": "n1"},
	})

	require.Len(t, *signals, 2)
	assert.Equal(t, InvalidateNotifications, (*signals)[0].Kind)
	assert.Equal(t, InvalidateUnreadCount, (*signals)[1].Kind)

	_, fresh := store.Notifications()
	assert.False(t, fresh)
	_, fresh = store.UnreadCount()
	assert.False(t, fresh)
}

func TestReconcilerIgnoresForeignEvents(t *testing.T) {
	reconciler, _, signals := newTestReconciler(t)

	reconciler.Apply(realtime.Frame{Type: realtime.EventUserOnline, Data: map[string]any{"user_id": "u1"}})
	reconciler.Apply(realtime.Frame{Type: "something:new", Data: map[string]any{}})

	assert.Empty(t, *signals, "non-message events produce no cache activity")
}

func TestReconcilerOrderPreserved(t *testing.T) {
	reconciler, store, _ := newTestReconciler(t)
	conversation := mustConversationID(t, "conv_1")
	store.PopulateConversation(conversation, nil)

	// Events applied in arrival order: create, then a status update for
	// the same message. The final state must reflect the later event.
	reconciler.Apply(createdFrame("m1", "conv_1", "hello", base))
	reconciler.Apply(realtime.Frame{
		Type: realtime.EventMessageStatusUpdated,
		Data: map[string]any{"id": "m1", "conversation_id": "conv_1", "status": "delivered"},
	})

	message, _ := store.Message(mustMessageID(t, "m1"))
	assert.Equal(t, "delivered", message.Status)
}
