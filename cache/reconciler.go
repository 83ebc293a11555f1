// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/arbor-works/arbor/lib/ref"
	"github.com/arbor-works/arbor/realtime"
)

// Reconciler applies stream event payloads to the Store. It is total:
// no payload, however malformed, makes it fail — defensive checks skip
// the targeted patch, and the safety-net invalidation still runs so
// the UI refetches an authoritative view.
//
// Apply is driven by the stream dispatch goroutine via the router;
// frames arrive in delivery order and are applied synchronously, so
// cache state always reflects the event sequence as the server sent
// it.
type Reconciler struct {
	store  *Store
	logger *slog.Logger
}

// NewReconciler creates a reconciler writing into store. A nil logger
// means slog.Default().
func NewReconciler(store *Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// messagePayload is the pinned wire contract for message events. One
// shape for the whole category — the server never varies field names
// per event type.
type messagePayload struct {
	ID             ref.MessageID      `json:"id"`
	ConversationID ref.ConversationID `json:"conversation_id"`
	SenderID       ref.UserID         `json:"sender_id"`
	Body           string             `json:"body"`
	Status         string             `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	ClientID       string             `json:"client_id"`
	Receipt        *receiptPayload    `json:"receipt"`
}

// receiptPayload carries the updated per-user receipt on message:read
// and message:acknowledged events.
type receiptPayload struct {
	UserID ref.UserID  `json:"user_id"`
	Kind   ReceiptKind `json:"kind"`
	At     time.Time   `json:"at"`
}

// Apply reconciles one frame into the store.
func (r *Reconciler) Apply(frame realtime.Frame) {
	switch frame.Type {
	case realtime.EventMessageCreated:
		r.applyMessageCreated(frame)
	case realtime.EventMessageRead, realtime.EventMessageAcknowledged:
		r.applyReceipt(frame)
	case realtime.EventMessageStatusUpdated:
		r.applyStatusUpdate(frame)
	case realtime.EventNotificationCreated, realtime.EventNotificationRead:
		// Notification lists have derived counts and cheap fetches:
		// no targeted patch, just refetch.
		r.store.Invalidate(ref.ConversationID{}, InvalidateNotifications, InvalidateUnreadCount)
	default:
		r.logger.Debug("reconciler ignoring event", "event_type", frame.Type)
	}
}

func (r *Reconciler) applyMessageCreated(frame realtime.Frame) {
	payload, ok := r.decode(frame)
	if ok && !payload.ID.IsZero() {
		r.store.UpsertMessage(Message{
			ID:             payload.ID,
			ConversationID: payload.ConversationID,
			SenderID:       payload.SenderID,
			Body:           payload.Body,
			Status:         payload.Status,
			CreatedAt:      payload.CreatedAt,
			ClientID:       payload.ClientID,
		})
	}
	// Paginated and filtered views cannot be patched from a single
	// event; always force a refetch, even when the targeted upsert
	// was skipped.
	r.store.Invalidate(payload.ConversationID, InvalidateMessages, InvalidateConversations)
}

func (r *Reconciler) applyReceipt(frame realtime.Frame) {
	payload, ok := r.decode(frame)
	if ok && !payload.ID.IsZero() && payload.Receipt != nil && !payload.Receipt.UserID.IsZero() {
		kind := payload.Receipt.Kind
		if kind == "" {
			if frame.Type == realtime.EventMessageAcknowledged {
				kind = ReceiptAcknowledged
			} else {
				kind = ReceiptRead
			}
		}
		r.store.MergeReceipt(payload.ID, Receipt{
			UserID: payload.Receipt.UserID,
			Kind:   kind,
			At:     payload.Receipt.At,
		})
	}
	// Conversation summaries carry per-conversation unread counts, which
	// a read receipt changes.
	r.store.Invalidate(payload.ConversationID, InvalidateMessages, InvalidateConversations)
}

func (r *Reconciler) applyStatusUpdate(frame realtime.Frame) {
	payload, ok := r.decode(frame)
	if ok && !payload.ID.IsZero() && payload.Status != "" {
		r.store.PatchMessageStatus(payload.ID, payload.Status)
	}
	r.store.Invalidate(payload.ConversationID, InvalidateMessages)
}

// decode round-trips the frame's payload through JSON into the pinned
// message shape. Returns ok=false for payloads that are not objects —
// the caller still invalidates.
func (r *Reconciler) decode(frame realtime.Frame) (messagePayload, bool) {
	var payload messagePayload
	object, ok := frame.Data.(map[string]any)
	if !ok {
		r.logger.Warn("message event payload is not an object",
			"event_type", frame.Type,
		)
		return payload, false
	}
	encoded, err := json.Marshal(object)
	if err != nil {
		r.logger.Warn("message event payload failed to re-encode",
			"event_type", frame.Type, "error", err,
		)
		return payload, false
	}
	if err := json.Unmarshal(encoded, &payload); err != nil {
		r.logger.Warn("message event payload failed to decode",
			"event_type", frame.Type, "error", err,
		)
		return payload, false
	}
	return payload, true
}
