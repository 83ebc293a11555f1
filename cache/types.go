// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"time"

	"github.com/arbor-works/arbor/lib/ref"
)

// ReceiptKind distinguishes per-user message receipts.
type ReceiptKind string

const (
	// ReceiptRead records that a user has read the message.
	ReceiptRead ReceiptKind = "read"
	// ReceiptAcknowledged records an explicit acknowledgement
	// (required-reading confirmation in the portal UI).
	ReceiptAcknowledged ReceiptKind = "acknowledged"
)

// Receipt is one user's read or acknowledgement state for a message.
// A message holds at most one receipt per user per kind; merging a
// receipt replaces the previous entry for that user and kind.
type Receipt struct {
	UserID ref.UserID  `json:"user_id"`
	Kind   ReceiptKind `json:"kind"`
	At     time.Time   `json:"at"`
}

// Message is the cached projection of one portal message.
type Message struct {
	ID             ref.MessageID      `json:"id"`
	ConversationID ref.ConversationID `json:"conversation_id"`
	SenderID       ref.UserID         `json:"sender_id"`
	Body           string             `json:"body"`

	// Status is the delivery status ("pending", "sent", "delivered",
	// "failed"). Patched in place by message:status_updated events.
	Status string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	Receipts  []Receipt `json:"receipts,omitempty"`

	// ClientID is the client-generated identifier attached to
	// user-initiated sends. The server echoes it back on the
	// authoritative message:created event so the reconciler can
	// replace the optimistic local echo.
	ClientID string `json:"client_id,omitempty"`

	// Local marks an optimistic echo that the server has not yet
	// confirmed. Never set on server-derived entries.
	Local bool `json:"-"`
}

// Notification is the cached projection of one portal notification.
// Notification lists are invalidate-and-refetch only — the derived
// grouping and unread counts are too entangled for targeted patching
// to be worth it — so this type exists for population and display, not
// event patching.
type Notification struct {
	ID        ref.NotificationID `json:"id"`
	Kind      string             `json:"kind"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Read      bool               `json:"read"`
	CreatedAt time.Time          `json:"created_at"`
}

// ConversationSummary is the cached projection of a conversation list
// entry.
type ConversationSummary struct {
	ID           ref.ConversationID `json:"id"`
	Title        string             `json:"title"`
	Participants []ref.UserID       `json:"participants,omitempty"`
	LastActivity time.Time          `json:"last_activity"`
	UnreadCount  int                `json:"unread_count"`
}

// InvalidationKind identifies which broad cache a signal refers to.
type InvalidationKind string

const (
	// InvalidateMessages covers paginated/filtered message list views.
	InvalidateMessages InvalidationKind = "messages"
	// InvalidateConversations covers the conversation list.
	InvalidateConversations InvalidationKind = "conversations"
	// InvalidateNotifications covers the notification list.
	InvalidateNotifications InvalidationKind = "notifications"
	// InvalidateUnreadCount covers the unread-count badge.
	InvalidateUnreadCount InvalidationKind = "unread_count"
)

// Invalidation is the signal emitted when a broad cache goes stale.
// UI collaborators subscribe to these to schedule refetches.
type Invalidation struct {
	Kind InvalidationKind

	// Conversation scopes message invalidations to one conversation
	// when known; zero for global invalidations.
	Conversation ref.ConversationID
}
