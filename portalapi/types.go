// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package portalapi

import (
	"github.com/arbor-works/arbor/cache"
	"github.com/arbor-works/arbor/lib/ref"
)

// PageOptions controls cursor pagination for list endpoints.
type PageOptions struct {
	// Cursor is the pagination token from a previous page; empty
	// fetches the first page.
	Cursor string
	// Limit caps the number of entries per page; 0 uses the server
	// default.
	Limit int
}

// MessagePage is one page of a conversation's messages, oldest first.
type MessagePage struct {
	Messages   []cache.Message `json:"messages"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// ConversationListResponse is returned by ListConversations.
type ConversationListResponse struct {
	Conversations []cache.ConversationSummary `json:"conversations"`
}

// NotificationPage is one page of notifications, newest first.
type NotificationPage struct {
	Notifications []cache.Notification `json:"notifications"`
	NextCursor    string               `json:"next_cursor,omitempty"`
}

// UnreadCountResponse is returned by the unread-count endpoint.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID ref.UserID `json:"user_id"`
}

// sendMessageBody is the request body for message sends. ClientID is
// generated client-side and echoed back by the server on both the
// response and the message:created event.
type sendMessageBody struct {
	Body     string `json:"body"`
	ClientID string `json:"client_id"`
}
