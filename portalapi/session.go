// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package portalapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/arbor-works/arbor/cache"
	"github.com/arbor-works/arbor/lib/credential"
	"github.com/arbor-works/arbor/lib/ref"
	"github.com/google/uuid"
)

// Session wraps a [Client] with a credential source for authenticated
// portal calls. The token is fetched fresh per request so rotation in
// the underlying source takes effect without rebuilding the session.
type Session struct {
	client *Client
	tokens credential.TokenSource
}

// NewSession creates an authenticated session over client.
func NewSession(client *Client, tokens credential.TokenSource) (*Session, error) {
	if client == nil {
		return nil, fmt.Errorf("portalapi: client is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("portalapi: token source is required")
	}
	return &Session{client: client, tokens: tokens}, nil
}

func (s *Session) token(ctx context.Context) (string, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("portalapi: acquiring token: %w", err)
	}
	return token, nil
}

func (s *Session) get(ctx context.Context, path string, query url.Values, result any) error {
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	body, err := s.client.doRequest(ctx, http.MethodGet, path, token, query, nil)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("portalapi: decoding response from %s: %w", path, err)
	}
	return nil
}

func (s *Session) post(ctx context.Context, path string, requestBody, result any) error {
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	body, err := s.client.doRequest(ctx, http.MethodPost, path, token, nil, requestBody)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("portalapi: decoding response from %s: %w", path, err)
	}
	return nil
}

func pageQuery(options PageOptions) url.Values {
	query := url.Values{}
	if options.Cursor != "" {
		query.Set("cursor", options.Cursor)
	}
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	return query
}

// WhoAmI returns the user the session's credentials authenticate as.
func (s *Session) WhoAmI(ctx context.Context) (ref.UserID, error) {
	var response WhoAmIResponse
	if err := s.get(ctx, "/api/v1/whoami", nil, &response); err != nil {
		return ref.UserID{}, err
	}
	return response.UserID, nil
}

// ListConversations returns the user's conversations, most recently
// active first.
func (s *Session) ListConversations(ctx context.Context) ([]cache.ConversationSummary, error) {
	var response ConversationListResponse
	if err := s.get(ctx, "/api/v1/conversations", nil, &response); err != nil {
		return nil, err
	}
	return response.Conversations, nil
}

// ConversationMessages returns one page of a conversation's messages,
// oldest first within the page.
func (s *Session) ConversationMessages(ctx context.Context, conversationID ref.ConversationID, options PageOptions) (*MessagePage, error) {
	path := "/api/v1/conversations/" + url.PathEscape(conversationID.String()) + "/messages"
	var page MessagePage
	if err := s.get(ctx, path, pageQuery(options), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMessage fetches a single message by ID.
func (s *Session) GetMessage(ctx context.Context, messageID ref.MessageID) (*cache.Message, error) {
	path := "/api/v1/messages/" + url.PathEscape(messageID.String())
	var message cache.Message
	if err := s.get(ctx, path, nil, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListNotifications returns one page of the user's notifications,
// newest first.
func (s *Session) ListNotifications(ctx context.Context, options PageOptions) (*NotificationPage, error) {
	var page NotificationPage
	if err := s.get(ctx, "/api/v1/notifications", pageQuery(options), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UnreadCount returns the user's unread notification count.
func (s *Session) UnreadCount(ctx context.Context) (int, error) {
	var response UnreadCountResponse
	if err := s.get(ctx, "/api/v1/notifications/unread_count", nil, &response); err != nil {
		return 0, err
	}
	return response.Count, nil
}

// SendMessage posts a message to a conversation and returns the
// authoritative server copy. clientID ties the send to a local echo in
// the cache; pass the value from [NewClientID], or empty to let
// SendMessage generate one. The server echoes the client ID on the
// response and on the message:created stream event.
func (s *Session) SendMessage(ctx context.Context, conversationID ref.ConversationID, body, clientID string) (*cache.Message, error) {
	if clientID == "" {
		clientID = NewClientID()
	}
	path := "/api/v1/conversations/" + url.PathEscape(conversationID.String()) + "/messages"
	var message cache.Message
	err := s.post(ctx, path, sendMessageBody{Body: body, ClientID: clientID}, &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// MarkMessageRead records a read receipt for the message on behalf of
// the session user.
func (s *Session) MarkMessageRead(ctx context.Context, messageID ref.MessageID) error {
	path := "/api/v1/messages/" + url.PathEscape(messageID.String()) + "/read"
	return s.post(ctx, path, nil, nil)
}

// AcknowledgeMessage records an acknowledgement receipt for the
// message on behalf of the session user.
func (s *Session) AcknowledgeMessage(ctx context.Context, messageID ref.MessageID) error {
	path := "/api/v1/messages/" + url.PathEscape(messageID.String()) + "/acknowledge"
	return s.post(ctx, path, nil, nil)
}

// MarkNotificationRead marks a single notification as read.
func (s *Session) MarkNotificationRead(ctx context.Context, notificationID ref.NotificationID) error {
	path := "/api/v1/notifications/" + url.PathEscape(notificationID.String()) + "/read"
	return s.post(ctx, path, nil, nil)
}

// NewClientID returns a fresh client-generated message ID for the
// optimistic send path.
func NewClientID() string {
	return uuid.NewString()
}

// PreloadStore populates a cache store with the session user's
// conversation list and first page of notifications, and seeds the
// unread count. Call once after connecting the event stream so
// invalidations raised during the fetch are not lost.
func (s *Session) PreloadStore(ctx context.Context, store *cache.Store) error {
	conversations, err := s.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("portalapi: preloading conversations: %w", err)
	}
	store.PopulateConversationList(conversations)

	notifications, err := s.ListNotifications(ctx, PageOptions{})
	if err != nil {
		return fmt.Errorf("portalapi: preloading notifications: %w", err)
	}
	unread, err := s.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("portalapi: preloading unread count: %w", err)
	}
	store.PopulateNotifications(notifications.Notifications, unread)
	return nil
}
