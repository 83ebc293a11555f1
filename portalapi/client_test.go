// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package portalapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arbor-works/arbor/cache"
	"github.com/arbor-works/arbor/lib/credential"
	"github.com/arbor-works/arbor/lib/ref"
)

func newTestSession(t *testing.T, handler http.Handler) (*Session, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	session, err := NewSession(client, credential.Static("test-token"))
	if err != nil {
		t.Fatal(err)
	}
	return session, server
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"valid https", "https://portal.example.com", false},
		{"valid http", "http://localhost:8080", false},
		{"trailing slash trimmed", "https://portal.example.com/", false},
		{"empty", "", true},
		{"bad scheme", "ftp://portal.example.com", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(ClientConfig{BaseURL: tc.baseURL})
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := client.BaseURL(); len(got) > 0 && got[len(got)-1] == '/' {
				t.Errorf("BaseURL %q keeps trailing slash", got)
			}
		})
	}
}

func TestSessionWhoAmI(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/whoami" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewEncoder(w).Encode(map[string]string{"user_id": "alice"})
	}))

	userID, err := session.WhoAmI(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if userID.String() != "alice" {
		t.Errorf("user = %q", userID)
	}
}

func TestSessionErrorMapping(t *testing.T) {
	t.Run("structured portal error", func(t *testing.T) {
		session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"code":    "not_found",
				"message": "no such message",
			})
		}))

		_, err := session.GetMessage(context.Background(), mustMessageID(t, "m1"))
		if !IsPortalError(err, ErrCodeNotFound) {
			t.Fatalf("err = %v, want portal not_found", err)
		}
		var portalErr *PortalError
		if !errors.As(err, &portalErr) {
			t.Fatal("not a *PortalError")
		}
		if portalErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d", portalErr.StatusCode)
		}
		if portalErr.Message != "no such message" {
			t.Errorf("Message = %q", portalErr.Message)
		}
	})

	t.Run("unstructured error body", func(t *testing.T) {
		session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gateway timeout", http.StatusTooManyRequests)
		}))

		err := session.MarkMessageRead(context.Background(), mustMessageID(t, "m1"))
		if !IsPortalError(err, ErrCodeRateLimited) {
			t.Fatalf("err = %v, want rate_limited from status mapping", err)
		}
	})

	t.Run("token failure short-circuits", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{BaseURL: server.URL})
		if err != nil {
			t.Fatal(err)
		}
		session, err := NewSession(client, credential.Static(""))
		if err != nil {
			t.Fatal(err)
		}

		_, err = session.WhoAmI(context.Background())
		if !errors.Is(err, credential.ErrNoToken) {
			t.Fatalf("err = %v, want ErrNoToken", err)
		}
		if requests != 0 {
			t.Errorf("made %d requests without a token", requests)
		}
	})
}

func TestSessionConversationMessagesPagination(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/conversations/conv_1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if cursor := r.URL.Query().Get("cursor"); cursor != "page2" {
			t.Errorf("cursor = %q", cursor)
		}
		if limit := r.URL.Query().Get("limit"); limit != "50" {
			t.Errorf("limit = %q", limit)
		}
		json.NewEncoder(w).Encode(MessagePage{
			Messages: []cache.Message{{
				ID:        mustMessageID(t, "m1"),
				Body:      "hello",
				CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			}},
			NextCursor: "page3",
		})
	}))

	page, err := session.ConversationMessages(context.Background(),
		mustConversationID(t, "conv_1"),
		PageOptions{Cursor: "page2", Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 1 || page.Messages[0].Body != "hello" {
		t.Errorf("messages = %+v", page.Messages)
	}
	if page.NextCursor != "page3" {
		t.Errorf("NextCursor = %q", page.NextCursor)
	}
}

func TestSessionSendMessage(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path != "/api/v1/conversations/conv_1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body sendMessageBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Body != "hello" {
			t.Errorf("body = %q", body.Body)
		}
		if body.ClientID == "" {
			t.Error("client ID not generated")
		}
		json.NewEncoder(w).Encode(cache.Message{
			ID:        mustMessageID(t, "m_new"),
			Body:      body.Body,
			ClientID:  body.ClientID,
			Status:    "sent",
			CreatedAt: time.Now().UTC(),
		})
	}))

	message, err := session.SendMessage(context.Background(), mustConversationID(t, "conv_1"), "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if message.ID.String() != "m_new" {
		t.Errorf("id = %q", message.ID)
	}
	if message.ClientID == "" {
		t.Error("server echo of client ID lost")
	}
}

func TestSessionPreloadStore(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/conversations":
			json.NewEncoder(w).Encode(ConversationListResponse{
				Conversations: []cache.ConversationSummary{{
					ID:    mustConversationID(t, "conv_1"),
					Title: "General",
				}},
			})
		case "/api/v1/notifications":
			json.NewEncoder(w).Encode(NotificationPage{
				Notifications: []cache.Notification{{Title: "Welcome"}},
			})
		case "/api/v1/notifications/unread_count":
			json.NewEncoder(w).Encode(UnreadCountResponse{Count: 4})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	store := cache.NewStore()
	if err := session.PreloadStore(context.Background(), store); err != nil {
		t.Fatal(err)
	}

	conversations, fresh := store.Conversations()
	if !fresh || len(conversations) != 1 || conversations[0].Title != "General" {
		t.Errorf("conversations = %+v (fresh=%v)", conversations, fresh)
	}
	notifications, fresh := store.Notifications()
	if !fresh || len(notifications) != 1 {
		t.Errorf("notifications = %+v (fresh=%v)", notifications, fresh)
	}
	count, fresh := store.UnreadCount()
	if !fresh || count != 4 {
		t.Errorf("unread = %d (fresh=%v)", count, fresh)
	}
}

func mustMessageID(t *testing.T, raw string) ref.MessageID {
	t.Helper()
	id, err := ref.ParseMessageID(raw)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func mustConversationID(t *testing.T, raw string) ref.ConversationID {
	t.Helper()
	id, err := ref.ParseConversationID(raw)
	if err != nil {
		t.Fatal(err)
	}
	return id
}
