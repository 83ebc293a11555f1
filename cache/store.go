// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sort"
	"sync"

	"github.com/arbor-works/arbor/lib/ref"
)

// Store holds the in-memory read model. All state is rebuilt on page
// load from the portal API plus live stream corrections; nothing is
// persisted.
//
// Mutation comes from the reconciler (single stream-dispatch
// goroutine) and the portal API population path; reads come from UI
// goroutines. The mutex guards that boundary. Mutating methods emit
// invalidation signals synchronously after releasing the lock, so
// signal order matches mutation order.
type Store struct {
	mu sync.RWMutex

	messages      map[ref.MessageID]Message
	conversations map[ref.ConversationID][]Message

	conversationList  []ConversationSummary
	conversationFresh bool

	notifications      []Notification
	notificationsFresh bool

	unreadCount int
	unreadFresh bool

	messagesFresh bool

	onInvalidate []func(Invalidation)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		messages:      make(map[ref.MessageID]Message),
		conversations: make(map[ref.ConversationID][]Message),
	}
}

// OnInvalidate registers a callback for invalidation signals.
// Callbacks run synchronously on the mutating goroutine in
// registration order; hand off to your own goroutine for anything
// slow. Register before the stream starts.
func (s *Store) OnInvalidate(fn func(Invalidation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Message returns the cached message detail for id.
func (s *Store) Message(id ref.MessageID) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	message, ok := s.messages[id]
	return message, ok
}

// ConversationMessages returns a copy of the cached message list for a
// conversation, or ok=false when the conversation has not been
// populated.
func (s *Store) ConversationMessages(id ref.ConversationID) ([]Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.conversations[id]
	if !ok {
		return nil, false
	}
	out := make([]Message, len(list))
	copy(out, list)
	return out, true
}

// Conversations returns the cached conversation list and whether it is
// fresh. A stale list is still returned — the UI can render it while
// the refetch is in flight.
func (s *Store) Conversations() ([]ConversationSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConversationSummary, len(s.conversationList))
	copy(out, s.conversationList)
	return out, s.conversationFresh
}

// Notifications returns the cached notification list and whether it is
// fresh.
func (s *Store) Notifications() ([]Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out, s.notificationsFresh
}

// UnreadCount returns the cached unread notification count and whether
// it is fresh.
func (s *Store) UnreadCount() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadCount, s.unreadFresh
}

// MessagesFresh reports whether broad message list views are fresh.
func (s *Store) MessagesFresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messagesFresh
}

// PopulateConversation replaces a conversation's message list from a
// portal API fetch. Messages are stored in chronological order and
// mirrored into the detail cache.
func (s *Store) PopulateConversation(id ref.ConversationID, messages []Message) {
	list := make([]Message, len(messages))
	copy(list, messages)
	for i := range list {
		list[i].Receipts = cloneReceipts(list[i].Receipts)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	s.mu.Lock()
	s.conversations[id] = list
	for _, message := range list {
		s.messages[message.ID] = message
	}
	s.messagesFresh = true
	s.mu.Unlock()
}

// PopulateConversationList replaces the conversation list from a
// portal API fetch and marks it fresh.
func (s *Store) PopulateConversationList(list []ConversationSummary) {
	out := make([]ConversationSummary, len(list))
	copy(out, list)

	s.mu.Lock()
	s.conversationList = out
	s.conversationFresh = true
	s.mu.Unlock()
}

// PopulateNotifications replaces the notification list and unread
// count from a portal API fetch and marks both fresh.
func (s *Store) PopulateNotifications(list []Notification, unread int) {
	out := make([]Notification, len(list))
	copy(out, list)

	s.mu.Lock()
	s.notifications = out
	s.notificationsFresh = true
	s.unreadCount = unread
	s.unreadFresh = true
	s.mu.Unlock()
}

// UpsertMessage inserts or updates a message in the detail cache and,
// when that conversation's list is populated, in the list as well:
// in place when the ID already exists at any position, otherwise
// appended preserving chronological order. A server-confirmed message
// carrying a ClientID replaces any matching optimistic local echo.
// Idempotent — upserting the same message twice equals once.
//
// Conversations that have never been populated are left untouched: a
// partial list created from events alone would masquerade as a
// complete fetch result. The accompanying invalidation (issued by the
// reconciler) covers those views.
func (s *Store) UpsertMessage(message Message) {
	if message.ID.IsZero() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[message.ID] = message

	list, ok := s.conversations[message.ConversationID]
	if !ok {
		return
	}

	// Server confirmation of an optimistic send: drop the local echo
	// the confirmed message replaces.
	if message.ClientID != "" && !message.Local {
		for i, existing := range list {
			if existing.Local && existing.ClientID == message.ClientID {
				delete(s.messages, existing.ID)
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
	}

	for i, existing := range list {
		if existing.ID == message.ID {
			list[i] = message
			s.conversations[message.ConversationID] = list
			return
		}
	}

	// Append preserving chronological order. Events almost always
	// arrive newest-last, so scan from the tail.
	insert := len(list)
	for insert > 0 && message.CreatedAt.Before(list[insert-1].CreatedAt) {
		insert--
	}
	list = append(list, Message{})
	copy(list[insert+1:], list[insert:])
	list[insert] = message
	s.conversations[message.ConversationID] = list
}

// MergeReceipt merges a per-user receipt into the cached message,
// replacing any existing receipt for the same user and kind, else
// appending. No-op when the message is not cached.
func (s *Store) MergeReceipt(id ref.MessageID, receipt Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutateLocked(id, func(message *Message) {
		// Copy-on-write: the current slice may be aliased by snapshots
		// handed to readers before this event arrived, so never write
		// into its backing array.
		receipts := make([]Receipt, len(message.Receipts), len(message.Receipts)+1)
		copy(receipts, message.Receipts)
		for i := range receipts {
			if receipts[i].UserID == receipt.UserID && receipts[i].Kind == receipt.Kind {
				receipts[i] = receipt
				message.Receipts = receipts
				return
			}
		}
		message.Receipts = append(receipts, receipt)
	})
}

// cloneReceipts returns an independent copy of a receipt slice. Nil in,
// nil out.
func cloneReceipts(receipts []Receipt) []Receipt {
	if receipts == nil {
		return nil
	}
	out := make([]Receipt, len(receipts))
	copy(out, receipts)
	return out
}

// PatchMessageStatus patches the delivery status on a cached message
// in place. No-op when the message is not cached.
func (s *Store) PatchMessageStatus(id ref.MessageID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutateLocked(id, func(message *Message) {
		message.Status = status
	})
}

// mutateLocked applies fn to the detail cache entry and to the copy
// held in the owning conversation's list, keeping the two projections
// consistent. Caller holds s.mu.
func (s *Store) mutateLocked(id ref.MessageID, fn func(*Message)) {
	message, ok := s.messages[id]
	if !ok {
		return
	}
	fn(&message)
	s.messages[id] = message

	list, ok := s.conversations[message.ConversationID]
	if !ok {
		return
	}
	for i := range list {
		if list[i].ID == id {
			list[i] = message
			return
		}
	}
}

// Invalidate marks the named broad caches stale and emits one signal
// per kind, in argument order.
func (s *Store) Invalidate(conversation ref.ConversationID, kinds ...InvalidationKind) {
	s.mu.Lock()
	for _, kind := range kinds {
		switch kind {
		case InvalidateMessages:
			s.messagesFresh = false
		case InvalidateConversations:
			s.conversationFresh = false
		case InvalidateNotifications:
			s.notificationsFresh = false
		case InvalidateUnreadCount:
			s.unreadFresh = false
		}
	}
	callbacks := make([]func(Invalidation), len(s.onInvalidate))
	copy(callbacks, s.onInvalidate)
	s.mu.Unlock()

	for _, kind := range kinds {
		signal := Invalidation{Kind: kind, Conversation: conversation}
		for _, fn := range callbacks {
			fn(signal)
		}
	}
}

// Clear evicts everything. Called on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.messages = make(map[ref.MessageID]Message)
	s.conversations = make(map[ref.ConversationID][]Message)
	s.conversationList = nil
	s.conversationFresh = false
	s.notifications = nil
	s.notificationsFresh = false
	s.unreadCount = 0
	s.unreadFresh = false
	s.messagesFresh = false
	s.mu.Unlock()
}
