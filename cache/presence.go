// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arbor-works/arbor/lib/ref"
	"github.com/arbor-works/arbor/realtime"
)

// PresenceRecord is one user's derived online state.
type PresenceRecord struct {
	UserID        ref.UserID
	Online        bool
	LastChangedAt time.Time
}

// PresenceTracker derives online/offline state from user:online and
// user:offline events. Absence of data means offline: a user no event
// has ever mentioned reports as offline, never "unknown". Updates are
// last-write-wins in arrival order — the stream dispatches in order,
// so no timestamp tiebreaking is needed.
//
// Queries are read-only and safe from any goroutine; updates come from
// the stream dispatch goroutine via Apply.
type PresenceTracker struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	records map[ref.UserID]PresenceRecord
}

// NewPresenceTracker creates an empty tracker. A nil clock means the
// real clock; a nil logger means slog.Default().
func NewPresenceTracker(clock clockwork.Clock, logger *slog.Logger) *PresenceTracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceTracker{
		clock:   clock,
		logger:  logger,
		records: make(map[ref.UserID]PresenceRecord),
	}
}

// presencePayload is the pinned wire contract for presence events.
type presencePayload struct {
	UserID ref.UserID `json:"user_id"`
}

// Apply updates the tracker from a user:online or user:offline frame.
// Payloads without a usable user ID are dropped.
func (t *PresenceTracker) Apply(frame realtime.Frame) {
	var online bool
	switch frame.Type {
	case realtime.EventUserOnline:
		online = true
	case realtime.EventUserOffline:
		online = false
	default:
		return
	}

	userID, ok := decodePresence(frame.Data)
	if !ok {
		t.logger.Warn("presence event missing user ID", "event_type", frame.Type)
		return
	}

	t.mu.Lock()
	t.records[userID] = PresenceRecord{
		UserID:        userID,
		Online:        online,
		LastChangedAt: t.clock.Now(),
	}
	t.mu.Unlock()
}

// IsOnline reports whether the user is currently online. Users never
// seen in a presence event are offline.
func (t *PresenceTracker) IsOnline(userID ref.UserID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.records[userID].Online
}

// Record returns the full presence record for a user and whether any
// presence event has been observed for them.
func (t *PresenceTracker) Record(userID ref.UserID) (PresenceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.records[userID]
	return record, ok
}

// Snapshot returns all known presence records sorted by user ID, for
// participant lists and rosters.
func (t *PresenceTracker) Snapshot() []PresenceRecord {
	t.mu.RLock()
	records := make([]PresenceRecord, 0, len(t.records))
	for _, record := range t.records {
		records = append(records, record)
	}
	t.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].UserID.String() < records[j].UserID.String()
	})
	return records
}

// Clear drops all presence state. Called on logout alongside
// Store.Clear.
func (t *PresenceTracker) Clear() {
	t.mu.Lock()
	t.records = make(map[ref.UserID]PresenceRecord)
	t.mu.Unlock()
}

// decodePresence extracts the user ID from a presence payload.
func decodePresence(data any) (ref.UserID, bool) {
	object, ok := data.(map[string]any)
	if !ok {
		return ref.UserID{}, false
	}
	encoded, err := json.Marshal(object)
	if err != nil {
		return ref.UserID{}, false
	}
	var payload presencePayload
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return ref.UserID{}, false
	}
	if payload.UserID.IsZero() {
		return ref.UserID{}, false
	}
	return payload.UserID, true
}
