// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache maintains the client-side read model of the portal's
// messaging state: message details, per-conversation message lists,
// notifications, unread counts, and user presence.
//
// The cache is a mirror, never a source of truth. Entries are created
// only from portal API fetch responses or qualifying stream events —
// the cache never invents identifiers. Stream events patch cached
// entries in place where the payload carries enough information, and
// always mark the broader list caches stale so paginated or filtered
// views refetch; the targeted patch is an optimization, not a
// correctness substitute.
//
// Delivery from the stream is at-least-once, so every reconciliation
// is idempotent: applying the same event twice leaves the cache in the
// same state as applying it once (upsert by identifier, receipt
// replacement by user, last-write-wins status patches).
//
// Writes flow through two paths only: the Reconciler (driven by the
// stream dispatch goroutine) and the portal API population helpers —
// including optimistic local echoes for user-initiated sends, which
// travel the same upsert path and are replaced when the server's
// authoritative event arrives. UI code reads through the query
// methods and subscribes to invalidation signals to know when to
// refetch.
package cache
