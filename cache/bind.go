// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import "github.com/arbor-works/arbor/realtime"

// Bind registers the standard event routes on a router: the whole
// message and notification categories to the reconciler, presence
// events to the tracker. connection:established and error frames are
// handled by the stream client itself; anything else falls through the
// router's unknown-type drop.
func Bind(router *realtime.Router, reconciler *Reconciler, presence *PresenceTracker) {
	router.HandlePrefix(realtime.PrefixMessage, reconciler.Apply)
	router.HandlePrefix(realtime.PrefixNotification, reconciler.Apply)
	router.Handle(realtime.EventUserOnline, presence.Apply)
	router.Handle(realtime.EventUserOffline, presence.Apply)
}
