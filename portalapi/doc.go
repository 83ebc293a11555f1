// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// Package portalapi wraps the Arbor portal's REST API for the read
// paths the realtime layer depends on: conversation and message
// fetching (initial cache population and invalidation-driven
// refetches), notification lists and unread counts, and message sends.
//
// [Client] holds the portal base URL and HTTP transport. [Session]
// wraps a Client with a bearer credential source for authenticated
// calls; sessions are lightweight and safe to create per login.
//
// All API errors are returned as [*PortalError] carrying the portal
// error code and HTTP status; [IsPortalError] tests for a specific
// code. Request URLs are built by string concatenation on an already
// validated base URL, with individual path segments escaped at the
// call sites that interpolate identifiers.
//
// Sends are optimistic-update friendly: SendMessage accepts the
// client-generated ID that was used for the local echo, and the server
// echoes it back both in the response and on the authoritative
// message:created stream event, letting the cache replace the echo
// exactly once.
package portalapi
