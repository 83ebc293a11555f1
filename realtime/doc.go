// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// Package realtime implements the client side of Arbor's server-push
// event stream: messaging, notification, and presence events delivered
// over a long-lived text/event-stream HTTP connection.
//
// The package is organized around the event data flow:
//
//   - parser.go: stateful line-buffer parser assembling stream chunks
//     into Frames (one instance per connection attempt)
//   - frame.go: the Frame type, the event type catalog, and the
//     payload envelope contract
//   - stream.go: Client, which owns the streaming connection lifecycle
//     (start, stop, reconnect) and delivers frames to subscribers
//   - backoff.go: ReconnectPolicy, the capped exponential-backoff
//     state machine that schedules reconnect attempts
//   - router.go: Router, synchronous in-order dispatch of frames by
//     event type to registered handlers
//
// Delivery is at-least-once: the server may redeliver events across
// reconnects, and consumers (the cache reconciler in particular) are
// required to apply them idempotently. Ordering is preserved
// end-to-end — chunks are parsed and frames dispatched on a single
// goroutine per connection, in delivery order.
//
// Authentication failures are terminal. A missing credential fails
// Start without network I/O, and an authentication_error frame
// received mid-stream tears the connection down without scheduling a
// reconnect, since retrying with a stale token is guaranteed to fail
// again. All other connection failures feed the reconnect policy until
// its attempt budget is exhausted.
package realtime
