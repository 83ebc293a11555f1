// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"log/slog"
	"strings"
)

// HandlerFunc consumes one dispatched frame. Handlers run synchronously
// on the dispatch goroutine; a handler that blocks stalls the stream.
type HandlerFunc func(Frame)

// Router dispatches frames to handlers by event type. Exact-type
// registrations win over prefix registrations; prefixes are matched in
// registration order. Unrecognized types are dropped (with a debug
// log), never an error — the server is free to add event types that
// older clients ignore.
//
// Dispatch is synchronous and preserves arrival order: the router
// never reorders or batches frames, so cache mutations downstream see
// events exactly as the stream delivered them.
//
// Registration is expected to happen before the stream starts;
// Dispatch itself takes no locks.
type Router struct {
	logger   *slog.Logger
	exact    map[string]HandlerFunc
	prefixes []prefixRoute
}

type prefixRoute struct {
	prefix  string
	handler HandlerFunc
}

// NewRouter creates an empty router. A nil logger means slog.Default().
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger: logger,
		exact:  make(map[string]HandlerFunc),
	}
}

// Handle registers a handler for an exact event type.
func (r *Router) Handle(eventType string, handler HandlerFunc) {
	r.exact[eventType] = handler
}

// HandlePrefix registers a handler for every event type sharing the
// given prefix (e.g. PrefixMessage for the whole message category).
func (r *Router) HandlePrefix(prefix string, handler HandlerFunc) {
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, handler: handler})
}

// Dispatch routes one frame to its handler. Unknown types are
// swallowed.
func (r *Router) Dispatch(frame Frame) {
	if handler, ok := r.exact[frame.Type]; ok {
		handler(frame)
		return
	}
	for _, route := range r.prefixes {
		if strings.HasPrefix(frame.Type, route.prefix) {
			route.handler(frame)
			return
		}
	}
	r.logger.Debug("dropping frame with unrecognized event type", "event_type", frame.Type)
}

// StreamFrame implements Subscriber delivery for the router, so a
// Router can be attached to a Client directly via SubscriberFuncs or
// used as the OnFrame target.
func (r *Router) StreamFrame(frame Frame) { r.Dispatch(frame) }
