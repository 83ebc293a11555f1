// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

// Event types pushed by the portal's stream endpoint. The router
// dispatches message and notification events to the cache reconciler
// and presence events to the presence tracker; unknown types are
// dropped so that server-added event types never break older clients.
const (
	EventMessageCreated       = "message:created"
	EventMessageRead          = "message:read"
	EventMessageAcknowledged  = "message:acknowledged"
	EventMessageStatusUpdated = "message:status_updated"

	EventNotificationCreated = "notification:created"
	EventNotificationRead    = "notification:read"

	EventUserOnline  = "user:online"
	EventUserOffline = "user:offline"

	EventConnectionEstablished = "connection:established"
	EventError                 = "error"
)

// Type prefixes used for routing whole event categories.
const (
	PrefixMessage      = "message:"
	PrefixNotification = "notification:"
)

// defaultEventType is assigned to frames whose stream data carried no
// "event:" field, matching the text/event-stream default.
const defaultEventType = "message"

// ErrorKindAuthentication is the error-frame kind that marks a
// mid-stream authentication failure. Fatal: the client disconnects and
// does not schedule a reconnect.
const ErrorKindAuthentication = "authentication_error"

// Frame is one decoded unit of the event stream: a type tag plus an
// opaque structured payload. Frames are ephemeral — created by the
// parser, consumed by the router, never retained.
type Frame struct {
	// Type is the event type tag (e.g. "message:created").
	Type string

	// Data is the decoded payload: the result of JSON-decoding the
	// data field (map[string]any, []any, string, float64, bool, nil),
	// or the raw string when the field was not valid JSON. Malformed
	// payloads degrade to strings; they never fail the stream.
	Data any

	// ID is the server-assigned event cursor from the stream's "id"
	// field, empty when the server did not set one. The client resends
	// the most recent cursor as Last-Event-ID on reconnect.
	ID string
}

// unwrapEnvelope applies the payload envelope contract: the server may
// wrap the true event as {"type": ..., "data": ...} inside the data
// field, in which case the envelope's type and data override the
// frame-level values. Anything not matching that exact shape is left
// untouched.
func unwrapEnvelope(frame Frame) Frame {
	object, ok := frame.Data.(map[string]any)
	if !ok {
		return frame
	}
	eventType, ok := object["type"].(string)
	if !ok || eventType == "" {
		return frame
	}
	data, ok := object["data"]
	if !ok {
		return frame
	}
	frame.Type = eventType
	frame.Data = data
	return frame
}

// errorKind extracts the "kind" discriminator from an error frame's
// payload. Returns "" when the payload has no recognizable kind.
func errorKind(data any) string {
	object, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	kind, _ := object["kind"].(string)
	return kind
}

// errorMessage extracts the human-readable message from an error
// frame's payload, falling back to a raw string payload.
func errorMessage(data any) string {
	switch payload := data.(type) {
	case map[string]any:
		message, _ := payload["message"].(string)
		return message
	case string:
		return payload
	default:
		return ""
	}
}
