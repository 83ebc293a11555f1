// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Parser assembles raw stream chunks into Frames. It is stateful and
// scoped to a single connection attempt: the transport may split one
// event across many chunks or pack many events into one, so the parser
// buffers the trailing partial line between Feed calls. Create a fresh
// Parser for every connection — reusing one across reconnects would
// leak a half-assembled frame from the dead connection into the new
// stream.
//
// The parser never fails. The worst outcome for malformed input is a
// frame whose Data is the raw string instead of decoded JSON.
//
// Parser is not safe for concurrent use; the stream client owns one
// per read loop.
type Parser struct {
	buffer []byte

	// Pending frame state, reset at each frame terminator.
	eventType string
	data      any
	hasData   bool

	// lastEventID is the most recent "id" field seen on the stream,
	// retained across frames for reconnect resume.
	lastEventID string
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one chunk and returns the frames completed by it, in
// stream order. A trailing partial line is withheld until the next
// chunk delivers its line break.
func (p *Parser) Feed(chunk []byte) []Frame {
	p.buffer = append(p.buffer, chunk...)

	var frames []Frame
	for {
		index := bytes.IndexByte(p.buffer, '\n')
		if index < 0 {
			return frames
		}
		line := strings.TrimSuffix(string(p.buffer[:index]), "\r")
		p.buffer = p.buffer[index+1:]

		if frame, ok := p.consumeLine(line); ok {
			frames = append(frames, frame)
		}
	}
}

// Flush emits the pending frame, if any. Call at stream end: a frame
// whose terminating blank line never arrived (server closed the
// connection mid-event) must still be delivered rather than silently
// dropped. Any buffered partial line is folded in first.
func (p *Parser) Flush() []Frame {
	var frames []Frame
	if len(p.buffer) > 0 {
		line := strings.TrimSuffix(string(p.buffer), "\r")
		p.buffer = nil
		if frame, ok := p.consumeLine(line); ok {
			frames = append(frames, frame)
		}
	}
	if frame, ok := p.terminate(); ok {
		frames = append(frames, frame)
	}
	return frames
}

// LastEventID returns the most recent event cursor seen on the stream,
// or "" if the server never set one.
func (p *Parser) LastEventID() string {
	return p.lastEventID
}

// consumeLine processes one complete line. It returns a completed
// frame when the line is a frame terminator and the pending state
// holds something worth emitting.
func (p *Parser) consumeLine(line string) (Frame, bool) {
	switch {
	case line == "":
		return p.terminate()

	case strings.HasPrefix(line, ":"):
		// Comment / keep-alive. The server sends these to hold the
		// connection open through proxies; they are not events.
		return Frame{}, false

	case strings.HasPrefix(line, "event:"):
		p.eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		return Frame{}, false

	case strings.HasPrefix(line, "data:"):
		raw := strings.TrimPrefix(line, "data:")
		raw = strings.TrimPrefix(raw, " ")
		p.data = decodePayload(raw)
		p.hasData = true
		return Frame{}, false

	case strings.HasPrefix(line, "id:"):
		p.lastEventID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		return Frame{}, false

	default:
		// Unknown field ("retry:" and future additions). Ignored for
		// forward compatibility.
		return Frame{}, false
	}
}

// terminate closes out the pending frame. A frame is emitted only when
// it carries a payload or a non-default type — bare blank lines (and
// keep-alive comments followed by their terminator) produce nothing.
func (p *Parser) terminate() (Frame, bool) {
	eventType := p.eventType
	data := p.data
	emit := p.hasData || (eventType != "" && eventType != defaultEventType)

	p.eventType = ""
	p.data = nil
	p.hasData = false

	if !emit {
		return Frame{}, false
	}
	if eventType == "" {
		eventType = defaultEventType
	}
	return unwrapEnvelope(Frame{Type: eventType, Data: data, ID: p.lastEventID}), true
}

// decodePayload attempts a JSON decode of a data field, degrading to
// the raw string when the field is not valid JSON.
func decodePayload(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return raw
	}
	return value
}
