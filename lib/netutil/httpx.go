// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers shared by the portal API
// client.
//
// Response helpers bound all body reads at MaxResponseSize so a
// misbehaving server cannot exhaust client memory. They are for JSON
// API responses only — the event stream is consumed incrementally by
// the realtime package and never passes through here.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds JSON API response body reads: 32 MB. Portal
// list responses are paginated and orders of magnitude smaller; the
// limit exists only to stop a pathological response from exhausting
// memory.
const MaxResponseSize int64 = 32 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll on HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON API response body (bounded) and decodes
// it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body for inclusion in a
// diagnostic message. Read errors are ignored — a partial body is
// still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
