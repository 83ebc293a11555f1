// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"errors"
	"fmt"
)

// AuthError reports an authentication failure: either no credential
// was available when connecting, or the server pushed an
// authentication_error frame mid-stream. Fatal — the client never
// retries an AuthError, since the same stale credential would fail
// again. The embedding application should route this into its
// auth-state handling (logout, re-login prompt).
type AuthError struct {
	// Reason is a human-readable description from the credential
	// source or the server's error frame.
	Reason string

	// Err is the underlying cause, if any (e.g. credential.ErrNoToken).
	Err error
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return "realtime: authentication failed: " + e.Reason
	}
	if e.Err != nil {
		return "realtime: authentication failed: " + e.Err.Error()
	}
	return "realtime: authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ConnectionError reports a recoverable connection failure: a network
// error during connect or mid-stream, or a non-2xx response from the
// stream endpoint. The client feeds these into the reconnect policy.
type ConnectionError struct {
	// Op names the failing operation ("connect", "read").
	Op string

	// StatusCode is the HTTP status for non-2xx responses, zero for
	// network-level failures.
	StatusCode int

	// Err is the underlying network error, nil for status failures.
	Err error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("realtime: %s failed: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("realtime: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExhaustedError reports that the reconnect policy has used its entire
// attempt budget without a successful connection. Terminal: the client
// stays disconnected until the application triggers a fresh Start.
type ExhaustedError struct {
	// Attempts is the number of consecutive failed attempts.
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("realtime: reconnect abandoned after %d failed attempts", e.Attempts)
}

// IsExhausted reports whether err is (or wraps) an *ExhaustedError.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}
