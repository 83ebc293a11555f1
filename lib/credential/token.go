// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential supplies bearer tokens to the portal API and
// realtime stream clients.
//
// Token acquisition (login flows, refresh, keychain storage) is owned
// by the embedding application — this package only defines the
// boundary. A TokenSource that returns ErrNoToken signals that the
// user is logged out: the stream client fails fast without network
// I/O, and the caller is expected to route that into its auth-state
// handling rather than retry.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoToken indicates that no credential is currently available.
// Callers must treat this as an authentication failure, not a
// transient error: retrying with the same source will not help until
// the user authenticates again.
var ErrNoToken = errors.New("credential: no token available")

// TokenSource supplies the current bearer token for portal requests.
// Implementations must be safe for concurrent use; the stream client
// calls Token on every connection attempt so that a refreshed token is
// picked up across reconnects.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a plain function to the TokenSource interface.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Static returns a TokenSource that always yields the given token.
// An empty token yields ErrNoToken.
func Static(token string) TokenSource {
	return TokenFunc(func(ctx context.Context) (string, error) {
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	})
}

// FromEnv returns a TokenSource that reads the named environment
// variable on every call. An unset or empty variable yields
// ErrNoToken. Reading per-call means an operator can rotate the token
// without restarting long-lived tooling that re-execs children.
func FromEnv(name string) TokenSource {
	return TokenFunc(func(ctx context.Context) (string, error) {
		value := os.Getenv(name)
		if value == "" {
			return "", ErrNoToken
		}
		return value, nil
	})
}

// FromFile returns a TokenSource that reads the trimmed contents of
// path on every call, so a token rotated on disk is picked up on the
// next connection attempt. A missing file yields ErrNoToken; other
// read failures are reported as-is.
func FromFile(path string) TokenSource {
	return TokenFunc(func(ctx context.Context) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", ErrNoToken
			}
			return "", fmt.Errorf("credential: reading token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	})
}
