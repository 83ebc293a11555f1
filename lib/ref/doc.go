// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier types for Arbor entities.
//
// The portal API keys every entity by an opaque server-assigned
// identifier. These types wrap the raw strings with validation at the
// construction and deserialization boundaries, so that code deeper in
// the client never has to re-check identifier well-formedness and the
// read-model cache cannot be keyed by an identifier the server never
// issued.
//
// All types are immutable value types. The zero value is not valid;
// use IsZero to check. JSON serialization goes through
// encoding.TextMarshaler/TextUnmarshaler, which means map keys typed
// as these identifiers are validated automatically during decoding.
package ref
