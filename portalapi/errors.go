// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package portalapi

import (
	"errors"
	"fmt"
)

// PortalError is a structured error response from the portal API.
// Callers use errors.As to extract the code and status:
//
//	var portalErr *portalapi.PortalError
//	if errors.As(err, &portalErr) {
//	    if portalErr.Code == portalapi.ErrCodeUnauthorized { ... }
//	}
type PortalError struct {
	// Code is the portal error code (e.g. "unauthorized", "not_found").
	Code string `json:"code"`
	// Message is the human-readable description from the server.
	Message string `json:"message"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *PortalError) Error() string {
	return fmt.Sprintf("portal: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Portal API error codes.
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInvalid      = "invalid_request"
)

// IsPortalError checks whether err is a *PortalError with the given
// code.
func IsPortalError(err error, code string) bool {
	var portalErr *PortalError
	if errors.As(err, &portalErr) {
		return portalErr.Code == code
	}
	return false
}
