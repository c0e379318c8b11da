// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package adapt gates and assembles externally-generated scale adaptations.
//
// The generative service returns unstructured text. This package extracts
// the embedded JSON payload, validates it against the required shape with
// field-level diagnostics, and - only after validation succeeds - assembles
// a complete branch node from the payload, the source node, and a computed
// placement. Assembly is pure: it never touches the Store and never calls
// the service.
//
// A hard validation failure means no node is built. Structural drift
// (dimension or item counts differing from the source) is suspicious but
// not disqualifying; it surfaces as non-fatal warnings and a human remains
// the authority.
package adapt

import (
	"errors"
	"fmt"
)

// Sentinel errors for adaptation handling.
var (
	// ErrNoPayload is returned when no JSON object can be located in the
	// service's raw output.
	ErrNoPayload = errors.New("no JSON payload found in service output")

	// ErrMalformedPayload is returned when the located payload is not
	// parseable JSON.
	ErrMalformedPayload = errors.New("malformed JSON payload")

	// ErrInvalidPayload is returned when a parsed payload fails shape
	// validation. The wrapped FieldError names the offending field.
	ErrInvalidPayload = errors.New("invalid adaptation payload")
)

// FieldError is a field-level validation diagnostic.
type FieldError struct {
	// Path locates the field, e.g. "dimensions[1].items[0].text".
	Path string

	// Reason describes what is wrong with the field.
	Reason string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// fieldErr wraps a field diagnostic in ErrInvalidPayload.
func fieldErr(path, reason string) error {
	return fmt.Errorf("%w: %w", ErrInvalidPayload, &FieldError{Path: path, Reason: reason})
}
