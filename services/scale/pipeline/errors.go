// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline sequences the scale operations that suspend on the
// external generative service: branch adaptation and ingest structuring.
//
// Each operation class carries its own in-progress guard. A second attempt
// while one is outstanding is rejected immediately, never queued; the guard
// is released on every exit path. Unrelated local mutations (editing another
// node's item text) are not blocked - isolation is per-operation, not
// graph-wide.
//
// External calls complete strictly before any store mutation begins, and
// insertion is always the last step of a pipeline. A failure at any earlier
// stage leaves the collection untouched.
package pipeline

import "errors"

// Sentinel errors for pipeline operations.
var (
	// ErrBusy is returned when an operation of the same class is already
	// outstanding. The caller retries after it settles; nothing queues.
	ErrBusy = errors.New("operation already in progress")

	// ErrStaleResult is returned when the graph changed while the external
	// call was in flight. The result is discarded instead of being applied
	// to a graph it was not computed against.
	ErrStaleResult = errors.New("result discarded: graph changed during the external call")

	// ErrIngestRejected is returned when the legitimacy gate refuses the
	// input before any structuring is attempted. The wrapped message is
	// the service's reason, shown to the user verbatim.
	ErrIngestRejected = errors.New("input rejected by the legitimacy gate")
)
