// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the scale version graph: types, structural queries,
// deterministic branch layout, and the Store mutation gateway.
//
// A graph holds exactly one root scale (is_root=true, no parent) and a tree
// of derived branches. Nodes enter the graph only through the Store, which
// enforces the structural invariants:
//
//   - At most one root exists at any time (importing a new root clears the
//     whole collection first).
//   - Every non-root node references a parent present in the collection.
//     Referential integrity is preserved by removing subtrees atomically via
//     cascade sets, never partially.
//   - BranchIndex, Position and PositionLocked are frozen at creation for
//     non-root nodes. BaselineRubric is frozen at item creation.
//
// # Ownership Model
//
// The Store owns the Collection. Read-only callers receive the *Collection
// view, whose API cannot mutate graph structure. All structural change goes
// through the Store's write methods.
//
// # Thread Safety
//
// The Store guards all access with a read-write mutex, so it is safe to
// serve reads and writes from concurrent goroutines. View returns a detached
// snapshot; a Collection obtained from View is immutable and needs no
// locking, but reflects the graph as of the call, not live state.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrInvalidNode is returned when a node fails shape validation on Add.
	ErrInvalidNode = errors.New("invalid node")

	// ErrDuplicateNode is returned when adding a node whose ID already
	// exists in the collection.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrIDRetired is returned when adding a node under an ID that was
	// previously removed. Removed IDs are terminal and never reused.
	ErrIDRetired = errors.New("node ID was removed and cannot be reused")

	// ErrRootExists is returned when adding a second root. A new root only
	// enters via Clear followed by Add (single active family policy).
	ErrRootExists = errors.New("a root scale already exists")

	// ErrParentNotFound is returned when a branch references a parent that
	// is not present in the collection.
	ErrParentNotFound = errors.New("parent node not found")

	// ErrRootProtected is returned when a removal targets the root. The
	// root is never deleted; replacing it goes through Clear.
	ErrRootProtected = errors.New("root scale cannot be removed")

	// ErrHasChildren is returned when a single-node Remove targets a node
	// that still has children. Subtrees are removed via RemoveCascade.
	ErrHasChildren = errors.New("node has children; remove via cascade set")

	// ErrPartialCascade is returned when RemoveCascade receives a set that
	// is not closed under the child relation. Accepting it would orphan
	// nodes, so the whole operation is refused.
	ErrPartialCascade = errors.New("cascade set is not transitively closed")

	// ErrNodeNotFound is returned by mutations that require the target to
	// exist (Select, Update, item edits). Queries never return this; they
	// yield empty results for unknown IDs.
	ErrNodeNotFound = errors.New("node not found")

	// ErrItemNotFound is returned by item-level edits when the item ID does
	// not exist within the target node.
	ErrItemNotFound = errors.New("item not found")
)
