// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scale

import (
	"github.com/AleutianAI/ScaleForge/services/scale/adapt"
	"github.com/AleutianAI/ScaleForge/services/scale/graph"
)

// ServiceVersion is the scale service version.
const ServiceVersion = "0.1.0"

// BranchRequest asks for an adapted branch of an existing node.
type BranchRequest struct {
	// Intent is the free-text adaptation instruction, e.g. a target
	// population or register.
	Intent string `json:"adaptation_intent" binding:"required"`
}

// BranchResponse carries the newly inserted branch.
type BranchResponse struct {
	Node *graph.ScaleNode `json:"node"`

	// Warnings are non-fatal structural findings on the accepted result.
	Warnings []adapt.StructuralWarning `json:"warnings,omitempty"`
}

// ImportRequest carries raw flat text for ingest.
type ImportRequest struct {
	// Name is the display name for the new root scale.
	Name string `json:"name" binding:"required"`

	// Raw is the delimited flat text, pasted or uploaded verbatim.
	Raw string `json:"raw" binding:"required"`
}

// ImportResponse carries the ingested root.
type ImportResponse struct {
	Node *graph.ScaleNode `json:"node"`

	// Screening is the legitimacy gate outcome for the input.
	Screening string `json:"screening"`

	// Records is the number of flat records structured into the root.
	Records int `json:"records"`
}

// UpdateNodeRequest is a partial node update. Absent fields stay as-is.
type UpdateNodeRequest struct {
	Name      *string `json:"name,omitempty"`
	Collapsed *bool   `json:"collapsed,omitempty"`
}

// UpdateItemRequest edits one item. Exactly one of Text or Rubric must be
// present; rubric edits always record manual provenance.
type UpdateItemRequest struct {
	Text   *string  `json:"text,omitempty"`
	Rubric []string `json:"rubric,omitempty"`
}

// DeleteResponse reports a completed removal.
type DeleteResponse struct {
	// Removed lists the removed node IDs, the cascade set when cascading.
	Removed []string `json:"removed"`
}

// GraphResponse is a full snapshot of the version graph.
type GraphResponse struct {
	Nodes      []*graph.ScaleNode `json:"nodes"`
	RootID     string             `json:"root_id,omitempty"`
	SelectedID string             `json:"selected_id,omitempty"`
	Generation uint64             `json:"generation"`
}

// ChildrenResponse lists direct children of a node.
type ChildrenResponse struct {
	NodeID   string   `json:"node_id"`
	Children []string `json:"children"`
}

// DescendantsResponse lists the full subtree below a node.
type DescendantsResponse struct {
	NodeID      string   `json:"node_id"`
	Descendants []string `json:"descendants"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Nodes      int    `json:"nodes"`
	Generation uint64 `json:"generation"`

	// BranchBusy and IngestBusy report outstanding pipeline operations.
	BranchBusy bool `json:"branch_busy"`
	IngestBusy bool `json:"ingest_busy"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
