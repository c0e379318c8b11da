// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"encoding/json"
	"fmt"
)

// RubricSource records where an item's current rubric came from.
type RubricSource int

const (
	// RubricSourceInherited indicates the rubric was copied from the
	// positionally-corresponding parent item.
	RubricSourceInherited RubricSource = iota

	// RubricSourceGenerated indicates the rubric was supplied by the
	// external generative service during adaptation.
	RubricSourceGenerated

	// RubricSourceEdited indicates the rubric was changed by hand or by an
	// explicit re-extraction pass after creation.
	RubricSourceEdited
)

// rubricSourceNames maps RubricSource values to their wire representations.
var rubricSourceNames = map[RubricSource]string{
	RubricSourceInherited: "inherited-from-parent",
	RubricSourceGenerated: "externally-generated",
	RubricSourceEdited:    "manually-edited",
}

// String returns the string representation of the RubricSource.
func (s RubricSource) String() string {
	if name, ok := rubricSourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the RubricSource as its wire string.
func (s RubricSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a RubricSource from its wire string.
func (s *RubricSource) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for source, name := range rubricSourceNames {
		if name == raw {
			*s = source
			return nil
		}
	}
	return fmt.Errorf("unknown rubric source %q", raw)
}

// Position is a canvas coordinate for a scale node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Item is one self-report statement with lineage and two generations of
// semantic tags.
//
// BaselineRubric is copied from the nearest ancestor's matching item at
// creation and never reassigned afterward. CurrentRubric may diverge over the
// node's lifetime; equality with the baseline is a derived display fact
// (integrity status), never an enforced constraint.
type Item struct {
	// ItemID is unique within its node.
	ItemID string `json:"item_id"`

	// OriginItemID is the positionally-corresponding ancestor item's ID,
	// traced transitively back toward the root. Root items are their own
	// origin, terminating the chain.
	OriginItemID string `json:"origin_item_id"`

	// Text is the statement shown to respondents. Mutable via the Store.
	Text string `json:"text"`

	// BaselineRubric is the immutable set of semantic tags inherited at
	// creation time.
	BaselineRubric []string `json:"baseline_rubric"`

	// CurrentRubric is the present, possibly re-extracted, set of tags.
	CurrentRubric []string `json:"current_rubric"`

	// RubricSource records how CurrentRubric was produced.
	RubricSource RubricSource `json:"rubric_source"`
}

// Dimension is a named grouping of items within a node.
type Dimension struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// ItemCount returns the total number of items across all dimensions.
func ItemCount(dims []Dimension) int {
	n := 0
	for _, d := range dims {
		n += len(d.Items)
	}
	return n
}

// ScaleNode is one versioned definition of the assessment instrument.
//
// Nodes are created by the ingest structurer (root only) or the assembler
// (branches only), and always enter the graph via Store.Add. The lineage
// fields ParentID, Depth, BranchIndex, Position and PositionLocked are frozen
// at creation for non-root nodes.
type ScaleNode struct {
	// ID uniquely identifies the node across the collection's lifetime.
	ID string `json:"id"`

	// Name is the display name of this scale version.
	Name string `json:"name"`

	// ParentID is the source node's ID. Empty only for the root.
	ParentID string `json:"parent_id,omitempty"`

	// IsRoot marks the single root definition.
	IsRoot bool `json:"is_root"`

	// Depth is 0 for the root, parent.Depth+1 otherwise.
	Depth int `json:"depth"`

	// BranchIndex is the stable sibling order, assigned once at creation.
	BranchIndex int `json:"branch_index"`

	// Position is the canvas placement. Frozen for non-root nodes.
	Position Position `json:"position"`

	// PositionLocked is always true for non-root nodes: the layout is a
	// pure function of parent placement and BranchIndex, so recomputing it
	// later reproduces the identical point.
	PositionLocked bool `json:"position_locked"`

	// Collapsed is a display flag toggled via Store.Update.
	Collapsed bool `json:"collapsed,omitempty"`

	// Dimensions is the ordered item structure of this version.
	Dimensions []Dimension `json:"dimensions"`
}

// Clone returns a deep copy of the node.
//
// The Store hands out clones from Get so that callers can never reach the
// stored instance's slices.
func (n *ScaleNode) Clone() *ScaleNode {
	if n == nil {
		return nil
	}
	out := *n
	out.Dimensions = make([]Dimension, len(n.Dimensions))
	for i, d := range n.Dimensions {
		items := make([]Item, len(d.Items))
		for j, it := range d.Items {
			items[j] = it
			items[j].BaselineRubric = append([]string(nil), it.BaselineRubric...)
			items[j].CurrentRubric = append([]string(nil), it.CurrentRubric...)
		}
		out.Dimensions[i] = Dimension{Name: d.Name, Items: items}
	}
	return &out
}

// NewRootNode constructs the root scale definition.
//
// Description:
//
//	Builds a depth-0 root at the given position. The root's position is not
//	locked: it is the one node the display layer may reposition freely.
//	Branch nodes are never built by hand; they come out of the assembler.
//
// Inputs:
//
//	id - Unique node ID.
//	name - Display name of the instrument.
//	pos - Initial canvas position.
//	dims - Ordered dimensions. May be empty, must not be nil for Add.
func NewRootNode(id, name string, pos Position, dims []Dimension) *ScaleNode {
	if dims == nil {
		dims = []Dimension{}
	}
	return &ScaleNode{
		ID:         id,
		Name:       name,
		IsRoot:     true,
		Depth:      0,
		Position:   pos,
		Dimensions: dims,
	}
}
