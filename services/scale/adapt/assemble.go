// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adapt

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/AleutianAI/ScaleForge/services/scale/graph"
)

// OriginUnknown is the literal origin recorded when an adaptation introduces
// more items than the source had at that position.
const OriginUnknown = "unknown"

// AssembleOptions configures assembly.
type AssembleOptions struct {
	// StartCounter is the first value of the node-wide item counter.
	// Default: 1. Part of the inputs for reproducibility.
	StartCounter int
}

// AssembleOption is a functional option for configuring assembly.
type AssembleOption func(*AssembleOptions)

// WithStartCounter sets the first item counter value.
func WithStartCounter(n int) AssembleOption {
	return func(o *AssembleOptions) {
		if n > 0 {
			o.StartCounter = n
		}
	}
}

// NewNodeID mints an ID for a new branch node.
func NewNodeID() string {
	return "scale-" + uuid.NewString()
}

// Assemble constructs a complete branch node from a validated adaptation
// result, its source node, and a computed placement.
//
// Description:
//
//	Correspondence between adaptation and source is positional, not
//	name-based: dimension i aligns with source dimension i, item j with
//	source item j. Each new item gets:
//
//	  - ItemID "{newID}-item-{n}", with n incrementing continuously across
//	    the whole node (never reset per dimension).
//	  - OriginItemID from the positionally-corresponding source item, or
//	    the literal "unknown" when the adaptation introduced more items
//	    than the source had at that position.
//	  - BaselineRubric copied verbatim from the source item, propagating
//	    the root's tags unchanged through every generation.
//	  - CurrentRubric from the payload when supplied and non-empty, else
//	    the baseline; RubricSource records which happened.
//
//	Assembly is pure and deterministic: identical inputs, including the
//	starting counter, always produce an identical node. It never calls the
//	Store or the external service; insertion is the caller's last step.
//
// Inputs:
//
//	result - A payload that already passed ValidateAdaptation.
//	source - The node being adapted.
//	placement - Output of graph.NextBranchPosition for this branch.
//	newID - The new node's ID, typically NewNodeID().
func Assemble(result *AdaptationResult, source *graph.ScaleNode, placement graph.BranchPlacement, newID string, opts ...AssembleOption) *graph.ScaleNode {
	options := AssembleOptions{StartCounter: 1}
	for _, opt := range opts {
		opt(&options)
	}

	counter := options.StartCounter
	dims := make([]graph.Dimension, 0, len(result.Dimensions))
	for di, dim := range result.Dimensions {
		items := make([]graph.Item, 0, len(dim.Items))
		for ii, adapted := range dim.Items {
			src := sourceItem(source, di, ii)

			item := graph.Item{
				ItemID:       fmt.Sprintf("%s-item-%d", newID, counter),
				OriginItemID: OriginUnknown,
				Text:         adapted.Text,
			}
			counter++

			if src != nil {
				item.OriginItemID = src.ItemID
				item.BaselineRubric = append([]string(nil), src.BaselineRubric...)
			}
			if len(adapted.CurrentRubric) > 0 {
				item.CurrentRubric = append([]string(nil), adapted.CurrentRubric...)
				item.RubricSource = graph.RubricSourceGenerated
			} else {
				item.CurrentRubric = append([]string(nil), item.BaselineRubric...)
				item.RubricSource = graph.RubricSourceInherited
			}
			items = append(items, item)
		}
		dims = append(dims, graph.Dimension{Name: dim.Name, Items: items})
	}

	return &graph.ScaleNode{
		ID:             newID,
		Name:           result.ScaleName,
		ParentID:       source.ID,
		IsRoot:         false,
		Depth:          placement.Depth,
		BranchIndex:    placement.BranchIndex,
		Position:       graph.Position{X: placement.X, Y: placement.Y},
		PositionLocked: true,
		Dimensions:     dims,
	}
}

// sourceItem returns the positionally-corresponding source item, or nil when
// the adaptation overflows the source structure at that position.
func sourceItem(source *graph.ScaleNode, di, ii int) *graph.Item {
	if source == nil || di >= len(source.Dimensions) {
		return nil
	}
	items := source.Dimensions[di].Items
	if ii >= len(items) {
		return nil
	}
	return &items[ii]
}
