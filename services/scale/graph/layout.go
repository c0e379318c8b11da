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

// Default layout constants.
const (
	// DefaultHorizontalStep is the x distance between a parent and its
	// branches.
	DefaultHorizontalStep = 550

	// DefaultEstimatedHeight is the assumed rendered height of a node card.
	DefaultEstimatedHeight = 180

	// DefaultVerticalGap is the vertical spacing between sibling rows.
	DefaultVerticalGap = 24
)

// LayoutConstants parameterizes branch placement.
type LayoutConstants struct {
	// HorizontalStep is added to the parent's x for every branch.
	HorizontalStep float64

	// EstimatedHeight is the assumed node height used for row spacing.
	EstimatedHeight float64

	// VerticalGap is the extra spacing between rows.
	VerticalGap float64
}

// DefaultLayoutConstants returns the standard placement constants.
func DefaultLayoutConstants() LayoutConstants {
	return LayoutConstants{
		HorizontalStep:  DefaultHorizontalStep,
		EstimatedHeight: DefaultEstimatedHeight,
		VerticalGap:     DefaultVerticalGap,
	}
}

// RowHeight returns the vertical stride between sibling rows.
func (c LayoutConstants) RowHeight() float64 {
	return c.EstimatedHeight + c.VerticalGap
}

// BranchPlacement is the computed placement for a new branch.
type BranchPlacement struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Depth       int     `json:"depth"`
	BranchIndex int     `json:"branch_index"`
}

// NextBranchPosition computes the deterministic canvas placement for a new
// branch of parent at the given branch index.
//
// Description:
//
//	Siblings alternate symmetrically around the parent: index 0 one row
//	above, index 1 one row below, index 2 two rows above, and so on. The
//	result depends only on the parent's placement and the branch's own
//	index — not on sibling count, rendered size, or mutation order — which
//	is why it can be frozen as PositionLocked forever: recomputing later,
//	under any collection ordering, reproduces the identical point.
//
// Inputs:
//
//	parent - The source node. A nil parent yields the documented fallback
//	         {x:100, y:100, depth:1, branch_index:0}.
//	branchIndex - The new branch's stable sibling index (>= 0).
//	c - Layout constants, typically DefaultLayoutConstants().
func NextBranchPosition(parent *ScaleNode, branchIndex int, c LayoutConstants) BranchPlacement {
	if parent == nil || branchIndex < 0 {
		return BranchPlacement{X: 100, Y: 100, Depth: 1, BranchIndex: 0}
	}

	layer := float64(branchIndex/2 + 1)
	direction := -1.0
	if branchIndex%2 == 1 {
		direction = 1.0
	}

	return BranchPlacement{
		X:           parent.Position.X + c.HorizontalStep,
		Y:           parent.Position.Y + direction*layer*c.RowHeight(),
		Depth:       parent.Depth + 1,
		BranchIndex: branchIndex,
	}
}
