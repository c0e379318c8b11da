// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package drift derives per-item integrity status for a scale node.
//
// Integrity is a display fact, never an enforced constraint: an item whose
// current rubric diverged from its baseline, or whose text moved away from
// its origin ancestor's, is flagged for a human to judge.
package drift

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/AleutianAI/ScaleForge/services/scale/graph"
)

// ItemDrift is the integrity status of one item.
type ItemDrift struct {
	ItemID       string `json:"item_id"`
	OriginItemID string `json:"origin_item_id"`

	// RubricIntact is true when current equals baseline element-wise.
	RubricIntact bool `json:"rubric_intact"`

	BaselineRubric []string `json:"baseline_rubric"`
	CurrentRubric  []string `json:"current_rubric"`

	// OriginText is the origin ancestor item's current text. Empty when
	// the origin is unknown or its node is gone.
	OriginText string `json:"origin_text,omitempty"`

	// TextPatch is a patch from origin text to this item's text, empty
	// when they match or no origin text exists.
	TextPatch string `json:"text_patch,omitempty"`
}

// Report is the integrity status of a whole node.
type Report struct {
	NodeID string      `json:"node_id"`
	Items  []ItemDrift `json:"items"`

	// DriftedItems counts items whose rubric or text diverged.
	DriftedItems int `json:"drifted_items"`
}

// ForNode builds the drift report for a node.
//
// Unknown node IDs yield an empty report rather than an error, matching the
// query engine's behavior for reads.
func ForNode(c *graph.Collection, nodeID string) Report {
	report := Report{NodeID: nodeID, Items: []ItemDrift{}}
	node := c.Get(nodeID)
	if node == nil {
		return report
	}

	dmp := diffmatchpatch.New()
	for _, dim := range node.Dimensions {
		for _, item := range dim.Items {
			d := ItemDrift{
				ItemID:         item.ItemID,
				OriginItemID:   item.OriginItemID,
				RubricIntact:   equalTags(item.BaselineRubric, item.CurrentRubric),
				BaselineRubric: item.BaselineRubric,
				CurrentRubric:  item.CurrentRubric,
			}
			if origin := originItem(c, node, item); origin != nil {
				d.OriginText = origin.Text
				if origin.Text != item.Text {
					patches := dmp.PatchMake(origin.Text, item.Text)
					d.TextPatch = dmp.PatchToText(patches)
				}
			}
			if !d.RubricIntact || d.TextPatch != "" {
				report.DriftedItems++
			}
			report.Items = append(report.Items, d)
		}
	}
	return report
}

// originItem resolves an item's origin in the parent node. Roots are their
// own origin and report no text drift against themselves.
func originItem(c *graph.Collection, node *graph.ScaleNode, item graph.Item) *graph.Item {
	if node.IsRoot || item.OriginItemID == "" {
		return nil
	}
	parent := c.Get(node.ParentID)
	if parent == nil {
		return nil
	}
	for _, dim := range parent.Dimensions {
		for i := range dim.Items {
			if dim.Items[i].ItemID == item.OriginItemID {
				return &dim.Items[i]
			}
		}
	}
	return nil
}

// Lineage walks an item's origin chain back toward the root.
//
// Outputs one entry per ancestor generation, nearest first. The walk stops
// at the root, at an unknown origin, or after visiting every node once.
func Lineage(c *graph.Collection, nodeID, itemID string) []string {
	chain := []string{}
	node := c.Get(nodeID)
	if node == nil {
		return chain
	}
	current := findItem(node, itemID)
	for current != nil && !node.IsRoot {
		parent := c.Get(node.ParentID)
		if parent == nil {
			break
		}
		origin := findItem(parent, current.OriginItemID)
		if origin == nil {
			chain = append(chain, fmt.Sprintf("%s (missing)", current.OriginItemID))
			break
		}
		chain = append(chain, origin.ItemID)
		node, current = parent, origin
	}
	return chain
}

func findItem(node *graph.ScaleNode, itemID string) *graph.Item {
	for _, dim := range node.Dimensions {
		for i := range dim.Items {
			if dim.Items[i].ItemID == itemID {
				return &dim.Items[i]
			}
		}
	}
	return nil
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
