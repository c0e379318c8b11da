// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export writes the scale family as flat rows.
//
// The export is one-way by design: re-import does not parse this format
// back, it re-derives structure from the generative service. Keeping the
// asymmetry explicit avoids a second, drifting parser for a format whose
// only consumer is a human or a spreadsheet.
package export

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/AleutianAI/ScaleForge/services/scale/graph"
)

// TagJoin joins rubric tags inside a single exported cell.
const TagJoin = "|"

// Header is the column layout of the export format.
var Header = []string{
	"scale_id",
	"scale_name",
	"parent_scale_id",
	"dimension_name",
	"item_id",
	"origin_item_id",
	"item_text",
	"baseline_rubric",
	"current_rubric",
}

// Rows flattens the whole collection into export rows, one per item, nodes
// in insertion order.
func Rows(c *graph.Collection) [][]string {
	rows := make([][]string, 0)
	for _, node := range c.All() {
		for _, dim := range node.Dimensions {
			for _, item := range dim.Items {
				rows = append(rows, []string{
					node.ID,
					node.Name,
					node.ParentID,
					dim.Name,
					item.ItemID,
					item.OriginItemID,
					item.Text,
					strings.Join(item.BaselineRubric, TagJoin),
					strings.Join(item.CurrentRubric, TagJoin),
				})
			}
		}
	}
	return rows
}

// Write emits the header plus all rows as CSV.
func Write(w io.Writer, c *graph.Collection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(Rows(c)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
