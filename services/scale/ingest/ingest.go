// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest turns delimited flat text into a root scale node.
//
// The importer is deliberately forgiving about input format (delimiter is
// sniffed, the dimension column and rubric column are optional) and strict
// about content: every record needs an ID and a statement text. Structuring
// produces the single root of a new family; the caller clears the previous
// family before inserting it.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/ScaleForge/services/scale/graph"
)

// DefaultDimensionName groups records that carry no dimension label.
const DefaultDimensionName = "General"

// rubricTagSeparator splits tags inside the optional rubric column.
const rubricTagSeparator = "|"

// Sentinel errors for ingest.
var (
	// ErrEmptyInput is returned when the input holds no data rows.
	ErrEmptyInput = errors.New("input contains no records")

	// ErrBadRecord is returned when a row fails record validation.
	ErrBadRecord = errors.New("invalid flat record")

	// ErrBadShape is returned when rows do not look like flat records at
	// all (wrong column count). Exported scale rows land here: the export
	// format is one-way and is never parsed back.
	ErrBadShape = errors.New("rows are not flat scale records")
)

// ingestValidate is the package validator instance.
var ingestValidate = validator.New()

// FlatRecord is one normalized row of imported input.
type FlatRecord struct {
	// ID is the source row identifier.
	ID string `validate:"required"`

	// DimensionLabel groups items; empty rows fall into the default group.
	DimensionLabel string

	// Text is the statement text.
	Text string `validate:"required"`

	// Tags is the optional rubric column, already split.
	Tags []string
}

// DetectDelimiter sniffs the column delimiter of raw delimited text.
//
// Description:
//
//	Scores tab, semicolon and comma by how many non-empty lines each one
//	splits into more than one column, preferring the candidate with the
//	highest and most consistent split count. Tab wins ties: spreadsheet
//	exports are the common case and statement text frequently contains
//	commas.
func DetectDelimiter(raw string) rune {
	lines := dataLines(raw)
	best := '\t'
	bestScore := -1
	for _, cand := range []rune{'\t', ';', ','} {
		score := 0
		for _, line := range lines {
			if strings.ContainsRune(line, cand) {
				score++
			}
		}
		if score > bestScore {
			best = cand
			bestScore = score
		}
	}
	return best
}

func dataLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// ParseFlat parses raw delimited text into flat records.
//
// Description:
//
//	Sniffs the delimiter, then reads rows of 2 to 4 columns:
//
//	  id, text
//	  id, dimension, text
//	  id, dimension, text, rubric-tags ("|"-joined)
//
//	A leading header row (first cell "id", case-insensitive) is skipped.
//	Any other shape is rejected with ErrBadShape, including the 9-column
//	export format: export output never round-trips through ingest.
func ParseFlat(raw string) ([]FlatRecord, error) {
	lines := dataLines(raw)
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	reader.Comma = DetectDelimiter(raw)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShape, err)
	}

	records := make([]FlatRecord, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "id") {
			continue
		}
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	return records, nil
}

func recordFromRow(row []string) (FlatRecord, error) {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	var rec FlatRecord
	switch len(row) {
	case 2:
		rec = FlatRecord{ID: row[0], Text: row[1]}
	case 3:
		rec = FlatRecord{ID: row[0], DimensionLabel: row[1], Text: row[2]}
	case 4:
		rec = FlatRecord{ID: row[0], DimensionLabel: row[1], Text: row[2], Tags: splitTags(row[3])}
	default:
		return rec, fmt.Errorf("%w: got %d columns, want 2-4", ErrBadShape, len(row))
	}
	if err := ingestValidate.Struct(rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return rec, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, rubricTagSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BuildRoot structures flat records into the root scale node.
//
// Description:
//
//	Groups records into dimensions by label, in order of first appearance;
//	unlabeled records fall into the default group. Items are numbered
//	continuously across the whole node ("{rootID}-item-{n}"), are their
//	own origin, and start with baseline == current rubric from the
//	optional tag column (inherited source). The root is depth 0 and not
//	position-locked.
//
//	The node is built, not inserted: insertion (after Clear, single active
//	family) is the caller's last step.
func BuildRoot(rootID, name string, pos graph.Position, records []FlatRecord) (*graph.ScaleNode, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	order := make([]string, 0)
	grouped := make(map[string][]graph.Item)
	counter := 1
	for _, rec := range records {
		label := rec.DimensionLabel
		if label == "" {
			label = DefaultDimensionName
		}
		if _, seen := grouped[label]; !seen {
			order = append(order, label)
		}
		itemID := fmt.Sprintf("%s-item-%d", rootID, counter)
		counter++
		grouped[label] = append(grouped[label], graph.Item{
			ItemID:         itemID,
			OriginItemID:   itemID,
			Text:           rec.Text,
			BaselineRubric: append([]string(nil), rec.Tags...),
			CurrentRubric:  append([]string(nil), rec.Tags...),
			RubricSource:   graph.RubricSourceInherited,
		})
	}

	dims := make([]graph.Dimension, 0, len(order))
	for _, label := range order {
		dims = append(dims, graph.Dimension{Name: label, Items: grouped[label]})
	}
	return graph.NewRootNode(rootID, name, pos, dims), nil
}
