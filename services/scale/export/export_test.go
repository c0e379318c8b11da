// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ScaleForge/services/scale/graph"
	"github.com/AleutianAI/ScaleForge/services/scale/ingest"
)

func seededStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore()
	root := graph.NewRootNode("scale-root", "Skala Asli", graph.Position{X: 100, Y: 250}, []graph.Dimension{
		{Name: "Wellbeing", Items: []graph.Item{{
			ItemID:         "scale-root-item-1",
			OriginItemID:   "scale-root-item-1",
			Text:           "I feel calm.",
			BaselineRubric: []string{"calm", "affect"},
			CurrentRubric:  []string{"calm", "affect"},
		}}},
	})
	require.NoError(t, s.Add(root))

	branch := &graph.ScaleNode{
		ID:             "scale-genz",
		Name:           "Skala Gen-Z",
		ParentID:       "scale-root",
		Depth:          1,
		BranchIndex:    0,
		Position:       graph.Position{X: 650, Y: 46},
		PositionLocked: true,
		Dimensions: []graph.Dimension{
			{Name: "Wellbeing", Items: []graph.Item{{
				ItemID:         "scale-genz-item-1",
				OriginItemID:   "scale-root-item-1",
				Text:           "I'm chill most days.",
				BaselineRubric: []string{"calm", "affect"},
				CurrentRubric:  []string{"chill"},
				RubricSource:   graph.RubricSourceGenerated,
			}}},
		},
	}
	require.NoError(t, s.Add(branch))
	return s
}

func TestRows(t *testing.T) {
	rows := Rows(seededStore(t).View())
	require.Len(t, rows, 2)

	assert.Equal(t, []string{
		"scale-root", "Skala Asli", "", "Wellbeing",
		"scale-root-item-1", "scale-root-item-1", "I feel calm.",
		"calm|affect", "calm|affect",
	}, rows[0])
	assert.Equal(t, []string{
		"scale-genz", "Skala Gen-Z", "scale-root", "Wellbeing",
		"scale-genz-item-1", "scale-root-item-1", "I'm chill most days.",
		"calm|affect", "chill",
	}, rows[1])
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, seededStore(t).View()))

	parsed, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, Header, parsed[0])
	assert.Equal(t, "scale-genz", parsed[2][0])
}

func TestExportDoesNotRoundTrip(t *testing.T) {
	// The deliberate asymmetry: feeding the export back into the importer
	// must fail rather than silently rebuild a wrong family.
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, seededStore(t).View()))

	_, err := ingest.ParseFlat(buf.String())
	assert.Error(t, err)
}
