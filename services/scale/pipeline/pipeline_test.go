// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ScaleForge/services/llm"
	"github.com/AleutianAI/ScaleForge/services/scale/adapt"
	"github.com/AleutianAI/ScaleForge/services/scale/graph"
)

// fakeLLM replays scripted responses in order. An entry with a non-nil
// error fails that call; onCall fires before the response is returned.
type fakeLLM struct {
	responses []string
	errs      []error
	prompts   []string
	onCall    func(prompt string)
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	idx := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if f.onCall != nil {
		f.onCall(prompt)
	}
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx >= len(f.responses) {
		return "", fmt.Errorf("fakeLLM: unscripted call %d", idx)
	}
	return f.responses[idx], nil
}

func rootScale(t *testing.T, store *graph.Store) *graph.ScaleNode {
	t.Helper()
	root := graph.NewRootNode("scale-root", "Skala Asli", graph.Position{X: 100, Y: 250}, []graph.Dimension{
		{Name: "Burnout", Items: []graph.Item{
			{ItemID: "scale-root-item-1", OriginItemID: "scale-root-item-1",
				Text:           "Saya merasa lelah secara emosional karena pekerjaan saya.",
				BaselineRubric: []string{"kelelahan", "emosi"},
				CurrentRubric:  []string{"kelelahan", "emosi"},
				RubricSource:   graph.RubricSourceGenerated},
			{ItemID: "scale-root-item-2", OriginItemID: "scale-root-item-2",
				Text:           "Saya merasa terkuras di akhir hari kerja.",
				BaselineRubric: []string{"kelelahan"},
				CurrentRubric:  []string{"kelelahan"},
				RubricSource:   graph.RubricSourceGenerated},
		}},
		{Name: "Sinisme", Items: []graph.Item{
			{ItemID: "scale-root-item-3", OriginItemID: "scale-root-item-3",
				Text:           "Saya menjadi kurang peduli terhadap pekerjaan saya.",
				BaselineRubric: []string{"sinisme"},
				CurrentRubric:  []string{"sinisme"},
				RubricSource:   graph.RubricSourceGenerated},
		}},
	})
	require.NoError(t, store.Add(root))
	return root
}

// adaptationJSON builds a well-formed service response mirroring the source
// structure with a marker prefix on each item.
func adaptationJSON(t *testing.T, name string, src *graph.ScaleNode) string {
	t.Helper()
	type wireItem struct {
		Text string `json:"text"`
	}
	type wireDim struct {
		Name  string     `json:"name"`
		Items []wireItem `json:"items"`
	}
	payload := struct {
		ScaleName  string    `json:"scale_name"`
		Dimensions []wireDim `json:"dimensions"`
	}{ScaleName: name}
	for _, d := range src.Dimensions {
		wd := wireDim{Name: d.Name}
		for _, it := range d.Items {
			wd.Items = append(wd.Items, wireItem{Text: "adapted: " + it.Text})
		}
		payload.Dimensions = append(payload.Dimensions, wd)
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return "Here is the adapted scale:\n```json\n" + string(b) + "\n```"
}

func TestRunner_Branch_EndToEnd(t *testing.T) {
	store := graph.NewStore()
	root := rootScale(t, store)
	fake := &fakeLLM{}
	runner := NewRunner(store, fake, WithoutScreening())
	ctx := context.Background()

	// First branch lands above the parent.
	fake.responses = append(fake.responses, adaptationJSON(t, "Skala Gen-Z", root))
	genZ, err := runner.Branch(ctx, root.ID, "adapt the register for Gen-Z respondents")
	require.NoError(t, err)
	assert.Equal(t, "Skala Gen-Z", genZ.Node.Name)
	assert.Equal(t, root.ID, genZ.Node.ParentID)
	assert.Equal(t, 0, genZ.Node.BranchIndex)
	assert.Equal(t, 1, genZ.Node.Depth)
	assert.Equal(t, graph.Position{X: 650, Y: 46}, genZ.Node.Position)
	assert.True(t, genZ.Node.PositionLocked)
	assert.Empty(t, genZ.Warnings)

	// Item identity: node-wide continuous counter, lineage to the source.
	require.Len(t, genZ.Node.Dimensions, 2)
	first := genZ.Node.Dimensions[0].Items[0]
	assert.Equal(t, genZ.Node.ID+"-item-1", first.ItemID)
	assert.Equal(t, "scale-root-item-1", first.OriginItemID)
	assert.Equal(t, []string{"kelelahan", "emosi"}, first.BaselineRubric)
	third := genZ.Node.Dimensions[1].Items[0]
	assert.Equal(t, genZ.Node.ID+"-item-3", third.ItemID)

	// Second branch off the same parent lands below it.
	fake.responses = append(fake.responses, adaptationJSON(t, "Skala Boomer", root))
	boomer, err := runner.Branch(ctx, root.ID, "adapt the register for Boomer respondents")
	require.NoError(t, err)
	assert.Equal(t, 1, boomer.Node.BranchIndex)
	assert.Equal(t, graph.Position{X: 650, Y: 454}, boomer.Node.Position)

	// Cascade-deleting the leaf Gen-Z branch removes exactly one node.
	set := store.View().CascadeDeleteSet(genZ.Node.ID)
	assert.Len(t, set, 1)
	require.NoError(t, store.RemoveCascade(set))
	assert.Equal(t, 2, store.View().Len())

	// A branch off Boomer is Boomer's first branch, one layer deeper.
	fake.responses = append(fake.responses, adaptationJSON(t, "Skala Gen-Alpha", boomer.Node))
	alpha, err := runner.Branch(ctx, boomer.Node.ID, "make it even more casual")
	require.NoError(t, err)
	assert.Equal(t, 0, alpha.Node.BranchIndex)
	assert.Equal(t, 2, alpha.Node.Depth)
	assert.Equal(t, graph.Position{X: 1200, Y: 250}, alpha.Node.Position)
}

func TestRunner_Branch_RejectsConcurrentBranch(t *testing.T) {
	store := graph.NewStore()
	root := rootScale(t, store)
	fake := &fakeLLM{}
	var runner *Runner
	var nestedErr error
	fake.onCall = func(string) {
		// Re-enter while the first call is still outstanding.
		_, nestedErr = runner.Branch(context.Background(), root.ID, "again")
	}
	fake.responses = []string{adaptationJSON(t, "Skala Gen-Z", root)}
	runner = NewRunner(store, fake, WithoutScreening())

	_, err := runner.Branch(context.Background(), root.ID, "first")
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrBusy)
}

func TestRunner_Branch_GuardReleasedAfterFailure(t *testing.T) {
	store := graph.NewStore()
	root := rootScale(t, store)
	fake := &fakeLLM{
		responses: []string{"", adaptationJSON(t, "Skala Gen-Z", root)},
		errs:      []error{errors.New("connection refused")},
	}
	runner := NewRunner(store, fake, WithoutScreening())

	_, err := runner.Branch(context.Background(), root.ID, "intent")
	require.Error(t, err)
	assert.False(t, runner.BranchBusy())

	_, err = runner.Branch(context.Background(), root.ID, "intent")
	assert.NoError(t, err)
}

func TestRunner_Branch_ValidationFailureLeavesGraphUntouched(t *testing.T) {
	store := graph.NewStore()
	root := rootScale(t, store)
	fake := &fakeLLM{responses: []string{
		`{"scale_name": "Broken", "dimensions": [{"name": "", "items": [{"text": "x"}]}]}`,
	}}
	runner := NewRunner(store, fake, WithoutScreening())
	gen := store.Generation()

	_, err := runner.Branch(context.Background(), root.ID, "intent")
	require.ErrorIs(t, err, adapt.ErrInvalidPayload)
	assert.Equal(t, 1, store.View().Len())
	assert.Equal(t, gen, store.Generation())
}

func TestRunner_Branch_StaleResultDiscarded(t *testing.T) {
	store := graph.NewStore()
	root := rootScale(t, store)
	fake := &fakeLLM{}
	fake.onCall = func(string) {
		// The user keeps editing while the call is in flight.
		name := "Skala Asli (edited)"
		_ = store.Update(root.ID, graph.NodePatch{Name: &name})
	}
	fake.responses = []string{adaptationJSON(t, "Skala Gen-Z", root)}
	runner := NewRunner(store, fake, WithoutScreening())

	_, err := runner.Branch(context.Background(), root.ID, "intent")
	require.ErrorIs(t, err, ErrStaleResult)
	assert.Equal(t, 1, store.View().Len())
	assert.False(t, runner.BranchBusy())
}

func TestRunner_Branch_UnknownSource(t *testing.T) {
	store := graph.NewStore()
	rootScale(t, store)
	runner := NewRunner(store, &fakeLLM{}, WithoutScreening())

	_, err := runner.Branch(context.Background(), "scale-missing", "intent")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestRunner_Branch_SurfacesWarnings(t *testing.T) {
	store := graph.NewStore()
	root := rootScale(t, store)
	// One dimension instead of two: accepted with a warning.
	fake := &fakeLLM{responses: []string{
		`{"scale_name": "Skala Pendek", "dimensions": [{"name": "Burnout", "items": [{"text": "short"}]}]}`,
	}}
	runner := NewRunner(store, fake, WithoutScreening())

	res, err := runner.Branch(context.Background(), root.ID, "intent")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, 2, store.View().Len())
}

const flatInput = "id\tdimension\ttext\trubric\n" +
	"q1\tBurnout\tSaya merasa lelah.\tkelelahan|emosi\n" +
	"q2\tBurnout\tSaya merasa terkuras.\tkelelahan\n" +
	"q3\tSinisme\tSaya kurang peduli.\tsinisme\n"

func TestRunner_Ingest_AcceptedByGate(t *testing.T) {
	store := graph.NewStore()
	fake := &fakeLLM{responses: []string{`{"is_scale": true, "reason": "looks like a burnout scale"}`}}
	runner := NewRunner(store, fake)

	res, err := runner.Ingest(context.Background(), "Skala Asli", flatInput)
	require.NoError(t, err)
	assert.Equal(t, adapt.VerdictAccept, res.Screening.Verdict)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, "Skala Asli", res.Root.Name)
	assert.True(t, res.Root.IsRoot)
	assert.Equal(t, DefaultRootPosition, res.Root.Position)
	assert.Len(t, res.Root.Dimensions, 2)
	assert.Equal(t, res.Root.ID, store.Selected())

	// The gate sees the raw input before any structuring.
	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "Saya merasa lelah.")
}

func TestRunner_Ingest_RejectedByGate(t *testing.T) {
	store := graph.NewStore()
	rootScale(t, store)
	fake := &fakeLLM{responses: []string{`{"is_scale": false, "reason": "this is a shopping list"}`}}
	runner := NewRunner(store, fake)

	_, err := runner.Ingest(context.Background(), "Belanja", "milk\neggs\nbread")
	require.ErrorIs(t, err, ErrIngestRejected)
	assert.Contains(t, err.Error(), "shopping list")
	// The existing graph is untouched on rejection.
	assert.Equal(t, 1, store.View().Len())
	assert.False(t, runner.IngestBusy())
}

func TestRunner_Ingest_GateOfflineDegradesToUnknown(t *testing.T) {
	store := graph.NewStore()
	fake := &fakeLLM{
		responses: []string{""},
		errs:      []error{errors.New("dial tcp: connection refused")},
	}
	runner := NewRunner(store, fake)

	res, err := runner.Ingest(context.Background(), "Skala Asli", flatInput)
	require.NoError(t, err)
	assert.Equal(t, adapt.VerdictUnknown, res.Screening.Verdict)
	assert.Equal(t, 1, store.View().Len())
}

func TestRunner_Ingest_SkipScreeningMakesNoExternalCalls(t *testing.T) {
	store := graph.NewStore()
	fake := &fakeLLM{}
	runner := NewRunner(store, fake, WithoutScreening())

	_, err := runner.Ingest(context.Background(), "Skala Asli", flatInput)
	require.NoError(t, err)
	assert.Empty(t, fake.prompts)
}

func TestRunner_Ingest_ReplacesExistingGraph(t *testing.T) {
	store := graph.NewStore()
	old := rootScale(t, store)
	runner := NewRunner(store, nil, WithoutScreening())

	res, err := runner.Ingest(context.Background(), "Skala Baru", flatInput)
	require.NoError(t, err)
	assert.Equal(t, 1, store.View().Len())
	assert.False(t, store.View().Has(old.ID))
	assert.True(t, store.View().Has(res.Root.ID))
}

func TestRunner_Ingest_BadInputLeavesGraphUntouched(t *testing.T) {
	store := graph.NewStore()
	old := rootScale(t, store)
	runner := NewRunner(store, nil, WithoutScreening())

	_, err := runner.Ingest(context.Background(), "Kosong", "   \n  \n")
	require.Error(t, err)
	assert.True(t, store.View().Has(old.ID))
}

func TestRunner_Ingest_EmptyNameLeavesGraphUntouched(t *testing.T) {
	store := graph.NewStore()
	old := rootScale(t, store)
	runner := NewRunner(store, nil, WithoutScreening())

	require.NoError(t, store.Select(old.ID))

	// The input parses fine; the assembled root fails validation on the
	// missing name. The old family must survive the failed replacement.
	_, err := runner.Ingest(context.Background(), "", flatInput)
	require.ErrorIs(t, err, graph.ErrInvalidNode)
	assert.Equal(t, 1, store.View().Len())
	assert.True(t, store.View().Has(old.ID))
	assert.Equal(t, old.ID, store.Selected())
}

func TestRunner_Branch_PromptCarriesSourceAndIntent(t *testing.T) {
	store := graph.NewStore()
	root := rootScale(t, store)
	fake := &fakeLLM{responses: []string{adaptationJSON(t, "Skala Gen-Z", root)}}
	runner := NewRunner(store, fake, WithoutScreening())

	_, err := runner.Branch(context.Background(), root.ID, "use Gen-Z slang")
	require.NoError(t, err)
	require.Len(t, fake.prompts, 1)
	prompt := fake.prompts[0]
	assert.Contains(t, prompt, "Skala Asli")
	assert.Contains(t, prompt, "use Gen-Z slang")
	assert.True(t, strings.Contains(prompt, "Saya merasa lelah secara emosional"))
}
