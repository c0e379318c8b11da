// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ScaleForge/cmd/scaleforge/config"
	"github.com/AleutianAI/ScaleForge/services/scale/export"
	"github.com/AleutianAI/ScaleForge/services/scale/graph"
	"github.com/AleutianAI/ScaleForge/services/scale/pipeline"
)

// runBranch is the one-shot pipeline: ingest a flat file, adapt it once
// toward the given intent, and write root plus branch to stdout as CSV.
func runBranch(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Failed to read %s: %v", args[0], err)
	}

	client, err := buildLLMClient(config.Global)
	if err != nil {
		log.Fatalf("Failed to initialize the generative backend: %v", err)
	}

	store := graph.NewStore()
	runner := pipeline.NewRunner(store, client, runnerOptions(config.Global)...)
	ctx := context.Background()

	ingested, err := runner.Ingest(ctx, scaleName, string(raw))
	if err != nil {
		log.Fatalf("Ingest failed: %v", err)
	}
	slog.Info("Scale ingested", "node_id", ingested.Root.ID, "records", ingested.Records)

	branched, err := runner.Branch(ctx, ingested.Root.ID, adaptIntent)
	if err != nil {
		log.Fatalf("Branch failed: %v", err)
	}
	for _, w := range branched.Warnings {
		slog.Warn("Structural warning", "path", w.Path, "detail", w.Detail)
	}

	if err := export.Write(os.Stdout, store.View()); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
}
