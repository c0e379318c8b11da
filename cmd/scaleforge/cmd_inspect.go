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
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ScaleForge/services/scale/graph"
	"github.com/AleutianAI/ScaleForge/services/scale/ingest"
)

// runInspect parses a flat scale file and prints the structure it would
// ingest as, without touching any server.
func runInspect(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Failed to read %s: %v", args[0], err)
	}

	records, err := ingest.ParseFlat(string(raw))
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", args[0], err)
	}

	root, err := ingest.BuildRoot("scale-preview", scaleName, graph.Position{X: 100, Y: 250}, records)
	if err != nil {
		log.Fatalf("Failed to structure %s: %v", args[0], err)
	}

	fmt.Printf("%s: %d records, %d dimensions, %d items\n",
		scaleName, len(records), len(root.Dimensions), graph.ItemCount(root.Dimensions))
	for _, dim := range root.Dimensions {
		fmt.Printf("\n  %s (%d items)\n", dim.Name, len(dim.Items))
		for _, item := range dim.Items {
			fmt.Printf("    %-24s %s\n", item.ItemID, item.Text)
			if len(item.CurrentRubric) > 0 {
				fmt.Printf("    %-24s rubric: %s\n", "", strings.Join(item.CurrentRubric, ", "))
			}
		}
	}
}
