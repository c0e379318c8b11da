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

	"github.com/spf13/cobra"
)

// Version is the CLI version, overridable at build time via -ldflags.
var Version = "0.1.0"

// --- Global Command Variables ---
var (
	backendType   string // CLI override for backend.type
	adaptIntent   string
	skipScreening bool
	scaleName     string

	rootCmd = &cobra.Command{
		Use:   "scaleforge",
		Short: "A cli to manage and adapt psychometric scale version graphs",
		Long: `ScaleForge keeps a root assessment scale and a tree of LLM-adapted
variants, tracks per-item lineage and rubric drift, and serves the
graph over HTTP for interactive editing.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the ScaleForge HTTP server",
		Run:   runServe, // Defined in cmd_serve.go
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect [flat file]",
		Short: "Parse a flat scale file and print its structure",
		Args:  cobra.ExactArgs(1),
		Run:   runInspect, // Defined in cmd_inspect.go
	}

	branchCmd = &cobra.Command{
		Use:   "branch [flat file]",
		Short: "Ingest a flat scale file, adapt it once, and print the result as CSV",
		Args:  cobra.ExactArgs(1),
		Run:   runBranch, // Defined in cmd_branch.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the ScaleForge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("scaleforge", Version)
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&backendType, "backend", "",
		"Override the configured backend type (ollama or openai)")

	branchCmd.Flags().StringVar(&adaptIntent, "intent", "",
		"Adaptation intent, e.g. a target population or register (required)")
	branchCmd.Flags().StringVar(&backendType, "backend", "",
		"Override the configured backend type (ollama or openai)")
	branchCmd.Flags().StringVar(&scaleName, "name", "Imported Scale",
		"Display name for the ingested root scale")
	branchCmd.Flags().BoolVar(&skipScreening, "skip-screening", false,
		"Skip the ingest legitimacy gate")
	_ = branchCmd.MarkFlagRequired("intent")

	inspectCmd.Flags().StringVar(&scaleName, "name", "Imported Scale",
		"Display name for the ingested root scale")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(versionCmd)
}
