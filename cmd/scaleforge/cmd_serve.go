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
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/ScaleForge/cmd/scaleforge/config"
	"github.com/AleutianAI/ScaleForge/services/llm"
	"github.com/AleutianAI/ScaleForge/services/scale"
	"github.com/AleutianAI/ScaleForge/services/scale/graph"
	"github.com/AleutianAI/ScaleForge/services/scale/pipeline"
)

// runServe starts the HTTP server with the configured backend.
func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Global

	shutdown := setupTracing(cfg)
	defer shutdown()

	client, err := buildLLMClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize the generative backend: %v", err)
	}

	store := graph.NewStore()
	runner := pipeline.NewRunner(store, client, runnerOptions(cfg)...)

	router := gin.Default()
	router.Use(otelgin.Middleware("scaleforge"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	scale.RegisterRoutes(v1, scale.NewHandlers(store, runner))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("Starting the ScaleForge server", "addr", addr, "backend", resolvedBackend(cfg))
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// runnerOptions translates config into pipeline options.
func runnerOptions(cfg config.ScaleForgeConfig) []pipeline.RunnerOption {
	var opts []pipeline.RunnerOption
	if cfg.Pipeline.CallTimeoutSeconds > 0 {
		opts = append(opts, pipeline.WithCallTimeout(time.Duration(cfg.Pipeline.CallTimeoutSeconds)*time.Second))
	}
	if cfg.Pipeline.SkipScreening || skipScreening {
		opts = append(opts, pipeline.WithoutScreening())
	}
	return opts
}

// resolvedBackend applies the --backend flag over the configured type.
func resolvedBackend(cfg config.ScaleForgeConfig) string {
	if backendType != "" {
		return backendType
	}
	return cfg.Backend.Type
}

// buildLLMClient constructs the generative backend client.
//
// The client constructors are environment-driven; config values are
// promoted into the environment when the corresponding variable is
// unset, so explicit environment overrides still win.
func buildLLMClient(cfg config.ScaleForgeConfig) (llm.LLMClient, error) {
	switch resolvedBackend(cfg) {
	case "openai":
		setEnvDefault("OPENAI_MODEL", cfg.Backend.Model)
		slog.Info("Using OpenAI generative backend")
		return llm.NewOpenAIClient()
	case "ollama", "":
		setEnvDefault("OLLAMA_BASE_URL", cfg.Backend.BaseURL)
		setEnvDefault("OLLAMA_MODEL", cfg.Backend.Model)
		slog.Info("Using Ollama generative backend")
		return llm.NewOllamaClient()
	default:
		return nil, fmt.Errorf("unknown backend type %q", resolvedBackend(cfg))
	}
}

func setEnvDefault(key, value string) {
	if value != "" && os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}

// setupTracing installs the stdout span exporter when enabled. Returns
// a shutdown function; a no-op when tracing is off.
func setupTracing(cfg config.ScaleForgeConfig) func() {
	if !cfg.Pipeline.TraceStdout {
		return func() {}
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		slog.Warn("Failed to create the stdout trace exporter, tracing disabled", "error", err)
		return func() {}
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Warn("Trace provider shutdown failed", "error", err)
		}
	}
}
