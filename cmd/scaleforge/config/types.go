// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

// ScaleForgeConfig is the top-level user configuration, persisted at
// ~/.scaleforge/scaleforge.yaml.
type ScaleForgeConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BackendConfig selects and tunes the generative backend.
type BackendConfig struct {
	// Type is "ollama" or "openai".
	Type string `yaml:"type"`

	// BaseURL is the Ollama endpoint; ignored for openai.
	BaseURL string `yaml:"base_url"`

	// Model names the model to use for adaptation calls.
	Model string `yaml:"model"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Dir enables file logging when non-empty.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// PipelineConfig tunes the adaptation pipeline.
type PipelineConfig struct {
	// CallTimeoutSeconds bounds one external generation call.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`

	// SkipScreening disables the ingest legitimacy gate.
	SkipScreening bool `yaml:"skip_screening"`

	// TraceStdout enables the stdout span exporter for debugging.
	TraceStdout bool `yaml:"trace_stdout"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() ScaleForgeConfig {
	return ScaleForgeConfig{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8710,
		},
		Backend: BackendConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.scaleforge/logs",
		},
		Pipeline: PipelineConfig{
			CallTimeoutSeconds: 300,
		},
	}
}
