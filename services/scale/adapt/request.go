// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adapt

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/ScaleForge/services/scale/graph"
)

// RequestDimension is one source dimension in an outbound request.
type RequestDimension struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// AdaptationRequest is what the transport collaborator sends to the
// generative service for a branch adaptation.
type AdaptationRequest struct {
	SourceScaleName  string             `json:"source_scale_name"`
	SourceDimensions []RequestDimension `json:"source_dimensions"`

	// Intent is the user's free-text adaptation instruction, e.g.
	// "reword for Gen-Z respondents".
	Intent string `json:"adaptation_intent"`
}

// BuildAdaptationRequest derives the outbound request from a source node and
// the user's intent.
func BuildAdaptationRequest(source *graph.ScaleNode, intent string) AdaptationRequest {
	req := AdaptationRequest{
		SourceScaleName:  source.Name,
		Intent:           intent,
		SourceDimensions: make([]RequestDimension, 0, len(source.Dimensions)),
	}
	for _, dim := range source.Dimensions {
		texts := make([]string, 0, len(dim.Items))
		for _, item := range dim.Items {
			texts = append(texts, item.Text)
		}
		req.SourceDimensions = append(req.SourceDimensions, RequestDimension{
			Name:  dim.Name,
			Items: texts,
		})
	}
	return req
}

// Prompt renders the request as the prompt sent to the generative service.
//
// The shape demanded here is exactly what ValidateAdaptation accepts; the
// validator remains the gate because the service is under no obligation to
// comply.
func (r AdaptationRequest) Prompt() string {
	var b strings.Builder
	b.WriteString("You adapt psychometric self-report scales while preserving their structure.\n")
	fmt.Fprintf(&b, "Source scale: %q\n", r.SourceScaleName)
	fmt.Fprintf(&b, "Adaptation intent: %s\n\n", r.Intent)
	b.WriteString("Source structure:\n")
	for _, dim := range r.SourceDimensions {
		fmt.Fprintf(&b, "- Dimension %q:\n", dim.Name)
		for i, text := range dim.Items {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, text)
		}
	}
	b.WriteString("\nRewrite every item per the intent, keeping dimension order and item order.\n")
	b.WriteString("Answer with only a JSON object of this exact shape:\n")
	b.WriteString(`{"scale_name": "...", "dimensions": [{"name": "...", "items": [{"text": "...", "current_rubric": ["tag", ...]}]}]}`)
	b.WriteString("\ncurrent_rubric is optional; include it only when you re-derive the semantic tags.\n")
	return b.String()
}
