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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/ScaleForge/services/scale/graph"
)

// adaptValidate is the package validator instance for tag-level checks.
var adaptValidate = validator.New()

// AdaptationResult is the structured payload the generative service must
// return for a branch adaptation.
type AdaptationResult struct {
	// ScaleName is the display name for the adapted scale.
	ScaleName string `json:"scale_name" validate:"required"`

	// Dimensions mirrors the source structure positionally.
	Dimensions []AdaptedDimension `json:"dimensions" validate:"required,min=1,dive"`
}

// AdaptedDimension is one adapted dimension.
type AdaptedDimension struct {
	Name  string        `json:"name" validate:"required"`
	Items []AdaptedItem `json:"items" validate:"required,min=1,dive"`
}

// AdaptedItem is one adapted statement, optionally with re-extracted tags.
type AdaptedItem struct {
	Text          string   `json:"text" validate:"required"`
	CurrentRubric []string `json:"current_rubric,omitempty"`
}

// StructuralWarning is a non-fatal count mismatch between the adaptation and
// its source node. Logged and surfaced, never blocking.
type StructuralWarning struct {
	// Path locates the mismatched collection, e.g. "dimensions[2].items".
	Path string `json:"path"`

	// Detail describes the mismatch.
	Detail string `json:"detail"`
}

// ExtractPayload locates the JSON object embedded in raw service output.
//
// Models wrap payloads in prose or markdown fences; the contract is only
// that exactly one top-level object is present. Returns the payload bytes.
func ExtractPayload(raw string) ([]byte, error) {
	text := raw
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		} else {
			text = rest
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrNoPayload
	}
	return []byte(text[start : end+1]), nil
}

// ParseAdaptation extracts and decodes an AdaptationResult from raw service
// output. The result is unvalidated; callers must run ValidateAdaptation
// before building anything from it.
func ParseAdaptation(raw string) (*AdaptationResult, error) {
	payload, err := ExtractPayload(raw)
	if err != nil {
		return nil, err
	}
	var result AdaptationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &result, nil
}

// ValidateAdaptation gates an untrusted adaptation payload.
//
// Description:
//
//	Checks the required shape: non-empty scale_name, non-empty dimensions,
//	each with a non-empty name and non-empty items, each item with
//	non-empty text. Any miss is a hard rejection carrying a field-level
//	diagnostic path; the caller must not proceed to assembly.
//
//	On success, compares dimension and per-dimension item counts against
//	the source node. Mismatches come back as warnings: structural drift is
//	suspicious, not disqualifying.
//
// Inputs:
//
//	result - The parsed payload. Nil is rejected.
//	source - The node being adapted. Nil skips the warning pass.
//
// Outputs:
//
//	[]StructuralWarning - Non-fatal count mismatches. Nil when none.
//	error - ErrInvalidPayload wrapping a FieldError, or nil.
func ValidateAdaptation(result *AdaptationResult, source *graph.ScaleNode) ([]StructuralWarning, error) {
	if result == nil {
		return nil, fieldErr("payload", "is missing")
	}
	if strings.TrimSpace(result.ScaleName) == "" {
		return nil, fieldErr("scale_name", "must be a non-empty string")
	}
	if len(result.Dimensions) == 0 {
		return nil, fieldErr("dimensions", "must be a non-empty list")
	}
	for di, dim := range result.Dimensions {
		if strings.TrimSpace(dim.Name) == "" {
			return nil, fieldErr(fmt.Sprintf("dimensions[%d].name", di), "must be a non-empty string")
		}
		if len(dim.Items) == 0 {
			return nil, fieldErr(fmt.Sprintf("dimensions[%d].items", di), "must be a non-empty list")
		}
		for ii, item := range dim.Items {
			if strings.TrimSpace(item.Text) == "" {
				return nil, fieldErr(fmt.Sprintf("dimensions[%d].items[%d].text", di, ii), "must be a non-empty string")
			}
		}
	}
	// Tag pass as a backstop; the manual walk above owns the diagnostics.
	if err := adaptValidate.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if source == nil {
		return nil, nil
	}
	var warnings []StructuralWarning
	if len(result.Dimensions) != len(source.Dimensions) {
		warnings = append(warnings, StructuralWarning{
			Path: "dimensions",
			Detail: fmt.Sprintf("adaptation has %d dimensions, source has %d",
				len(result.Dimensions), len(source.Dimensions)),
		})
	}
	for di := range result.Dimensions {
		if di >= len(source.Dimensions) {
			break
		}
		got := len(result.Dimensions[di].Items)
		want := len(source.Dimensions[di].Items)
		if got != want {
			warnings = append(warnings, StructuralWarning{
				Path:   fmt.Sprintf("dimensions[%d].items", di),
				Detail: fmt.Sprintf("adaptation has %d items, source has %d", got, want),
			})
		}
	}
	return warnings, nil
}
