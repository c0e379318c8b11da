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
)

// ScreeningVerdict is the tri-state outcome of the ingest legitimacy gate.
type ScreeningVerdict int

const (
	// VerdictUnknown means the service gave no usable verdict; the caller
	// decides whether to proceed.
	VerdictUnknown ScreeningVerdict = iota

	// VerdictAccept means the input looks like a legitimate scale.
	VerdictAccept

	// VerdictReject means the service short-circuits the whole pipeline
	// before any structuring is attempted.
	VerdictReject
)

// verdictNames maps ScreeningVerdict values to their wire representations.
var verdictNames = map[ScreeningVerdict]string{
	VerdictUnknown: "unknown",
	VerdictAccept:  "accept",
	VerdictReject:  "reject",
}

// String returns the string representation of the ScreeningVerdict.
func (v ScreeningVerdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return "unknown"
}

// IngestScreening is the service's judgement on whether raw input is a
// legitimate assessment scale at all.
type IngestScreening struct {
	Verdict ScreeningVerdict `json:"verdict"`

	// Reason is required for rejections and shown to the user verbatim.
	Reason string `json:"reason,omitempty"`
}

// screeningPayload is the wire shape of the screening response.
type screeningPayload struct {
	IsScale *bool  `json:"is_scale"`
	Reason  string `json:"reason"`
}

// ParseScreening decodes the ingest sanity gate response.
//
// Description:
//
//	The service answers {"is_scale": bool, "reason": string}. A missing or
//	unparseable answer maps to VerdictUnknown rather than an error: the
//	gate is advisory, and an unreachable or confused service must not be
//	able to dead-lock ingest. A false is_scale without a reason still
//	rejects, with a generic reason filled in.
func ParseScreening(raw string) IngestScreening {
	payload, err := ExtractPayload(raw)
	if err != nil {
		return IngestScreening{Verdict: VerdictUnknown}
	}
	var decoded screeningPayload
	if err := json.Unmarshal(payload, &decoded); err != nil || decoded.IsScale == nil {
		return IngestScreening{Verdict: VerdictUnknown}
	}
	if !*decoded.IsScale {
		reason := strings.TrimSpace(decoded.Reason)
		if reason == "" {
			reason = "input does not look like an assessment scale"
		}
		return IngestScreening{Verdict: VerdictReject, Reason: reason}
	}
	return IngestScreening{Verdict: VerdictAccept, Reason: decoded.Reason}
}

// ScreeningPrompt renders the legitimacy gate prompt for raw ingest text.
func ScreeningPrompt(rawInput string) string {
	var b strings.Builder
	b.WriteString("You screen inputs for a psychometric instrument editor.\n")
	b.WriteString("Decide whether the following text is a self-report assessment scale ")
	b.WriteString("(a list of statements, possibly grouped into dimensions).\n")
	b.WriteString("Answer with only a JSON object: {\"is_scale\": true|false, \"reason\": \"...\"}.\n\n")
	fmt.Fprintf(&b, "INPUT:\n%s\n", rawInput)
	return b.String()
}
