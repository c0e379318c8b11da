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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for the pipeline counters.
const (
	outcomeSuccess    = "success"
	outcomeBusy       = "busy"
	outcomeTransport  = "transport_error"
	outcomeValidation = "validation_error"
	outcomeStale      = "stale_discarded"
	outcomeRejected   = "rejected"
	outcomeBadInput   = "bad_input"
)

var (
	branchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scaleforge",
			Subsystem: "pipeline",
			Name:      "branches_total",
			Help:      "Branch adaptation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ingestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scaleforge",
			Subsystem: "pipeline",
			Name:      "ingests_total",
			Help:      "Flat-text ingest attempts by outcome.",
		},
		[]string{"outcome"},
	)

	validationWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scaleforge",
			Subsystem: "pipeline",
			Name:      "validation_warnings_total",
			Help:      "Non-fatal structural warnings on accepted adaptation results.",
		},
	)

	storeMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scaleforge",
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Committed store mutations by event kind.",
		},
		[]string{"kind"},
	)
)
