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
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/ScaleForge/services/llm"
	"github.com/AleutianAI/ScaleForge/services/scale/adapt"
	"github.com/AleutianAI/ScaleForge/services/scale/graph"
	"github.com/AleutianAI/ScaleForge/services/scale/ingest"
)

var tracer = otel.Tracer("scaleforge.pipeline")

// DefaultCallTimeout bounds a single external generation call. Adaptation of
// a large scale can legitimately take minutes on a local backend.
const DefaultCallTimeout = 5 * time.Minute

// DefaultRootPosition is where an ingested root scale lands on the canvas.
var DefaultRootPosition = graph.Position{X: 100, Y: 250}

// opGuard is a non-blocking mutual exclusion flag for one operation class.
// TryAcquire never waits; a losing caller is told to come back later.
type opGuard struct {
	busy atomic.Bool
}

func (g *opGuard) TryAcquire() bool { return g.busy.CompareAndSwap(false, true) }
func (g *opGuard) Release()         { g.busy.Store(false) }

// RunnerOptions tunes pipeline behavior.
type RunnerOptions struct {
	// CallTimeout bounds each external call; zero means DefaultCallTimeout.
	CallTimeout time.Duration

	// SkipScreening disables the ingest legitimacy gate. Intended for
	// trusted local files and tests, not for pasted user input.
	SkipScreening bool

	// Params is forwarded to every generation call.
	Params llm.GenerationParams
}

// RunnerOption mutates RunnerOptions.
type RunnerOption func(*RunnerOptions)

// WithCallTimeout overrides the per-call deadline for external generation.
func WithCallTimeout(d time.Duration) RunnerOption {
	return func(o *RunnerOptions) { o.CallTimeout = d }
}

// WithoutScreening disables the ingest legitimacy gate.
func WithoutScreening() RunnerOption {
	return func(o *RunnerOptions) { o.SkipScreening = true }
}

// WithGenerationParams sets the sampling parameters for external calls.
func WithGenerationParams(p llm.GenerationParams) RunnerOption {
	return func(o *RunnerOptions) { o.Params = p }
}

// Runner drives the two long-running scale operations against a Store and a
// generative backend. One Runner per Store; the guards assume it.
type Runner struct {
	store  *graph.Store
	client llm.LLMClient
	opts   RunnerOptions
	logger *slog.Logger

	branching opGuard
	ingesting opGuard
}

// NewRunner wires a Runner to its store and backend. The client may be nil,
// in which case Branch fails and Ingest skips the legitimacy gate.
func NewRunner(store *graph.Store, client llm.LLMClient, opts ...RunnerOption) *Runner {
	options := RunnerOptions{CallTimeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(&options)
	}
	r := &Runner{
		store:  store,
		client: client,
		opts:   options,
		logger: slog.Default().With("component", "scale.pipeline"),
	}
	store.Subscribe(graph.ObserverFunc(func(ev graph.Event) {
		storeMutations.WithLabelValues(ev.Kind.String()).Inc()
	}))
	return r
}

// BranchBusy reports whether a branch adaptation is currently outstanding.
func (r *Runner) BranchBusy() bool { return r.branching.busy.Load() }

// IngestBusy reports whether an ingest is currently outstanding.
func (r *Runner) IngestBusy() bool { return r.ingesting.busy.Load() }

// BranchResult is the outcome of a successful branch adaptation.
type BranchResult struct {
	Node *graph.ScaleNode
	// Warnings are non-fatal structural findings on the accepted result.
	Warnings []adapt.StructuralWarning
}

// Branch adapts the scale at sourceID toward the given intent and inserts
// the new branch under it.
//
// Description: captures placement and the store generation, calls the
// external service, validates and assembles the response, then inserts -
// insertion is the last step. If the graph changed while the call was in
// flight the result is discarded with ErrStaleResult.
//
// Errors: ErrBusy, graph.ErrNodeNotFound, llm transport errors,
// adapt.ErrMalformedPayload / ErrInvalidPayload, ErrStaleResult, and any
// store insertion error.
func (r *Runner) Branch(ctx context.Context, sourceID, intent string) (*BranchResult, error) {
	if !r.branching.TryAcquire() {
		branchesTotal.WithLabelValues(outcomeBusy).Inc()
		return nil, ErrBusy
	}
	defer r.branching.Release()

	ctx, span := tracer.Start(ctx, "pipeline.Branch")
	defer span.End()
	span.SetAttributes(
		attribute.String("scale.source_id", sourceID),
		attribute.String("scale.intent", intent),
	)

	res, err := r.branch(ctx, sourceID, intent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Runner) branch(ctx context.Context, sourceID, intent string) (*BranchResult, error) {
	if r.client == nil {
		branchesTotal.WithLabelValues(outcomeTransport).Inc()
		return nil, fmt.Errorf("branch %q: no generative backend configured", sourceID)
	}

	view := r.store.View()
	source := view.Get(sourceID)
	if source == nil {
		branchesTotal.WithLabelValues(outcomeBadInput).Inc()
		return nil, fmt.Errorf("branch source %q: %w", sourceID, graph.ErrNodeNotFound)
	}

	// Placement and staleness baseline are fixed before the call leaves.
	branchIndex := view.BranchCount(sourceID, "")
	placement := graph.NextBranchPosition(source, branchIndex, r.store.Layout())
	gen := r.store.Generation()

	prompt := adapt.BuildAdaptationRequest(source, intent).Prompt()

	callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	started := time.Now()
	raw, err := r.client.Generate(callCtx, prompt, r.opts.Params)
	if err != nil {
		branchesTotal.WithLabelValues(outcomeTransport).Inc()
		return nil, llm.WrapTransport(err)
	}
	r.logger.Info("adaptation response received",
		"source_id", sourceID,
		"elapsed", time.Since(started).Round(time.Millisecond),
		"bytes", len(raw))

	result, err := adapt.ParseAdaptation(raw)
	if err != nil {
		branchesTotal.WithLabelValues(outcomeValidation).Inc()
		return nil, err
	}
	warnings, err := adapt.ValidateAdaptation(result, source)
	if err != nil {
		branchesTotal.WithLabelValues(outcomeValidation).Inc()
		return nil, err
	}
	for _, w := range warnings {
		validationWarnings.Inc()
		r.logger.Warn("adaptation structural warning",
			"source_id", sourceID, "path", w.Path, "detail", w.Detail)
	}

	if r.store.Generation() != gen {
		branchesTotal.WithLabelValues(outcomeStale).Inc()
		r.logger.Warn("discarding adaptation result, graph changed during call",
			"source_id", sourceID,
			"generation_at_dispatch", gen,
			"generation_now", r.store.Generation())
		return nil, ErrStaleResult
	}

	node := adapt.Assemble(result, source, placement, adapt.NewNodeID())
	if err := r.store.Add(node); err != nil {
		branchesTotal.WithLabelValues(outcomeValidation).Inc()
		return nil, fmt.Errorf("insert branch: %w", err)
	}

	branchesTotal.WithLabelValues(outcomeSuccess).Inc()
	r.logger.Info("branch created",
		"node_id", node.ID,
		"parent_id", sourceID,
		"branch_index", node.BranchIndex,
		"items", graph.ItemCount(node.Dimensions))
	return &BranchResult{Node: node, Warnings: warnings}, nil
}

// IngestResult is the outcome of a successful flat-text ingest.
type IngestResult struct {
	Root      *graph.ScaleNode
	Screening adapt.IngestScreening
	Records   int
}

// Ingest screens, parses, and structures raw flat text into a new root
// scale, replacing the entire current graph.
//
// Description: the legitimacy gate runs before any structuring is
// attempted. A rejection surfaces the service's reason via
// ErrIngestRejected; an unreachable gate degrades to VerdictUnknown and
// the ingest proceeds. On success the store is cleared, the new root is
// inserted, and it becomes the selected node.
//
// Errors: ErrBusy, ErrIngestRejected, and ingest parse errors.
func (r *Runner) Ingest(ctx context.Context, name, raw string) (*IngestResult, error) {
	if !r.ingesting.TryAcquire() {
		ingestsTotal.WithLabelValues(outcomeBusy).Inc()
		return nil, ErrBusy
	}
	defer r.ingesting.Release()

	ctx, span := tracer.Start(ctx, "pipeline.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("scale.name", name))

	res, err := r.ingest(ctx, name, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Runner) ingest(ctx context.Context, name, raw string) (*IngestResult, error) {
	screening := adapt.IngestScreening{Verdict: adapt.VerdictUnknown}
	if !r.opts.SkipScreening && r.client != nil {
		screening = r.screen(ctx, raw)
		if screening.Verdict == adapt.VerdictReject {
			ingestsTotal.WithLabelValues(outcomeRejected).Inc()
			return nil, fmt.Errorf("%w: %s", ErrIngestRejected, screening.Reason)
		}
	}

	records, err := ingest.ParseFlat(raw)
	if err != nil {
		ingestsTotal.WithLabelValues(outcomeBadInput).Inc()
		return nil, err
	}

	root, err := ingest.BuildRoot(adapt.NewNodeID(), name, DefaultRootPosition, records)
	if err != nil {
		ingestsTotal.WithLabelValues(outcomeBadInput).Inc()
		return nil, err
	}

	// Replacement is all-or-nothing: the store validates the new root
	// before dropping the old family, so a rejected root changes nothing.
	if err := r.store.Replace(root); err != nil {
		ingestsTotal.WithLabelValues(outcomeValidation).Inc()
		return nil, fmt.Errorf("insert root: %w", err)
	}

	ingestsTotal.WithLabelValues(outcomeSuccess).Inc()
	r.logger.Info("scale ingested",
		"node_id", root.ID,
		"name", name,
		"records", len(records),
		"dimensions", len(root.Dimensions))
	return &IngestResult{Root: root, Screening: screening, Records: len(records)}, nil
}

// screen runs the legitimacy gate. Transport failures degrade to
// VerdictUnknown so an offline backend never blocks local ingest.
func (r *Runner) screen(ctx context.Context, raw string) adapt.IngestScreening {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	resp, err := r.client.Generate(callCtx, adapt.ScreeningPrompt(raw), r.opts.Params)
	if err != nil {
		r.logger.Warn("legitimacy gate unreachable, proceeding unscreened",
			"error", llm.WrapTransport(err))
		return adapt.IngestScreening{Verdict: adapt.VerdictUnknown}
	}
	return adapt.ParseScreening(resp)
}
