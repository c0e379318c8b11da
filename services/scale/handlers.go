// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scale exposes the version graph engine over HTTP.
package scale

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/ScaleForge/services/llm"
	"github.com/AleutianAI/ScaleForge/services/scale/adapt"
	"github.com/AleutianAI/ScaleForge/services/scale/drift"
	"github.com/AleutianAI/ScaleForge/services/scale/export"
	"github.com/AleutianAI/ScaleForge/services/scale/graph"
	"github.com/AleutianAI/ScaleForge/services/scale/pipeline"
)

// Handlers contains the HTTP handlers for the scale service.
type Handlers struct {
	store  *graph.Store
	runner *pipeline.Runner
}

// NewHandlers creates handlers over the given store and pipeline runner.
func NewHandlers(store *graph.Store, runner *pipeline.Runner) *Handlers {
	return &Handlers{store: store, runner: runner}
}

// HandleGraph handles GET /v1/scale/graph.
//
// Response:
//
//	200 OK: GraphResponse with every node, the root and selected IDs,
//	and the current store generation.
func (h *Handlers) HandleGraph(c *gin.Context) {
	view := h.store.View()
	resp := GraphResponse{
		Nodes:      view.All(),
		SelectedID: h.store.Selected(),
		Generation: h.store.Generation(),
	}
	if root := view.Root(); root != nil {
		resp.RootID = root.ID
	}
	c.JSON(http.StatusOK, resp)
}

// HandleNode handles GET /v1/scale/nodes/:id.
func (h *Handlers) HandleNode(c *gin.Context) {
	node := h.store.View().Get(c.Param("id"))
	if node == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "node not found",
			Code:  "NODE_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, node)
}

// HandleChildren handles GET /v1/scale/nodes/:id/children.
func (h *Handlers) HandleChildren(c *gin.Context) {
	id := c.Param("id")
	view := h.store.View()
	if !view.Has(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "node not found",
			Code:  "NODE_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, ChildrenResponse{NodeID: id, Children: view.Children(id)})
}

// HandleDescendants handles GET /v1/scale/nodes/:id/descendants.
func (h *Handlers) HandleDescendants(c *gin.Context) {
	id := c.Param("id")
	view := h.store.View()
	if !view.Has(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "node not found",
			Code:  "NODE_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, DescendantsResponse{NodeID: id, Descendants: view.Descendants(id)})
}

// HandleDrift handles GET /v1/scale/nodes/:id/drift.
//
// Response:
//
//	200 OK: drift.Report comparing each item against its origin in the
//	parent scale.
func (h *Handlers) HandleDrift(c *gin.Context) {
	id := c.Param("id")
	view := h.store.View()
	if !view.Has(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "node not found",
			Code:  "NODE_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, drift.ForNode(view, id))
}

// HandleBranch handles POST /v1/scale/nodes/:id/branch.
//
// Description:
//
//	Runs the full adaptation pipeline against the external generative
//	service and inserts the resulting branch under the source node.
//
// Response:
//
//	201 Created: BranchResponse
//	404 Not Found: Unknown source node
//	409 Conflict: A branch is already in progress, or the result went stale
//	422 Unprocessable Entity: The service returned an unusable payload
//	502/504: Transport failure reaching the service
func (h *Handlers) HandleBranch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleBranch")

	var req BranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	sourceID := c.Param("id")
	logger.Info("Branching", "source_id", sourceID)

	res, err := h.runner.Branch(c.Request.Context(), sourceID, req.Intent)
	if err != nil {
		status, code := branchErrorStatus(err)
		logger.Error("Branch failed", "source_id", sourceID, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusCreated, BranchResponse{Node: res.Node, Warnings: res.Warnings})
}

// branchErrorStatus maps pipeline errors to HTTP status and error code.
func branchErrorStatus(err error) (int, string) {
	var te *llm.TransportError
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusConflict, "BRANCH_IN_PROGRESS"
	case errors.Is(err, pipeline.ErrStaleResult):
		return http.StatusConflict, "STALE_RESULT"
	case errors.Is(err, graph.ErrNodeNotFound):
		return http.StatusNotFound, "NODE_NOT_FOUND"
	case errors.Is(err, adapt.ErrNoPayload),
		errors.Is(err, adapt.ErrMalformedPayload),
		errors.Is(err, adapt.ErrInvalidPayload):
		return http.StatusUnprocessableEntity, "INVALID_ADAPTATION"
	case errors.As(err, &te):
		if te.Kind == llm.FailureTimeout {
			return http.StatusGatewayTimeout, "SERVICE_TIMEOUT"
		}
		return http.StatusBadGateway, "SERVICE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "BRANCH_FAILED"
	}
}

// HandleDelete handles DELETE /v1/scale/nodes/:id.
//
// Description:
//
//	Removes a node. With ?cascade=true the entire subtree goes in one
//	atomic operation; without it a node that still has children is
//	refused. The root is never deletable.
//
// Response:
//
//	200 OK: DeleteResponse listing removed IDs
//	403 Forbidden: Target is the root
//	409 Conflict: Node has children and cascade was not requested
func (h *Handlers) HandleDelete(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDelete")

	id := c.Param("id")
	view := h.store.View()
	if !view.Has(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "node not found",
			Code:  "NODE_NOT_FOUND",
		})
		return
	}

	cascade := c.Query("cascade") == "true"
	var removed []string
	var err error
	if cascade {
		set := view.CascadeDeleteSet(id)
		removed = make([]string, 0, len(set))
		for rid := range set {
			removed = append(removed, rid)
		}
		sort.Strings(removed)
		err = h.store.RemoveCascade(set)
	} else {
		removed = []string{id}
		err = h.store.Remove(id)
	}

	if err != nil {
		status, code := deleteErrorStatus(err)
		logger.Warn("Delete refused", "node_id", id, "cascade", cascade, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Nodes removed", "count", len(removed), "cascade", cascade)
	c.JSON(http.StatusOK, DeleteResponse{Removed: removed})
}

func deleteErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, graph.ErrRootProtected):
		return http.StatusForbidden, "ROOT_PROTECTED"
	case errors.Is(err, graph.ErrHasChildren):
		return http.StatusConflict, "NODE_HAS_CHILDREN"
	default:
		return http.StatusInternalServerError, "DELETE_FAILED"
	}
}

// HandleUpdateNode handles PATCH /v1/scale/nodes/:id.
func (h *Handlers) HandleUpdateNode(c *gin.Context) {
	var req UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	id := c.Param("id")
	err := h.store.Update(id, graph.NodePatch{Name: req.Name, Collapsed: req.Collapsed})
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "node not found",
				Code:  "NODE_NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "UPDATE_FAILED"})
		return
	}
	c.JSON(http.StatusOK, h.store.View().Get(id))
}

// HandleUpdateItem handles PATCH /v1/scale/nodes/:id/items/:itemID.
//
// Description:
//
//	Edits one item's text or its working rubric. Rubric edits are
//	recorded as manually edited; the baseline rubric is never writable.
func (h *Handlers) HandleUpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if (req.Text == nil) == (req.Rubric == nil) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "exactly one of text or rubric must be set",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	nodeID, itemID := c.Param("id"), c.Param("itemID")
	var err error
	if req.Text != nil {
		err = h.store.SetItemText(nodeID, itemID, *req.Text)
	} else {
		err = h.store.SetItemRubric(nodeID, itemID, req.Rubric, graph.RubricSourceEdited)
	}
	if err != nil {
		status, code := http.StatusInternalServerError, "UPDATE_FAILED"
		if errors.Is(err, graph.ErrNodeNotFound) || errors.Is(err, graph.ErrItemNotFound) {
			status, code = http.StatusNotFound, "NOT_FOUND"
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, h.store.View().Get(nodeID))
}

// HandleImport handles POST /v1/scale/import.
//
// Description:
//
//	Screens, parses, and structures raw flat text into a new root scale.
//	The whole current graph is replaced on success.
//
// Response:
//
//	201 Created: ImportResponse
//	409 Conflict: An ingest is already in progress
//	422 Unprocessable Entity: Gate rejection or unparseable input
func (h *Handlers) HandleImport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleImport")

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	res, err := h.runner.Ingest(c.Request.Context(), req.Name, req.Raw)
	if err != nil {
		status, code := http.StatusUnprocessableEntity, "INVALID_INPUT"
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			status, code = http.StatusConflict, "INGEST_IN_PROGRESS"
		case errors.Is(err, pipeline.ErrIngestRejected):
			code = "INPUT_REJECTED"
		}
		logger.Warn("Import failed", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Scale imported", "node_id", res.Root.ID, "records", res.Records)
	c.JSON(http.StatusCreated, ImportResponse{
		Node:      res.Root,
		Screening: res.Screening.Verdict.String(),
		Records:   res.Records,
	})
}

// HandleExport handles GET /v1/scale/export.
//
// Description:
//
//	Streams the whole graph as CSV. The format is one-way: it is for
//	analysis tools and does not round-trip through import.
func (h *Handlers) HandleExport(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="scales.csv"`)
	if err := export.Write(c.Writer, h.store.View()); err != nil {
		slog.Error("Export failed", "error", err)
		c.Status(http.StatusInternalServerError)
	}
}

// HandleHealth handles GET /v1/scale/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    ServiceVersion,
		Nodes:      h.store.View().Len(),
		Generation: h.store.Generation(),
		BranchBusy: h.runner.BranchBusy(),
		IngestBusy: h.runner.IngestBusy(),
	})
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
