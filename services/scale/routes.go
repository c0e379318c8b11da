// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scale

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all scale routes with the router.
//
// Description:
//
//	Registers all /v1/scale/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Graph Endpoints:
//
//	GET  /v1/scale/graph - Full version graph snapshot
//	GET  /v1/scale/nodes/:id - Get one node
//	GET  /v1/scale/nodes/:id/children - Direct children
//	GET  /v1/scale/nodes/:id/descendants - Full subtree below a node
//	GET  /v1/scale/nodes/:id/drift - Per-item drift against the parent
//
// Mutation Endpoints:
//
//	POST   /v1/scale/nodes/:id/branch - Adapt into a new branch
//	PATCH  /v1/scale/nodes/:id - Rename / collapse a node
//	PATCH  /v1/scale/nodes/:id/items/:itemID - Edit item text or rubric
//	DELETE /v1/scale/nodes/:id - Remove a node (?cascade=true for subtree)
//
// Import / Export Endpoints:
//
//	POST /v1/scale/import - Ingest raw flat text as a new root
//	GET  /v1/scale/export - One-way CSV export of the whole graph
//
// Health Endpoints:
//
//	GET /v1/scale/health - Health check
//
// Example:
//
//	store := graph.NewStore()
//	runner := pipeline.NewRunner(store, client)
//	handlers := scale.NewHandlers(store, runner)
//
//	v1 := router.Group("/v1")
//	scale.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	sc := rg.Group("/scale")
	{
		// Graph queries
		sc.GET("/graph", handlers.HandleGraph)
		sc.GET("/nodes/:id", handlers.HandleNode)
		sc.GET("/nodes/:id/children", handlers.HandleChildren)
		sc.GET("/nodes/:id/descendants", handlers.HandleDescendants)
		sc.GET("/nodes/:id/drift", handlers.HandleDrift)

		// Mutations
		sc.POST("/nodes/:id/branch", handlers.HandleBranch)
		sc.PATCH("/nodes/:id", handlers.HandleUpdateNode)
		sc.PATCH("/nodes/:id/items/:itemID", handlers.HandleUpdateItem)
		sc.DELETE("/nodes/:id", handlers.HandleDelete)

		// Import / export
		sc.POST("/import", handlers.HandleImport)
		sc.GET("/export", handlers.HandleExport)

		// Health checks
		sc.GET("/health", handlers.HandleHealth)
	}
}
