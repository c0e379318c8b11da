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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ScaleForge/services/llm"
	"github.com/AleutianAI/ScaleForge/services/scale/graph"
	"github.com/AleutianAI/ScaleForge/services/scale/pipeline"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

// scriptedLLM replays canned responses in order.
type scriptedLLM struct {
	responses []string
	calls     int
}

func (s *scriptedLLM) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	if s.calls >= len(s.responses) {
		return "", fmt.Errorf("scriptedLLM: unscripted call %d", s.calls)
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func setupTestRouter(store *graph.Store, client llm.LLMClient) *gin.Engine {
	router := gin.New()
	runner := pipeline.NewRunner(store, client, pipeline.WithoutScreening())
	handlers := NewHandlers(store, runner)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func seedStore(t *testing.T) *graph.Store {
	t.Helper()
	store := graph.NewStore()
	root := graph.NewRootNode("scale-root", "Skala Asli", graph.Position{X: 100, Y: 250}, []graph.Dimension{
		{Name: "Burnout", Items: []graph.Item{
			{ItemID: "scale-root-item-1", OriginItemID: "scale-root-item-1",
				Text:           "Saya merasa lelah.",
				BaselineRubric: []string{"kelelahan"},
				CurrentRubric:  []string{"kelelahan"},
				RubricSource:   graph.RubricSourceGenerated},
		}},
	})
	if err := store.Add(root); err != nil {
		t.Fatalf("seed root: %v", err)
	}
	return store
}

func TestHandlers_HandleHealth(t *testing.T) {
	store := seedStore(t)
	router := setupTestRouter(store, nil)

	req, _ := http.NewRequest("GET", "/v1/scale/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
	if resp.Nodes != 1 {
		t.Errorf("expected 1 node, got %d", resp.Nodes)
	}
}

func TestHandlers_HandleGraph(t *testing.T) {
	store := seedStore(t)
	router := setupTestRouter(store, nil)

	req, _ := http.NewRequest("GET", "/v1/scale/graph", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp GraphResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(resp.Nodes))
	}
	if resp.RootID != "scale-root" {
		t.Errorf("expected root_id 'scale-root', got %q", resp.RootID)
	}
}

func TestHandlers_HandleNode_NotFound(t *testing.T) {
	router := setupTestRouter(seedStore(t), nil)

	req, _ := http.NewRequest("GET", "/v1/scale/nodes/scale-missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Code != "NODE_NOT_FOUND" {
		t.Errorf("expected code NODE_NOT_FOUND, got %q", resp.Code)
	}
}

func TestHandlers_HandleBranch(t *testing.T) {
	store := seedStore(t)
	client := &scriptedLLM{responses: []string{
		`{"scale_name": "Skala Gen-Z", "dimensions": [{"name": "Burnout", "items": [{"text": "aku capek banget"}]}]}`,
	}}
	router := setupTestRouter(store, client)

	body, _ := json.Marshal(BranchRequest{Intent: "Gen-Z register"})
	req, _ := http.NewRequest("POST", "/v1/scale/nodes/scale-root/branch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	var resp BranchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Node.Name != "Skala Gen-Z" {
		t.Errorf("expected branch name 'Skala Gen-Z', got %q", resp.Node.Name)
	}
	if resp.Node.ParentID != "scale-root" {
		t.Errorf("expected parent 'scale-root', got %q", resp.Node.ParentID)
	}
	if store.View().Len() != 2 {
		t.Errorf("expected 2 nodes after branch, got %d", store.View().Len())
	}
}

func TestHandlers_HandleBranch_InvalidPayload(t *testing.T) {
	store := seedStore(t)
	client := &scriptedLLM{responses: []string{"sorry, I cannot help with that"}}
	router := setupTestRouter(store, client)

	body, _ := json.Marshal(BranchRequest{Intent: "Gen-Z register"})
	req, _ := http.NewRequest("POST", "/v1/scale/nodes/scale-root/branch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
	if store.View().Len() != 1 {
		t.Errorf("graph should be untouched, got %d nodes", store.View().Len())
	}
}

func TestHandlers_HandleBranch_MissingIntent(t *testing.T) {
	router := setupTestRouter(seedStore(t), nil)

	req, _ := http.NewRequest("POST", "/v1/scale/nodes/scale-root/branch", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlers_HandleDelete_RootProtected(t *testing.T) {
	router := setupTestRouter(seedStore(t), nil)

	req, _ := http.NewRequest("DELETE", "/v1/scale/nodes/scale-root?cascade=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Code != "ROOT_PROTECTED" {
		t.Errorf("expected code ROOT_PROTECTED, got %q", resp.Code)
	}
}

func TestHandlers_HandleDelete_Cascade(t *testing.T) {
	store := seedStore(t)
	client := &scriptedLLM{responses: []string{
		`{"scale_name": "Skala Gen-Z", "dimensions": [{"name": "Burnout", "items": [{"text": "aku capek"}]}]}`,
		`{"scale_name": "Skala Gen-Alpha", "dimensions": [{"name": "Burnout", "items": [{"text": "capek bgt"}]}]}`,
	}}
	router := setupTestRouter(store, client)

	// Build a two-deep chain under the root.
	branch := func(sourceID string) string {
		body, _ := json.Marshal(BranchRequest{Intent: "more casual"})
		req, _ := http.NewRequest("POST", "/v1/scale/nodes/"+sourceID+"/branch", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("branch setup failed: %d %s", w.Code, w.Body.String())
		}
		var resp BranchResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		return resp.Node.ID
	}
	mid := branch("scale-root")
	branch(mid)

	// Without cascade the middle node is refused.
	req, _ := http.NewRequest("DELETE", "/v1/scale/nodes/"+mid, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	// With cascade the whole subtree goes.
	req, _ = http.NewRequest("DELETE", "/v1/scale/nodes/"+mid+"?cascade=true", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp DeleteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Removed) != 2 {
		t.Errorf("expected 2 removed nodes, got %d", len(resp.Removed))
	}
	if store.View().Len() != 1 {
		t.Errorf("expected only the root to remain, got %d nodes", store.View().Len())
	}
}

func TestHandlers_HandleUpdateItem(t *testing.T) {
	store := seedStore(t)
	router := setupTestRouter(store, nil)

	text := "Saya merasa sangat lelah."
	body, _ := json.Marshal(UpdateItemRequest{Text: &text})
	req, _ := http.NewRequest("PATCH", "/v1/scale/nodes/scale-root/items/scale-root-item-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	got := store.View().Get("scale-root").Dimensions[0].Items[0]
	if got.Text != text {
		t.Errorf("expected item text %q, got %q", text, got.Text)
	}
}

func TestHandlers_HandleUpdateItem_TextAndRubricExclusive(t *testing.T) {
	router := setupTestRouter(seedStore(t), nil)

	text := "x"
	body, _ := json.Marshal(UpdateItemRequest{Text: &text, Rubric: []string{"a"}})
	req, _ := http.NewRequest("PATCH", "/v1/scale/nodes/scale-root/items/scale-root-item-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlers_HandleImport(t *testing.T) {
	store := seedStore(t)
	router := setupTestRouter(store, nil)

	raw := "q1\tBurnout\tSaya merasa lelah.\nq2\tBurnout\tSaya merasa terkuras.\n"
	body, _ := json.Marshal(ImportRequest{Name: "Skala Baru", Raw: raw})
	req, _ := http.NewRequest("POST", "/v1/scale/import", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var resp ImportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Records != 2 {
		t.Errorf("expected 2 records, got %d", resp.Records)
	}
	// The old graph was replaced wholesale.
	if store.View().Has("scale-root") {
		t.Error("expected the previous root to be gone")
	}
}

func TestHandlers_HandleExport(t *testing.T) {
	router := setupTestRouter(seedStore(t), nil)

	req, _ := http.NewRequest("GET", "/v1/scale/export", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected Content-Type text/csv, got %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "scale_id") {
		t.Error("expected a CSV header row")
	}
	if !strings.Contains(body, "Skala Asli") {
		t.Error("expected the root scale in the export")
	}
}

func TestHandlers_HandleDrift(t *testing.T) {
	store := seedStore(t)
	client := &scriptedLLM{responses: []string{
		`{"scale_name": "Skala Gen-Z", "dimensions": [{"name": "Burnout", "items": [{"text": "aku capek"}]}]}`,
	}}
	router := setupTestRouter(store, client)

	body, _ := json.Marshal(BranchRequest{Intent: "casual"})
	req, _ := http.NewRequest("POST", "/v1/scale/nodes/scale-root/branch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("branch setup failed: %d", w.Code)
	}
	var branched BranchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &branched); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	req, _ = http.NewRequest("GET", "/v1/scale/nodes/"+branched.Node.ID+"/drift", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestHandlers_ConcurrentReadsAndWrites(t *testing.T) {
	store := seedStore(t)
	router := setupTestRouter(store, nil)

	// Gin serves each request on its own goroutine; interleave node
	// renames with graph reads and let the race detector judge.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			name := fmt.Sprintf("Skala %d", n)
			body, _ := json.Marshal(UpdateNodeRequest{Name: &name})
			req, _ := http.NewRequest("PATCH", "/v1/scale/nodes/scale-root", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("patch returned %d", w.Code)
			}
		}(i)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest("GET", "/v1/scale/graph", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("graph read returned %d", w.Code)
			}
		}()
	}
	wg.Wait()

	req, _ := http.NewRequest("GET", "/v1/scale/graph", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp GraphResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Nodes) != 1 {
		t.Errorf("expected 1 node, got %d", len(resp.Nodes))
	}
}
