package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	architectureagent "github.com/cyberforge26/firmware-forge/agent/agents/architecture"
	buildagent "github.com/cyberforge26/firmware-forge/agent/agents/build"
	codeagent "github.com/cyberforge26/firmware-forge/agent/agents/code"
	qualityagent "github.com/cyberforge26/firmware-forge/agent/agents/quality"
	testagent "github.com/cyberforge26/firmware-forge/agent/agents/test"
	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
	"github.com/cyberforge26/firmware-forge/agent/mcp"
	"github.com/cyberforge26/firmware-forge/agent/orchestrator"
	"github.com/cyberforge26/firmware-forge/agent/prompt"
	"github.com/cyberforge26/firmware-forge/agent/retrieval"
	"github.com/cyberforge26/firmware-forge/agent/store"
	"github.com/cyberforge26/firmware-forge/pkg/lmclient"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	eng, err := retrieval.Load()
	if err != nil {
		t.Fatalf("retrieval.Load: %v", err)
	}
	m := mcp.New(nil)
	s := store.New(t.TempDir(), m)
	orch := orchestrator.New(orchestrator.Config{
		MCP:          m,
		Store:        s,
		Retrieval:    eng,
		Prompts:      prompt.New(),
		OutputDir:    t.TempDir(),
		Architecture: architectureagent.New(),
		Code:         codeagent.New(),
		Test:         testagent.New(),
		Quality:      qualityagent.New(),
		Build:        buildagent.New(),
	})
	return New(orch, s, eng, lmclient.RealConfig{}, zerolog.Nop())
}

func basicSpecJSON() []byte {
	spec := contractx.Specification{
		ProjectName: "widget",
		MCU:         "STM32F4",
		Modules: []contractx.Module{
			{ID: "uart1", Type: contractx.ModuleUART},
		},
		OptimizationGoal: contractx.OptimizationBalanced,
	}
	body, _ := json.Marshal(map[string]any{"specification": spec})
	return body
}

func waitForRunTerminal(t *testing.T, srv *Server, runID string) contractx.RunState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs/"+runID, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		var state contractx.RunState
		if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if state.Status == contractx.StatusCompleted || state.Status == contractx.StatusFailed {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %q did not terminate in time", runID)
	return contractx.RunState{}
}

func TestHandleGenerateAndPollRun(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(basicSpecJSON()))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	runID := resp["run_id"]
	if runID == "" {
		t.Fatalf("expected a run_id in response")
	}

	state := waitForRunTerminal(t, srv, runID)
	if state.Status != contractx.StatusCompleted {
		t.Fatalf("expected completed, got %s (errors=%v)", state.Status, state.Errors)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	listRec := httptest.NewRecorder()
	srv.ServeHTTP(listRec, listReq)
	var states []contractx.RunState
	if err := json.Unmarshal(listRec.Body.Bytes(), &states); err != nil {
		t.Fatalf("decode run list: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("expected 1 run, got %d", len(states))
	}
}

func TestHandleGenerateRejectsMalformedBody(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGetRunNotFound(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleOutputFileReturnsJSONForJSONArtifacts(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(basicSpecJSON()))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	runID := resp["run_id"]
	state := waitForRunTerminal(t, srv, runID)
	if state.Status != contractx.StatusCompleted {
		t.Fatalf("expected completed, got %s", state.Status)
	}

	fileReq := httptest.NewRequest(http.MethodGet, "/api/output/"+runID+"/reports/quality_report_latest.json", nil)
	fileRec := httptest.NewRecorder()
	srv.ServeHTTP(fileRec, fileReq)
	if fileRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", fileRec.Code, fileRec.Body.String())
	}
	if ct := fileRec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json content type, got %s", ct)
	}
}

func TestHandleTemplatesAndRAGDocs(t *testing.T) {
	srv := testServer(t)

	tReq := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	tRec := httptest.NewRecorder()
	srv.ServeHTTP(tRec, tReq)
	if tRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", tRec.Code)
	}

	dReq := httptest.NewRequest(http.MethodGet, "/api/docs/rag", nil)
	dRec := httptest.NewRecorder()
	srv.ServeHTTP(dRec, dReq)
	if dRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", dRec.Code)
	}
	var docs []contractx.RetrievalDocumentSummary
	if err := json.Unmarshal(dRec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode rag docs: %v", err)
	}
	if len(docs) == 0 {
		t.Fatalf("expected at least one retrieval document")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
