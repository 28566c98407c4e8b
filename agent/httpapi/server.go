// Package httpapi implements the control plane: it submits runs,
// polls progress, and exposes artifacts over stdlib net/http. Grounded
// on original_source/backend_api/main.py's FastAPI endpoint set, using
// Go 1.22's http.ServeMux method+path patterns to extend the teacher's
// own outbound net/http REST-client idiom to the inbound server side —
// no HTTP framework appears anywhere in the retrieval pack.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
	"github.com/cyberforge26/firmware-forge/agent/orchestrator"
	"github.com/cyberforge26/firmware-forge/pkg/lmclient"
)

// Server wires the orchestrator, artifact store, and retrieval engine
// to the HTTP surface spec.md §4.7 names.
type Server struct {
	orch      *orchestrator.Orchestrator
	store     contractx.Store
	retrieval contractx.RetrievalEngine
	realCfg   lmclient.RealConfig
	log       zerolog.Logger
	mux       *http.ServeMux
}

// New builds a Server and registers every route.
func New(orch *orchestrator.Orchestrator, store contractx.Store, retrieval contractx.RetrievalEngine, realCfg lmclient.RealConfig, log zerolog.Logger) *Server {
	s := &Server{orch: orch, store: store, retrieval: retrieval, realCfg: realCfg, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/generate", s.handleGenerate)
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/runs/{run_id}", s.handleGetRun)
	s.mux.HandleFunc("GET /api/runs/{run_id}/logs", s.handleRunLogs)
	s.mux.HandleFunc("GET /api/artifacts", s.handleListArtifacts)
	s.mux.HandleFunc("GET /api/output/{run_id}/{path...}", s.handleOutputFile)
	s.mux.HandleFunc("GET /artifacts/runs/{run_id}/{path...}", s.handleOutputFile)
	s.mux.HandleFunc("GET /api/templates", s.handleTemplates)
	s.mux.HandleFunc("GET /api/docs/rag", s.handleRAGDocs)
}

// ServeHTTP satisfies http.Handler, so Server itself can be handed to
// http.Server.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// buildLMClient resolves the language-model backend for one generate
// request: mock unless the caller asked for "real", in which case the
// process-wide RealConfig is overridden with any per-request api_key
// and model_name.
func (s *Server) buildLMClient(ctx context.Context, opts contractx.GenerateOptions) (contractx.LMClient, error) {
	if opts.ModelProvider != contractx.ModelProviderReal {
		return lmclient.NewMock(), nil
	}
	cfg := s.realCfg
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	if opts.ModelName != "" {
		cfg.Model = opts.ModelName
	}
	return lmclient.NewReal(ctx, cfg)
}
