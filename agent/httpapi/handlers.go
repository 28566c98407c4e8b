package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

type generateRequest struct {
	Specification    contractx.Specification `json:"specification"`
	IncludeTests     bool                     `json:"include_tests"`
	IncludeDocs      bool                     `json:"include_docs"`
	RunQualityChecks bool                     `json:"run_quality_checks"`
	ModelProvider    contractx.ModelProvider  `json:"model_provider"`
	ModelName        string                   `json:"model_name,omitempty"`
	APIKey           string                   `json:"api_key,omitempty"`
	ArchitectureOnly bool                     `json:"architecture_only"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	opts := contractx.GenerateOptions{
		IncludeTests:     req.IncludeTests,
		IncludeDocs:      req.IncludeDocs,
		RunQualityChecks: req.RunQualityChecks,
		ModelProvider:    req.ModelProvider,
		ModelName:        req.ModelName,
		APIKey:           req.APIKey,
		ArchitectureOnly: req.ArchitectureOnly,
	}
	if opts.ModelProvider == "" {
		opts.ModelProvider = contractx.ModelProviderMock
	}
	req.Specification.ArchitectureOnly = req.Specification.ArchitectureOnly || req.ArchitectureOnly

	lm, err := s.buildLMClient(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := s.orch.Submit(req.Specification, opts, lm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"run_id": runID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	states := s.orch.List()
	sort.Slice(states, func(i, j int) bool { return states[i].StartedAt.After(states[j].StartedAt) })
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	state, ok := s.orch.Status(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) descriptorFor(runID string) (contractx.RunDescriptor, bool) {
	state, ok := s.orch.Status(runID)
	if !ok {
		return contractx.RunDescriptor{}, false
	}
	return contractx.RunDescriptor{RunID: runID, OutputDir: state.OutputDir}, true
}

// handleRunLogs returns build and quality summaries, latest pointer
// first then timestamped archives newest-first, grounded on
// original_source/backend_api/main.py's get_run_logs.
func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	run, ok := s.descriptorFor(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	artifacts, err := s.store.ListArtifacts(run)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("list artifacts for logs")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var buildLogs, qualityReports []contractx.ArtifactInfo
	var latestReport *contractx.ArtifactInfo
	for i := range artifacts {
		a := artifacts[i]
		switch a.Category {
		case "build_log":
			buildLogs = append(buildLogs, a)
		case "reports":
			if a.FileName == "quality_report_latest.json" {
				cp := a
				latestReport = &cp
				continue
			}
			qualityReports = append(qualityReports, a)
		}
	}
	if latestReport != nil {
		qualityReports = append([]contractx.ArtifactInfo{*latestReport}, qualityReports...)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":          runID,
		"output_dir":      run.OutputDir,
		"build_logs":      buildLogs,
		"quality_reports": qualityReports,
	})
}

// handleListArtifacts enumerates artifacts across every run this
// process knows about, sidecar files excluded by the store itself.
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	var out []map[string]any
	for _, state := range s.orch.List() {
		run := contractx.RunDescriptor{RunID: state.RunID, OutputDir: state.OutputDir}
		artifacts, err := s.store.ListArtifacts(run)
		if err != nil {
			continue
		}
		for _, a := range artifacts {
			out = append(out, map[string]any{
				"run_id":     state.RunID,
				"category":   a.Category,
				"file_path":  a.FilePath,
				"file_name":  a.FileName,
				"size":       a.Size,
				"updated_at": a.ModifiedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["updated_at"].(string) > out[j]["updated_at"].(string)
	})
	writeJSON(w, http.StatusOK, out)
}

// handleOutputFile serves one artifact's bytes: parsed JSON for .json
// files, otherwise {"content": "..."}. Grounded on
// original_source/backend_api/main.py's get_output_file/get_artifact_file.
func (s *Server) handleOutputFile(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	path := r.PathValue("path")
	run, ok := s.descriptorFor(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	data, err := s.store.ReadArtifact(run, path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found: "+path)
		return
	}

	if strings.HasSuffix(strings.ToLower(path), ".json") && json.Valid(data) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"content": string(data)})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, exampleTemplates)
}

func (s *Server) handleRAGDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.retrieval.Documents())
}
