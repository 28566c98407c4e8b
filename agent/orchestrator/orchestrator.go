// Package orchestrator drives the firmware-generation DAG: architecture
// then per-module code and test generation (bounded concurrency) then
// a quality/build fan-in, tracking RunState throughout. The per-run
// fan-out/fan-in itself is plain goroutines with a bounded worker
// pool and a WaitGroup, following
// kingrea-The-Lattice/internal/orchestrator/upcycle.go's
// upCycleManager.run() rather than an eino compose.Graph: eino's graph
// nodes are fixed at compile time, and this DAG's module count varies
// per run.
package orchestrator

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

const (
	weightArchitecture = 20
	weightCodeTotal    = 40
	weightTestTotal    = 15
	weightQuality      = 15
	weightBuild        = 10

	defaultMockTimeout = 120 * time.Second
	defaultRealTimeout = 600 * time.Second

	maxModuleConcurrency = 4
)

// Config bundles the collaborators and knobs the orchestrator needs.
type Config struct {
	MCP         contractx.MCP
	Store       contractx.Store
	Retrieval   contractx.RetrievalEngine
	Prompts     contractx.PromptLoader
	OutputDir   string
	Architecture contractx.Agent
	Code        contractx.Agent
	Test        contractx.Agent
	Quality     contractx.Agent
	Build       contractx.Agent
}

// Orchestrator owns every run's mutable RunState and drives its DAG.
type Orchestrator struct {
	cfg         Config
	hasCompiler bool

	mu   sync.Mutex
	runs map[string]*runHandle
}

type runHandle struct {
	mu        sync.Mutex
	state     contractx.RunState
	run       contractx.RunDescriptor
	lm        contractx.LMClient
	cancelled bool
}

// New probes for a host compiler (spec.md §9's has_compiler resolution)
// and constructs an Orchestrator.
func New(cfg Config) *Orchestrator {
	_, err := exec.LookPath("gcc")
	return &Orchestrator{cfg: cfg, hasCompiler: err == nil, runs: make(map[string]*runHandle)}
}

// Submit validates the specification, allocates a run, and starts
// executing its DAG asynchronously. It returns the run id immediately.
func (o *Orchestrator) Submit(spec contractx.Specification, opts contractx.GenerateOptions, lm contractx.LMClient) (string, error) {
	if err := validateSpecification(spec); err != nil {
		return "", err
	}

	runID := uuid.NewString()
	run := contractx.RunDescriptor{
		RunID:         runID,
		Specification: spec,
		Options:       opts,
		OutputDir:     filepath.Join(o.cfg.OutputDir, "runs", runID),
	}

	handle := &runHandle{
		run: run,
		lm:  lm,
		state: contractx.RunState{
			RunID:          runID,
			Status:         contractx.StatusPending,
			StartedAt:      time.Now().UTC(),
			ArtifactCounts: map[string]int{},
			OutputDir:      run.OutputDir,
		},
	}

	o.mu.Lock()
	o.runs[runID] = handle
	o.mu.Unlock()

	go o.execute(handle)

	return runID, nil
}

// Status returns a defensive snapshot of a run's current state.
func (o *Orchestrator) Status(runID string) (contractx.RunState, bool) {
	o.mu.Lock()
	handle, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		return contractx.RunState{}, false
	}
	handle.mu.Lock()
	defer handle.mu.Unlock()
	return handle.state.Snapshot(), true
}

// List returns a snapshot of every run this process has submitted.
func (o *Orchestrator) List() []contractx.RunState {
	o.mu.Lock()
	handles := make([]*runHandle, 0, len(o.runs))
	for _, h := range o.runs {
		handles = append(handles, h)
	}
	o.mu.Unlock()

	out := make([]contractx.RunState, 0, len(handles))
	for _, h := range handles {
		h.mu.Lock()
		out = append(out, h.state.Snapshot())
		h.mu.Unlock()
	}
	return out
}

// Cancel sets a run's cancellation flag. It is checked between DAG
// stages, never mid-LM-call.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	handle, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown run %q", contractx.ErrInvalidInput, runID)
	}
	handle.mu.Lock()
	handle.cancelled = true
	handle.mu.Unlock()
	return nil
}

func validateSpecification(spec contractx.Specification) error {
	if spec.ProjectName == "" {
		return fmt.Errorf("%w: project_name is required", contractx.ErrInvalidInput)
	}
	if spec.MCU == "" {
		return fmt.Errorf("%w: mcu is required", contractx.ErrInvalidInput)
	}
	// Zero modules is a valid boundary case (spec.md §8, Invariant #6):
	// the run executes architecture only, and quality/build are
	// skipped with an explanatory note. See execute.go.
	seen := map[string]bool{}
	for _, m := range spec.Modules {
		if m.ID == "" {
			return fmt.Errorf("%w: module id is required", contractx.ErrInvalidInput)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate module id %q", contractx.ErrInvalidInput, m.ID)
		}
		seen[m.ID] = true
		if !contractx.IsValidModuleKind(m.Type) {
			return fmt.Errorf("%w: unknown module type %q", contractx.ErrInvalidInput, m.Type)
		}
	}
	return nil
}
