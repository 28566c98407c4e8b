// Package architecture implements the architecture agent: it queries
// retrieval for design guidance, asks the language model for a
// Markdown architecture document, and writes it as the pipeline's
// first artifact. Grounded on
// original_source/agents/architecture_agent/__init__.py.
package architecture

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

const agentID = "architecture_agent"

// Agent is the architecture pipeline stage. It has no state of its
// own; every collaborator arrives through the RunContext.
type Agent struct{}

var _ contractx.Agent = (*Agent)(nil)

// New returns a ready-to-use architecture agent.
func New() *Agent { return &Agent{} }

func (a *Agent) AgentID() string { return agentID }

// Execute ignores inputs: the architecture agent operates on the
// whole specification carried by rc.Run.
func (a *Agent) Execute(ctx context.Context, rc *contractx.RunContext, _ any) (contractx.AgentResult, error) {
	if err := rc.MCP.CheckRun(agentID); err != nil {
		return contractx.AgentResult{}, err
	}

	spec := rc.Run.Specification

	// The requested module kinds join the query terms, so documents
	// keyed to those kinds (uart, i2c, ...) rank alongside the layering
	// guidance.
	moduleKinds := make([]string, 0, len(spec.Modules))
	for _, m := range spec.Modules {
		moduleKinds = append(moduleKinds, string(m.Type))
	}
	query := strings.TrimSpace("architecture layering guidelines " + strings.Join(moduleKinds, " "))
	ragCtx := strings.Join(rc.Retrieval.Query(query, 3, ""), "\n\n")

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return contractx.AgentResult{}, fmt.Errorf("%w: marshal specification: %v", contractx.ErrInternal, err)
	}

	moduleNames := make([]string, 0, len(spec.Modules))
	for _, m := range spec.Modules {
		moduleNames = append(moduleNames, string(m.Type)+":"+m.ID)
	}

	prompt, err := rc.Prompts.Compose(agentID, map[string]string{
		"CONSTRAINTS":  "Follow MISRA-like rules. Output must be in Markdown format.",
		"RAG_CONTEXT":  ragCtx,
		"MODULE":       string(specJSON),
		"MCU":          spec.MCU,
		"BOARD_SPECS":  fmt.Sprintf("Target: %s, Optimization: %s", spec.MCU, spec.OptimizationGoal),
		"OPTIMIZATION": string(spec.OptimizationGoal),
		"MODULES":      strings.Join(moduleNames, ", "),
	})
	if err != nil {
		return contractx.AgentResult{}, err
	}

	generated, err := rc.LM.Complete(ctx, prompt)
	if err != nil {
		return contractx.AgentResult{}, err
	}

	ref, err := rc.Store.WriteArtifact(rc.Run, agentID, "architecture", []byte(generated), "", "v1",
		map[string]any{"mcu": spec.MCU}, "md")
	if err != nil {
		return contractx.AgentResult{}, err
	}

	return contractx.AgentResult{
		Success:      true,
		ArtifactPath: ref.Path,
		Message:      "architecture generated",
	}, nil
}
