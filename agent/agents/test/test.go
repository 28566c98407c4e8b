// Package test implements the test agent: one deterministic unit test
// file per module, reading that module's generated code as upstream
// input. Grounded on original_source/agents/test_agent/__init__.py,
// simplified to spec.md §4.5.3's single-artifact-per-module rule (no
// separate test-cases document).
package test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

const agentID = "test_agent"

// Agent is the per-module test-generation stage.
type Agent struct{}

var _ contractx.Agent = (*Agent)(nil)

// New returns a ready-to-use test agent.
func New() *Agent { return &Agent{} }

func (a *Agent) AgentID() string { return agentID }

// Execute expects inputs to be a contractx.Module whose header and
// source were already written by the code agent.
func (a *Agent) Execute(ctx context.Context, rc *contractx.RunContext, inputs any) (contractx.AgentResult, error) {
	mod, ok := inputs.(contractx.Module)
	if !ok {
		return contractx.AgentResult{}, fmt.Errorf("%w: test agent expects a Module input", contractx.ErrInvalidInput)
	}

	if err := rc.MCP.CheckRun(agentID); err != nil {
		return contractx.AgentResult{}, err
	}

	moduleCode, err := readModuleCode(rc, mod.ID)
	if err != nil {
		return contractx.AgentResult{}, err
	}

	spec := rc.Run.Specification
	ragCtx := strings.Join(rc.Retrieval.Query("unit test patterns", 3, string(mod.Type)), "\n\n")

	moduleJSON, err := json.Marshal(mod)
	if err != nil {
		return contractx.AgentResult{}, fmt.Errorf("%w: marshal module: %v", contractx.ErrInternal, err)
	}

	allModuleIDs := make([]string, 0, len(spec.Modules))
	for _, m := range spec.Modules {
		allModuleIDs = append(allModuleIDs, m.ID)
	}

	prompt, err := rc.Prompts.Compose(agentID, map[string]string{
		"CONSTRAINTS":   "Deterministic tests only. Use a mocked hardware abstraction layer.",
		"RAG_CONTEXT":   ragCtx,
		"MODULE":        string(moduleJSON),
		"MCU":           spec.MCU,
		"MODULES":       strings.Join(allModuleIDs, ", "),
		"CODE_ARTIFACTS": moduleCode.summary,
		"CODE_FILES":    strings.Join([]string{moduleCode.headerPath, moduleCode.sourcePath}, ", "),
	})
	if err != nil {
		return contractx.AgentResult{}, err
	}

	generated, err := rc.LM.Complete(ctx, prompt)
	if err != nil {
		return contractx.AgentResult{}, err
	}

	ref, err := rc.Store.WriteArtifact(rc.Run, agentID, "tests", []byte(generated), mod.ID, "v1",
		map[string]any{"module_type": string(mod.Type)}, "c")
	if err != nil {
		return contractx.AgentResult{}, err
	}

	return contractx.AgentResult{
		Success:      true,
		ArtifactPath: ref.Path,
		Message:      fmt.Sprintf("tests generated: %s", ref.Path),
		Metadata:     map[string]any{"module_id": mod.ID, "test_file": ref.Path},
	}, nil
}

type moduleCodeRef struct {
	headerPath string
	sourcePath string
	summary    string
}

// readModuleCode fetches the module's header and source as governed
// upstream input, giving the test agent something concrete to
// reference in its prompt beyond the bare module definition.
func readModuleCode(rc *contractx.RunContext, moduleID string) (moduleCodeRef, error) {
	headerPath := filepath.Join("module_code", moduleID, moduleID+".h")
	sourcePath := filepath.Join("module_code", moduleID, moduleID+".c")

	header, err := rc.Store.ReadArtifactAs(rc.Run, agentID, "module_code:"+moduleID, headerPath)
	if err != nil {
		return moduleCodeRef{}, err
	}
	source, err := rc.Store.ReadArtifactAs(rc.Run, agentID, "module_code:"+moduleID, sourcePath)
	if err != nil {
		return moduleCodeRef{}, err
	}

	return moduleCodeRef{
		headerPath: headerPath,
		sourcePath: sourcePath,
		summary:    string(header) + "\n\n" + string(source),
	}, nil
}
