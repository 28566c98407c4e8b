// Package code implements the code agent: one invocation per module,
// generating a header/source pair from the language model's output.
// Grounded on original_source/agents/code_agent/__init__.py's
// _extract_modular_code fallback chain, restricted to spec.md
// §4.5.2's simplified rule set (no MCU-format branching, no
// single-file Arduino output — module_code is always multi-file).
package code

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

const agentID = "code_agent"

// Agent is the per-module code-generation stage.
type Agent struct{}

var _ contractx.Agent = (*Agent)(nil)

// New returns a ready-to-use code agent.
func New() *Agent { return &Agent{} }

func (a *Agent) AgentID() string { return agentID }

// Execute expects inputs to be a contractx.Module. It is safe to call
// concurrently for distinct modules against the same RunContext.
func (a *Agent) Execute(ctx context.Context, rc *contractx.RunContext, inputs any) (contractx.AgentResult, error) {
	mod, ok := inputs.(contractx.Module)
	if !ok {
		return contractx.AgentResult{}, fmt.Errorf("%w: code agent expects a Module input", contractx.ErrInvalidInput)
	}

	if err := rc.MCP.CheckRun(agentID); err != nil {
		return contractx.AgentResult{}, err
	}

	spec := rc.Run.Specification

	ragCtx := strings.Join(rc.Retrieval.Query(fmt.Sprintf("generate %s module code", mod.Type), 3, string(mod.Type)), "\n\n")

	moduleJSON, err := json.Marshal(mod)
	if err != nil {
		return contractx.AgentResult{}, fmt.Errorf("%w: marshal module: %v", contractx.ErrInternal, err)
	}

	allModuleIDs := make([]string, 0, len(spec.Modules))
	for _, m := range spec.Modules {
		allModuleIDs = append(allModuleIDs, m.ID)
	}

	prompt, err := rc.Prompts.Compose(agentID, map[string]string{
		"CONSTRAINTS":  fmt.Sprintf("MCU: %s. Generate modular .h/.c files. MINIMAL comments. Return PURE CODE only.", spec.MCU),
		"RAG_CONTEXT":  ragCtx,
		"MODULE":       string(moduleJSON),
		"MCU":          spec.MCU,
		"BOARD_SPECS":  fmt.Sprintf("Target: %s, Optimization: %s", spec.MCU, spec.OptimizationGoal),
		"OPTIMIZATION": string(spec.OptimizationGoal),
		"MODULES":      strings.Join(allModuleIDs, ", "),
	})
	if err != nil {
		return contractx.AgentResult{}, err
	}

	generated, err := rc.LM.Complete(ctx, prompt)
	if err != nil {
		return contractx.AgentResult{}, err
	}

	header, source := extractModularCode(generated)

	headerRef, sourceRef, _, err := rc.Store.WriteModularCode(rc.Run, agentID, mod.ID, []byte(header), []byte(source), "v1",
		map[string]any{"module_type": string(mod.Type)})
	if err != nil {
		return contractx.AgentResult{}, err
	}

	return contractx.AgentResult{
		Success:      true,
		ArtifactPath: sourceRef.Path,
		Message:      fmt.Sprintf("module code generated: %s, %s", headerRef.Path, sourceRef.Path),
		Metadata: map[string]any{
			"header_file": headerRef.Path,
			"source_file": sourceRef.Path,
			"module_id":   mod.ID,
		},
	}, nil
}

// extractModularCode implements spec.md §4.5.2's fallback chain:
// JSON {"header","source"} -> ###HEADER###/###SOURCE### markers ->
// split at the first function definition -> split the content in
// half.
func extractModularCode(raw string) (header, source string) {
	content := stripCodeFences(raw)

	if h, s, ok := tryJSON(content); ok {
		return h, s
	}

	if h, s, ok := tryMarkers(content); ok {
		return h, s
	}

	return splitAtFirstFunction(content)
}

func stripCodeFences(content string) string {
	const fence = "```"
	first := strings.Index(content, fence)
	if first < 0 {
		return content
	}
	rest := content[first+len(fence):]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	last := strings.LastIndex(rest, fence)
	if last < 0 {
		return content
	}
	return rest[:last]
}

func tryJSON(content string) (header, source string, ok bool) {
	trimmed := strings.Trim(strings.TrimSpace(content), "`")
	var data struct {
		Header string `json:"header"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return "", "", false
	}
	if data.Header == "" && data.Source == "" {
		return "", "", false
	}
	return data.Header, data.Source, true
}

func tryMarkers(content string) (header, source string, ok bool) {
	const headerMark, sourceMark = "###HEADER###", "###SOURCE###"
	if !strings.Contains(content, headerMark) || !strings.Contains(content, sourceMark) {
		return "", "", false
	}
	afterHeader := strings.SplitN(content, headerMark, 2)[1]
	parts := strings.SplitN(afterHeader, sourceMark, 2)
	header = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		source = strings.TrimSpace(parts[1])
	}
	return header, source, true
}

var functionPrefixes = []string{"int ", "void ", "uint", "float ", "char ", "static "}

func splitAtFirstFunction(content string) (header, source string) {
	lines := strings.Split(content, "\n")
	splitAt := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range functionPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				splitAt = i
				break
			}
		}
		if splitAt >= 0 {
			break
		}
	}

	if splitAt > 0 {
		return strings.Join(lines[:splitAt], "\n"), strings.Join(lines[splitAt:], "\n")
	}

	mid := len(lines) / 2
	return strings.Join(lines[:mid], "\n"), strings.Join(lines[mid:], "\n")
}
