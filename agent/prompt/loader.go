// Package prompt loads versioned prompt templates and performs
// literal placeholder substitution, mirroring
// original_source/core/ai/prompt.py's PromptLoader.load()/.compose().
package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

var (
	//go:embed template/base_prompt.md
	baseRaw string

	//go:embed template/architecture_agent_prompt_v1.md
	architectureRaw string

	//go:embed template/code_agent_prompt_v1.md
	codeRaw string

	//go:embed template/test_agent_prompt_v1.md
	testRaw string

	//go:embed template/quality_agent_prompt_v1.md
	qualityRaw string
)

// RecognizedPlaceholders lists the substitution tokens spec.md §4.4
// names. A field not present in a Compose call's fields map is left
// as a literal, unfilled `<<NAME>>` token — a warning condition, not
// an error, exactly as original_source's naive .replace() behaves.
var RecognizedPlaceholders = []string{
	"AGENT_ROLE", "CONSTRAINTS", "RAG_CONTEXT", "MODULE", "MCU",
	"OPTIMIZATION", "BOARD_SPECS", "MODULES", "CODE_ARTIFACTS", "CODE_FILES",
}

var specificByAgent = map[string]string{
	"architecture_agent": architectureRaw,
	"code_agent":          codeRaw,
	"test_agent":          testRaw,
	"quality_agent":       qualityRaw,
}

// Loader is the process-wide prompt template registry. It is
// immutable after construction: the embed is compile-time.
type Loader struct{}

var _ contractx.PromptLoader = (*Loader)(nil)

// New returns a Loader over the embedded template set.
func New() *Loader {
	return &Loader{}
}

// Load returns the concatenated base + agent-specific template text.
func (l *Loader) Load(agentName string) (string, error) {
	specific, ok := specificByAgent[agentName]
	if !ok {
		return "", fmt.Errorf("%w: no prompt template registered for %q", contractx.ErrInternal, agentName)
	}
	return strings.TrimSpace(baseRaw) + "\n\n" + strings.TrimSpace(specific), nil
}

// Compose loads the agent's template and substitutes every recognized
// placeholder present in fields. AGENT_ROLE always defaults to
// agentName unless the caller overrides it.
func (l *Loader) Compose(agentName string, fields map[string]string) (string, error) {
	tmpl, err := l.Load(agentName)
	if err != nil {
		return "", err
	}

	merged := map[string]string{"AGENT_ROLE": agentName}
	for k, v := range fields {
		merged[k] = v
	}

	out := tmpl
	for _, name := range RecognizedPlaceholders {
		v, ok := merged[name]
		if !ok {
			continue
		}
		out = strings.ReplaceAll(out, "<<"+name+">>", v)
	}
	return out, nil
}
