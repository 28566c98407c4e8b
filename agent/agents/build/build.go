// Package build implements the build agent: it never invokes a
// compiler (compiling firmware is an explicit non-goal), only records
// build readiness — per-module file sizes, a compilation instruction
// string, and whether a compiler was even found on the host. Grounded
// on original_source/agents/build_agent/__init__.py's
// _generate_build_log, extended per spec.md §9's has_compiler
// resolution.
package build

import (
	"context"
	"fmt"
	"path/filepath"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

const agentID = "build_agent"

// Agent is the build-readiness pipeline stage.
type Agent struct{}

var _ contractx.Agent = (*Agent)(nil)

// New returns a ready-to-use build agent.
func New() *Agent { return &Agent{} }

func (a *Agent) AgentID() string { return agentID }

// Execute ignores inputs: the build agent walks every module in the
// specification.
func (a *Agent) Execute(_ context.Context, rc *contractx.RunContext, _ any) (contractx.AgentResult, error) {
	if err := rc.MCP.CheckRun(agentID); err != nil {
		return contractx.AgentResult{}, err
	}

	spec := rc.Run.Specification
	modules := make(map[string]contractx.ModuleBuildEntry, len(spec.Modules))
	var testStatus *contractx.UnitTestSummary
	passed, failed := 0, 0

	// A module absent from the artifact store means code/test
	// generation failed for it upstream. The build log still reports
	// against the full specification's module count (required) so a
	// caller can see that fewer modules were actually built.
	for _, mod := range spec.Modules {
		if err := rc.MCP.CheckRead(agentID, "module_code:"+mod.ID); err != nil {
			return contractx.AgentResult{}, err
		}
		headerPath := filepath.Join("module_code", mod.ID, mod.ID+".h")
		sourcePath := filepath.Join("module_code", mod.ID, mod.ID+".c")

		headerSize, headerExists, err := rc.Store.StatArtifact(rc.Run, headerPath)
		if err != nil {
			return contractx.AgentResult{}, err
		}
		sourceSize, sourceExists, err := rc.Store.StatArtifact(rc.Run, sourcePath)
		if err != nil {
			return contractx.AgentResult{}, err
		}
		if !headerExists || !sourceExists {
			continue
		}
		modules[mod.ID] = contractx.ModuleBuildEntry{
			Header:     headerPath,
			Source:     sourcePath,
			HeaderSize: headerSize,
			SourceSize: sourceSize,
		}

		if err := rc.MCP.CheckRead(agentID, "tests:"+mod.ID); err != nil {
			return contractx.AgentResult{}, err
		}
		testPath := filepath.Join("tests", mod.ID, mod.ID+"_test.c")
		if _, exists, err := rc.Store.StatArtifact(rc.Run, testPath); err != nil {
			return contractx.AgentResult{}, err
		} else if exists {
			passed++
		} else {
			failed++
		}
	}

	if passed+failed > 0 {
		status := "complete"
		if failed > 0 {
			status = "incomplete"
		}
		testStatus = &contractx.UnitTestSummary{Status: status, Passed: passed, Failed: failed}
	}

	var compiler *string
	if rc.HasCompiler {
		c := "gcc"
		compiler = &c
	}

	log := contractx.BuildLog{
		BuildType:          "source_only",
		CompilationStatus:  "skipped",
		Compiler:           compiler,
		TotalModules:       len(spec.Modules),
		ModulesCompiled:    0,
		CompilationDetails: map[string]any{"instruction": "gcc -I. *.c -o firmware.elf"},
		Modules:            modules,
		UnitTests:          testStatus,
		Notes:              buildNotes(rc.HasCompiler, len(spec.Modules), len(modules)),
	}

	ref, err := rc.Store.WriteJSONArtifact(rc.Run, agentID, "build_log", log, "v1", nil)
	if err != nil {
		return contractx.AgentResult{}, err
	}

	return contractx.AgentResult{
		Success:      true,
		ArtifactPath: ref.Path,
		Message:      fmt.Sprintf("build ready: %d module(s) generated", len(modules)),
		Metadata: map[string]any{
			"build_log":        ref.Path,
			"total_modules":    len(spec.Modules),
			"modules_built":    len(modules),
		},
	}, nil
}

func buildNotes(hasCompiler bool, required, present int) []string {
	notes := []string{
		"Module code has been generated in source format (.h/.c).",
		"No binary compilation is performed by this pipeline.",
		"User is responsible for compilation with their own toolchain.",
	}
	if hasCompiler {
		notes = append(notes, "A compiler was detected on this host but was not invoked.")
	} else {
		notes = append(notes, "No compiler was detected on this host.")
	}
	if present != required {
		notes = append(notes, fmt.Sprintf("required %d module(s) per specification but only %d were available to build.", required, present))
	}
	return notes
}
