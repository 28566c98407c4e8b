package code

import (
	"context"
	"testing"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
	"github.com/cyberforge26/firmware-forge/agent/mcp"
	"github.com/cyberforge26/firmware-forge/agent/prompt"
	"github.com/cyberforge26/firmware-forge/agent/retrieval"
	"github.com/cyberforge26/firmware-forge/agent/store"
	"github.com/cyberforge26/firmware-forge/pkg/lmclient"
)

func testRunContext(t *testing.T) *contractx.RunContext {
	t.Helper()
	eng, err := retrieval.Load()
	if err != nil {
		t.Fatalf("retrieval.Load: %v", err)
	}
	m := mcp.New(nil)
	s := store.New(t.TempDir(), m)
	run := contractx.RunDescriptor{
		RunID: "run-1",
		Specification: contractx.Specification{
			ProjectName:      "widget",
			MCU:              "STM32F4",
			OptimizationGoal: contractx.OptimizationBalanced,
			Modules: []contractx.Module{
				{ID: "uart1", Type: contractx.ModuleUART},
			},
		},
	}
	return &contractx.RunContext{
		Run:       run,
		MCP:       m,
		Store:     s,
		Retrieval: eng,
		LM:        lmclient.NewMock(),
		Prompts:   prompt.New(),
	}
}

func TestExecuteWritesHeaderAndSource(t *testing.T) {
	rc := testRunContext(t)
	a := New()

	result, err := a.Execute(context.Background(), rc, contractx.Module{ID: "uart1", Type: contractx.ModuleUART})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success")
	}
	if result.Metadata["header_file"] == "" || result.Metadata["source_file"] == "" {
		t.Fatalf("expected both header and source files recorded")
	}
}

func TestExecuteRejectsWrongInputType(t *testing.T) {
	rc := testRunContext(t)
	a := New()

	if _, err := a.Execute(context.Background(), rc, "not a module"); err == nil {
		t.Fatalf("expected an error for a non-Module input")
	}
}

func TestExtractModularCodeFromJSON(t *testing.T) {
	h, s := extractModularCode(`{"header": "void f(void);", "source": "void f(void) {}"}`)
	if h != "void f(void);" || s != "void f(void) {}" {
		t.Fatalf("unexpected split: header=%q source=%q", h, s)
	}
}

func TestExtractModularCodeFromMarkers(t *testing.T) {
	h, s := extractModularCode("preamble\n###HEADER###\nvoid f(void);\n###SOURCE###\nvoid f(void) {}\n")
	if h != "void f(void);" || s != "void f(void) {}" {
		t.Fatalf("unexpected split: header=%q source=%q", h, s)
	}
}

func TestExtractModularCodeSplitsAtFirstFunction(t *testing.T) {
	h, s := extractModularCode("#pragma once\n#include <stdint.h>\nvoid module_init(void) {\n}\n")
	if h == "" || s == "" {
		t.Fatalf("expected a non-empty split, got header=%q source=%q", h, s)
	}
}

func TestExtractModularCodeFallsBackToHalfSplit(t *testing.T) {
	h, s := extractModularCode("line1\nline2\nline3\nline4\n")
	if h == "" || s == "" {
		t.Fatalf("expected a non-empty half split, got header=%q source=%q", h, s)
	}
}
