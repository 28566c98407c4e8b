package lmclient

import (
	"context"
	"fmt"
	"strings"
)

// MockClient is a deterministic stand-in for the real provider. Its
// output shape depends on the kind of prompt it receives — valid JSON
// for prompts requesting header/source pairs, plausible C-like source
// for other code prompts, prose otherwise — following
// original_source/core/ai/gemini_wrapper.py's MockGemini, generalized
// beyond its single flat string response so downstream parsing in the
// code and test agents has something realistic to exercise.
type MockClient struct{}

// NewMock returns a ready-to-use mock LM client.
func NewMock() *MockClient { return &MockClient{} }

func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Markdown architecture document"):
		return mockArchitecture(), nil
	case strings.Contains(prompt, "Generate modular C code"):
		return mockModuleCode(), nil
	case strings.Contains(prompt, "unit test file"):
		return mockTestCode(), nil
	case strings.Contains(prompt, "qualitative analysis paragraph"):
		return mockQualityAnalysis(), nil
	default:
		return fmt.Sprintf("GENERATED (mock): %s", truncate(prompt, 200)), nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func mockArchitecture() string {
	return "# Architecture\n\n" +
		"## Modules\n\nEach module exposes an init/deinit pair and communicates " +
		"through explicit interfaces. No module reaches into another module's " +
		"internal state.\n\n" +
		"## Safety\n\nMagic numbers are named constants; loops are bounded.\n"
}

func mockModuleCode() string {
	return `{"header": "#pragma once\n\nvoid module_init(void);\nvoid module_tick(void);\n", ` +
		`"source": "#include \"module.h\"\n\nvoid module_init(void) {\n}\n\nvoid module_tick(void) {\n}\n"}`
}

func mockTestCode() string {
	return "#include \"module.h\"\n#include \"unity.h\"\n\n" +
		"void test_module_init_does_not_crash(void) {\n" +
		"    module_init();\n" +
		"    TEST_ASSERT_TRUE(1);\n" +
		"}\n"
}

func mockQualityAnalysis() string {
	return "Generated modules follow the declared interfaces with no dynamic " +
		"allocation observed. No MISRA-critical patterns detected in this sample; " +
		"recommend adding bounds checks on any loop driven by external input."
}
