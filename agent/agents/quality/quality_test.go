package quality

import (
	"context"
	"testing"
	"time"

	codeagent "github.com/cyberforge26/firmware-forge/agent/agents/code"
	testagent "github.com/cyberforge26/firmware-forge/agent/agents/test"
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
			MCU: "STM32F4",
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

func generateUpstream(t *testing.T, rc *contractx.RunContext) {
	t.Helper()
	mod := rc.Run.Specification.Modules[0]
	if _, err := codeagent.New().Execute(context.Background(), rc, mod); err != nil {
		t.Fatalf("code agent Execute: %v", err)
	}
	if _, err := testagent.New().Execute(context.Background(), rc, mod); err != nil {
		t.Fatalf("test agent Execute: %v", err)
	}
}

func TestExecuteProducesScoredReport(t *testing.T) {
	rc := testRunContext(t)
	generateUpstream(t, rc)

	result, err := New().Execute(context.Background(), rc, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success")
	}
	score, ok := result.Metadata["overall_score"].(int)
	if !ok || score < 0 || score > 100 {
		t.Fatalf("expected overall_score in [0,100], got %v", result.Metadata["overall_score"])
	}
}

func TestExecuteFlagsMissingModuleInsteadOfBlocking(t *testing.T) {
	rc := testRunContext(t)

	result, err := New().Execute(context.Background(), rc, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success: quality proceeds with whatever modules are available")
	}
	score, ok := result.Metadata["overall_score"].(int)
	if !ok || score != 100-severityPenalty[contractx.SeverityHigh] {
		t.Fatalf("expected a high-severity missing_module penalty, got %v", result.Metadata["overall_score"])
	}
}

func TestBuildReportPenalizesBySeverity(t *testing.T) {
	a := analysisResult{
		issues: []contractx.Issue{
			{Severity: contractx.SeverityCritical},
			{Severity: contractx.SeverityLow},
		},
		metrics: map[string]contractx.Metric{},
	}
	report := buildReport(a, "analysis", time.Now())
	if report.OverallScore != 100-25-1 {
		t.Fatalf("expected score 74, got %d", report.OverallScore)
	}
}
