package build

import (
	"context"
	"strings"
	"testing"

	codeagent "github.com/cyberforge26/firmware-forge/agent/agents/code"
	testagent "github.com/cyberforge26/firmware-forge/agent/agents/test"
	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
	"github.com/cyberforge26/firmware-forge/agent/mcp"
	"github.com/cyberforge26/firmware-forge/agent/prompt"
	"github.com/cyberforge26/firmware-forge/agent/retrieval"
	"github.com/cyberforge26/firmware-forge/agent/store"
	"github.com/cyberforge26/firmware-forge/pkg/lmclient"
)

func testRunContext(t *testing.T, hasCompiler bool) *contractx.RunContext {
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
		Run:         run,
		MCP:         m,
		Store:       s,
		Retrieval:   eng,
		LM:          lmclient.NewMock(),
		Prompts:     prompt.New(),
		HasCompiler: hasCompiler,
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

func TestExecuteRecordsSourceOnlyBuild(t *testing.T) {
	rc := testRunContext(t, false)
	generateUpstream(t, rc)

	result, err := New().Execute(context.Background(), rc, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success")
	}
}

func TestExecuteRecordsDetectedCompiler(t *testing.T) {
	rc := testRunContext(t, true)
	generateUpstream(t, rc)

	if _, err := New().Execute(context.Background(), rc, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := rc.Store.ReadArtifact(rc.Run, "build_log/build_log.json")
	if err != nil {
		t.Fatalf("ReadArtifact: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected build log content")
	}
	if !strings.Contains(string(data), `"compiler":"gcc"`) {
		t.Fatalf("expected the detected compiler recorded in the build log, got %s", data)
	}
}

func TestExecuteRecordsModuleCountMismatchWithoutUpstreamCode(t *testing.T) {
	rc := testRunContext(t, false)

	result, err := New().Execute(context.Background(), rc, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	total, _ := result.Metadata["total_modules"].(int)
	built, _ := result.Metadata["modules_built"].(int)
	if total != 1 || built != 0 {
		t.Fatalf("expected total_modules=1, modules_built=0, got total=%d built=%d", total, built)
	}
}
