package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

func TestCheckRun(t *testing.T) {
	m := New(DefaultMatrix)

	if err := m.CheckRun("architecture_agent"); err != nil {
		t.Fatalf("expected architecture_agent to be allowed to run: %v", err)
	}

	err := m.CheckRun("unknown_agent")
	if !errors.Is(err, contractx.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCheckWritePrefixMatch(t *testing.T) {
	m := New(DefaultMatrix)

	if err := m.CheckWrite("code_agent", "module_code:uart0"); err != nil {
		t.Fatalf("expected qualified write to be authorized by base permission: %v", err)
	}
	if err := m.CheckWrite("code_agent", "module_code"); err != nil {
		t.Fatalf("expected exact base write to be authorized: %v", err)
	}
}

func TestQualityReportPermissionRejected(t *testing.T) {
	// Regression for spec.md §8 scenario 3: "quality_report" is not the
	// canonical permission name; only "reports" is granted.
	m := New(DefaultMatrix)

	err := m.CheckWrite("quality_agent", "quality_report")
	if !errors.Is(err, contractx.ErrPermissionDenied) {
		t.Fatalf("expected quality_report write to be denied, got %v", err)
	}
	if err := m.CheckWrite("quality_agent", "reports"); err != nil {
		t.Fatalf("expected reports write to be authorized: %v", err)
	}
}

func TestAuditSinkRecordsBothOutcomes(t *testing.T) {
	var buf bytes.Buffer
	m := New(DefaultMatrix, WithAuditSink(&buf))

	_ = m.CheckRun("architecture_agent")
	_ = m.CheckWrite("architecture_agent", "module_code")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d: %q", len(lines), buf.String())
	}

	var allowed AuditEntry
	if err := json.Unmarshal([]byte(lines[0]), &allowed); err != nil {
		t.Fatalf("unmarshal audit entry: %v", err)
	}
	if !allowed.Allowed {
		t.Fatalf("expected first entry to be allowed")
	}

	var denied AuditEntry
	if err := json.Unmarshal([]byte(lines[1]), &denied); err != nil {
		t.Fatalf("unmarshal audit entry: %v", err)
	}
	if denied.Allowed {
		t.Fatalf("expected second entry to be denied")
	}
}
