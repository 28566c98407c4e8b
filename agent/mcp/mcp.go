// Package mcp implements the Model-Control-Protocol governance layer:
// a static capability matrix checked before every artifact read,
// write, and agent invocation.
//
// This is unrelated to the Model Context Protocol tool-calling
// standard; the name is inherited from the system this pipeline is
// modeled on and predates that protocol.
package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

// Permission is one entry in an agent's capability set, of the form
// "run:agent", "read:<type>", or "write:<type>".
type Permission string

// CapabilityMatrix maps an agent id to its granted permissions.
type CapabilityMatrix map[string][]Permission

// DefaultMatrix is the canonical capability matrix from the pipeline
// design: architecture -> code -> test -> quality/build.
var DefaultMatrix = CapabilityMatrix{
	"architecture_agent": {"run:agent", "write:architecture", "read:requirements"},
	"code_agent":          {"run:agent", "read:architecture", "write:module_code"},
	"test_agent":          {"run:agent", "read:module_code", "write:tests"},
	"quality_agent":       {"run:agent", "read:module_code", "read:tests", "write:reports"},
	"build_agent":         {"run:agent", "read:module_code", "read:tests", "write:artifacts", "write:build_log"},
}

// AuditEntry is one governance decision, recorded whether allowed or denied.
type AuditEntry struct {
	Timestamp string         `json:"timestamp"`
	AgentID   string         `json:"agent_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Allowed   bool           `json:"allowed"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MCP is the governance authority. It is pure read-only after
// construction and safe for concurrent use without locking, except
// for the optional audit sink which serializes its own writes.
type MCP struct {
	matrix CapabilityMatrix

	auditMu sync.Mutex
	audit   io.Writer
	now     func() time.Time
}

// Option configures an MCP at construction time.
type Option func(*MCP)

// WithAuditSink directs every authorization decision, allowed or
// denied, to w as a JSON-lines stream. Grounded on original_source's
// mcp.py, which writes an audit log entry per decision; spec.md
// doesn't require this but doesn't forbid it either.
func WithAuditSink(w io.Writer) Option {
	return func(m *MCP) { m.audit = w }
}

// New constructs an MCP over the given capability matrix. A nil matrix
// falls back to DefaultMatrix.
func New(matrix CapabilityMatrix, opts ...Option) *MCP {
	if matrix == nil {
		matrix = DefaultMatrix
	}
	m := &MCP{matrix: matrix, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MCP) permissions(agentID string) []Permission {
	return m.matrix[agentID]
}

// authorize matches want against an agent's granted permissions. A
// permission of the form "write:module_code" authorizes a want of
// "write:module_code:mod1" (prefix-based parent-permission match); an
// exact match always succeeds; "run:agent" is blanket for any
// run-class check.
func authorize(granted []Permission, want string) bool {
	for _, p := range granted {
		g := string(p)
		if g == want {
			return true
		}
		if strings.HasPrefix(want, g+":") {
			return true
		}
	}
	return false
}

func (m *MCP) record(agentID, action, resource string, allowed bool, reason string) {
	if m.audit == nil {
		return
	}
	entry := AuditEntry{
		Timestamp: m.now().UTC().Format(time.RFC3339Nano),
		AgentID:   agentID,
		Action:    action,
		Resource:  resource,
		Allowed:   allowed,
		Reason:    reason,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	m.auditMu.Lock()
	defer m.auditMu.Unlock()
	_, _ = m.audit.Write(append(line, '\n'))
}

// CheckRun succeeds iff agentID holds "run:agent".
func (m *MCP) CheckRun(agentID string) error {
	want := "run:agent"
	if authorize(m.permissions(agentID), want) {
		m.record(agentID, "run", agentID, true, "")
		return nil
	}
	m.record(agentID, "run", agentID, false, "missing run:agent")
	return fmt.Errorf("%w: agent %q may not run", contractx.ErrPermissionDenied, agentID)
}

// CheckRead succeeds iff agentID holds "read:<type>" for the base type
// of artifactType (a qualifier such as "module_code:mod1" matches the
// base permission "read:module_code").
func (m *MCP) CheckRead(agentID, artifactType string) error {
	return m.check(agentID, "read", artifactType)
}

// CheckWrite succeeds iff agentID holds "write:<type>" for the base
// type of artifactType.
func (m *MCP) CheckWrite(agentID, artifactType string) error {
	return m.check(agentID, "write", artifactType)
}

func (m *MCP) check(agentID, verb, artifactType string) error {
	want := verb + ":" + artifactType
	if authorize(m.permissions(agentID), want) {
		m.record(agentID, verb, artifactType, true, "")
		return nil
	}
	m.record(agentID, verb, artifactType, false, "missing "+verb+":"+baseType(artifactType))
	return fmt.Errorf("%w: agent %q may not %s %q", contractx.ErrPermissionDenied, agentID, verb, artifactType)
}

func baseType(artifactType string) string {
	if i := strings.Index(artifactType, ":"); i >= 0 {
		return artifactType[:i]
	}
	return artifactType
}
