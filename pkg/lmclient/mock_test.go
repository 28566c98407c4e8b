package lmclient

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestMockCompleteReturnsJSONForCodePrompts(t *testing.T) {
	m := NewMock()
	out, err := m.Complete(context.Background(), "Generate modular C code for exactly one module.\n...")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	var parsed struct {
		Header string `json:"header"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("expected valid JSON, got %q: %v", out, err)
	}
	if parsed.Header == "" || parsed.Source == "" {
		t.Fatalf("expected non-empty header and source")
	}
}

func TestMockCompleteReturnsMarkdownForArchitecturePrompts(t *testing.T) {
	m := NewMock()
	out, err := m.Complete(context.Background(), "Produce a Markdown architecture document for the project below.")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.HasPrefix(out, "#") {
		t.Fatalf("expected markdown heading, got %q", out)
	}
}

func TestMockCompleteFallsBackToGenericStub(t *testing.T) {
	m := NewMock()
	out, err := m.Complete(context.Background(), "something unrelated")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.HasPrefix(out, "GENERATED (mock):") {
		t.Fatalf("expected generic mock prefix, got %q", out)
	}
}
