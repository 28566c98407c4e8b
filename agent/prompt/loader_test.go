package prompt

import (
	"strings"
	"testing"
)

func TestComposeSubstitutesRecognizedPlaceholders(t *testing.T) {
	l := New()
	out, err := l.Compose("architecture_agent", map[string]string{
		"CONSTRAINTS": "Follow MISRA-like rules.",
		"MCU":         "ESP32",
		"MODULE":      `{"project_name":"P"}`,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if strings.Contains(out, "<<CONSTRAINTS>>") {
		t.Fatalf("expected CONSTRAINTS placeholder to be substituted")
	}
	if !strings.Contains(out, "ESP32") {
		t.Fatalf("expected MCU value to appear in composed prompt")
	}
}

func TestComposeLeavesUnfilledPlaceholdersLiteral(t *testing.T) {
	l := New()
	out, err := l.Compose("architecture_agent", map[string]string{"MCU": "ESP32"})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(out, "<<RAG_CONTEXT>>") {
		t.Fatalf("expected unfilled RAG_CONTEXT placeholder to remain literal")
	}
}

func TestComposeUnknownAgentFails(t *testing.T) {
	l := New()
	if _, err := l.Compose("nonexistent_agent", nil); err == nil {
		t.Fatalf("expected an error for an unregistered agent template")
	}
}
