package retrieval

import (
	"strings"
	"testing"
)

func TestLoadParsesEmbeddedCorpus(t *testing.T) {
	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(e.docs) == 0 {
		t.Fatalf("expected a non-empty corpus")
	}
}

func TestQueryReturnsTopKRankedByScore(t *testing.T) {
	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := e.Query("uart framing baud protocol", 1, "uart")
	if len(out) != 1 {
		t.Fatalf("expected 1 document, got %d", len(out))
	}
	if !strings.HasPrefix(out[0], "UART drivers") {
		t.Fatalf("expected the highest-scoring UART framing document first, got %q", out[0])
	}
}

func TestQueryEmptyCorpusDoesNotFail(t *testing.T) {
	e := &Engine{charBudget: DefaultCharBudget}
	out := e.Query("anything", 3, "")
	if len(out) != 0 {
		t.Fatalf("expected zero documents from an empty corpus, got %d", len(out))
	}
}

func TestModuleTypeMismatchHalvesScore(t *testing.T) {
	docs := []Document{
		{ID: "a", Domain: "protocol", Priority: "high", SearchWeight: 0.8, Keywords: []string{"uart"}, ModuleTypes: []string{"uart"}, Content: "uart doc"},
	}
	e := &Engine{docs: docs, charBudget: DefaultCharBudget}

	matched := score(docs[0], []string{"uart"}, "uart")
	mismatched := score(docs[0], []string{"uart"}, "i2c")

	if mismatched != matched*0.5 {
		t.Fatalf("expected mismatch score to be exactly half: matched=%.4f mismatched=%.4f", matched, mismatched)
	}
	_ = e
}

func TestConcatenateNeverExceedsBudget(t *testing.T) {
	e, err := Load(WithCharBudget(50))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := e.Query("safety misra dynamic allocation", 5, "")
	total := 0
	for _, s := range out {
		total += len(s)
	}
	if total > 50+len(out)*len("\n---\n") {
		t.Fatalf("concatenated context exceeded budget: %d chars across %d docs", total, len(out))
	}
}

func TestQueryByDomainFiltersCandidates(t *testing.T) {
	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := e.QueryByDomain("safety", 5)
	if len(out) == 0 {
		t.Fatalf("expected at least one safety document")
	}
}
