// Package retrieval implements the retrieval-augmented context
// engine: it scores a fixed corpus of markdown documents against an
// agent's query and returns concatenated context under a character
// budget.
package retrieval

import (
	_ "embed"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

//go:embed corpus.yaml
var corpusYAML []byte

// Document is one entry in the retrieval corpus.
type Document struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Domain       string   `yaml:"domain"`
	Priority     string   `yaml:"priority"`
	SearchWeight float64  `yaml:"search_weight"`
	Keywords     []string `yaml:"keywords"`
	ModuleTypes  []string `yaml:"module_types"`
	Content      string   `yaml:"content"`
}

type corpusFile struct {
	Documents []Document `yaml:"documents"`
}

var priorityWeight = map[string]float64{
	"critical": 1.0,
	"high":     0.8,
	"medium":   0.6,
	"low":      0.4,
}

// DefaultCharBudget is ~2,000 tokens worth of context per spec.md §4.3.
const DefaultCharBudget = 8000

// Engine scores the corpus against queries. It is immutable after
// Load and safe for concurrent, lock-free reads.
type Engine struct {
	docs        []Document
	charBudget  int
	minScore    float64 // 0 disables the floor; spec.md's literal behavior
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithCharBudget overrides the default context character budget.
func WithCharBudget(n int) Option {
	return func(e *Engine) { e.charBudget = n }
}

// WithMinScore sets a relevance floor below which documents are
// dropped (original_source uses 0.65). Off (0) by default so spec.md's
// literal top-k behavior is unaffected.
func WithMinScore(min float64) Option {
	return func(e *Engine) { e.minScore = min }
}

// Load parses the embedded corpus. An empty or absent corpus degrades
// gracefully: it never returns an error for empty input, only for
// malformed YAML.
func Load(opts ...Option) (*Engine, error) {
	var cf corpusFile
	if len(corpusYAML) > 0 {
		if err := yaml.Unmarshal(corpusYAML, &cf); err != nil {
			return nil, err
		}
	}
	e := &Engine{docs: cf.Documents, charBudget: DefaultCharBudget}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

var _ contractx.RetrievalEngine = (*Engine)(nil)

type scored struct {
	doc   Document
	score float64
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	})
	return fields
}

func keywordOverlap(queryTerms []string, keywords []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[strings.ToLower(k)] = true
	}
	hits := 0
	for _, t := range queryTerms {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

func domainMatch(queryTerms []string, domain string) float64 {
	domain = strings.ToLower(domain)
	for _, t := range queryTerms {
		if t == domain {
			return 1
		}
	}
	return 0
}

// score implements spec.md §4.3's formula exactly:
//
//	score = 0.40*keyword_overlap + 0.30*domain_match + 0.15*priority_weight + 0.15*search_weight
//
// A supplied moduleType that matches neither the document's tags nor
// "all" halves the score rather than excluding the document.
func score(doc Document, queryTerms []string, moduleType string) float64 {
	kw := keywordOverlap(queryTerms, doc.Keywords)
	dm := domainMatch(queryTerms, doc.Domain)
	pw := priorityWeight[doc.Priority]
	sw := doc.SearchWeight

	s := 0.40*kw + 0.30*dm + 0.15*pw + 0.15*sw

	if moduleType != "" && !matchesModuleType(doc, moduleType) {
		s *= 0.5
	}
	return s
}

func matchesModuleType(doc Document, moduleType string) bool {
	moduleType = strings.ToLower(moduleType)
	for _, mt := range doc.ModuleTypes {
		mt = strings.ToLower(mt)
		if mt == moduleType || mt == "all" {
			return true
		}
	}
	return false
}

func (e *Engine) rank(query string, moduleType string) []scored {
	terms := tokenize(query)
	out := make([]scored, 0, len(e.docs))
	for _, d := range e.docs {
		s := score(d, terms, moduleType)
		if s < e.minScore {
			continue
		}
		out = append(out, scored{doc: d, score: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		pi := priorityWeight[out[i].doc.Priority]
		pj := priorityWeight[out[j].doc.Priority]
		if pi != pj {
			return pi > pj
		}
		return out[i].doc.ID < out[j].doc.ID
	})
	return out
}

// concatenateUnderBudget joins ranked documents' content in order,
// stopping when the budget would be exceeded. A document that
// partially fits is truncated at the last paragraph boundary within
// it rather than mid-paragraph; a document that does not fit at all
// is omitted, not included empty.
func (e *Engine) concatenateUnderBudget(ranked []scored, topK int) []string {
	if topK > len(ranked) {
		topK = len(ranked)
	}
	var out []string
	remaining := e.charBudget
	const sep = "\n---\n"

	for i := 0; i < topK; i++ {
		content := strings.TrimSpace(ranked[i].doc.Content)
		if content == "" {
			continue
		}
		cost := len(content)
		if len(out) > 0 {
			cost += len(sep)
		}
		if cost <= remaining {
			out = append(out, content)
			remaining -= cost
			continue
		}

		// Try a paragraph-boundary-safe partial fit.
		budgetForDoc := remaining
		if len(out) > 0 {
			budgetForDoc -= len(sep)
		}
		if budgetForDoc <= 0 {
			break
		}
		paragraphs := strings.Split(content, "\n\n")
		var partial strings.Builder
		for _, p := range paragraphs {
			addition := p
			if partial.Len() > 0 {
				addition = "\n\n" + p
			}
			if partial.Len()+len(addition) > budgetForDoc {
				break
			}
			partial.WriteString(addition)
		}
		if partial.Len() > 0 {
			out = append(out, partial.String())
		}
		break
	}
	return out
}

// Query returns up to topK documents' text, ranked by relevance to
// query and optionally penalized by moduleType mismatch, concatenated
// under the character budget.
func (e *Engine) Query(query string, topK int, moduleType string) []string {
	if topK <= 0 {
		topK = 3
	}
	ranked := e.rank(query, moduleType)
	return e.concatenateUnderBudget(ranked, topK)
}

// QueryByDomain restricts candidates to documents tagged with domain
// before scoring against domain itself as the query text. Grounded on
// original_source/core/rag/rag.py's query_by_domain convenience method.
func (e *Engine) QueryByDomain(domain string, topK int) []string {
	return e.queryFiltered(domain, topK, func(d Document) bool {
		return strings.EqualFold(d.Domain, domain)
	})
}

// QueryByStandard restricts candidates to documents whose keyword set
// contains standard (e.g. "misra", "cert") before scoring against it.
// Grounded on original_source/core/rag/rag.py's query_by_standard.
func (e *Engine) QueryByStandard(standard string, topK int) []string {
	standard = strings.ToLower(standard)
	return e.queryFiltered(standard, topK, func(d Document) bool {
		for _, k := range d.Keywords {
			if strings.ToLower(k) == standard {
				return true
			}
		}
		return false
	})
}

func (e *Engine) queryFiltered(query string, topK int, keep func(Document) bool) []string {
	if topK <= 0 {
		topK = 3
	}
	filtered := make([]Document, 0, len(e.docs))
	for _, d := range e.docs {
		if keep(d) {
			filtered = append(filtered, d)
		}
	}
	sub := &Engine{docs: filtered, charBudget: e.charBudget, minScore: e.minScore}
	ranked := sub.rank(query, "")
	return sub.concatenateUnderBudget(ranked, topK)
}

// Documents exposes the corpus for GET /api/docs/rag.
func (e *Engine) Documents() []contractx.RetrievalDocumentSummary {
	out := make([]contractx.RetrievalDocumentSummary, 0, len(e.docs))
	for _, d := range e.docs {
		out = append(out, contractx.RetrievalDocumentSummary{
			ID:      d.ID,
			Title:   d.Title,
			Content: d.Content,
			Domain:  d.Domain,
		})
	}
	return out
}
