// Package quality implements the quality agent: deterministic static
// metrics computed locally over generated module code and tests, plus
// one language-model call for a qualitative analysis excerpt.
// Grounded on original_source/agents/quality_agent/__init__.py, with
// the scoring and metrics detail from spec.md §4.5.4 supplementing the
// original's single-prompt-and-write body.
package quality

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

const agentID = "quality_agent"

var severityPenalty = map[contractx.Severity]int{
	contractx.SeverityCritical: 25,
	contractx.SeverityHigh:     10,
	contractx.SeverityMedium:   4,
	contractx.SeverityLow:      1,
}

// Agent is the quality-analysis pipeline stage.
type Agent struct {
	now func() time.Time
}

var _ contractx.Agent = (*Agent)(nil)

// New returns a ready-to-use quality agent.
func New() *Agent { return &Agent{now: time.Now} }

func (a *Agent) AgentID() string { return agentID }

// Execute ignores inputs: the quality agent reviews every module in
// the specification.
func (a *Agent) Execute(ctx context.Context, rc *contractx.RunContext, _ any) (contractx.AgentResult, error) {
	if err := rc.MCP.CheckRun(agentID); err != nil {
		return contractx.AgentResult{}, err
	}
	if err := rc.MCP.CheckRead(agentID, "module_code"); err != nil {
		return contractx.AgentResult{}, err
	}
	if err := rc.MCP.CheckRead(agentID, "tests"); err != nil {
		return contractx.AgentResult{}, err
	}

	spec := rc.Run.Specification

	// A module missing from the artifact store means an upstream
	// stage failed to produce it; quality proceeds with whatever
	// modules are available and flags the rest rather than aborting.
	var sources []moduleSource
	var missingIssues []contractx.Issue
	for _, mod := range spec.Modules {
		src, err := readModuleSources(rc, mod)
		if err != nil {
			missingIssues = append(missingIssues, contractx.Issue{
				Severity: contractx.SeverityHigh,
				Type:     "missing_module",
				Message:  fmt.Sprintf("module %s has no generated code available for analysis", mod.ID),
				Location: mod.ID,
			})
			continue
		}
		sources = append(sources, src)
	}

	analysis := analyze(sources)
	analysis.issues = append(analysis.issues, missingIssues...)

	ragCtx := strings.Join(rc.Retrieval.Query("quality and static analysis rules", 3, ""), "\n\n")
	prompt, err := rc.Prompts.Compose(agentID, map[string]string{
		"CONSTRAINTS":    "Flag MISRA/CERT issues.",
		"RAG_CONTEXT":    ragCtx,
		"CODE_ARTIFACTS": analysis.excerpt,
		"MODULES":        analysis.moduleList,
	})
	if err != nil {
		return contractx.AgentResult{}, err
	}

	llmAnalysis, err := rc.LM.Complete(ctx, prompt)
	if err != nil {
		return contractx.AgentResult{}, err
	}

	report := buildReport(analysis, llmAnalysis, a.now())

	ref, err := rc.Store.WriteJSONArtifact(rc.Run, agentID, "reports", report, "v1", nil)
	if err != nil {
		return contractx.AgentResult{}, err
	}

	return contractx.AgentResult{
		Success:      true,
		ArtifactPath: ref.Path,
		Message:      "quality report generated",
		Metadata:     map[string]any{"overall_score": report.OverallScore},
	}, nil
}

type moduleSource struct {
	module contractx.Module
	header string
	source string
	test   string
}

func readModuleSources(rc *contractx.RunContext, mod contractx.Module) (moduleSource, error) {
	headerPath := filepath.Join("module_code", mod.ID, mod.ID+".h")
	sourcePath := filepath.Join("module_code", mod.ID, mod.ID+".c")
	testPath := filepath.Join("tests", mod.ID, mod.ID+"_test.c")

	header, err := rc.Store.ReadArtifactAs(rc.Run, agentID, "module_code:"+mod.ID, headerPath)
	if err != nil {
		return moduleSource{}, err
	}
	source, err := rc.Store.ReadArtifactAs(rc.Run, agentID, "module_code:"+mod.ID, sourcePath)
	if err != nil {
		return moduleSource{}, err
	}
	test, err := rc.Store.ReadArtifactAs(rc.Run, agentID, "tests:"+mod.ID, testPath)
	if err != nil {
		return moduleSource{}, err
	}

	return moduleSource{module: mod, header: string(header), source: string(source), test: string(test)}, nil
}

type analysisResult struct {
	metrics     map[string]contractx.Metric
	issues      []contractx.Issue
	summary     contractx.AnalysisSummary
	excerpt     string
	moduleList  string
}

var (
	funcDefPattern    = regexp.MustCompile(`(?m)^\s*[\w\*]+\s+\w+\s*\([^;{]*\)\s*\{`)
	magicNumberPattern = regexp.MustCompile(`[^\w.](\d{2,})[^\w]`)
	bannedPatterns     = []string{"malloc(", "calloc(", "realloc(", "goto ", "while (1)", "while(1)", "for (;;)"}
)

func analyze(sources []moduleSource) analysisResult {
	var totalLines, totalFuncs, funcLineSum, maxNesting, magicNumbers, bannedCount, commentLines int
	var issues []contractx.Issue
	var excerptBuilder strings.Builder
	moduleIDs := make([]string, 0, len(sources))
	testFilesFound := 0

	for _, s := range sources {
		moduleIDs = append(moduleIDs, s.module.ID)
		body := s.header + "\n" + s.source
		lines := strings.Split(body, "\n")
		totalLines += len(lines)

		if strings.TrimSpace(s.source) == "" {
			issues = append(issues, contractx.Issue{
				Severity: contractx.SeverityHigh,
				Type:     "empty_module",
				Message:  fmt.Sprintf("module %s has an empty generated source body", s.module.ID),
				Location: s.module.ID,
			})
		}

		funcs := funcDefPattern.FindAllString(body, -1)
		totalFuncs += len(funcs)
		if len(funcs) > 0 {
			funcLineSum += len(lines) / len(funcs)
		}

		if n := maxNestingDepth(body); n > maxNesting {
			maxNesting = n
		}

		magicNumbers += len(magicNumberPattern.FindAllString(body, -1))

		for _, banned := range bannedPatterns {
			if strings.Contains(body, banned) {
				bannedCount++
				issues = append(issues, contractx.Issue{
					Severity: contractx.SeverityHigh,
					Type:     "banned_pattern",
					Message:  fmt.Sprintf("module %s uses banned pattern %q", s.module.ID, strings.TrimSpace(banned)),
					Location: s.module.ID,
				})
			}
		}

		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
				commentLines++
			}
		}

		if strings.TrimSpace(s.test) != "" {
			testFilesFound++
		}

		excerptBuilder.WriteString(fmt.Sprintf("// module %s\n%s\n\n", s.module.ID, s.source))
	}

	commentDensity := 0.0
	if totalLines > 0 {
		commentDensity = float64(commentLines) / float64(totalLines)
	}
	avgFuncLen := 0.0
	if totalFuncs > 0 {
		avgFuncLen = float64(funcLineSum) / float64(totalFuncs)
	}
	// Approximate cyclomatic complexity: 1 per function plus 1 per
	// branch/loop keyword, summed across every module.
	cyclomatic := totalFuncs
	for _, s := range sources {
		body := s.header + "\n" + s.source
		for _, kw := range []string{"if (", "if(", "for (", "for(", "while (", "while(", "case ", "&&", "||"} {
			cyclomatic += strings.Count(body, kw)
		}
	}

	if magicNumbers > 0 {
		issues = append(issues, contractx.Issue{
			Severity: contractx.SeverityMedium,
			Type:     "magic_numbers",
			Message:  fmt.Sprintf("%d magic number literal(s) found across generated modules", magicNumbers),
		})
	}
	if maxNesting > 4 {
		issues = append(issues, contractx.Issue{
			Severity: contractx.SeverityMedium,
			Type:     "deep_nesting",
			Message:  fmt.Sprintf("maximum nesting depth %d exceeds 4", maxNesting),
		})
	}
	if commentDensity < 0.05 && totalLines > 0 {
		issues = append(issues, contractx.Issue{
			Severity: contractx.SeverityLow,
			Type:     "low_comment_density",
			Message:  "comment density under 5%",
		})
	}

	metrics := map[string]contractx.Metric{
		"total_lines":            {Value: float64(totalLines), Unit: "lines", Status: statusFor(float64(totalLines), 0, false)},
		"avg_function_length":    {Value: round2(avgFuncLen), Unit: "lines", Target: 40, Status: statusFor(avgFuncLen, 40, true)},
		"max_nesting_depth":      {Value: float64(maxNesting), Target: 4, Status: statusFor(float64(maxNesting), 4, true)},
		"magic_numbers":          {Value: float64(magicNumbers), Status: statusFor(float64(magicNumbers), 0, true)},
		"banned_patterns":        {Value: float64(bannedCount), Status: statusFor(float64(bannedCount), 0, true)},
		"comment_density":        {Value: round2(commentDensity), Unit: "ratio", Target: 0.1, Status: statusFor(commentDensity, 0.1, false)},
		"cyclomatic_complexity":  {Value: float64(cyclomatic), Status: statusFor(float64(cyclomatic), 0, true)},
	}

	return analysisResult{
		metrics: metrics,
		issues:  issues,
		summary: contractx.AnalysisSummary{
			ModulesAnalyzed: len(sources),
			TestFilesFound:  testFilesFound,
			TotalLines:      totalLines,
		},
		excerpt:    truncateExcerpt(excerptBuilder.String(), 4000),
		moduleList: strings.Join(moduleIDs, ", "),
	}
}

// statusFor reports pass/warning/fail given a value against a target.
// higherIsWorse reverses the comparison for metrics like nesting depth
// where exceeding the target is bad rather than falling short of it.
func statusFor(value, target float64, higherIsWorse bool) contractx.MetricStatus {
	if target == 0 {
		if value == 0 {
			return contractx.MetricPass
		}
		return contractx.MetricWarning
	}
	ratio := value / target
	if higherIsWorse {
		switch {
		case ratio <= 1.0:
			return contractx.MetricPass
		case ratio <= 1.5:
			return contractx.MetricWarning
		default:
			return contractx.MetricFail
		}
	}
	switch {
	case ratio >= 1.0:
		return contractx.MetricPass
	case ratio >= 0.5:
		return contractx.MetricWarning
	default:
		return contractx.MetricFail
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func maxNestingDepth(body string) int {
	depth, max := 0, 0
	for _, r := range body {
		switch r {
		case '{':
			depth++
			if depth > max {
				max = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return max
}

func truncateExcerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func buildReport(a analysisResult, llmAnalysis string, ts time.Time) contractx.QualityReport {
	score := 100
	for _, issue := range a.issues {
		score -= severityPenalty[issue.Severity]
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	summary := a.summary
	summary.LLMAnalysisExcerpt = truncateExcerpt(llmAnalysis, 1000)

	return contractx.QualityReport{
		OverallScore:    score,
		ReportType:      "quality_analysis",
		Timestamp:       ts.UTC().Format(time.RFC3339),
		Metrics:         a.metrics,
		AnalysisSummary: summary,
		Issues:          a.issues,
		Recommendations: recommendationsFor(a.issues),
	}
}

func recommendationsFor(issues []contractx.Issue) []string {
	seen := map[string]bool{}
	var out []string
	for _, issue := range issues {
		switch issue.Type {
		case "banned_pattern":
			if !seen["banned_pattern"] {
				out = append(out, "Remove dynamic allocation and unbounded loops from generated modules.")
				seen["banned_pattern"] = true
			}
		case "magic_numbers":
			if !seen["magic_numbers"] {
				out = append(out, "Replace magic number literals with named constants.")
				seen["magic_numbers"] = true
			}
		case "deep_nesting":
			if !seen["deep_nesting"] {
				out = append(out, "Flatten deeply nested control flow into guard clauses or helper functions.")
				seen["deep_nesting"] = true
			}
		case "low_comment_density":
			if !seen["low_comment_density"] {
				out = append(out, "Document non-obvious invariants in generated modules.")
				seen["low_comment_density"] = true
			}
		case "missing_module":
			if !seen["missing_module"] {
				out = append(out, "Re-run code generation for the modules missing from the artifact store.")
				seen["missing_module"] = true
			}
		case "empty_module":
			if !seen["empty_module"] {
				out = append(out, "Re-run code generation for modules that produced an empty source body.")
				seen["empty_module"] = true
			}
		}
	}
	return out
}
