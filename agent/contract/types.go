// Package contract defines the shared data model for the firmware
// generation pipeline: specifications, runs, artifacts, and the
// capability matrix that governs access to them.
package contract

import "time"

// ModuleKind enumerates the hardware module categories a Specification
// may request.
type ModuleKind string

const (
	ModuleUART     ModuleKind = "uart"
	ModuleI2C      ModuleKind = "i2c"
	ModuleSPI      ModuleKind = "spi"
	ModuleCAN      ModuleKind = "can"
	ModuleEthernet ModuleKind = "ethernet"
	ModuleWatchdog ModuleKind = "watchdog"
	ModuleEEPROM   ModuleKind = "eeprom"
	ModuleADC      ModuleKind = "adc"
	ModulePWM      ModuleKind = "pwm"
	ModuleSensor   ModuleKind = "sensor"
	ModuleMotor    ModuleKind = "motor"
	ModuleFlash    ModuleKind = "flash"
	ModuleOther    ModuleKind = "other"
)

var validModuleKinds = map[ModuleKind]bool{
	ModuleUART: true, ModuleI2C: true, ModuleSPI: true, ModuleCAN: true,
	ModuleEthernet: true, ModuleWatchdog: true, ModuleEEPROM: true,
	ModuleADC: true, ModulePWM: true, ModuleSensor: true, ModuleMotor: true,
	ModuleFlash: true, ModuleOther: true,
}

// IsValidModuleKind reports whether kind is one of the recognized module types.
func IsValidModuleKind(kind ModuleKind) bool {
	return validModuleKinds[kind]
}

// OptimizationGoal enumerates the code-generation optimization targets.
type OptimizationGoal string

const (
	OptimizationBalanced   OptimizationGoal = "balanced"
	OptimizationPerformance OptimizationGoal = "performance"
	OptimizationSize        OptimizationGoal = "size"
	OptimizationPower       OptimizationGoal = "power"
)

// ModelProvider selects the language-model backend variant.
type ModelProvider string

const (
	ModelProviderMock ModelProvider = "mock"
	ModelProviderReal ModelProvider = "real"
)

// Module describes a single hardware module requested by a Specification.
type Module struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Type         ModuleKind     `json:"type"`
	Description  string         `json:"description,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Requirements []string       `json:"requirements,omitempty"`
}

// Specification is the immutable input to a single run.
type Specification struct {
	ProjectName      string           `json:"project_name"`
	MCU              string           `json:"mcu"`
	Description      string           `json:"description"`
	Modules          []Module         `json:"modules"`
	Requirements     []string         `json:"requirements,omitempty"`
	Constraints      map[string]any   `json:"constraints,omitempty"`
	SafetyCritical   bool             `json:"safety_critical"`
	OptimizationGoal OptimizationGoal `json:"optimization_goal"`
	ArchitectureOnly bool             `json:"architecture_only"`
}

// GenerateOptions carries the caller-selectable behavior of a run
// beyond the specification itself.
type GenerateOptions struct {
	IncludeTests     bool          `json:"include_tests"`
	IncludeDocs      bool          `json:"include_docs"`
	RunQualityChecks bool          `json:"run_quality_checks"`
	ModelProvider    ModelProvider `json:"model_provider"`
	ModelName        string        `json:"model_name,omitempty"`
	APIKey           string        `json:"-"` // never persisted or logged
	ArchitectureOnly bool          `json:"architecture_only"`
}

// RunDescriptor identifies a single pipeline execution.
type RunDescriptor struct {
	RunID         string          `json:"run_id"`
	Specification Specification   `json:"specification"`
	Options       GenerateOptions `json:"options"`
	OutputDir     string          `json:"output_dir"`
}

// Status enumerates the lifecycle states of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RunState is the orchestrator's mutable view of a run's progress.
// It is single-writer (the orchestrator) and read via snapshots.
type RunState struct {
	RunID           string         `json:"run_id"`
	Status          Status         `json:"status"`
	Progress        int            `json:"progress"`
	CurrentStage    string         `json:"current_stage,omitempty"`
	Message         string         `json:"message,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ArtifactCounts  map[string]int `json:"artifact_counts,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
	Warnings        []string       `json:"warnings,omitempty"`
	OutputDir       string         `json:"output_dir"`
}

// Snapshot returns a deep-enough copy of the state safe to hand to a
// reader without risking a data race on the orchestrator's next write.
func (s RunState) Snapshot() RunState {
	cp := s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	cp.ArtifactCounts = make(map[string]int, len(s.ArtifactCounts))
	for k, v := range s.ArtifactCounts {
		cp.ArtifactCounts[k] = v
	}
	cp.Errors = append([]string(nil), s.Errors...)
	cp.Warnings = append([]string(nil), s.Warnings...)
	return cp
}

// ArtifactFormat enumerates how an artifact's bytes are structured on disk.
type ArtifactFormat string

const (
	FormatText      ArtifactFormat = "text"
	FormatJSON      ArtifactFormat = "json"
	FormatMultiFile ArtifactFormat = "multi-file"
)

// ArtifactMetadata is the sidecar record written next to every artifact.
type ArtifactMetadata struct {
	ArtifactID     string         `json:"artifact_id"`
	AgentID        string         `json:"agent_id"`
	ArtifactType   string         `json:"artifact_type"`
	ModuleID       string         `json:"module_id,omitempty"`
	PromptVersion  string         `json:"prompt_version"`
	Timestamp      string         `json:"timestamp"`
	ArtifactFormat ArtifactFormat `json:"artifact_format"`
	SubArtifacts   []string       `json:"sub_artifacts,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// ArtifactRef is what a write operation hands back to its caller: the
// stable path plus the metadata that was persisted alongside it.
type ArtifactRef struct {
	Path     string
	Metadata ArtifactMetadata
}

// Severity enumerates issue severities in a quality report.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// MetricStatus enumerates a pass/warning/fail verdict for one metric.
type MetricStatus string

const (
	MetricPass    MetricStatus = "pass"
	MetricWarning MetricStatus = "warning"
	MetricFail    MetricStatus = "fail"
)

// Metric is one measured value in a quality report.
type Metric struct {
	Value  float64      `json:"value"`
	Unit   string       `json:"unit,omitempty"`
	Target float64      `json:"target,omitempty"`
	Status MetricStatus `json:"status"`
}

// Issue is one flagged problem in a quality report.
type Issue struct {
	Severity Severity `json:"severity"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Location string   `json:"location,omitempty"`
}

// AnalysisSummary rolls up counts referenced by a quality report.
type AnalysisSummary struct {
	ModulesAnalyzed     int    `json:"modules_analyzed"`
	TestFilesFound      int    `json:"test_files_found"`
	TotalLines          int    `json:"total_lines"`
	LLMAnalysisExcerpt  string `json:"llm_analysis_excerpt,omitempty"`
}

// QualityReport is the JSON shape written by the quality agent.
type QualityReport struct {
	OverallScore    int             `json:"overall_score"`
	ReportType      string          `json:"report_type"`
	Timestamp       string          `json:"timestamp"`
	Metrics         map[string]Metric `json:"metrics"`
	AnalysisSummary AnalysisSummary `json:"analysis_summary"`
	Issues          []Issue         `json:"issues"`
	Recommendations []string        `json:"recommendations"`
}

// ModuleBuildEntry describes one module's generated files in a build log.
type ModuleBuildEntry struct {
	Header     string `json:"header,omitempty"`
	Source     string `json:"source,omitempty"`
	HeaderSize int64  `json:"header_size,omitempty"`
	SourceSize int64  `json:"source_size,omitempty"`
}

// UnitTestSummary reports pass/fail counts when test discovery ran.
type UnitTestSummary struct {
	Status  string `json:"status"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
}

// BuildLog is the JSON shape written by the build agent.
type BuildLog struct {
	BuildType            string                      `json:"build_type"`
	CompilationStatus    string                      `json:"compilation_status"`
	Compiler             *string                     `json:"compiler"`
	TotalModules         int                         `json:"total_modules"`
	ModulesCompiled      int                         `json:"modules_compiled"`
	CompilationDetails   map[string]any              `json:"compilation_details,omitempty"`
	Modules              map[string]ModuleBuildEntry `json:"modules"`
	UnitTests            *UnitTestSummary            `json:"unit_tests,omitempty"`
	Notes                []string                    `json:"notes"`
}
