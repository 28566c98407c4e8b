package contract

import "context"

// MCP is the governance interface: every artifact read, write, and
// agent invocation is checked against it before it happens.
type MCP interface {
	CheckRun(agentID string) error
	CheckRead(agentID, artifactType string) error
	CheckWrite(agentID, artifactType string) error
}

// ArtifactInfo describes one stored artifact for listing purposes.
type ArtifactInfo struct {
	Category   string `json:"category"`
	FilePath   string `json:"file_path"`
	FileName   string `json:"file_name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"updated_at"`
}

// Store persists and retrieves typed artifacts for a run.
type Store interface {
	WriteArtifact(run RunDescriptor, agentID, artifactType string, content []byte, moduleID string, promptVersion string, extra map[string]any, extension string) (ArtifactRef, error)
	WriteModularCode(run RunDescriptor, agentID, moduleID string, header, source []byte, promptVersion string, extra map[string]any) (headerRef, sourceRef, sidecarRef ArtifactRef, err error)
	WriteJSONArtifact(run RunDescriptor, agentID, artifactType string, data any, promptVersion string, extra map[string]any) (ArtifactRef, error)
	ReadArtifact(run RunDescriptor, relativePath string) ([]byte, error)
	ReadArtifactAs(run RunDescriptor, agentID, artifactType, relativePath string) ([]byte, error)
	ListArtifacts(run RunDescriptor) ([]ArtifactInfo, error)
	StatArtifact(run RunDescriptor, relativePath string) (size int64, exists bool, err error)
}

// RetrievalEngine returns scored document context for a query.
type RetrievalEngine interface {
	Query(query string, topK int, moduleType string) []string
	QueryByDomain(domain string, topK int) []string
	QueryByStandard(standard string, topK int) []string
	Documents() []RetrievalDocumentSummary
}

// RetrievalDocumentSummary is the shape exposed by GET /api/docs/rag.
type RetrievalDocumentSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Domain  string `json:"category"`
}

// LMClient is the abstract text-completion endpoint. Both the mock and
// real variants must be safe for concurrent use.
type LMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PromptLoader resolves a versioned prompt template and performs
// placeholder substitution.
type PromptLoader interface {
	Compose(agentName string, fields map[string]string) (string, error)
}

// RunContext bundles the collaborators every agent needs. It replaces
// the source's module-level singletons with an explicit, injected
// record passed into every agent invocation.
type RunContext struct {
	Run         RunDescriptor
	MCP         MCP
	Store       Store
	Retrieval   RetrievalEngine
	LM          LMClient
	Prompts     PromptLoader
	HasCompiler bool
}

// AgentResult is the outcome of one agent invocation.
type AgentResult struct {
	Success      bool
	ArtifactPath string
	Message      string
	Metadata     map[string]any
}

// Agent is a single pipeline stage: it reads named upstream artifacts,
// queries retrieval, renders a prompt, calls the LM, and writes one or
// more typed artifacts. inputs is agent-specific: a single Module for
// the code and test agents, nil for the others, which read the
// specification from RunContext.Run.
type Agent interface {
	AgentID() string
	Execute(ctx context.Context, rc *RunContext, inputs any) (AgentResult, error)
}
