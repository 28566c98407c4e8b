// Package store implements the typed artifact store: it persists
// agent outputs under output/runs/<run_id>/<category>/... with one
// metadata sidecar per artifact, atomic temp-file-then-rename writes,
// and the quality_report_latest.json pointer rule.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

// Store is a filesystem-backed contractx.Store. It authorizes every
// operation through the MCP before touching disk.
type Store struct {
	baseDir string
	mcp     contractx.MCP
	now     func() time.Time
}

var _ contractx.Store = (*Store)(nil)

// New constructs a Store rooted at baseDir (typically OUTPUT_DIR).
func New(baseDir string, mcp contractx.MCP) *Store {
	return &Store{baseDir: baseDir, mcp: mcp, now: time.Now}
}

func (s *Store) runDir(run contractx.RunDescriptor) string {
	return filepath.Join(s.baseDir, "runs", sanitizeSegment(run.RunID))
}

// sanitizeSegment strips path separators from an identifier so it can
// never be used to escape the run directory.
func sanitizeSegment(seg string) string {
	seg = strings.ReplaceAll(seg, "/", "_")
	seg = strings.ReplaceAll(seg, "\\", "_")
	seg = strings.ReplaceAll(seg, "..", "_")
	return seg
}

func newArtifactID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func timestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// artifactPath derives the stable, category-specific relative path for
// a generic write_artifact call, mirroring the layout table in
// spec.md §4.2.
func (s *Store) artifactPath(artifactType, moduleID, extension, agentID string, ts time.Time) string {
	switch artifactType {
	case "architecture":
		return filepath.Join("architecture", "architecture."+orDefault(extension, "md"))
	case "tests":
		mod := sanitizeSegment(moduleID)
		return filepath.Join("tests", mod, mod+"_test."+orDefault(extension, "c"))
	case "build_log":
		return filepath.Join("build_log", "build_log."+orDefault(extension, "json"))
	case "reports":
		name := fmt.Sprintf("%s_%s_%s.%s", timestamp(ts), agentID, newArtifactID(), orDefault(extension, "txt"))
		return filepath.Join("reports", name)
	default:
		name := fmt.Sprintf("%s_%s_%s.%s", timestamp(ts), agentID, newArtifactID(), orDefault(extension, "txt"))
		return filepath.Join(artifactType, name)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func sidecarPath(artifactRelPath string) string {
	return artifactRelPath + ".meta.json"
}

// writeAtomic writes content to relPath (under the run directory) via
// temp-file-plus-rename. If the destination already exists and
// overwrite is false, it fails: within a run the tree is append-only
// except the "latest" pointer.
func (s *Store) writeAtomic(run contractx.RunDescriptor, relPath string, content []byte, overwrite bool) error {
	full := filepath.Join(s.runDir(run), relPath)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory %s: %v", contractx.ErrIOFailure, dir, err)
	}

	if !overwrite {
		if _, err := os.Stat(full); err == nil {
			return fmt.Errorf("%w: artifact path collision: %s", contractx.ErrIOFailure, relPath)
		}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", contractx.ErrIOFailure, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %v", contractx.ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", contractx.ErrIOFailure, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename into place: %v", contractx.ErrIOFailure, err)
	}
	return nil
}

func canonicalJSON(v any) ([]byte, error) {
	// json.Marshal sorts map keys but keeps struct fields in declaration
	// order, so the value is round-tripped through a generic map to sort
	// every object's keys. MarshalIndent is avoided so the output carries
	// no trailing whitespace.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// WriteArtifact authorizes via MCP, computes the stable path, writes
// content atomically, then writes the sidecar. It returns the stable
// path relative to the run directory.
func (s *Store) WriteArtifact(run contractx.RunDescriptor, agentID, artifactType string, content []byte, moduleID string, promptVersion string, extra map[string]any, extension string) (contractx.ArtifactRef, error) {
	if err := s.mcp.CheckWrite(agentID, qualifiedType(artifactType, moduleID)); err != nil {
		return contractx.ArtifactRef{}, err
	}

	ts := s.now()
	relPath := s.artifactPath(artifactType, moduleID, extension, agentID, ts)
	if err := s.writeAtomic(run, relPath, content, false); err != nil {
		return contractx.ArtifactRef{}, err
	}

	meta := contractx.ArtifactMetadata{
		ArtifactID:     newArtifactID(),
		AgentID:        agentID,
		ArtifactType:   artifactType,
		ModuleID:       moduleID,
		PromptVersion:  promptVersion,
		Timestamp:      ts.UTC().Format(time.RFC3339Nano),
		ArtifactFormat: contractx.FormatText,
		Extra:          extra,
	}
	if err := s.writeSidecar(run, relPath, meta); err != nil {
		return contractx.ArtifactRef{}, err
	}

	if artifactType == "reports" && json.Valid(content) {
		s.tryWriteLatestPointer(run, content)
	}

	return contractx.ArtifactRef{Path: relPath, Metadata: meta}, nil
}

// tryWriteLatestPointer implements the "latest pointer" rule: failure
// here is logged but never fails the primary write.
func (s *Store) tryWriteLatestPointer(run contractx.RunDescriptor, content []byte) {
	if err := s.writeAtomic(run, filepath.Join("reports", "quality_report_latest.json"), content, true); err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("write quality_report_latest.json pointer")
	}
}

// WriteJSONArtifact serializes data as canonical JSON (sorted keys,
// UTF-8, no trailing whitespace) before delegating to WriteArtifact.
func (s *Store) WriteJSONArtifact(run contractx.RunDescriptor, agentID, artifactType string, data any, promptVersion string, extra map[string]any) (contractx.ArtifactRef, error) {
	body, err := canonicalJSON(data)
	if err != nil {
		return contractx.ArtifactRef{}, fmt.Errorf("%w: marshal json artifact: %v", contractx.ErrInternal, err)
	}
	ref, err := s.WriteArtifact(run, agentID, artifactType, body, "", promptVersion, extra, "json")
	if err != nil {
		return contractx.ArtifactRef{}, err
	}
	ref.Metadata.ArtifactFormat = contractx.FormatJSON
	return ref, nil
}

// WriteModularCode writes header (.h) and source (.c) files for one
// module plus a single shared sidecar listing both sub-artifacts.
func (s *Store) WriteModularCode(run contractx.RunDescriptor, agentID, moduleID string, header, source []byte, promptVersion string, extra map[string]any) (headerRef, sourceRef, sidecarRef contractx.ArtifactRef, err error) {
	if err = s.mcp.CheckWrite(agentID, qualifiedType("module_code", moduleID)); err != nil {
		return
	}

	mod := sanitizeSegment(moduleID)
	headerRel := filepath.Join("module_code", mod, mod+".h")
	sourceRel := filepath.Join("module_code", mod, mod+".c")

	if err = s.writeAtomic(run, headerRel, header, false); err != nil {
		return
	}
	if err = s.writeAtomic(run, sourceRel, source, false); err != nil {
		return
	}

	ts := s.now()
	meta := contractx.ArtifactMetadata{
		ArtifactID:     newArtifactID(),
		AgentID:        agentID,
		ArtifactType:   "module_code",
		ModuleID:       moduleID,
		PromptVersion:  promptVersion,
		Timestamp:      ts.UTC().Format(time.RFC3339Nano),
		ArtifactFormat: contractx.FormatMultiFile,
		SubArtifacts:   []string{headerRel, sourceRel},
		Extra:          extra,
	}
	sidecarRel := filepath.Join("module_code", mod, mod+".meta.json")
	if err = s.writeSidecarAt(run, sidecarRel, meta); err != nil {
		return
	}

	headerRef = contractx.ArtifactRef{Path: headerRel, Metadata: meta}
	sourceRef = contractx.ArtifactRef{Path: sourceRel, Metadata: meta}
	sidecarRef = contractx.ArtifactRef{Path: sidecarRel, Metadata: meta}
	return
}

func (s *Store) writeSidecar(run contractx.RunDescriptor, artifactRelPath string, meta contractx.ArtifactMetadata) error {
	return s.writeSidecarAt(run, sidecarPath(artifactRelPath), meta)
}

func (s *Store) writeSidecarAt(run contractx.RunDescriptor, sidecarRelPath string, meta contractx.ArtifactMetadata) error {
	body, err := canonicalJSON(meta)
	if err != nil {
		return fmt.Errorf("%w: marshal sidecar: %v", contractx.ErrInternal, err)
	}
	return s.writeAtomic(run, sidecarRelPath, body, false)
}

// ReadArtifact returns raw bytes for a previously written artifact.
// It performs no MCP check: it is used by the HTTP control plane to
// serve already-produced output to external callers, which is not an
// agent-to-agent pipeline read governed by the capability matrix.
// Agents reading upstream artifacts as pipeline inputs must use
// ReadArtifactAs instead.
func (s *Store) ReadArtifact(run contractx.RunDescriptor, relativePath string) ([]byte, error) {
	full := filepath.Join(s.runDir(run), filepath.Clean(relativePath))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("%w: read artifact %s: %v", contractx.ErrIOFailure, relativePath, err)
	}
	return data, nil
}

// ReadArtifactAs authorizes the read under agentID's own capabilities,
// used by agents reading upstream artifacts (e.g. the test agent
// reading module_code).
func (s *Store) ReadArtifactAs(run contractx.RunDescriptor, agentID, artifactType, relativePath string) ([]byte, error) {
	if err := s.mcp.CheckRead(agentID, artifactType); err != nil {
		return nil, err
	}
	full := filepath.Join(s.runDir(run), filepath.Clean(relativePath))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("%w: read artifact %s: %v", contractx.ErrIOFailure, relativePath, err)
	}
	return data, nil
}

// ListArtifacts enumerates stored artifacts across all categories,
// excluding metadata sidecars, grounded on backend_api/main.py's
// list_artifacts handler.
func (s *Store) ListArtifacts(run contractx.RunDescriptor) ([]contractx.ArtifactInfo, error) {
	root := s.runDir(run)
	var out []contractx.ArtifactInfo

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("%w: list run directory: %v", contractx.ErrIOFailure, err)
	}

	for _, categoryEntry := range entries {
		if !categoryEntry.IsDir() {
			continue
		}
		category := categoryEntry.Name()
		categoryDir := filepath.Join(root, category)
		err := filepath.Walk(categoryDir, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if info.IsDir() {
				return nil
			}
			if strings.HasSuffix(info.Name(), ".meta.json") {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			out = append(out, contractx.ArtifactInfo{
				Category:   category,
				FilePath:   filepath.ToSlash(rel),
				FileName:   info.Name(),
				Size:       info.Size(),
				ModifiedAt: info.ModTime().UTC().Format(time.RFC3339),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: walk category %s: %v", contractx.ErrIOFailure, category, err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ModifiedAt > out[j].ModifiedAt })
	return out, nil
}

// StatArtifact reports the size of a previously written artifact
// without requiring an MCP check; callers that need governance
// authorize the read through the MCP first (as the build agent does
// with CheckRead), then use this to avoid loading large files into
// memory just to size them.
func (s *Store) StatArtifact(run contractx.RunDescriptor, relativePath string) (int64, bool, error) {
	full := filepath.Join(s.runDir(run), filepath.Clean(relativePath))
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: stat artifact %s: %v", contractx.ErrIOFailure, relativePath, err)
	}
	return info.Size(), true, nil
}

func qualifiedType(artifactType, moduleID string) string {
	if moduleID == "" {
		return artifactType
	}
	return artifactType + ":" + sanitizeSegment(moduleID)
}
