package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Algiras/skillz/internal/logging"
	"github.com/Algiras/skillz/internal/skillzerr"
)

// wasmMagic is the four leading bytes every valid WASM binary must begin
// with.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D}

// reservedBuiltins holds pipeline step tool names that bypass registered-tool
// resolution. None are defined yet; every pipeline step must currently name
// an already-registered tool.
var reservedBuiltins = map[string]bool{}

// Registry is the single source of truth for which tools exist and where
// their files live: an RWMutex-guarded map over a writable, versioned,
// per-directory tool tree.
type Registry struct {
	mu        sync.RWMutex
	toolsDir  string
	records   map[string]*Record
}

// New constructs a Registry rooted at toolsDir, creating it if absent.
func New(toolsDir string) (*Registry, error) {
	if err := os.MkdirAll(toolsDir, 0755); err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "create tools directory")
	}
	r := &Registry{toolsDir: toolsDir, records: make(map[string]*Record)}
	if err := r.migrateLegacyManifest(); err != nil {
		return nil, err
	}
	if err := r.LoadAll(); err != nil {
		return nil, err
	}
	return r, nil
}

// ToolsDir returns the registry's root directory.
func (r *Registry) ToolsDir() string { return r.toolsDir }

// LoadAll scans the tools root and (re)builds the in-memory record table.
// Invalid manifests are logged and skipped, never fatal (
// "Failure semantics").
func (r *Registry) LoadAll() error {
	entries, err := os.ReadDir(r.toolsDir)
	if err != nil {
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "read tools directory")
	}

	records := make(map[string]*Record)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		toolDir := filepath.Join(r.toolsDir, entry.Name())
		manifestPath := filepath.Join(toolDir, "manifest.json")
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.Add("WARN", fmt.Sprintf("registry: skipping %s: %v", entry.Name(), err))
			}
			continue
		}

		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			logging.Add("WARN", fmt.Sprintf("registry: invalid manifest for %s: %v", entry.Name(), err))
			continue
		}
		if m.Name != entry.Name() {
			logging.Add("WARN", fmt.Sprintf("registry: manifest name %q does not match directory %q, skipping", m.Name, entry.Name()))
			continue
		}
		if res := Validate(m); !res.Valid {
			logging.Add("WARN", fmt.Sprintf("registry: manifest %s failed validation: %v", entry.Name(), res.Errors))
			continue
		}

		record, err := r.buildRecord(m, toolDir)
		if err != nil {
			logging.Add("WARN", fmt.Sprintf("registry: %s: %v", entry.Name(), err))
			continue
		}
		records[m.Name] = record
	}

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()
	return nil
}

// buildRecord validates the on-disk invariants for a given tool type and
// resolves absolute payload paths.
func (r *Registry) buildRecord(m Manifest, toolDir string) (*Record, error) {
	rec := &Record{Manifest: m, ToolDir: toolDir}

	switch m.ToolType {
	case ToolWasm:
		wasmPath := filepath.Join(toolDir, m.Name+".wasm")
		data, err := os.ReadFile(wasmPath)
		if err != nil {
			return nil, fmt.Errorf("wasm payload missing: %w", err)
		}
		if len(data) < 4 || !bytes.Equal(data[:4], wasmMagic) {
			return nil, fmt.Errorf("wasm payload does not begin with the WASM magic bytes")
		}
		rec.WasmPath = wasmPath
	case ToolScript:
		scriptPath := filepath.Join(toolDir, m.EntryFile)
		info, err := os.Stat(scriptPath)
		if err != nil {
			return nil, fmt.Errorf("script payload missing: %w", err)
		}
		if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
			return nil, fmt.Errorf("script payload is not executable")
		}
		rec.ScriptPath = scriptPath
		if envPath := filepath.Join(toolDir, "env"); dirExists(envPath) {
			rec.EnvPath = envPath
		}
	case ToolPipeline:
		// pipeline logic lives entirely in the manifest; no payload file.
	}

	return rec, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Get is an in-memory hash lookup.
func (r *Registry) Get(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// List returns a snapshot of all records.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

// Register creates or updates a tool. update must be true when
// the caller intends to overwrite an existing tool; registering over an
// existing tool without update set is an AlreadyExists error, and
// registering an update for a name that doesn't exist yet is a NotFound
// error.
func (r *Registry) Register(m Manifest, payload []byte, update bool) (*Record, error) {
	if res := Validate(m); !res.Valid {
		return nil, skillzerr.New(skillzerr.ValidationFailed, "invalid manifest: %v", res.Errors).WithTool(m.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.records[m.Name]
	if exists && !update {
		return nil, skillzerr.New(skillzerr.AlreadyExists, "tool %q already exists", m.Name).WithTool(m.Name)
	}
	if !exists && update {
		return nil, skillzerr.New(skillzerr.NotFound, "tool %q does not exist", m.Name).WithTool(m.Name)
	}

	if m.ToolType == ToolPipeline {
		for i, step := range m.PipelineSteps {
			if reservedBuiltins[step.Tool] {
				continue
			}
			if _, ok := r.records[step.Tool]; !ok {
				return nil, skillzerr.New(skillzerr.ValidationFailed,
					"pipeline_steps[%d].tool %q is not a registered tool", i, step.Tool).WithTool(m.Name)
			}
		}
	}

	toolDir := filepath.Join(r.toolsDir, m.Name)
	if err := os.MkdirAll(toolDir, 0755); err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "create tool directory").WithTool(m.Name)
	}

	if exists {
		if err := snapshotVersion(toolDir, existing.Manifest.Version); err != nil {
			return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "snapshot previous version").WithTool(m.Name)
		}
		m.Version = bumpPatch(existing.Manifest.Version)
	} else if m.Version == "" {
		m.Version = "1.0.0"
	}

	if err := writePayload(toolDir, m, payload); err != nil {
		return nil, err
	}
	if err := writeManifestAtomic(toolDir, m); err != nil {
		return nil, err
	}

	record, err := r.buildRecord(m, toolDir)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "build record after register").WithTool(m.Name)
	}
	r.records[m.Name] = record
	return record, nil
}

// writePayload dispatches the payload to the correct on-disk path by
// tool_type.
func writePayload(toolDir string, m Manifest, payload []byte) error {
	switch m.ToolType {
	case ToolWasm:
		if len(payload) < 4 || !bytes.Equal(payload[:4], wasmMagic) {
			return skillzerr.New(skillzerr.ValidationFailed, "payload does not begin with the WASM magic bytes").WithTool(m.Name)
		}
		return atomicWrite(filepath.Join(toolDir, m.Name+".wasm"), payload, 0644)
	case ToolScript:
		if m.EntryFile == "" {
			return skillzerr.New(skillzerr.ValidationFailed, "script tool requires entry_file").WithTool(m.Name)
		}
		mode := os.FileMode(0644)
		if runtime.GOOS != "windows" {
			mode = 0755
		}
		return atomicWrite(filepath.Join(toolDir, m.EntryFile), payload, mode)
	case ToolPipeline:
		return nil // logic lives entirely in the manifest
	}
	return skillzerr.New(skillzerr.ValidationFailed, "unknown tool_type %q", m.ToolType).WithTool(m.Name)
}

// atomicWrite writes to a temporary file in the same directory, fsyncs,
// then renames into place, so a failure at any step leaves prior state
// intact.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "close temp file")
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "rename temp file into place")
	}
	return nil
}

// writeManifestAtomic writes manifest.json last: a tool's payload and
// any auxiliary files must already be in place before the manifest that
// advertises it as installed appears.
func writeManifestAtomic(toolDir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "marshal manifest").WithTool(m.Name)
	}
	return atomicWrite(filepath.Join(toolDir, "manifest.json"), data, 0644)
}

// bumpPatch increments the PATCH component of a semver triple.
func bumpPatch(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) != 3 {
		return "1.0.0"
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return "1.0.0"
	}
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1)
}

// snapshotVersion copies toolDir's current live files into
// versions/<version>/ before they're overwritten.
func snapshotVersion(toolDir, version string) error {
	if version == "" {
		return nil
	}
	dest := filepath.Join(toolDir, "versions", version)
	if dirExists(dest) {
		return nil // already snapshotted; idempotent
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	return copyTree(toolDir, dest, func(name string) bool {
		return name == "versions" // never recurse into the versions directory itself
	})
}

func copyTree(src, dst string, skip func(name string) bool) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if skip(e.Name()) {
			continue
		}
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := os.MkdirAll(dstPath, 0755); err != nil {
				return err
			}
			if err := copyTree(srcPath, dstPath, func(string) bool { return false }); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// Delete removes the tool directory recursively and unloads it from
// memory.
func (r *Registry) Delete(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return false, nil
	}
	if err := os.RemoveAll(rec.ToolDir); err != nil {
		return false, skillzerr.Wrap(skillzerr.StorageFailure, err, "remove tool directory").WithTool(name)
	}
	delete(r.records, name)
	return true, nil
}

// Reload re-reads a single tool from disk.
func (r *Registry) Reload(name string) error {
	r.mu.RLock()
	toolDir := filepath.Join(r.toolsDir, name)
	r.mu.RUnlock()

	manifestPath := filepath.Join(toolDir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return skillzerr.Wrap(skillzerr.NotFound, err, "manifest not found").WithTool(name)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return skillzerr.Wrap(skillzerr.ValidationFailed, err, "invalid manifest").WithTool(name)
	}
	record, err := r.buildRecord(m, toolDir)
	if err != nil {
		return skillzerr.Wrap(skillzerr.ValidationFailed, err, "rebuild record").WithTool(name)
	}

	r.mu.Lock()
	r.records[name] = record
	r.mu.Unlock()
	return nil
}

// ReloadAll re-scans the entire tools tree from disk.
func (r *Registry) ReloadAll() error { return r.LoadAll() }

// ListVersions enumerates versions/ plus the current version, marking the
// live one.
func (r *Registry) ListVersions(name string) ([]string, string, error) {
	r.mu.RLock()
	rec, ok := r.records[name]
	r.mu.RUnlock()
	if !ok {
		return nil, "", skillzerr.New(skillzerr.NotFound, "tool %q not found", name).WithTool(name)
	}

	versionsDir := filepath.Join(rec.ToolDir, "versions")
	entries, err := os.ReadDir(versionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{rec.Manifest.Version}, rec.Manifest.Version, nil
		}
		return nil, "", skillzerr.Wrap(skillzerr.StorageFailure, err, "list versions").WithTool(name)
	}

	versions := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	versions = append(versions, rec.Manifest.Version)
	sort.Strings(versions)
	return versions, rec.Manifest.Version, nil
}

// Rollback backs up the current live state, then restores the named
// version on top, re-reading the restored manifest.
func (r *Registry) Rollback(name, version string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return nil, skillzerr.New(skillzerr.NotFound, "tool %q not found", name).WithTool(name)
	}

	if version == rec.Manifest.Version {
		return rec, nil // already at this version, nothing to restore
	}

	src := filepath.Join(rec.ToolDir, "versions", version)
	if !dirExists(src) {
		return nil, skillzerr.New(skillzerr.NotFound, "version %q not found for tool %q", version, name).WithTool(name)
	}

	if err := snapshotVersion(rec.ToolDir, rec.Manifest.Version); err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "snapshot current version before rollback").WithTool(name)
	}

	if err := restoreLiveFiles(rec.ToolDir, src); err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "restore version").WithTool(name)
	}

	manifestPath := filepath.Join(rec.ToolDir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "read restored manifest").WithTool(name)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, skillzerr.Wrap(skillzerr.ValidationFailed, err, "parse restored manifest").WithTool(name)
	}

	newRec, err := r.buildRecord(m, rec.ToolDir)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "rebuild record after rollback").WithTool(name)
	}
	r.records[name] = newRec
	return newRec, nil
}

// restoreLiveFiles overwrites toolDir's live files with src's contents,
// without touching toolDir/versions itself.
func restoreLiveFiles(toolDir, src string) error {
	entries, err := os.ReadDir(toolDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == "versions" {
			continue
		}
		path := filepath.Join(toolDir, e.Name())
		if e.IsDir() {
			if err := os.RemoveAll(path); err != nil {
				return err
			}
		} else {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return copyTree(src, toolDir, func(string) bool { return false })
}
