package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Algiras/skillz/internal/skillzerr"
)

// ImportSourceKind tags which remote a parsed import source refers to.
type ImportSourceKind string

const (
	ImportGit  ImportSourceKind = "git"
	ImportGist ImportSourceKind = "gist"
)

// ImportSource is a parsed import target: a git remote (with an optional
// branch) or a GitHub Gist ID.
type ImportSource struct {
	Kind   ImportSourceKind
	URL    string
	Branch string
	GistID string
}

// ParseImportSource recognizes the same source string shapes as the
// original importer: a "gist:ID" prefix or a gist.github.com URL names a
// Gist; a trailing ".git", a "git@" SSH remote, or a github.com/gitlab.com/
// bitbucket.org host names a git remote, optionally suffixed with
// "#branch". A bare zip/tar download URL is not supported.
func ParseImportSource(source string) (ImportSource, error) {
	source = strings.TrimSpace(source)

	if id, ok := strings.CutPrefix(source, "gist:"); ok {
		id = strings.TrimSpace(id)
		if id == "" {
			return ImportSource{}, skillzerr.New(skillzerr.ValidationFailed, "gist source has an empty id")
		}
		return ImportSource{Kind: ImportGist, GistID: id}, nil
	}

	if strings.Contains(source, "gist.github.com") {
		trimmed := strings.TrimSuffix(source, "/")
		parts := strings.Split(trimmed, "/")
		id := parts[len(parts)-1]
		if id != "" {
			return ImportSource{Kind: ImportGist, GistID: id}, nil
		}
	}

	if strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://github.com") ||
		strings.HasPrefix(source, "https://gitlab.com") ||
		strings.HasPrefix(source, "https://bitbucket.org") {
		if url, branch, ok := strings.Cut(source, "#"); ok {
			return ImportSource{Kind: ImportGit, URL: url, Branch: branch}, nil
		}
		return ImportSource{Kind: ImportGit, URL: source}, nil
	}

	return ImportSource{}, skillzerr.New(skillzerr.ValidationFailed,
		"unrecognized import source %q: expected a git URL, gist:ID, or gist.github.com URL", source)
}

// Import parses source and dispatches to the matching git/gist importer.
func (r *Registry) Import(ctx context.Context, source string, overwrite bool) (*Record, error) {
	parsed, err := ParseImportSource(source)
	if err != nil {
		return nil, err
	}
	switch parsed.Kind {
	case ImportGit:
		return r.ImportFromGit(ctx, parsed.URL, parsed.Branch, overwrite)
	case ImportGist:
		return r.ImportFromGist(ctx, parsed.GistID, overwrite)
	default:
		return nil, skillzerr.New(skillzerr.ValidationFailed, "unhandled import source kind %q", parsed.Kind)
	}
}

// ImportFromGit clones url at depth 1 (optionally pinned to branch),
// reads the manifest.json expected at the clone root, and registers the
// tool through Register so it gets the same validation and versioning as
// a locally-built one. Any files alongside the manifest other than .git
// are copied into the tool's directory as well, matching the clone's
// layout.
func (r *Registry) ImportFromGit(ctx context.Context, url, branch string, overwrite bool) (*Record, error) {
	tmpDir, err := os.MkdirTemp("", "skillz-import-git-*")
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "create temp clone directory")
	}
	defer os.RemoveAll(tmpDir)

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, tmpDir)

	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.SpawnFailed, err, "git clone failed: %s", strings.TrimSpace(string(out)))
	}

	m, err := readManifestFile(filepath.Join(tmpDir, "manifest.json"))
	if err != nil {
		return nil, err
	}

	payload, err := readPayloadFile(tmpDir, m)
	if err != nil {
		return nil, err
	}

	rec, err := r.Register(m, payload, overwrite)
	if err != nil {
		return nil, err
	}

	if err := copyTree(tmpDir, rec.ToolDir, func(name string) bool {
		return name == ".git" || name == "manifest.json"
	}); err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "copy imported files").WithTool(m.Name)
	}
	return rec, nil
}

// gistFile mirrors the subset of a GitHub Gist API file entry this
// importer reads.
type gistFile struct {
	Content string `json:"content"`
}

// gistResponse mirrors the subset of the GitHub Gist API response this
// importer reads.
type gistResponse struct {
	Message string              `json:"message"`
	Files   map[string]gistFile `json:"files"`
}

// ImportFromGist fetches a public Gist's file listing from the GitHub
// API, requires a manifest.json entry among its files, and registers the
// tool the same way ImportFromGit does. Every other file in the gist is
// written alongside it in the tool's directory.
func (r *Registry) ImportFromGist(ctx context.Context, gistID string, overwrite bool) (*Record, error) {
	apiURL := fmt.Sprintf("https://api.github.com/gists/%s", gistID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.SpawnFailed, err, "build gist request")
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.SpawnFailed, err, "fetch gist %s", gistID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.SpawnFailed, err, "read gist response")
	}

	var gist gistResponse
	if err := json.Unmarshal(body, &gist); err != nil {
		return nil, skillzerr.Wrap(skillzerr.ValidationFailed, err, "parse gist response")
	}
	if gist.Message != "" {
		return nil, skillzerr.New(skillzerr.SpawnFailed, "GitHub API error: %s", gist.Message)
	}

	manifestFile, ok := gist.Files["manifest.json"]
	if !ok {
		return nil, skillzerr.New(skillzerr.ValidationFailed, "gist %s has no manifest.json file", gistID)
	}

	var m Manifest
	if err := json.Unmarshal([]byte(manifestFile.Content), &m); err != nil {
		return nil, skillzerr.Wrap(skillzerr.ValidationFailed, err, "parse manifest.json from gist %s", gistID)
	}

	payload, err := payloadFromGist(gist, m)
	if err != nil {
		return nil, err
	}

	rec, err := r.Register(m, payload, overwrite)
	if err != nil {
		return nil, err
	}

	for name, file := range gist.Files {
		if name == "manifest.json" {
			continue
		}
		mode := os.FileMode(0644)
		if strings.HasSuffix(name, ".py") || strings.HasSuffix(name, ".sh") || strings.HasSuffix(name, ".rb") {
			mode = 0755
		}
		if err := os.WriteFile(filepath.Join(rec.ToolDir, name), []byte(file.Content), mode); err != nil {
			return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "write gist file %s", name).WithTool(m.Name)
		}
	}
	return rec, nil
}

func readManifestFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, skillzerr.New(skillzerr.ValidationFailed, "no manifest.json found at repository root")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, skillzerr.Wrap(skillzerr.ValidationFailed, err, "parse manifest.json")
	}
	return m, nil
}

// readPayloadFile locates the payload a tool_type needs directly in dir,
// since a freshly cloned tree has it sitting alongside manifest.json
// rather than already split apart by the registry's own layout.
func readPayloadFile(dir string, m Manifest) ([]byte, error) {
	switch m.ToolType {
	case ToolWasm:
		path := filepath.Join(dir, m.Name+".wasm")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, skillzerr.Wrap(skillzerr.ValidationFailed, err, "read %s.wasm from cloned repository", m.Name).WithTool(m.Name)
		}
		return data, nil
	case ToolScript:
		if m.EntryFile == "" {
			return nil, skillzerr.New(skillzerr.ValidationFailed, "script tool requires entry_file").WithTool(m.Name)
		}
		data, err := os.ReadFile(filepath.Join(dir, m.EntryFile))
		if err != nil {
			return nil, skillzerr.Wrap(skillzerr.ValidationFailed, err, "read entry_file %s from cloned repository", m.EntryFile).WithTool(m.Name)
		}
		return data, nil
	case ToolPipeline:
		return nil, nil
	}
	return nil, skillzerr.New(skillzerr.ValidationFailed, "unknown tool_type %q", m.ToolType).WithTool(m.Name)
}

func payloadFromGist(gist gistResponse, m Manifest) ([]byte, error) {
	switch m.ToolType {
	case ToolWasm:
		file, ok := gist.Files[m.Name+".wasm"]
		if !ok {
			return nil, skillzerr.New(skillzerr.ValidationFailed, "gist has no %s.wasm file", m.Name).WithTool(m.Name)
		}
		return []byte(file.Content), nil
	case ToolScript:
		if m.EntryFile == "" {
			return nil, skillzerr.New(skillzerr.ValidationFailed, "script tool requires entry_file").WithTool(m.Name)
		}
		file, ok := gist.Files[m.EntryFile]
		if !ok {
			return nil, skillzerr.New(skillzerr.ValidationFailed, "gist has no entry_file %s", m.EntryFile).WithTool(m.Name)
		}
		return []byte(file.Content), nil
	case ToolPipeline:
		return nil, nil
	}
	return nil, skillzerr.New(skillzerr.ValidationFailed, "unknown tool_type %q", m.ToolType).WithTool(m.Name)
}
