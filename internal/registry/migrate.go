package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Algiras/skillz/internal/logging"
)

// legacyToolConfig mirrors the exact shape of one entry in a legacy flat
// manifest.json (serialized with serde's lowercase tool_type rename).
type legacyToolConfig struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ToolType    string          `json:"tool_type"`
	WasmPath    string          `json:"wasm_path"`
	ScriptPath  string          `json:"script_path"`
	Interpreter *string         `json:"interpreter"`
	Schema      json.RawMessage `json:"schema"`
}

// migrateLegacyManifest rewrites a legacy single-file
// <tools_dir>/manifest.json into the per-directory layout, moving
// referenced payload files into their new homes and archiving the old
// manifest. Idempotent: does nothing once the legacy file has been
// archived.
func (r *Registry) migrateLegacyManifest() error {
	legacyPath := filepath.Join(r.toolsDir, "manifest.json")
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read legacy manifest: %w", err)
	}

	var legacy map[string]legacyToolConfig
	if err := json.Unmarshal(data, &legacy); err != nil {
		logging.Add("WARN", fmt.Sprintf("registry: legacy manifest.json is not a tool map, leaving untouched: %v", err))
		return nil
	}

	for name, cfg := range legacy {
		if err := r.migrateLegacyTool(name, cfg); err != nil {
			logging.Add("WARN", fmt.Sprintf("registry: failed to migrate legacy tool %q: %v", name, err))
			continue
		}
	}

	archivePath := legacyPath + ".bak"
	if err := os.Rename(legacyPath, archivePath); err != nil {
		return fmt.Errorf("archive legacy manifest: %w", err)
	}
	logging.Add("INFO", fmt.Sprintf("registry: migrated %d legacy tools, archived manifest at %s", len(legacy), archivePath))
	return nil
}

func (r *Registry) migrateLegacyTool(name string, cfg legacyToolConfig) error {
	toolDir := filepath.Join(r.toolsDir, name)
	if dirExists(toolDir) {
		return nil // already migrated or a newer tool of the same name exists
	}
	if err := os.MkdirAll(toolDir, 0755); err != nil {
		return err
	}

	m := Manifest{
		Name:        name,
		Version:     "1.0.0",
		Description: cfg.Description,
		ToolType:    ToolType(cfg.ToolType),
		Interpreter: cfg.Interpreter,
		InputSchema: cfg.Schema,
	}
	if m.ToolType == "" {
		m.ToolType = ToolWasm // original implementation's serde default
	}

	switch m.ToolType {
	case ToolWasm:
		if cfg.WasmPath != "" {
			src := filepath.Join(r.toolsDir, cfg.WasmPath)
			if err := copyFile(src, filepath.Join(toolDir, name+".wasm")); err != nil {
				return fmt.Errorf("copy wasm payload: %w", err)
			}
		}
	case ToolScript:
		if cfg.ScriptPath != "" {
			m.EntryFile = filepath.Base(cfg.ScriptPath)
			src := filepath.Join(r.toolsDir, cfg.ScriptPath)
			if err := copyFile(src, filepath.Join(toolDir, m.EntryFile)); err != nil {
				return fmt.Errorf("copy script payload: %w", err)
			}
			os.Chmod(filepath.Join(toolDir, m.EntryFile), 0755)
		}
	}

	return writeManifestAtomic(toolDir, m)
}
