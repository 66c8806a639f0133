package registry_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Algiras/skillz/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wasmPayload() []byte {
	return append([]byte{0x00, 0x61, 0x73, 0x6D}, []byte{0x01, 0x00, 0x00, 0x00}...)
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir, err := os.MkdirTemp("", "skillz-registry-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	reg, err := registry.New(dir)
	require.NoError(t, err)
	return reg
}

func TestRegister_CreateThenGet(t *testing.T) {
	reg := newRegistry(t)

	m := registry.Manifest{Name: "echo", ToolType: registry.ToolWasm, Description: "echoes hello"}
	rec, err := reg.Register(m, wasmPayload(), false)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", rec.Manifest.Version)

	got, ok := reg.Get("echo")
	require.True(t, ok)
	assert.Equal(t, rec.Manifest.Version, got.Manifest.Version)
	data, err := os.ReadFile(got.WasmPath)
	require.NoError(t, err)
	assert.Equal(t, wasmPayload(), data)
}

func TestRegister_OverwriteWithoutUpdateFails(t *testing.T) {
	reg := newRegistry(t)
	m := registry.Manifest{Name: "echo", ToolType: registry.ToolWasm}
	_, err := reg.Register(m, wasmPayload(), false)
	require.NoError(t, err)

	_, err = reg.Register(m, wasmPayload(), false)
	require.Error(t, err)
}

func TestRegister_UpdateBumpsPatchAndSnapshots(t *testing.T) {
	reg := newRegistry(t)
	m := registry.Manifest{Name: "echo", ToolType: registry.ToolWasm}
	first, err := reg.Register(m, wasmPayload(), false)
	require.NoError(t, err)

	second, err := reg.Register(m, wasmPayload(), true)
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", second.Manifest.Version)

	versions, current, err := reg.ListVersions("echo")
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", current)
	assert.Contains(t, versions, first.Manifest.Version)
	assert.Contains(t, versions, second.Manifest.Version)
}

func TestRollback_RestoresPriorVersion(t *testing.T) {
	reg := newRegistry(t)
	m := registry.Manifest{Name: "echo", ToolType: registry.ToolWasm}
	_, err := reg.Register(m, wasmPayload(), false)
	require.NoError(t, err)

	updated := append([]byte{}, wasmPayload()...)
	updated = append(updated, 0xFF)
	_, err = reg.Register(m, updated, true)
	require.NoError(t, err)

	rec, err := reg.Rollback("echo", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", rec.Manifest.Version)

	data, err := os.ReadFile(rec.WasmPath)
	require.NoError(t, err)
	assert.Equal(t, wasmPayload(), data)
}

func TestRollback_CurrentVersionIsNoOp(t *testing.T) {
	reg := newRegistry(t)
	m := registry.Manifest{Name: "echo", ToolType: registry.ToolWasm}
	rec, err := reg.Register(m, wasmPayload(), false)
	require.NoError(t, err)

	same, err := reg.Rollback("echo", rec.Manifest.Version)
	require.NoError(t, err)
	assert.Equal(t, rec.Manifest.Version, same.Manifest.Version)
}

func TestRegister_PipelineStepUnresolvedToolFails(t *testing.T) {
	reg := newRegistry(t)
	m := registry.Manifest{
		Name:     "pipe",
		ToolType: registry.ToolPipeline,
		PipelineSteps: []registry.PipelineStep{
			{Name: "first", Tool: "does-not-exist"},
		},
	}
	_, err := reg.Register(m, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestRegister_PipelineStepResolvesRegisteredTool(t *testing.T) {
	reg := newRegistry(t)
	_, err := reg.Register(registry.Manifest{Name: "echo", ToolType: registry.ToolWasm}, wasmPayload(), false)
	require.NoError(t, err)

	m := registry.Manifest{
		Name:     "pipe",
		ToolType: registry.ToolPipeline,
		PipelineSteps: []registry.PipelineStep{
			{Name: "first", Tool: "echo"},
		},
	}
	_, err = reg.Register(m, nil, false)
	require.NoError(t, err)
}

func TestDelete_ThenGetReturnsNotFound(t *testing.T) {
	reg := newRegistry(t)
	m := registry.Manifest{Name: "echo", ToolType: registry.ToolWasm}
	_, err := reg.Register(m, wasmPayload(), false)
	require.NoError(t, err)

	ok, err := reg.Delete("echo")
	require.NoError(t, err)
	assert.True(t, ok)

	_, found := reg.Get("echo")
	assert.False(t, found)
}

func TestDelete_AbsentToolReturnsFalseWithoutError(t *testing.T) {
	reg := newRegistry(t)
	ok, err := reg.Delete("does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadAll_SkipsInvalidManifestWithoutFailing(t *testing.T) {
	dir, err := os.MkdirTemp("", "skillz-registry-invalid-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	badDir := filepath.Join(dir, "broken")
	require.NoError(t, os.MkdirAll(badDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "manifest.json"), []byte("not json"), 0644))

	reg, err := registry.New(dir)
	require.NoError(t, err)
	assert.Empty(t, reg.List())
}

func TestMigrateLegacyManifest_RewritesToPerDirectoryLayout(t *testing.T) {
	dir, err := os.MkdirTemp("", "skillz-registry-migrate-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.wasm"), wasmPayload(), 0644))

	legacy := map[string]interface{}{
		"legacy_tool": map[string]interface{}{
			"name":        "legacy_tool",
			"description": "a pre-existing tool",
			"tool_type":   "wasm",
			"wasm_path":   "legacy.wasm",
			"script_path": "",
			"interpreter": nil,
			"schema":      json.RawMessage(`{}`),
		},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0644))

	reg, err := registry.New(dir)
	require.NoError(t, err)

	rec, ok := reg.Get("legacy_tool")
	require.True(t, ok)
	assert.Equal(t, registry.ToolWasm, rec.Manifest.ToolType)

	_, err = os.Stat(filepath.Join(dir, "manifest.json.bak"))
	require.NoError(t, err)
}
