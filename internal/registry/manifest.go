// Package registry owns the on-disk tool directory tree: manifests,
// versions, rollback, and the legacy single-manifest migration.
package registry

import "encoding/json"

// ToolType is the tagged variant the Runtime Facade dispatches on.
type ToolType string

const (
	ToolWasm     ToolType = "wasm"
	ToolScript   ToolType = "script"
	ToolPipeline ToolType = "pipeline"
)

// Annotations are optional behavioral hints on a tool.
type Annotations struct {
	ReadOnly    bool `json:"read_only,omitempty"`
	Destructive bool `json:"destructive,omitempty"`
	Idempotent  bool `json:"idempotent,omitempty"`
	OpenWorld   bool `json:"open_world,omitempty"`
}

// PipelineStep is one ordered element of a pipeline manifest.
type PipelineStep struct {
	Name            string          `json:"name,omitempty"`
	Tool            string          `json:"tool"`
	Args            json.RawMessage `json:"args,omitempty"`
	ContinueOnError bool            `json:"continue_on_error,omitempty"`
	Condition       string          `json:"condition,omitempty"`
}

// Manifest is the durable JSON description of one tool. Unknown
// fields are preserved on round-trip via Extra.
type Manifest struct {
	Name             string          `json:"name"`
	Version          string          `json:"version"`
	Description      string          `json:"description"`
	ToolType         ToolType        `json:"tool_type"`
	EntryFile        string          `json:"entry_file,omitempty"`
	Interpreter      *string         `json:"interpreter,omitempty"`
	InputSchema      json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema     json.RawMessage `json:"output_schema,omitempty"`
	Annotations      *Annotations    `json:"annotations,omitempty"`
	Dependencies     []string        `json:"dependencies,omitempty"`
	WasmDependencies []string        `json:"wasm_dependencies,omitempty"`
	PipelineSteps    []PipelineStep  `json:"pipeline_steps,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	Author           string          `json:"author,omitempty"`
	License          string          `json:"license,omitempty"`
	Repository       string          `json:"repository,omitempty"`
	CreatedAt        string          `json:"created_at,omitempty"`
	UpdatedAt        string          `json:"updated_at,omitempty"`

	// Extra holds any fields not recognized above, so round-tripping a
	// manifest we didn't author ourselves never drops data.
	Extra map[string]json.RawMessage `json:"-"`
}

// MarshalJSON merges Extra back in alongside the known fields.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type alias Manifest
	known, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures any field not part of the known schema into Extra.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type alias Manifest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = Manifest(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]bool{
		"name": true, "version": true, "description": true, "tool_type": true,
		"entry_file": true, "interpreter": true, "input_schema": true,
		"output_schema": true, "annotations": true, "dependencies": true,
		"wasm_dependencies": true, "pipeline_steps": true, "tags": true,
		"author": true, "license": true, "repository": true,
		"created_at": true, "updated_at": true,
	}
	extra := make(map[string]json.RawMessage)
	for k, v := range raw {
		if !known[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		m.Extra = extra
	}
	return nil
}

// Record is the in-memory tool record: manifest plus resolved paths and
// install state.
type Record struct {
	Manifest      Manifest
	ToolDir       string
	WasmPath      string
	ScriptPath    string
	EnvPath       string
	DepsInstalled bool
}
