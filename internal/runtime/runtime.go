// Package runtime is the Runtime Facade: the single entry
// point that takes a tool name and argument value, dispatches to the
// matching executor by tool_type, and wires up the broker handlers each
// executor needs (memory, resources, and reentrant tool calls for
// pipelines and a script tool's own tools/call broker requests).
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Algiras/skillz/internal/config"
	"github.com/Algiras/skillz/internal/logging"
	"github.com/Algiras/skillz/internal/memory"
	"github.com/Algiras/skillz/internal/pipeline"
	"github.com/Algiras/skillz/internal/registry"
	"github.com/Algiras/skillz/internal/scriptexec"
	"github.com/Algiras/skillz/internal/skillzerr"
	"github.com/Algiras/skillz/internal/wasmexec"
)

// HandlerBundle is the set of callbacks a host installs to answer
// capabilities the default in-process behavior cannot provide on its own:
// elicitation and sampling have no built-in implementation at all, and
// resource listing/reading, tool dispatch, and streaming can be
// overridden by a host embedding the Facade in something larger than this
// CLI. Every field is optional; a nil field falls back to the Facade's
// own default (or, for Elicitation/Sampling, to "not supported").
type HandlerBundle struct {
	Log          func(level, message string)
	Progress     func(current, total float64, message string)
	Elicitation  func(params json.RawMessage) (action string, content interface{}, err error)
	Sampling     func(params json.RawMessage) (result interface{}, err error)
	ResourceList func() ([]scriptexec.Resource, error)
	ResourceRead func(uri string) (mimeType, text string, err error)
	ToolCall     func(ctx context.Context, name string, args interface{}) (interface{}, error)
	Stream       func(event string, payload interface{}) error
}

// Facade wires the Registry and the three executors together into one
// callable surface for the meta-tool layer above it.
type Facade struct {
	Registry *registry.Registry
	Memory   *memory.Store
	Settings config.Settings
	wasm     *wasmexec.Executor
	handlers HandlerBundle
}

// Option configures a Facade at construction time.
type Option func(*Facade)

// WithHandlers installs a complete handler bundle, overriding every
// field it sets and leaving the Facade's own defaults in place for the
// rest.
func WithHandlers(bundle HandlerBundle) Option {
	return func(f *Facade) { f.handlers = bundle }
}

// WithElicitationHandler installs the callback answering brokered
// elicitation/create requests, without which they always fail with
// "elicitation not supported".
func WithElicitationHandler(h func(params json.RawMessage) (string, interface{}, error)) Option {
	return func(f *Facade) { f.handlers.Elicitation = h }
}

// WithSamplingHandler installs the callback answering brokered
// sampling/createMessage requests, without which they always fail with
// "sampling not supported".
func WithSamplingHandler(h func(params json.RawMessage) (interface{}, error)) Option {
	return func(f *Facade) { f.handlers.Sampling = h }
}

// WithStreamHandler stores a callback for out-of-band streaming events.
// The Facade keeps it in its handler bundle, but no brokered request
// method invokes it, so it receives no events from a running tool.
func WithStreamHandler(h func(event string, payload interface{}) error) Option {
	return func(f *Facade) { f.handlers.Stream = h }
}

// WithResourceListHandler overrides the Facade's built-in
// guide/examples/protocol-plus-tools resource listing.
func WithResourceListHandler(h func() ([]scriptexec.Resource, error)) Option {
	return func(f *Facade) { f.handlers.ResourceList = h }
}

// WithResourceReadHandler overrides the Facade's built-in resource
// reader.
func WithResourceReadHandler(h func(uri string) (string, string, error)) Option {
	return func(f *Facade) { f.handlers.ResourceRead = h }
}

// WithToolCallHandler overrides how a brokered tools/call request (or a
// pipeline step) dispatches to another tool. Rarely needed outside of
// tests; the default calls back into this same Facade.
func WithToolCallHandler(h func(ctx context.Context, name string, args interface{}) (interface{}, error)) Option {
	return func(f *Facade) { f.handlers.ToolCall = h }
}

// New builds a Facade over an already-open registry and memory store,
// applying any options in order.
func New(reg *registry.Registry, mem *memory.Store, settings config.Settings, wasm *wasmexec.Executor, opts ...Option) *Facade {
	f := &Facade{Registry: reg, Memory: mem, Settings: settings, wasm: wasm}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// normalizeName folds hyphen/underscore variants together so both
// spellings of a tool name resolve to the same record.
func normalizeName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Call runs tool name with args, dispatching by its manifest's tool_type.
func (f *Facade) Call(ctx context.Context, name string, args interface{}) (interface{}, error) {
	rec, ok := f.Registry.Get(name)
	if !ok {
		if normalized, okNorm := f.findNormalized(name); okNorm {
			rec = normalized
		} else {
			return nil, skillzerr.New(skillzerr.NotFound, "tool %q not found", name).WithTool(name)
		}
	}

	switch rec.Manifest.ToolType {
	case registry.ToolWasm:
		return f.callWasm(ctx, rec, args)
	case registry.ToolScript:
		return f.callScript(ctx, rec, args)
	case registry.ToolPipeline:
		return f.callPipeline(ctx, rec, args)
	default:
		return nil, skillzerr.New(skillzerr.ValidationFailed, "unknown tool_type %q", rec.Manifest.ToolType).WithTool(name)
	}
}

func (f *Facade) findNormalized(name string) (*registry.Record, bool) {
	target := normalizeName(name)
	for _, rec := range f.Registry.List() {
		if normalizeName(rec.Manifest.Name) == target {
			return rec, true
		}
	}
	return nil, false
}

func (f *Facade) callWasm(ctx context.Context, rec *registry.Record, args interface{}) (interface{}, error) {
	data, err := os.ReadFile(rec.WasmPath)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "read wasm payload").WithTool(rec.Manifest.Name)
	}

	var stdin []byte
	if args != nil {
		stdin, err = json.Marshal(args)
		if err != nil {
			return nil, skillzerr.Wrap(skillzerr.ValidationFailed, err, "marshal arguments").WithTool(rec.Manifest.Name)
		}
	}

	out, err := f.wasm.Run(ctx, data, stdin)
	if err != nil {
		if se, ok := err.(*skillzerr.Error); ok {
			return nil, se.WithTool(rec.Manifest.Name)
		}
		return nil, err
	}

	if out == "" {
		return nil, nil
	}
	var value interface{}
	if err := json.Unmarshal([]byte(out), &value); err != nil {
		// a module may legitimately print plain text instead of JSON
		return out, nil
	}
	return value, nil
}

func (f *Facade) callScript(ctx context.Context, rec *registry.Record, args interface{}) (interface{}, error) {
	roots := config.Roots(nil)
	cwd := rec.ToolDir
	if len(roots) > 0 {
		cwd = roots[0]
	}

	interpreter := ""
	if rec.Manifest.Interpreter != nil {
		interpreter = *rec.Manifest.Interpreter
	}

	result, err := scriptexec.Run(ctx, scriptexec.Invocation{
		ToolName:         rec.Manifest.Name,
		Interpreter:      interpreter,
		EntryPath:        rec.ScriptPath,
		EnvPath:          rec.EnvPath,
		Sandbox:          f.Settings.Sandbox,
		AllowNetwork:     f.Settings.SandboxNetwork,
		Roots:            roots,
		WorkingDirectory: cwd,
		ToolsDir:         f.Registry.ToolsDir(),
		Environment:      config.SafeEnvironment(),
		Capabilities: scriptexec.Capabilities{
			Memory:    f.Memory != nil,
			Resources: true,
		},
		Arguments: args,
		Deadline:  f.Settings.DefaultDeadline,
		Handlers:  f.handlersFor(ctx, rec),
	})
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

func (f *Facade) callPipeline(ctx context.Context, rec *registry.Record, args interface{}) (interface{}, error) {
	steps := make([]pipeline.Step, len(rec.Manifest.PipelineSteps))
	for i, s := range rec.Manifest.PipelineSteps {
		steps[i] = pipeline.Step{
			Name:            s.Name,
			Tool:            s.Tool,
			Args:            s.Args,
			ContinueOnError: s.ContinueOnError,
			Condition:       s.Condition,
		}
	}

	_, final, err := pipeline.Run(steps, args, func(toolName string, stepArgs interface{}) (interface{}, error) {
		return f.dispatchCall(ctx, toolName, stepArgs)
	})
	if err != nil {
		if se, ok := err.(*skillzerr.Error); ok {
			return nil, se.WithTool(rec.Manifest.Name)
		}
		return nil, err
	}
	return final, nil
}

// dispatchCall routes a reentrant tool call (from a pipeline step or a
// script's own tools/call broker request) through the host's ToolCall
// override if one is installed, falling back to this same Facade.
func (f *Facade) dispatchCall(ctx context.Context, name string, args interface{}) (interface{}, error) {
	if f.handlers.ToolCall != nil {
		return f.handlers.ToolCall(ctx, name, args)
	}
	return f.Call(ctx, name, args)
}

// handlersFor builds the broker handler bundle for a script invocation:
// memory operations against the shared store, the resource taxonomy, and
// a reentrant tools/call handler so a script can invoke another
// registered tool. Log, Progress, resource handling, and tool dispatch
// fall back to built-in defaults unless the host installed an override
// via the Facade's With* options; Elicitation and Sampling have no
// built-in implementation and stay nil (so the broker answers "not
// supported") unless the host installs one.
func (f *Facade) handlersFor(ctx context.Context, rec *registry.Record) scriptexec.Handlers {
	logFn := func(level, message string) {
		logging.Add(level, fmt.Sprintf("[%s] %s", rec.Manifest.Name, message))
	}
	if f.handlers.Log != nil {
		logFn = f.handlers.Log
	}

	progressFn := func(current, total float64, message string) {
		logging.Add("INFO", fmt.Sprintf("[%s] progress %.0f/%.0f: %s", rec.Manifest.Name, current, total, message))
	}
	if f.handlers.Progress != nil {
		progressFn = f.handlers.Progress
	}

	resourceList := func() ([]scriptexec.Resource, error) { return f.listResources(), nil }
	if f.handlers.ResourceList != nil {
		resourceList = f.handlers.ResourceList
	}

	resourceRead := f.readResource
	if f.handlers.ResourceRead != nil {
		resourceRead = f.handlers.ResourceRead
	}

	return scriptexec.Handlers{
		Log:                   logFn,
		Progress:              progressFn,
		ElicitationCreate:     f.handlers.Elicitation,
		SamplingCreateMessage: f.handlers.Sampling,
		MemoryGet: func(tool, key string) (interface{}, bool, error) {
			if f.Memory == nil {
				return nil, false, skillzerr.New(skillzerr.ValidationFailed, "memory not supported")
			}
			return f.Memory.Get(scopedTool(tool, rec.Manifest.Name), key)
		},
		MemorySet: func(tool, key string, value interface{}, ttlSecs int) error {
			if f.Memory == nil {
				return skillzerr.New(skillzerr.ValidationFailed, "memory not supported")
			}
			return f.Memory.Set(scopedTool(tool, rec.Manifest.Name), key, value, ttlSecs)
		},
		MemoryList: func(tool string) ([]string, error) {
			if f.Memory == nil {
				return nil, skillzerr.New(skillzerr.ValidationFailed, "memory not supported")
			}
			return f.Memory.ListKeys(scopedTool(tool, rec.Manifest.Name))
		},
		MemoryDelete: func(tool, key string) (bool, error) {
			if f.Memory == nil {
				return false, skillzerr.New(skillzerr.ValidationFailed, "memory not supported")
			}
			return f.Memory.Delete(scopedTool(tool, rec.Manifest.Name), key)
		},
		ResourcesList: resourceList,
		ResourcesRead: resourceRead,
		ToolsCall: func(toolName string, args interface{}) (interface{}, error) {
			return f.dispatchCall(ctx, toolName, args)
		},
	}
}

// scopedTool defaults an empty tool field in a brokered memory request to
// the calling tool's own name, so a tool never needs to repeat its own
// identity back to the broker.
func scopedTool(requested, callerName string) string {
	if requested == "" {
		return callerName
	}
	return requested
}

