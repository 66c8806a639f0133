// Package wasmexec runs a compiled WASM module in a capability-restricted
// WASI-preview1 sandbox (wazero runtime, compiled-module setup,
// instantiation-as-execution): no filesystem, no network, no args, no env
// by default, and a bounded stdout buffer that rejects on overflow
// instead of writing to an unbounded io.Writer.
package wasmexec

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/Algiras/skillz/internal/skillzerr"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// DefaultMaxOutput bounds the module's captured stdout (
// "bounded in-memory pipe, reject-on-overflow").
const DefaultMaxOutput = 10 * 1024 * 1024

// Executor runs compiled WASM modules. One Executor may run many
// invocations sequentially or concurrently; each Run call gets its own
// module instance.
type Executor struct {
	runtime   wazero.Runtime
	maxOutput int
}

// New builds an Executor with a fresh wazero runtime and the WASI
// preview1 host module instantiated, mirroring
// discovery.NewWASMWorker+wasi_snapshot_preview1.MustInstantiate.
func New(ctx context.Context, maxOutput int) (*Executor, error) {
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, skillzerr.Wrap(skillzerr.WasmInstantiation, err, "instantiate WASI preview1")
	}
	return &Executor{runtime: rt, maxOutput: maxOutput}, nil
}

// Close tears down the wazero runtime.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// boundedBuffer rejects writes once it would exceed its cap, instead of
// growing unbounded.
type boundedBuffer struct {
	buf        bytes.Buffer
	max        int
	overflowed bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len()+len(p) > b.max {
		b.overflowed = true
		return 0, skillzerr.New(skillzerr.OutputTooLarge, "stdout exceeded %d bytes", b.max)
	}
	return b.buf.Write(p)
}

// Run compiles and executes wasmBytes's `_start` function with the given
// argument value optionally materialized on stdin: arguments are passed
// by writing a JSON value on stdin; modules that don't read it simply
// ignore it. Stdout is captured bounded; stderr is passed through to the
// host's diagnostic stream.
func (e *Executor) Run(ctx context.Context, wasmBytes []byte, stdinJSON []byte) (string, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return "", skillzerr.Wrap(skillzerr.WasmInstantiation, err, "compile module")
	}
	defer compiled.Close(ctx)

	out := &boundedBuffer{max: e.maxOutput}
	var stdin io.Reader = bytes.NewReader(nil)
	if len(stdinJSON) > 0 {
		stdin = bytes.NewReader(stdinJSON)
	}

	cfg := wazero.NewModuleConfig().
		WithStdin(stdin).
		WithStdout(out).
		WithStderr(os.Stderr)

	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	// WASI reports a failed stdout write to the module as an errno, so the
	// overflow is detected from the buffer rather than from err.
	if out.overflowed {
		return "", skillzerr.New(skillzerr.OutputTooLarge, "stdout exceeded %d bytes", e.maxOutput)
	}
	if err != nil {
		if oerr, ok := asOutputTooLarge(err); ok {
			return "", oerr
		}
		return "", skillzerr.Wrap(skillzerr.WasmTrap, err, "module trapped")
	}

	return out.buf.String(), nil
}

func asOutputTooLarge(err error) (*skillzerr.Error, bool) {
	se, ok := err.(*skillzerr.Error)
	if ok && se.Kind == skillzerr.OutputTooLarge {
		return se, true
	}
	return nil, false
}
