package wasmexec_test

import (
	"context"
	"testing"

	"github.com/Algiras/skillz/internal/wasmexec"
	"github.com/stretchr/testify/require"
)

// TestNew_InstantiatesWasiRuntime only checks that New brings up a wazero
// runtime with WASI preview1 instantiated. No module is run here, so
// stdout capture is not exercised (no prebuilt binary is bundled).
func TestNew_InstantiatesWasiRuntime(t *testing.T) {
	ctx := context.Background()
	exec, err := wasmexec.New(ctx, 0)
	require.NoError(t, err)
	defer exec.Close(ctx)
}

func TestRun_RejectsNonWasmBytes(t *testing.T) {
	ctx := context.Background()
	exec, err := wasmexec.New(ctx, 0)
	require.NoError(t, err)
	defer exec.Close(ctx)

	_, err = exec.Run(ctx, []byte("not wasm"), nil)
	require.Error(t, err)
}
