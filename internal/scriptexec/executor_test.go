package scriptexec_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Algiras/skillz/internal/config"
	"github.com/Algiras/skillz/internal/scriptexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFixture drops an executable shell "script tool" into dir and
// returns its path. Shell (rather than Python or Node) keeps the test
// runnable without an external interpreter installed in the build image.
func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

// TestRun_EchoesArguments spawns a fixture that reads the single
// top-level execute request from stdin and immediately replies with its
// arguments field as the result, covering a script tool that inspects and
// echoes its invocation.
func TestRun_EchoesArguments(t *testing.T) {
	dir := t.TempDir()
	script := writeFixture(t, dir, "echo.sh", `#!/bin/sh
read -r line
args=$(echo "$line" | sed -n 's/.*"arguments":\("[^"]*"\).*/\1/p')
printf '{"jsonrpc":"2.0","id":"execute","result":{"echoed":%s}}\n' "$args"
`)

	res, err := scriptexec.Run(context.Background(), scriptexec.Invocation{
		ToolName:         "echo-tool",
		Interpreter:      "sh",
		EntryPath:        script,
		Sandbox:          config.SandboxNone,
		WorkingDirectory: dir,
		Arguments:        "hello",
		Deadline:         5 * time.Second,
	})

	require.NoError(t, err)
	out, ok := res.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hello", out["echoed"])
}

// TestRun_MemoryRoundTrip exercises a brokered memory/set followed by the
// final response.
func TestRun_MemoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	script := writeFixture(t, dir, "remember.sh", `#!/bin/sh
read -r line
printf '{"jsonrpc":"2.0","id":"1","method":"memory/set","params":{"tool":"remember-tool","key":"count","value":1}}\n'
read -r reply
printf '{"jsonrpc":"2.0","id":"execute","result":{"stored":true}}\n'
`)

	var capturedKey string
	var capturedValue interface{}
	res, err := scriptexec.Run(context.Background(), scriptexec.Invocation{
		ToolName:         "remember-tool",
		Interpreter:      "sh",
		EntryPath:        script,
		Sandbox:          config.SandboxNone,
		WorkingDirectory: dir,
		Deadline:         5 * time.Second,
		Capabilities:     scriptexec.Capabilities{Memory: true},
		Handlers: scriptexec.Handlers{
			MemorySet: func(tool, key string, value interface{}, ttlSecs int) error {
				capturedKey = key
				capturedValue = value
				return nil
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "count", capturedKey)
	assert.EqualValues(t, 1, capturedValue)
	out, ok := res.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, out["stored"])
}

// TestRun_UnsupportedCapabilityErrorsWithExactMessage covers the exact
// "<feature> not supported" wording for an unadvertised broker
// capability.
func TestRun_UnsupportedCapabilityErrorsWithExactMessage(t *testing.T) {
	dir := t.TempDir()
	script := writeFixture(t, dir, "needs-sampling.sh", `#!/bin/sh
read -r line
printf '{"jsonrpc":"2.0","id":"1","method":"sampling/createMessage","params":{}}\n'
read -r reply
printf '%s\n' "$reply" >&2
printf '{"jsonrpc":"2.0","id":"execute","result":{"done":true,"reply":%s}}\n' "$reply"
`)

	res, err := scriptexec.Run(context.Background(), scriptexec.Invocation{
		ToolName:         "needs-sampling",
		Interpreter:      "sh",
		EntryPath:        script,
		Sandbox:          config.SandboxNone,
		WorkingDirectory: dir,
		Deadline:         5 * time.Second,
	})

	require.NoError(t, err)
	out, ok := res.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, out["done"])
	reply, ok := out["reply"].(map[string]interface{})
	require.True(t, ok)
	rpcErr, ok := reply["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sampling not supported", rpcErr["message"])
}

// TestRun_DeadlineExceededKillsSubprocess covers the SIGTERM-then-SIGKILL
// deadline enforcement.
func TestRun_DeadlineExceededKillsSubprocess(t *testing.T) {
	dir := t.TempDir()
	script := writeFixture(t, dir, "hang.sh", `#!/bin/sh
read -r line
sleep 5
printf '{"jsonrpc":"2.0","id":"execute","result":{}}\n'
`)

	_, err := scriptexec.Run(context.Background(), scriptexec.Invocation{
		ToolName:         "hang-tool",
		Interpreter:      "sh",
		EntryPath:        script,
		Sandbox:          config.SandboxNone,
		WorkingDirectory: dir,
		Deadline:         200 * time.Millisecond,
	})

	require.Error(t, err)
}
