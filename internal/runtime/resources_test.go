package runtime

import (
	"testing"
	"time"

	"github.com/Algiras/skillz/internal/config"
	"github.com/Algiras/skillz/internal/memory"
	"github.com/Algiras/skillz/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	reg, err := registry.New(t.TempDir())
	require.NoError(t, err)

	mem, err := memory.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	settings := config.DefaultSettings()
	settings.DefaultDeadline = 5 * time.Second
	return New(reg, mem, settings, nil)
}

func TestListResources_IncludesStaticSet(t *testing.T) {
	f := newTestFacade(t)
	resources := f.listResources()

	var uris []string
	for _, r := range resources {
		uris = append(uris, r.URI)
	}
	assert.Contains(t, uris, resourceGuideURI)
	assert.Contains(t, uris, resourceExamplesURI)
	assert.Contains(t, uris, resourceProtocolURI)
}

func TestListResources_IncludesOneEntryPerRegisteredTool(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.Registry.Register(registry.Manifest{
		Name:        "echo",
		ToolType:    registry.ToolWasm,
		Description: "echoes its input",
	}, append([]byte{0x00, 0x61, 0x73, 0x6D}, 0x01, 0x00, 0x00, 0x00), false)
	require.NoError(t, err)

	resources := f.listResources()
	var found bool
	for _, r := range resources {
		if r.URI == toolResourcePrefix+"echo" {
			found = true
			assert.Equal(t, "echoes its input", r.Description)
		}
	}
	assert.True(t, found, "expected a resource entry for the registered tool")
}

func TestReadResource_Guide(t *testing.T) {
	f := newTestFacade(t)
	mimeType, text, err := f.readResource(resourceGuideURI)
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", mimeType)
	assert.Contains(t, text, "pipeline")
}

func TestReadResource_Examples(t *testing.T) {
	f := newTestFacade(t)
	mimeType, text, err := f.readResource(resourceExamplesURI)
	require.NoError(t, err)
	assert.Equal(t, "application/json", mimeType)
	assert.Contains(t, text, "tool_type")
}

func TestReadResource_RegisteredTool(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.Registry.Register(registry.Manifest{
		Name:        "echo",
		ToolType:    registry.ToolWasm,
		Description: "echoes its input",
	}, append([]byte{0x00, 0x61, 0x73, 0x6D}, 0x01, 0x00, 0x00, 0x00), false)
	require.NoError(t, err)

	mimeType, text, err := f.readResource(toolResourcePrefix + "echo")
	require.NoError(t, err)
	assert.Equal(t, "application/json", mimeType)
	assert.Contains(t, text, "echo")
}

func TestReadResource_UnknownURIFails(t *testing.T) {
	f := newTestFacade(t)
	_, _, err := f.readResource("skillz://tools/does-not-exist")
	require.Error(t, err)
}
