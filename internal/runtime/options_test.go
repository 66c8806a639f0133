package runtime

import (
	"context"
	"testing"

	"github.com/Algiras/skillz/internal/registry"
	"github.com/Algiras/skillz/internal/scriptexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlersFor_ResourceOverridesWin(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.Registry.Register(registry.Manifest{
		Name:        "noop",
		ToolType:    registry.ToolScript,
		EntryFile:   "noop.sh",
		Description: "does nothing",
	}, []byte("#!/bin/sh\n"), false)
	require.NoError(t, err)
	rec, ok := f.Registry.Get("noop")
	require.True(t, ok)

	f.handlers.ResourceList = func() ([]scriptexec.Resource, error) {
		return []scriptexec.Resource{{URI: "custom://one", Name: "one"}}, nil
	}
	f.handlers.ResourceRead = func(uri string) (string, string, error) {
		return "text/plain", "overridden content", nil
	}

	handlers := f.handlersFor(context.Background(), rec)

	resources, err := handlers.ResourcesList()
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "custom://one", resources[0].URI)

	mimeType, text, err := handlers.ResourcesRead("anything")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mimeType)
	assert.Equal(t, "overridden content", text)
}

func TestHandlersFor_DefaultsWhenNoOverrideInstalled(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.Registry.Register(registry.Manifest{
		Name:        "noop",
		ToolType:    registry.ToolScript,
		EntryFile:   "noop.sh",
		Description: "does nothing",
	}, []byte("#!/bin/sh\n"), false)
	require.NoError(t, err)
	rec, ok := f.Registry.Get("noop")
	require.True(t, ok)

	handlers := f.handlersFor(context.Background(), rec)
	resources, err := handlers.ResourcesList()
	require.NoError(t, err)

	var found bool
	for _, r := range resources {
		if r.URI == resourceGuideURI {
			found = true
		}
	}
	assert.True(t, found)
	assert.Nil(t, handlers.ElicitationCreate)
	assert.Nil(t, handlers.SamplingCreateMessage)
}
