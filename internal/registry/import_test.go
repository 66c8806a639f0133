package registry_test

import (
	"testing"

	"github.com/Algiras/skillz/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImportSource_GitURL(t *testing.T) {
	src, err := registry.ParseImportSource("https://github.com/user/repo.git")
	require.NoError(t, err)
	assert.Equal(t, registry.ImportGit, src.Kind)
	assert.Equal(t, "https://github.com/user/repo.git", src.URL)
	assert.Empty(t, src.Branch)
}

func TestParseImportSource_GitURLWithBranch(t *testing.T) {
	src, err := registry.ParseImportSource("https://github.com/user/repo#main")
	require.NoError(t, err)
	assert.Equal(t, registry.ImportGit, src.Kind)
	assert.Equal(t, "https://github.com/user/repo", src.URL)
	assert.Equal(t, "main", src.Branch)
}

func TestParseImportSource_GistShortForm(t *testing.T) {
	src, err := registry.ParseImportSource("gist:abc123")
	require.NoError(t, err)
	assert.Equal(t, registry.ImportGist, src.Kind)
	assert.Equal(t, "abc123", src.GistID)
}

func TestParseImportSource_GistURL(t *testing.T) {
	src, err := registry.ParseImportSource("https://gist.github.com/user/abc123")
	require.NoError(t, err)
	assert.Equal(t, registry.ImportGist, src.Kind)
	assert.Equal(t, "abc123", src.GistID)
}

func TestParseImportSource_UnrecognizedSourceFails(t *testing.T) {
	_, err := registry.ParseImportSource("not-a-source-at-all")
	require.Error(t, err)
}
