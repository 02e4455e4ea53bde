package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushi-lang/sushic/internal/config"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sushi.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[package]
name = "calculator"
version = "0.1.0"
entry = "src/main.sushi"

[build]
target = "arm64-apple-darwin"
opt-level = "3"
emit-llvm = true
`), 0o644))

	m, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "calculator", m.Package.Name)
	assert.Equal(t, "src/main.sushi", m.Package.Entry)
	assert.Equal(t, "arm64-apple-darwin", m.Build.Target)
	assert.Equal(t, "3", m.Build.OptLevel)
	assert.True(t, m.Build.EmitLLVM)
}

func TestLoadDefaultsOptLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sushi.toml")
	require.NoError(t, os.WriteFile(path, []byte("[package]\nname = \"x\"\n"), 0o644))

	m, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2", m.Build.OptLevel)
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sushi.toml"), []byte("[package]\nname = \"up\"\n"), 0o644))

	m, path, err := config.Discover(nested)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "up", m.Package.Name)
	assert.Equal(t, filepath.Join(root, "sushi.toml"), path)
}

func TestDiscoverMissingIsNotAnError(t *testing.T) {
	m, path, err := config.Discover(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Empty(t, path)
}

func TestDefault(t *testing.T) {
	m := config.Default("examples/fib.sushi")
	assert.Equal(t, "fib", m.Package.Name)
	assert.Equal(t, "2", m.Build.OptLevel)
}
