package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func createTempConfigFile(t *testing.T, dir string, content OattyConfig) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, configFileName)
	data, err := yaml.Marshal(&content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := t.TempDir()

	loaded, err := LoadConfig(tempDir)
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(), loaded)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	tempDir := t.TempDir()

	override := OattyConfig{
		Registry: RegistryConfig{
			Port:       9999,
			Host:       "0.0.0.0",
			Transport:  TransportSSE,
			ToolPrefix: "oatty",
		},
	}
	createTempConfigFile(t, tempDir, override)

	loaded, err := LoadConfig(tempDir)
	require.NoError(t, err)

	assert.Equal(t, override.Registry, loaded.Registry)
}

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	tempDir := t.TempDir()

	loaded, err := LoadConfig(filepath.Join(tempDir, "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), loaded)
}

func TestGetDefaultConfigPathOrPanic(t *testing.T) {
	originalUserHomeDir := osUserHomeDir
	originalGetwd := osGetwd
	defer func() {
		osUserHomeDir = originalUserHomeDir
		osGetwd = originalGetwd
	}()

	osUserHomeDir = func() (string, error) { return "/home/example", nil }
	osGetwd = func() (string, error) { return "/work/example", nil }

	assert.Equal(t, filepath.Join("/home/example", ".config", "oatty"), GetDefaultConfigPathOrPanic())
}
