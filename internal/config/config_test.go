package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/clovis-desktop/internal/model"
)

// writeFile creates a fixture file in a fresh temp directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// requireExitCode asserts err is a CLIError carrying code.
func requireExitCode(t *testing.T, err error, code model.ExitCode) {
	t.Helper()
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %T", err)
	assert.Equal(t, code, cliErr.Code)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, model.ModeRelease, cfg.Mode)
	assert.Equal(t, model.LauncherProcess, cfg.Backend.Launcher)
	assert.Equal(t, "bun", cfg.Backend.Runtime)
	assert.Equal(t, "server.js", cfg.Backend.Script)
	assert.Equal(t, 3000, cfg.Dev.Port)
	assert.Equal(t, "127.0.0.1:0", cfg.Frontend.Listen)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_JSONC verifies that comments and trailing commas are accepted
// and that unspecified fields keep their defaults.
func TestLoad_JSONC(t *testing.T) {
	path := writeFile(t, "clovis.jsonc", `{
  // run the packaged backend
  "mode": "Release",
  "backend": {
    /* bundled next to the app */
    "script": "dist/index.js",
    "env": {"NODE_ENV": "production"},
  },
  "frontend": {"dir": "/opt/clovis/web"},
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, model.ModeRelease, cfg.Mode, "mode should be normalized to lower case")
	assert.Equal(t, "dist/index.js", cfg.Backend.Script)
	assert.Equal(t, "bun", cfg.Backend.Runtime, "runtime should keep its default")
	assert.Equal(t, "production", cfg.Backend.Env["NODE_ENV"])
	assert.Equal(t, "/opt/clovis/web", cfg.Frontend.Dir)
	assert.Equal(t, "127.0.0.1:0", cfg.Frontend.Listen, "listen keeps its default")
	assert.Equal(t, 3000, cfg.Dev.Port)
}

// TestLoad_YAML verifies the YAML format produces the same structure.
func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "clovis.yaml", `
mode: dev
dev:
  port: 3100
backend:
  launcher: container
  image: oven/bun:1.1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, model.ModeDev, cfg.Mode)
	assert.Equal(t, 3100, cfg.Dev.Port)
	assert.Equal(t, model.LauncherContainer, cfg.Backend.Launcher)
	assert.Equal(t, "oven/bun:1.1", cfg.Backend.Image)
	assert.Equal(t, "server.js", cfg.Backend.Script)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonc"))
	requireExitCode(t, err, model.ExitResourceNotFound)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"broken json", "c.json", `{"mode": `},
		{"broken yaml", "c.yml", "mode: [dev"},
		{"unknown mode", "c.jsonc", `{"mode": "debug"}`},
		{"unknown launcher", "c.jsonc", `{"backend": {"launcher": "vm"}}`},
		{"dev port out of range", "c.jsonc", `{"dev": {"port": 70000}}`},
		{"empty runtime", "c.jsonc", `{"backend": {"runtime": ""}}`},
		{"container without image", "c.jsonc", `{"backend": {"launcher": "container", "image": ""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			requireExitCode(t, err, model.ExitConfigInvalid)
		})
	}
}

func TestLoadDefault(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("CLOVIS_DATA_DIR", dataDir)

	cfg, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg, "no file should mean defaults")

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "clovis.jsonc"), []byte(`{"dev": {"port": 4000}}`), 0o644))
	cfg, err = LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Dev.Port)
}

func TestResolveResourceDir(t *testing.T) {
	t.Run("configured directory", func(t *testing.T) {
		dir := t.TempDir()
		cfg := Default()
		cfg.Backend.ResourceDir = dir

		got, err := cfg.ResolveResourceDir()
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("environment override", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("CLOVIS_RESOURCE_DIR", dir)

		got, err := Default().ResolveResourceDir()
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("missing directory", func(t *testing.T) {
		cfg := Default()
		cfg.Backend.ResourceDir = filepath.Join(t.TempDir(), "missing")

		_, err := cfg.ResolveResourceDir()
		requireExitCode(t, err, model.ExitResourceNotFound)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		cfg := Default()
		cfg.Backend.ResourceDir = writeFile(t, "resources", "")

		_, err := cfg.ResolveResourceDir()
		requireExitCode(t, err, model.ExitResourceNotFound)
	})
}

func TestResolveBackend(t *testing.T) {
	resources := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(resources, "server.js"), []byte("// bundle"), 0o644))

	t.Run("script in resource dir", func(t *testing.T) {
		cfg := Default()
		cfg.Backend.LogFile = "/var/log/clovis.log"
		cfg.Backend.Env = map[string]string{"NODE_ENV": "production"}

		spec, err := cfg.ResolveBackend(53211, resources)
		require.NoError(t, err)

		assert.Equal(t, 53211, spec.Port)
		assert.Equal(t, "bun", spec.Executable)
		assert.Equal(t, filepath.Join(resources, "server.js"), spec.Script)
		assert.Equal(t, "/var/log/clovis.log", spec.LogPath)
		assert.Equal(t, "production", spec.Env["NODE_ENV"])
		assert.NoError(t, spec.Validate())
	})

	t.Run("missing script", func(t *testing.T) {
		cfg := Default()
		cfg.Backend.Script = "dist/missing.js"

		_, err := cfg.ResolveBackend(53211, resources)
		requireExitCode(t, err, model.ExitResourceNotFound)
	})

	t.Run("log disabled", func(t *testing.T) {
		cfg := Default()
		cfg.Backend.LogFile = "none"

		spec, err := cfg.ResolveBackend(53211, resources)
		require.NoError(t, err)
		assert.Empty(t, spec.LogPath)
	})

	t.Run("default log path", func(t *testing.T) {
		t.Setenv("CLOVIS_DATA_DIR", "/srv/clovis")

		spec, err := Default().ResolveBackend(53211, resources)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/srv/clovis", "backend.log"), spec.LogPath)
	})
}
