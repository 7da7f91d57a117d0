package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/clovis-desktop/internal/dirs"
	"github.com/mmr-tortoise/clovis-desktop/internal/model"
)

const (
	// DefaultRuntime is the interpreter that runs the backend bundle.
	DefaultRuntime = "bun"

	// DefaultScript is the backend bundle's file name inside the resource
	// directory.
	DefaultScript = "server.js"

	// DefaultImage is used by the container launcher when no image is set.
	DefaultImage = "oven/bun:1"

	// DefaultDevPort is where the developer runs the backend in dev mode.
	DefaultDevPort = 3000

	// DefaultFrontendListen binds the frontend host to an ephemeral
	// loopback port.
	DefaultFrontendListen = "127.0.0.1:0"
)

// Config is the full shell configuration.
type Config struct {
	// Mode is "release" (spawn the bundled backend on a reserved port) or
	// "dev" (point at DevConfig.Port and spawn nothing).
	Mode model.Mode `json:"mode" yaml:"mode"`

	Backend  BackendConfig  `json:"backend" yaml:"backend"`
	Dev      DevConfig      `json:"dev" yaml:"dev"`
	Frontend FrontendConfig `json:"frontend" yaml:"frontend"`
}

// BackendConfig describes how the release-mode backend is located and run.
type BackendConfig struct {
	// Launcher is "process" or "container".
	Launcher model.LauncherKind `json:"launcher" yaml:"launcher"`

	// Runtime is the interpreter name or path (e.g. "bun"). A bare name is
	// looked up in <resourceDir>/bin first, then on PATH.
	Runtime string `json:"runtime" yaml:"runtime"`

	// Script is the backend bundle, relative to ResourceDir unless absolute.
	Script string `json:"script" yaml:"script"`

	// ResourceDir overrides the packaged resource directory.
	ResourceDir string `json:"resourceDir,omitempty" yaml:"resourceDir,omitempty"`

	// Image is the container image for the container launcher.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// Env holds extra environment variables for the backend.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// LogFile receives backend output. Empty means dirs.LogPath();
	// "none" discards it.
	LogFile string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

// DevConfig holds dev-mode settings.
type DevConfig struct {
	// Port is the fixed port the hand-started backend listens on.
	Port int `json:"port" yaml:"port"`
}

// FrontendConfig controls the HTTP frontend host.
type FrontendConfig struct {
	// Dir is the built frontend (index.html and assets). Empty runs headless.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Listen is the host:port the frontend is served on.
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Mode: model.ModeRelease,
		Backend: BackendConfig{
			Launcher: model.LauncherProcess,
			Runtime:  DefaultRuntime,
			Script:   DefaultScript,
			Image:    DefaultImage,
		},
		Dev: DevConfig{
			Port: DefaultDevPort,
		},
		Frontend: FrontendConfig{
			Listen: DefaultFrontendListen,
		},
	}
}

// Load reads a configuration file on top of Default().
//
// Returns a CLIError with ExitResourceNotFound if the file does not exist
// and ExitConfigInvalid if it cannot be parsed or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitResourceNotFound,
				fmt.Sprintf("config file not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := decode(path, data, cfg); err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path),
			err,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("invalid config file %s", path),
			err,
		)
	}
	return cfg, nil
}

// LoadDefault reads dirs.ConfigPath() if it exists and falls back to
// Default() otherwise.
func LoadDefault() (*Config, error) {
	path := dirs.ConfigPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// decode picks the parser from the file extension. Unknown extensions are
// treated as JSONC, which also accepts plain JSON.
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		// Strip // and /* */ comments and trailing commas first.
		return json.Unmarshal(jsonc.ToJSON(data), cfg)
	}
}

// Validate normalizes enum fields and checks value ranges.
func (c *Config) Validate() error {
	mode, err := model.ParseMode(string(c.Mode))
	if err != nil {
		return err
	}
	c.Mode = mode

	launcher, err := model.ParseLauncherKind(string(c.Backend.Launcher))
	if err != nil {
		return err
	}
	c.Backend.Launcher = launcher

	if c.Dev.Port < 1 || c.Dev.Port > 65535 {
		return fmt.Errorf("dev port %d out of range (1-65535)", c.Dev.Port)
	}
	if c.Backend.Runtime == "" {
		return fmt.Errorf("backend runtime must not be empty")
	}
	if c.Backend.Script == "" {
		return fmt.Errorf("backend script must not be empty")
	}
	if c.Frontend.Listen == "" {
		c.Frontend.Listen = DefaultFrontendListen
	}
	if c.Backend.Launcher == model.LauncherContainer && c.Backend.Image == "" {
		return fmt.Errorf("backend image is required for the container launcher")
	}
	return nil
}

// ResolveResourceDir returns the configured resource directory, or the
// packaged default, and checks that it exists.
func (c *Config) ResolveResourceDir() (string, error) {
	dir := c.Backend.ResourceDir
	if dir == "" {
		d, err := dirs.ResourceDir()
		if err != nil {
			return "", model.WrapCLIError(model.ExitResourceNotFound, "failed to locate resource directory", err)
		}
		dir = d
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitResourceNotFound,
			fmt.Sprintf("resource directory not found: %s", dir),
			err,
		)
	}
	if !info.IsDir() {
		return "", model.NewCLIError(model.ExitResourceNotFound, fmt.Sprintf("resource path is not a directory: %s", dir))
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir, nil
	}
	return abs, nil
}

// ResolveBackend builds the BackendSpec for a release-mode launch on port.
// The script must exist under resourceDir. The runtime is left as
// configured; the process launcher resolves it against the resource
// directory and PATH, the container launcher inside the image.
func (c *Config) ResolveBackend(port int, resourceDir string) (model.BackendSpec, error) {
	script := c.Backend.Script
	if !filepath.IsAbs(script) {
		script = filepath.Join(resourceDir, script)
	}
	if info, err := os.Stat(script); err != nil || info.IsDir() {
		return model.BackendSpec{}, model.WrapCLIError(
			model.ExitResourceNotFound,
			fmt.Sprintf("backend script not found: %s", script),
			err,
		)
	}

	return model.BackendSpec{
		Port:       port,
		Executable: c.Backend.Runtime,
		Script:     script,
		Image:      c.Backend.Image,
		Env:        c.Backend.Env,
		LogPath:    c.logPath(),
	}, nil
}

func (c *Config) logPath() string {
	switch c.Backend.LogFile {
	case "":
		return dirs.LogPath()
	case "none":
		return ""
	default:
		return c.Backend.LogFile
	}
}
