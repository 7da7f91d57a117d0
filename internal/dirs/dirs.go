// Package dirs resolves the directories the shell reads from and writes to.
// It follows each platform's convention for per-user local data, with
// environment overrides for packaging and tests.
package dirs

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "clovis"

// DataDir returns the per-user local data directory (backend log, config).
// Priority: $CLOVIS_DATA_DIR > platform convention > $TMPDIR/clovis-data
func DataDir() string {
	if v := os.Getenv("CLOVIS_DATA_DIR"); v != "" {
		return v
	}
	if base := localDataBase(); base != "" {
		return filepath.Join(base, appName)
	}
	return filepath.Join(os.TempDir(), appName+"-data")
}

// localDataBase returns the platform's local application data root, or ""
// when no home directory can be determined.
func localDataBase() string {
	switch runtime.GOOS {
	case "windows":
		return os.Getenv("LOCALAPPDATA")
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
		return ""
	default:
		if base := os.Getenv("XDG_DATA_HOME"); base != "" {
			return base
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share")
		}
		return ""
	}
}

// ResourceDir returns the directory holding packaged resources (the backend
// bundle and an optional bundled runtime under bin/).
// Priority: $CLOVIS_RESOURCE_DIR > <exe>/../Resources (macOS app bundle) >
// <exe dir>/resources
func ResourceDir() (string, error) {
	if v := os.Getenv("CLOVIS_RESOURCE_DIR"); v != "" {
		return v, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	exeDir := filepath.Dir(exe)
	if runtime.GOOS == "darwin" {
		bundle := filepath.Join(exeDir, "..", "Resources")
		if info, err := os.Stat(bundle); err == nil && info.IsDir() {
			return filepath.Clean(bundle), nil
		}
	}
	return filepath.Join(exeDir, "resources"), nil
}

// LogPath returns the file the backend's stdout and stderr are appended to.
func LogPath() string {
	return filepath.Join(DataDir(), "backend.log")
}

// ConfigPath returns the default configuration file location.
func ConfigPath() string {
	return filepath.Join(DataDir(), "clovis.jsonc")
}
