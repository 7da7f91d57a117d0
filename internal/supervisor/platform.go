package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// capabilities is the per-platform behavior table. Exactly one value,
// named platform, is compiled in per target (platform_unix.go,
// platform_windows.go).
type capabilities struct {
	// exeSuffix is appended to bundled runtime names.
	exeSuffix string

	// execMode is applied to a bundled runtime that lacks execute bits.
	// Zero means the platform has no permission bits to fix.
	execMode os.FileMode

	// sysProcAttr returns the attributes for a new backend process.
	sysProcAttr func() *syscall.SysProcAttr

	// kill forcefully stops the backend and anything it spawned.
	kill func(p *os.Process) error
}

// ExecutableName returns name with the platform's executable suffix.
func ExecutableName(name string) string {
	return name + platform.exeSuffix
}

// ResolveExecutable locates the backend runtime.
//
// A runtime bundled at <resourceDir>/bin/<name> wins; its execute bits are
// restored if packaging dropped them. Otherwise the name is looked up on
// PATH. If neither works the name is returned unchanged and the spawn
// reports the failure.
func ResolveExecutable(name, resourceDir string) string {
	if filepath.IsAbs(name) {
		return name
	}

	if resourceDir != "" {
		bundled := filepath.Join(resourceDir, "bin", ExecutableName(name))
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			ensureExecutable(bundled, info.Mode())
			return bundled
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}

// ensureExecutable restores execute bits on platforms that have them.
// A failed chmod surfaces later as a spawn error.
func ensureExecutable(path string, mode os.FileMode) {
	if platform.execMode == 0 || mode.Perm()&0o111 != 0 {
		return
	}
	_ = os.Chmod(path, platform.execMode)
}
