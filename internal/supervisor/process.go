package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mmr-tortoise/clovis-desktop/internal/model"
)

// ProcessLauncher runs the backend as a child process:
//
//	<executable> <script>    with CLOVIS_BACKEND_PORT=<port>
//
// The child inherits the parent's environment. Its working directory is the
// script's directory so relative asset paths inside the bundle resolve.
type ProcessLauncher struct{}

// NewProcessLauncher returns a ProcessLauncher.
func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{}
}

var _ Launcher = (*ProcessLauncher)(nil)

// Launch starts the child and returns once it is running. The context only
// guards the start itself: cancelling it later does not kill the backend,
// which is the Supervisor's job.
func (l *ProcessLauncher) Launch(ctx context.Context, spec model.BackendSpec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Executable, spec.Script)
	cmd.Dir = filepath.Dir(spec.Script)
	cmd.Env = append(os.Environ(), spec.EnvList()...)
	cmd.SysProcAttr = platform.sysProcAttr()

	var logFile *os.File
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create backend log directory: %w", err)
		}
		f, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open backend log %s: %w", spec.LogPath, err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	err := cmd.Start()
	// With an *os.File as Stdout/Stderr the child holds its own descriptor,
	// so the parent's copy can be closed once Start returns.
	if logFile != nil {
		_ = logFile.Close()
	}
	if err != nil {
		return nil, err
	}

	return &processHandle{cmd: cmd}, nil
}

// processHandle wraps a started *exec.Cmd.
type processHandle struct {
	cmd *exec.Cmd

	waitOnce sync.Once
	waitErr  error
}

func (h *processHandle) ID() string {
	return "pid " + strconv.Itoa(h.cmd.Process.Pid)
}

func (h *processHandle) Kill() error {
	return platform.kill(h.cmd.Process)
}

func (h *processHandle) Wait() error {
	h.waitOnce.Do(func() {
		h.waitErr = h.cmd.Wait()
	})
	return h.waitErr
}
