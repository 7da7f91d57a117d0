//go:build unix

package supervisor

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

var platform = capabilities{
	exeSuffix: "",
	execMode:  0o755,
	sysProcAttr: func() *syscall.SysProcAttr {
		// A new process group lets kill reach the runtime's own children.
		return &syscall.SysProcAttr{Setpgid: true}
	},
	kill: killProcessGroup,
}

// killProcessGroup sends SIGKILL to the backend's process group (negative
// PID), falling back to the single process if the group is already gone.
func killProcessGroup(p *os.Process) error {
	if err := unix.Kill(-p.Pid, unix.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}
