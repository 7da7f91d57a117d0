//go:build windows

package supervisor

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

var platform = capabilities{
	exeSuffix: ".exe",
	execMode:  0,
	sysProcAttr: func() *syscall.SysProcAttr {
		// The backend is a console program; without CREATE_NO_WINDOW a
		// console window pops up next to the application window.
		return &syscall.SysProcAttr{
			HideWindow:    true,
			CreationFlags: windows.CREATE_NO_WINDOW,
		}
	},
	kill: func(p *os.Process) error {
		return p.Kill()
	},
}
