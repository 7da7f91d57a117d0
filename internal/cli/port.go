// port.go implements the "clovis-desktop port" command.
//
// Without flags it reserves a port the same way the run command does and
// prints it. With --check it reports whether a given port is free instead.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/clovis-desktop/internal/model"
	"github.com/mmr-tortoise/clovis-desktop/internal/port"
	"github.com/mmr-tortoise/clovis-desktop/internal/webview"
)

// portFlags holds the flag values for the port command.
type portFlags struct {
	// check is the port to test with --check. Zero means "reserve one".
	check int

	// host is the address --check binds on, 127.0.0.1 by default. Empty
	// means all interfaces.
	host string
}

// NewPortCommand creates the "port" cobra command.
func NewPortCommand() *cobra.Command {
	flags := &portFlags{}

	cmd := &cobra.Command{
		Use:   "port",
		Short: "Reserve and print a free loopback port",
		Long: `Ask the OS for a free port on 127.0.0.1 and print it.

The port is released before the command exits, so another process may
take it before it is used.

With --check, report whether the given port is free instead. A port in use
exits with status 4.

Examples:
  CLOVIS_BACKEND_PORT=$(clovis-desktop port) bun server.js
  clovis-desktop port --json
  clovis-desktop port --check 3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("check") {
				return runPortCheck(flags)
			}
			return runPort()
		},
	}

	cmd.Flags().IntVar(&flags.check, "check", 0, "Report whether this TCP port is free")
	cmd.Flags().StringVar(&flags.host, "host", port.LoopbackHost, "Interface to check (empty for all)")

	return cmd
}

// runPort is the main logic function for the port command without --check.
// It reserves an ephemeral loopback port with port.Reserve, exactly as the
// run command does for the backend, and prints it. The port is released
// again before the command exits, so it is a suggestion, not a lease.
func runPort() error {
	p, err := port.Reserve()
	if err != nil {
		return model.WrapCLIError(model.ExitPortReservationFailed, "failed to reserve a port", err)
	}
	VerboseLog("Reserved port %d", p)

	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"port":    p,
			"baseUrl": webview.BaseURL(p),
		})
		return nil
	}
	fmt.Println(p)
	return nil
}

// runPortCheck reports whether flags.check can be bound on flags.host.
// A taken port is reported through a CLIError with
// ExitPortReservationFailed, so scripts can test the exit code; in JSON
// mode the result object is printed first.
func runPortCheck(flags *portFlags) error {
	scanner := port.NewScannerForHost(flags.host)
	free := scanner.IsPortAvailable(flags.check, "tcp")
	VerboseLog("Checked %s:%d", flags.host, flags.check)

	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"port":      flags.check,
			"available": free,
		})
	} else if free {
		fmt.Printf("Port %d is free\n", flags.check)
	}

	if !free {
		return model.NewCLIError(model.ExitPortReservationFailed, fmt.Sprintf("port %d is not available", flags.check))
	}
	return nil
}
