// clean.go implements the "clovis-desktop clean" command.
//
// A session that crashes never delivers its exit events, so a backend
// started by the container launcher keeps running. clean removes such
// containers. The run command also cleans up on startup, but only
// containers that are no longer running: a running one may still serve a
// second instance.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/clovis-desktop/internal/docker"
	"github.com/mmr-tortoise/clovis-desktop/internal/model"
)

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	// force skips the confirmation prompt.
	force bool
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover backend containers",
		Long: `Force-remove every backend container created by the container launcher.

Containers of a running clovis-desktop instance are removed too, which
stops that instance's backend. Quit the application first.

Examples:
  clovis-desktop clean
  clovis-desktop clean --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

// runClean is the main logic function for the clean command.
// It lists the managed backends, asks for confirmation unless --force or
// --json is set, and force-removes every one of them, running or not.
// Containers removed before a failure are still reported in verbose mode.
func runClean(ctx context.Context, flags *cleanFlags) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	backends, err := docker.ListBackends(ctx, cli)
	if err != nil {
		return err
	}
	if len(backends) == 0 {
		printCleanResult(nil)
		return nil
	}

	// JSON mode is for scripts; prompting there would block them.
	if !flags.force && !IsJSONOutput() {
		ok, err := promptConfirmation(os.Stdin, os.Stdout, backends)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read confirmation", err)
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	removed, err := docker.RemoveOrphans(ctx, cli, "", docker.ScopeAll)
	for _, b := range removed {
		VerboseLog("Removed %s (session %s)", b.Container.ContainerName, b.Session)
	}
	if err != nil {
		return err
	}

	printCleanResult(removed)
	return nil
}

// promptConfirmation lists what will be removed and reads a y/N answer.
// A closed input counts as "no".
func promptConfirmation(in io.Reader, out io.Writer, backends []model.BackendContainer) (bool, error) {
	_, _ = fmt.Fprintf(out, "About to remove %d backend container(s):\n", len(backends))
	for _, b := range backends {
		name := "-"
		if b.Container != nil {
			name = b.Container.ContainerName
		}
		_, _ = fmt.Fprintf(out, "  - %s (port %d, session %s)\n", name, b.Port, ShortSession(b.Session))
	}
	_, _ = fmt.Fprint(out, "\nContinue? [y/N] ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}
	return false, scanner.Err()
}

// printCleanResult outputs the removed containers in text or JSON format.
func printCleanResult(removed []model.BackendContainer) {
	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"action":  "removed",
			"removed": append(make([]model.BackendContainer, 0, len(removed)), removed...),
		})
		return
	}
	if len(removed) == 0 {
		fmt.Println("No backend containers to remove.")
		return
	}
	fmt.Printf("Removed %d backend container(s)\n", len(removed))
}
