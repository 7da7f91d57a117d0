// list.go implements the "clovis-desktop list" command.
//
// The list command shows every backend container created by the container
// launcher, found via the "clovis.managed-by=clovis-desktop" label. A
// container that outlives its application is an orphan for "clean".
package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/clovis-desktop/internal/docker"
	"github.com/mmr-tortoise/clovis-desktop/internal/model"
)

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backend containers",
		Long: `List the backend containers started by the container launcher,
including stopped ones.

Examples:
  clovis-desktop list
  clovis-desktop list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context())
		},
	}
}

// runList is the main logic function for the list command.
// It connects to Docker, reads the managed backend containers, and prints
// them as a table or JSON. The current time is taken once so every AGE
// column is computed against the same instant.
func runList(ctx context.Context) error {
	backends, err := listBackends(ctx)
	if err != nil {
		return err
	}
	printListResult(backends, time.Now())
	return nil
}

// listBackends connects to Docker and returns the managed backends, oldest
// first.
func listBackends(ctx context.Context) ([]model.BackendContainer, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return nil, err
	}
	VerboseLog("Connected to Docker daemon")

	backends, err := docker.ListBackends(ctx, cli)
	if err != nil {
		return nil, err
	}
	VerboseLog("Found %d backend containers", len(backends))

	sort.Slice(backends, func(i, j int) bool {
		return backends[i].CreatedAt.Before(backends[j].CreatedAt)
	})
	return backends, nil
}

// printListResult outputs the backends in text or JSON format.
func printListResult(backends []model.BackendContainer, now time.Time) {
	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			// An empty slice keeps the output [] instead of null.
			"backends": append(make([]model.BackendContainer, 0, len(backends)), backends...),
		})
		return
	}
	fmt.Print(formatListText(backends, now))
}

// formatListText renders the backends as a table:
//
//	SESSION   PORT   STATUS    AGE   CONTAINER
//	5f0c7a52  53211  running   3m    clovis-backend-5f0c7a529d1e
func formatListText(backends []model.BackendContainer, now time.Time) string {
	if len(backends) == 0 {
		return "No backend containers found.\n"
	}

	s := fmt.Sprintf("%-10s %-6s %-10s %-6s %s\n", "SESSION", "PORT", "STATUS", "AGE", "CONTAINER")
	for _, b := range backends {
		status, name := "-", "-"
		if b.Container != nil {
			status, name = b.Container.Status, b.Container.ContainerName
		}
		s += fmt.Sprintf("%-10s %-6d %-10s %-6s %s\n",
			ShortSession(b.Session), b.Port, status, FormatAge(now.Sub(b.CreatedAt)), name)
	}
	return s
}

// ShortSession returns the first block of a session UUID.
//
//	"5f0c7a52-9d1e-4c43-8a55-2f4f6a9d0c11" → "5f0c7a52"
func ShortSession(session string) string {
	if len(session) > 8 {
		return session[:8]
	}
	return session
}

// FormatAge renders a duration in its largest whole unit ("45s", "3m",
// "2h", "5d"). Negative durations, from clock skew, render as "0s".
func FormatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}
