// run.go implements the "clovis-desktop run" command, which
// starts the application and keeps it running until it is interrupted.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/clovis-desktop/internal/config"
	"github.com/mmr-tortoise/clovis-desktop/internal/model"
	"github.com/mmr-tortoise/clovis-desktop/internal/shell"
)

// runFlags holds the flag values for the run command. Flags override the
// configuration file.
type runFlags struct {
	configPath  string
	dev         bool
	devPort     int
	launcher    string
	resourceDir string
	frontendDir string
	headless    bool
}

// NewRunCommand creates the "run" cobra command.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the backend and serve the frontend",
		Long: `Start the application.

In release mode a free loopback port is reserved, the bundled backend is
started with CLOVIS_BACKEND_PORT set to it, and the frontend is served with
window.__CLOVIS_API_BASE__ pointing at the backend. Interrupting the command
(Ctrl+C or SIGTERM) stops the backend.

Examples:
  clovis-desktop run --frontend-dir ./web/dist
  clovis-desktop run --dev --port 3000
  clovis-desktop run --launcher container --headless`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file (.jsonc, .json, .yaml)")
	cmd.Flags().BoolVar(&flags.dev, "dev", false, "Use the fixed dev port and spawn no backend")
	cmd.Flags().IntVar(&flags.devPort, "port", 0, "Dev mode backend port (default 3000)")
	cmd.Flags().StringVar(&flags.launcher, "launcher", "", "Backend launcher: process or container")
	cmd.Flags().StringVar(&flags.resourceDir, "resource-dir", "", "Directory holding the backend bundle")
	cmd.Flags().StringVar(&flags.frontendDir, "frontend-dir", "", "Built frontend to serve")
	cmd.Flags().BoolVar(&flags.headless, "headless", false, "Run the backend without serving the frontend")

	return cmd
}

// runRun is the main logic function for the run command.
// It loads the configuration, applies the flag overrides, and hands control
// to shell.App until SIGINT or SIGTERM arrives. The App turns the signal
// into its exit events, which terminate the backend before runRun returns.
func runRun(cmd *cobra.Command, flags *runFlags) error {
	cfg, err := loadRunConfig(flags, cmd.Flags().Changed("port"))
	if err != nil {
		return err
	}
	VerboseLog("Mode: %s, launcher: %s", cfg.Mode, cfg.Backend.Launcher)

	// Signal delivery is what ends the run: the context is cancelled and
	// the application delivers its exit events.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := shell.New(cfg, shell.Options{
		Headless: flags.headless,
		Logf:     VerboseLog,
		Report:   printRunInfo,
	})
	return app.Run(ctx)
}

// loadRunConfig reads the configuration and applies flag overrides.
//
// The file named by --config wins over the default location. Flags are
// applied after loading and the result is validated once at the end, so a
// flag can repair a file value that would be invalid on its own. devPortSet
// distinguishes an explicit --port from the flag's zero default.
func loadRunConfig(flags *runFlags, devPortSet bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if flags.dev {
		cfg.Mode = model.ModeDev
	}
	if devPortSet {
		cfg.Dev.Port = flags.devPort
	}
	if flags.launcher != "" {
		cfg.Backend.Launcher = model.LauncherKind(flags.launcher)
	}
	if flags.resourceDir != "" {
		cfg.Backend.ResourceDir = flags.resourceDir
	}
	if flags.frontendDir != "" {
		cfg.Frontend.Dir = flags.frontendDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid settings", err)
	}
	return cfg, nil
}

// printRunInfo reports the running application once it is up.
func printRunInfo(info model.LaunchInfo) {
	if IsJSONOutput() {
		printJSON(info)
		return
	}
	fmt.Print(formatRunInfo(info))
}

// formatRunInfo renders info as text.
//
//	Clovis is running (release)
//	  Backend:  http://127.0.0.1:53211 (pid 4242)
//	  Frontend: http://127.0.0.1:53212/
//	Press Ctrl+C to quit.
func formatRunInfo(info model.LaunchInfo) string {
	s := fmt.Sprintf("Clovis is running (%s)\n", info.Mode)
	backend := info.BaseURL
	if info.BackendID != "" {
		backend += " (" + info.BackendID + ")"
	}
	s += fmt.Sprintf("  Backend:  %s\n", backend)
	if info.FrontendURL != "" {
		s += fmt.Sprintf("  Frontend: %s\n", info.FrontendURL)
	} else {
		s += "  Frontend: (headless)\n"
	}
	return s + "Press Ctrl+C to quit.\n"
}
