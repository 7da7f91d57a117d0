// script.go implements the "clovis-desktop script" command,
// which prints the statement injected into every page for a given port.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/clovis-desktop/internal/model"
	"github.com/mmr-tortoise/clovis-desktop/internal/webview"
)

// NewScriptCommand creates the "script" cobra command.
func NewScriptCommand() *cobra.Command {
	var p int

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Print the page bootstrap script for a port",
		Long: `Print the JavaScript statement that publishes the backend base URL to
the frontend, as injected on every page load.

Examples:
  clovis-desktop script --port 53211`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(p)
		},
	}

	cmd.Flags().IntVarP(&p, "port", "p", 0, "Backend port (required)")
	_ = cmd.MarkFlagRequired("port")

	return cmd
}

// runScript prints the bootstrap statement for port p: the same text the
// frontend host injects into every page. It validates the range itself
// because cobra only checks that --port was given.
func runScript(p int) error {
	if p < 1 || p > 65535 {
		return model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("port %d out of range (1-65535)", p))
	}

	baseURL := webview.BaseURL(p)
	script := webview.BootstrapScript(baseURL)
	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"port":    p,
			"baseUrl": baseURL,
			"script":  script,
		})
		return nil
	}
	fmt.Println(script)
	return nil
}
