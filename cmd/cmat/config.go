// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/config"
)

// newConfigCommand creates the `cmat config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cmat configuration",
		Long: `Manage cmat configuration.

Configuration is stored in:
  - Linux: ~/.config/cmat/config.cue
  - macOS: ~/Library/Application Support/cmat/config.cue
  - Windows: %APPDATA%\cmat\config.cue

Any value can be overridden with a CMAT_* environment variable, for
example CMAT_SOURCE_REF=v3.0.0 or CMAT_DOWNLOAD_TIMEOUT=2m.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				fmt.Fprintln(app.stderr, formatErrorForDisplay(err, "", app.flags.verbose, app.glamourStyle(nil)))
				return &ExitError{Code: classifyExitCode(err), Err: err}
			}

			path, err := config.FilePath(app.loadOptions())
			if err != nil {
				return err
			}
			source := SubtitleStyle.Render("(using defaults)")
			if fileExistsCheck(path) {
				source = path
			}
			fmt.Fprintf(app.stderr, "%s %s\n\n", CmdStyle.Render("Config file:"), source)
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.FilePath(app.loadOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.CreateDefaultConfig(app.loadOptions())
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("Config file already exists:"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Created config file:"), path)
			return nil
		},
	})

	return cfgCmd
}

// fileExistsCheck reports whether path exists.
func fileExistsCheck(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
