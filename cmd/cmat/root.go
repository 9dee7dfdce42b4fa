// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Set via -ldflags.
var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the cmat command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cmat",
		Short: "Install the Claude Multi-Agent Template into a project",
		Long: TitleStyle.Render("cmat") + SubtitleStyle.Render(" - secure installer for the Claude Multi-Agent Template") + `

cmat downloads the template archive over HTTPS, extracts it with path
traversal protection, validates the v3 layout and places the .claude
directory into your project. An existing installation is backed up and
restored if anything goes wrong.

` + SubtitleStyle.Render("Examples:") + `
  cmat install              Install into the current directory
  cmat install ~/src/app    Install into another directory
  cmat check                Check whether a directory can receive the template
  cmat config show          Show the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/cmat/config.cue)")

	rootCmd.AddCommand(
		newInstallCommand(app),
		newCheckCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	// fang.WithVersion is needed because fang overrides rootCmd.Version.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitUserError)
	}
}

// errorHandler leaves *ExitError alone because its command already rendered
// it; flag and usage errors fall through to fang's default output.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
