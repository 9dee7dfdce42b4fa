// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/installer"
	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/tui"
)

// installParams bundles the dependencies and flags for the install command so
// runInstall can be tested without a real Cobra command or network.
type installParams struct {
	stdout      io.Writer
	stderr      io.Writer
	logger      *log.Logger
	installer   *installer.Installer
	validator   *installer.DirectoryValidator
	dir         string
	overwrite   bool // --overwrite: replace an existing .claude directory
	yes         bool // --yes: skip the confirmation prompt
	interactive bool // prompt and progress bar are allowed
	ui          tui.Config
	confirm     func(tui.ConfirmOptions) (bool, error)
}

// newInstallCommand creates the `cmat install` command.
func newInstallCommand(app *App) *cobra.Command {
	var (
		overwrite bool
		yes       bool
		ref       string
	)

	cmd := &cobra.Command{
		Use:   "install [dir]",
		Short: "Install the template's .claude directory into a project",
		Long: `Install the template's .claude directory into a project directory.

The archive is downloaded over HTTPS, every entry is checked for path
traversal before extraction, and the extracted tree must contain the v3
template layout before anything in the target is touched. An existing
.claude directory is only replaced with --overwrite (or after confirming
the prompt) and is restored if the installation fails.`,
		Example: `  # Install into the current directory
  cmat install

  # Replace an existing installation without prompting
  cmat install ~/src/app --overwrite --yes

  # Install a tagged release
  cmat install --ref v3.0.0`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				fmt.Fprintln(app.stderr, formatErrorForDisplay(err, dir, app.flags.verbose, app.glamourStyle(nil)))
				return &ExitError{Code: classifyExitCode(err), Err: err}
			}
			if ref != "" {
				cfg.Source.Ref = ref
			}

			logger := app.newLogger(cfg.UI.Verbose)
			in, validator := app.buildInstaller(cfg, logger)
			ui := app.uiConfig(cfg)

			p := installParams{
				stdout:      app.stdout,
				stderr:      app.stderr,
				logger:      logger,
				installer:   in,
				validator:   validator,
				dir:         dir,
				overwrite:   overwrite,
				yes:         yes,
				interactive: tui.IsInteractive(ui),
				ui:          ui,
				confirm:     app.confirm,
			}

			if err := runInstall(cmd.Context(), p); err != nil {
				fmt.Fprintln(app.stderr, formatErrorForDisplay(err, dir, cfg.UI.Verbose, app.glamourStyle(cfg)))
				return &ExitError{Code: classifyExitCode(err), Err: err}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing .claude directory")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().StringVar(&ref, "ref", "", "branch or tag to install (overrides source.ref)")

	return cmd
}

// runInstall is the core install flow, separated from Cobra for testability.
//
// Flow:
//  1. Validate and select the target directory.
//  2. If a .claude directory exists, decide whether to replace it: --yes
//     replaces, an interactive terminal asks, otherwise --overwrite decides.
//  3. Run the installer on a worker goroutine while progress is rendered.
func runInstall(ctx context.Context, p installParams) error {
	if err := p.installer.SelectTarget(p.dir); err != nil {
		return err
	}
	target := p.installer.Target()
	p.logger.Debug("target selected", "target", target)

	overwrite := p.overwrite
	if p.validator.CheckExistingInstallation(target) {
		switch {
		case p.yes:
			overwrite = true
		case p.interactive:
			confirmed, err := p.confirm(tui.ConfirmOptions{
				Title:       fmt.Sprintf("Replace the existing %s in %s?", installer.ClaudeDirName, target),
				Description: "The current directory is backed up and restored if the installation fails.",
				Affirmative: "Replace",
				Negative:    "Cancel",
				Default:     p.overwrite,
				Config:      p.ui,
			})
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(p.stdout, SubtitleStyle.Render("Installation cancelled; nothing was changed."))
				return nil
			}
			overwrite = true
		}
	}

	if err := installWithProgress(ctx, p, overwrite); err != nil {
		return err
	}

	fmt.Fprintln(p.stdout, SuccessStyle.Render("✓ Installed CMAT template into ")+
		CmdStyle.Render(filepath.Join(target, installer.ClaudeDirName)))
	return nil
}

// installWithProgress runs Install on a worker goroutine and renders its
// progress events until the worker finishes.
func installWithProgress(ctx context.Context, p installParams, overwrite bool) error {
	installCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := tui.NewProgressChannel(tui.DefaultProgressBuffer)
	done := make(chan error, 1)
	go func() {
		defer updates.Close()
		done <- p.installer.Install(installCtx, func(percent int, message string) {
			updates.Send(tui.ProgressUpdate{Percent: percent, Message: message})
		}, overwrite)
	}()

	ui := p.ui
	if !p.interactive {
		ui.Accessible = true
		ui.Output = p.stdout
	}
	renderErr := tui.RunProgress(ctx, tui.ProgressOptions{
		Title:       "Installing CMAT template",
		OnInterrupt: cancel,
		Config:      ui,
	}, updates)

	installErr := <-done
	if installErr != nil {
		return installErr
	}
	if renderErr != nil {
		p.logger.Warn("progress display failed", "error", renderErr)
	}
	return nil
}
