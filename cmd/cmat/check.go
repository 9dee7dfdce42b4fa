// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/installer"
)

// checkReport is what `cmat check` found for one directory.
type checkReport struct {
	Target string
	// TargetErr is the *SecurityError from the directory checks, nil when safe.
	TargetErr error
	Existing  bool
	// StructureErr is non-nil when an existing installation fails the manifest.
	StructureErr error
	Backups      []string
}

// newCheckCommand creates the `cmat check` command.
func newCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Check whether a directory can receive the template",
		Long: `Run the same directory checks as install without downloading anything.

Reports whether the directory is safe and writable, whether a .claude
directory is already present and complete, and lists backups left behind
by an interrupted installation.`,
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

			report, err := runCheck(dir, installer.NewDirectoryValidator(),
				installer.NewStructureValidator(installer.WithExtraRequiredFiles(cfg.Install.ExtraRequiredFiles...)))
			if err != nil {
				return &ExitError{Code: ExitUnexpected, Err: err}
			}
			printCheckReport(app.stdout, report)

			if report.TargetErr != nil {
				return &ExitError{Code: classifyExitCode(report.TargetErr), Err: report.TargetErr}
			}
			return nil
		},
	}
}

// runCheck inspects dir. Only unexpected failures are returned as errors;
// findings are recorded in the report.
func runCheck(dir string, validator *installer.DirectoryValidator, structure *installer.StructureValidator) (checkReport, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return checkReport{}, fmt.Errorf("resolving %s: %w", dir, err)
	}

	report := checkReport{Target: abs, TargetErr: validator.Check(abs)}
	var secErr *installer.SecurityError
	if report.TargetErr != nil && errors.As(report.TargetErr, &secErr) &&
		(secErr.Issue == installer.TargetMissing || secErr.Issue == installer.TargetNotDirectory ||
			secErr.Issue == installer.TargetInaccessible) {
		return report, nil
	}

	report.Existing = validator.CheckExistingInstallation(abs)
	if report.Existing {
		report.StructureErr = structure.Validate(filepath.Join(abs, installer.ClaudeDirName))
	}

	report.Backups, err = installer.FindBackups(abs)
	if err != nil {
		return report, fmt.Errorf("listing backups: %w", err)
	}
	return report, nil
}

func printCheckReport(w io.Writer, r checkReport) {
	label := func(s string) string { return CmdStyle.Render(fmt.Sprintf("%-20s", s)) }

	fmt.Fprintln(w, TitleStyle.Render("Target check"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", label("Target:"), r.Target)

	if r.TargetErr != nil {
		reason := r.TargetErr.Error()
		var secErr *installer.SecurityError
		if errors.As(r.TargetErr, &secErr) && secErr.Reason != "" {
			reason = secErr.Reason
		}
		fmt.Fprintf(w, "%s %s\n", label("Directory:"), ErrorStyle.Render("✗ "+reason))
	} else {
		fmt.Fprintf(w, "%s %s\n", label("Directory:"), SuccessStyle.Render("✓ safe and writable"))
	}

	switch {
	case !r.Existing:
		fmt.Fprintf(w, "%s %s\n", label("Installation:"), SubtitleStyle.Render("none"))
	case r.StructureErr == nil:
		fmt.Fprintf(w, "%s %s\n", label("Installation:"), SuccessStyle.Render("✓ present and complete"))
	default:
		msg := "present but incomplete"
		var valErr *installer.ValidationError
		if errors.As(r.StructureErr, &valErr) && len(valErr.Missing) > 0 {
			msg = fmt.Sprintf("present, %d required file(s) missing", len(valErr.Missing))
		}
		fmt.Fprintf(w, "%s %s\n", label("Installation:"), WarningStyle.Render("! "+msg))
		if valErr != nil {
			for _, m := range valErr.Missing {
				fmt.Fprintf(w, "%s   - %s\n", label(""), m)
			}
		}
	}

	if len(r.Backups) > 0 {
		fmt.Fprintf(w, "%s %s\n", label("Leftover backups:"), WarningStyle.Render(fmt.Sprint(len(r.Backups))))
		for _, b := range r.Backups {
			fmt.Fprintf(w, "%s   - %s\n", label(""), b)
		}
	}
}
