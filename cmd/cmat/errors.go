// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/installer"
	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/issue"
	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/tui"
)

// classifyExitCode maps an error returned by a command to a process exit code.
func classifyExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var secErr *installer.SecurityError
	if errors.As(err, &secErr) {
		if secErr.Issue != installer.TargetOK {
			return ExitUserError
		}
		return ExitSecurity
	}

	var ae *issue.ActionableError
	switch {
	case errors.Is(err, installer.ErrInstallationExists),
		errors.Is(err, tui.ErrCancelled),
		errors.Is(err, os.ErrPermission):
		return ExitUserError
	case errors.Is(err, installer.ErrNetwork):
		return ExitNetwork
	case errors.Is(err, installer.ErrValidation):
		return ExitValidation
	case errors.As(err, &ae) && ae.IssueID == issue.ConfigLoadFailedID:
		return ExitUserError
	default:
		return ExitUnexpected
	}
}

// toActionable attaches an operation, suggestions and a catalog issue to
// installer errors. Errors that already carry context are returned as-is.
func toActionable(err error, target string) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	ctx := issue.NewErrorContext().WithOperation("install CMAT template").WithResource(target).Wrap(err)

	var (
		secErr *installer.SecurityError
		netErr *installer.NetworkError
		valErr *installer.ValidationError
	)
	switch {
	case errors.As(err, &secErr) && secErr.Issue == installer.TargetSystemDirectory:
		ctx.WithIssue(issue.SystemDirectoryID).
			WithSuggestion("Choose a project directory, for example one under your home directory")
	case errors.As(err, &secErr) && secErr.Issue == installer.TargetNotWritable:
		ctx.WithIssue(issue.TargetNotWritableID).
			WithSuggestion("Check the directory permissions or pick another directory")
	case errors.As(err, &secErr) && secErr.Issue == installer.TargetInaccessible:
		ctx.WithIssue(issue.PermissionDeniedID).
			WithSuggestion("Check that every parent of the path is a directory you can read")
	case errors.As(err, &secErr) && secErr.Issue != installer.TargetOK:
		ctx.WithIssue(issue.TargetNotFoundID).
			WithSuggestion("Create the directory first or check the path for typos")
	case errors.Is(err, installer.ErrChecksumMismatch):
		ctx.WithIssue(issue.ChecksumMismatchID).
			WithSuggestion("Make sure download.sha256 matches the ref you are installing")
	case errors.As(err, &secErr):
		ctx.WithIssue(issue.UnsafeArchiveID).
			WithSuggestion("Do not install from this source; report the archive to its maintainers")
	case errors.Is(err, installer.ErrInstallationExists):
		ctx.WithIssue(issue.InstallationExistsID).
			WithSuggestions("Re-run with --overwrite to replace it", "Or remove the .claude directory yourself")
	case errors.Is(err, installer.ErrArchiveTooLarge):
		ctx.WithIssue(issue.ArchiveTooLargeID).
			WithSuggestion("Raise download.max_bytes if the template legitimately grew")
	case errors.As(err, &netErr):
		ctx.WithIssue(issue.DownloadFailedID).WithSuggestion("Check your network connection and run the command again")
		if installer.IsTimeout(err) {
			ctx.WithSuggestion("Increase download.timeout (or CMAT_DOWNLOAD_TIMEOUT) on slow connections")
		}
		if netErr.StatusCode == 403 || netErr.StatusCode == 429 {
			ctx.WithSuggestion("Set GITHUB_TOKEN to raise the GitHub rate limit")
		}
	case errors.As(err, &valErr):
		ctx.WithIssue(issue.TemplateInvalidID).
			WithSuggestion("Check that source.ref points at a v3 release of the template")
	case errors.Is(err, os.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedID).
			WithSuggestion("Check ownership of the target directory")
	default:
		ctx.WithIssue(issue.InstallFailedID).
			WithSuggestion("Run again with --verbose for the full error chain")
	}
	return ctx.Build()
}

// formatErrorForDisplay renders err for the terminal. Verbose mode adds the
// error chain and the catalog entry rendered as Markdown.
func formatErrorForDisplay(err error, target string, verbose bool, glamourStyle string) string {
	ae := toActionable(err, target)

	var sb strings.Builder
	sb.WriteString(ErrorStyle.Render("Error: "))
	sb.WriteString(ae.Format(verbose))
	if verbose {
		if is := ae.Issue(); is != nil {
			if rendered, renderErr := is.Render(glamourStyle); renderErr == nil {
				sb.WriteString("\n")
				sb.WriteString(rendered)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
