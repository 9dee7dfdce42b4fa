// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/installer"
	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/issue"
	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/tui"
)

func TestClassifyExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"system directory", &installer.SecurityError{Path: "/etc", Issue: installer.TargetSystemDirectory}, ExitUserError},
		{"missing target", &installer.SecurityError{Path: "/nope", Issue: installer.TargetMissing}, ExitUserError},
		{"inaccessible target", &installer.SecurityError{Path: "/x/y", Issue: installer.TargetInaccessible}, ExitUserError},
		{"unsafe entry", &installer.SecurityError{Entry: "../x"}, ExitSecurity},
		{"checksum", &installer.SecurityError{Err: &installer.ChecksumError{Expected: "a", Got: "b"}}, ExitSecurity},
		{"exists", &installer.InstallError{Step: installer.StepValidateTarget, Err: installer.ErrInstallationExists}, ExitUserError},
		{"cancelled", fmt.Errorf("prompt: %w", tui.ErrCancelled), ExitUserError},
		{"permission", &installer.InstallError{Step: installer.StepPlace, Err: &fs.PathError{Op: "rename", Path: "x", Err: fs.ErrPermission}}, ExitUserError},
		{"network", &installer.NetworkError{StatusCode: 503}, ExitNetwork},
		{"validation", &installer.ValidationError{Dir: "x", Missing: []string{"settings.json"}}, ExitValidation},
		{"config", issue.NewErrorContext().WithOperation("load configuration").WithIssue(issue.ConfigLoadFailedID).BuildError(), ExitUserError},
		{"other", errors.New("disk on fire"), ExitUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyExitCode(tt.err); got != tt.want {
				t.Errorf("classifyExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestToActionable_LinksIssues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.ID
	}{
		{"system directory", &installer.SecurityError{Issue: installer.TargetSystemDirectory}, issue.SystemDirectoryID},
		{"not writable", &installer.SecurityError{Issue: installer.TargetNotWritable}, issue.TargetNotWritableID},
		{"not a directory", &installer.SecurityError{Issue: installer.TargetNotDirectory}, issue.TargetNotFoundID},
		{"inaccessible", &installer.SecurityError{Issue: installer.TargetInaccessible}, issue.PermissionDeniedID},
		{"checksum", &installer.SecurityError{Err: &installer.ChecksumError{}}, issue.ChecksumMismatchID},
		{"unsafe entry", &installer.SecurityError{Entry: "/etc/passwd"}, issue.UnsafeArchiveID},
		{"exists", &installer.InstallError{Err: installer.ErrInstallationExists}, issue.InstallationExistsID},
		{"too large", &installer.NetworkError{Err: installer.ErrArchiveTooLarge}, issue.ArchiveTooLargeID},
		{"download", &installer.NetworkError{StatusCode: 404}, issue.DownloadFailedID},
		{"validation", &installer.ValidationError{Dir: "x"}, issue.TemplateInvalidID},
		{"permission", fmt.Errorf("mkdir: %w", fs.ErrPermission), issue.PermissionDeniedID},
		{"other", errors.New("boom"), issue.InstallFailedID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ae := toActionable(tt.err, "/work/app")
			if ae.IssueID != tt.want {
				t.Errorf("IssueID = %d, want %d", ae.IssueID, tt.want)
			}
			if !ae.HasSuggestions() {
				t.Error("no suggestions attached")
			}
			if !errors.Is(ae, tt.err) {
				t.Error("cause lost")
			}
		})
	}
}

func TestToActionable_RateLimitSuggestsToken(t *testing.T) {
	t.Parallel()

	ae := toActionable(&installer.NetworkError{StatusCode: 403}, "")
	if !strings.Contains(strings.Join(ae.Suggestions, "\n"), "GITHUB_TOKEN") {
		t.Errorf("suggestions = %v, want a GITHUB_TOKEN hint", ae.Suggestions)
	}
}

func TestToActionable_KeepsExistingContext(t *testing.T) {
	t.Parallel()

	original := issue.NewErrorContext().WithOperation("load configuration").Build()
	if got := toActionable(fmt.Errorf("wrapped: %w", original), "x"); got != original {
		t.Errorf("toActionable() = %+v, want the original ActionableError", got)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	err := &installer.InstallError{Step: installer.StepValidateTarget, Err: installer.ErrInstallationExists}

	plain := formatErrorForDisplay(err, "/work/app", false, "notty")
	if !strings.Contains(plain, "--overwrite") || strings.Contains(plain, "Error chain:") {
		t.Errorf("non-verbose output:\n%s", plain)
	}

	verbose := formatErrorForDisplay(err, "/work/app", true, "notty")
	if !strings.Contains(verbose, "Error chain:") {
		t.Errorf("verbose output lacks the error chain:\n%s", verbose)
	}
	if !strings.Contains(verbose, "Existing installation found") {
		t.Errorf("verbose output lacks the rendered issue:\n%s", verbose)
	}
}
