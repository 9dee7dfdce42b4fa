// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSecurity is the sentinel wrapped by SecurityError.
	ErrSecurity = errors.New("security violation")
	// ErrNetwork is the sentinel wrapped by NetworkError.
	ErrNetwork = errors.New("network failure")
	// ErrValidation is the sentinel wrapped by ValidationError.
	ErrValidation = errors.New("template validation failed")
	// ErrInstall is the sentinel wrapped by InstallError.
	ErrInstall = errors.New("installation failed")

	// ErrInstallationExists is returned when the target already holds a .claude
	// directory and the caller did not ask to overwrite it.
	ErrInstallationExists = errors.New("existing installation found")
	// ErrInvalidTransition is returned when an entry point is called from a
	// phase that does not allow it (e.g. Install before SelectTarget).
	ErrInvalidTransition = errors.New("invalid installer state transition")
	// ErrArchiveTooLarge is returned when the download exceeds the configured size cap.
	ErrArchiveTooLarge = errors.New("archive exceeds maximum download size")
)

// TargetIssue classifies why a target directory was refused.
type TargetIssue int

const (
	// TargetOK means the directory passed every check.
	TargetOK TargetIssue = iota
	// TargetMissing means the path does not exist.
	TargetMissing
	// TargetNotDirectory means the path exists but is not a directory.
	TargetNotDirectory
	// TargetSystemDirectory means the path is, or is nested under, a protected system directory.
	TargetSystemDirectory
	// TargetNotWritable means a probe file could not be created in the directory.
	TargetNotWritable
	// TargetInaccessible means the path could not be inspected (permission
	// denied on a parent, a file used as a parent directory).
	TargetInaccessible
)

type (
	// SecurityError reports an unsafe install target or an archive entry that
	// tried to escape the extraction root. Security errors are never retriable.
	SecurityError struct {
		// Path is the target directory or archive file involved.
		Path string
		// Entry is the offending archive member, empty for target errors.
		Entry string
		// Issue classifies target directory failures; TargetOK for archive errors.
		Issue TargetIssue
		// Reason is a short human-readable explanation.
		Reason string
		// Err is an optional underlying cause (e.g. *ChecksumError).
		Err error
	}

	// NetworkError reports a failed archive download. The caller may retry by
	// invoking Install again.
	NetworkError struct {
		URL        string // Redacted request URL
		StatusCode int    // HTTP status, 0 when no response was received
		Err        error
	}

	// ValidationError reports an extracted tree that does not satisfy the
	// required-file manifest. Missing lists every absent file, not just the first.
	ValidationError struct {
		Dir     string
		Missing []string
		Reason  string
	}

	// InstallError wraps failures that fall outside the typed categories above,
	// such as a filesystem error while swapping directories.
	InstallError struct {
		Step Step
		Err  error
	}
)

// Error implements the error interface.
func (e *SecurityError) Error() string {
	var sb strings.Builder
	sb.WriteString("security violation")
	if e.Entry != "" {
		fmt.Fprintf(&sb, ": unsafe archive entry %q", e.Entry)
	} else if e.Path != "" {
		fmt.Fprintf(&sb, ": %s", e.Path)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the ErrSecurity sentinel and the underlying cause.
func (e *SecurityError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSecurity, e.Err}
	}
	return []error{ErrSecurity}
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	msg := "downloading template archive"
	if e.URL != "" {
		msg += " from " + e.URL
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": unexpected status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the ErrNetwork sentinel and the underlying cause.
func (e *NetworkError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNetwork, e.Err}
	}
	return []error{ErrNetwork}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := "template validation failed for " + e.Dir
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(": missing %d required file(s): %s", len(e.Missing), strings.Join(e.Missing, ", "))
	}
	return msg
}

// Unwrap returns ErrValidation so callers can use errors.Is.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("installation failed during %s", e.Step)
	}
	return fmt.Sprintf("installation failed during %s: %v", e.Step, e.Err)
}

// Unwrap exposes both the ErrInstall sentinel and the underlying cause.
func (e *InstallError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInstall, e.Err}
	}
	return []error{ErrInstall}
}

// String returns a short label for the target issue.
func (i TargetIssue) String() string {
	switch i {
	case TargetOK:
		return "ok"
	case TargetMissing:
		return "does not exist"
	case TargetNotDirectory:
		return "is not a directory"
	case TargetSystemDirectory:
		return "is a system directory"
	case TargetNotWritable:
		return "not writable"
	case TargetInaccessible:
		return "cannot be inspected"
	}
	return fmt.Sprintf("TargetIssue(%d)", int(i))
}

// isTyped reports whether err already belongs to one of the public categories,
// in which case the orchestrator returns it unchanged.
func isTyped(err error) bool {
	var (
		secErr *SecurityError
		netErr *NetworkError
		valErr *ValidationError
		insErr *InstallError
	)
	return errors.As(err, &secErr) || errors.As(err, &netErr) ||
		errors.As(err, &valErr) || errors.As(err, &insErr)
}
