// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// Process exit codes.
const (
	ExitOK = iota
	// ExitUserError covers problems the user can fix: an unsafe target, an
	// existing installation, missing permissions or a broken config file.
	ExitUserError
	// ExitNetwork means the archive could not be downloaded.
	ExitNetwork
	// ExitSecurity means the archive itself was rejected.
	ExitSecurity
	// ExitValidation means the downloaded template is incomplete.
	ExitValidation
	// ExitUnexpected covers everything else.
	ExitUnexpected
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}
