// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir sets the platform's home directory variable (USERPROFILE on
// Windows, HOME elsewhere) and returns a cleanup function restoring it.
//
//	func TestSomething(t *testing.T) {
//	    t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
//	}
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return MustSetenv(t, "USERPROFILE", dir)
	default:
		return MustSetenv(t, "HOME", dir)
	}
}

// SetConfigHome points both the home directory and XDG_CONFIG_HOME at dir so
// config lookups stay inside the test's temp directory. The returned function
// restores both variables.
func SetConfigHome(t testing.TB, dir string) func() {
	t.Helper()

	restoreHome := SetHomeDir(t, dir)
	restoreXDG := MustSetenv(t, "XDG_CONFIG_HOME", dir)
	return func() {
		restoreXDG()
		restoreHome()
	}
}
