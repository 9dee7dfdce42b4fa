// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// ClaudeDirName is the directory the template installs into the target.
const ClaudeDirName = ".claude"

// defaultSystemDirectories are the protected path prefixes. A target equal to
// or nested under any of them is refused.
var defaultSystemDirectories = []string{ //nolint:gochecknoglobals // Copied into each validator, never mutated.
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/lib",
	"/lib64",
	"/proc",
	"/sbin",
	"/sys",
	"/usr",
	"/System",
	"/Library",
	`C:\Windows`,
	`C:\Program Files`,
	`C:\Program Files (x86)`,
	`C:\ProgramData`,
}

// filesystemRoots are refused on exact match only; everything lives under them.
var filesystemRoots = []string{"/", `C:\`} //nolint:gochecknoglobals // Copied into each validator, never mutated.

type (
	// DirectoryValidator decides whether a directory is a safe install target.
	// Its deny-list is fixed at construction time.
	DirectoryValidator struct {
		systemDirs      []string
		roots           []string
		caseInsensitive bool
	}

	// DirectoryValidatorOption configures a DirectoryValidator.
	DirectoryValidatorOption func(*DirectoryValidator)
)

// WithSystemDirectories replaces the protected directory table.
func WithSystemDirectories(dirs ...string) DirectoryValidatorOption {
	return func(v *DirectoryValidator) {
		v.systemDirs = slices.Clone(dirs)
	}
}

// WithCaseInsensitivePaths forces case-insensitive deny-list matching on or off.
// The default follows the host: on for windows and darwin, off elsewhere.
func WithCaseInsensitivePaths(enabled bool) DirectoryValidatorOption {
	return func(v *DirectoryValidator) {
		v.caseInsensitive = enabled
	}
}

// NewDirectoryValidator returns a validator using the built-in deny-list.
func NewDirectoryValidator(opts ...DirectoryValidatorOption) *DirectoryValidator {
	v := &DirectoryValidator{
		systemDirs:      slices.Clone(defaultSystemDirectories),
		roots:           slices.Clone(filesystemRoots),
		caseInsensitive: runtime.GOOS == "windows" || runtime.GOOS == "darwin",
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SystemDirectories returns a copy of the protected directory table.
func (v *DirectoryValidator) SystemDirectories() []string {
	return slices.Clone(v.systemDirs)
}

// ValidateTargetDirectory reports whether path is usable as an install target.
// On failure the message names the first failing check.
func (v *DirectoryValidator) ValidateTargetDirectory(path string) (bool, string) {
	if err := v.Check(path); err != nil {
		var secErr *SecurityError
		if errors.As(err, &secErr) {
			return false, secErr.Reason
		}
		return false, err.Error()
	}
	return true, "Valid installation directory: " + path
}

// Check runs the target checks in order (existence, directory, system
// deny-list, writability) and returns a *SecurityError for the first failure.
// A stat failure other than non-existence is reported as TargetInaccessible.
func (v *DirectoryValidator) Check(path string) error {
	if strings.TrimSpace(path) == "" {
		return &SecurityError{Issue: TargetMissing, Reason: "Directory does not exist: no path given"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &SecurityError{
				Path:   path,
				Issue:  TargetMissing,
				Reason: "Directory does not exist: " + path,
			}
		}
		return &SecurityError{
			Path:   path,
			Issue:  TargetInaccessible,
			Reason: "Directory cannot be inspected: " + path,
			Err:    err,
		}
	}
	if !info.IsDir() {
		return &SecurityError{
			Path:   path,
			Issue:  TargetNotDirectory,
			Reason: "Path is not a directory: " + path,
		}
	}

	for _, candidate := range candidatePaths(path) {
		if dir, ok := v.protectedBy(candidate); ok {
			return &SecurityError{
				Path:   path,
				Issue:  TargetSystemDirectory,
				Reason: fmt.Sprintf("%s is a system directory (protected: %s)", path, dir),
			}
		}
	}

	if err := probeWritable(path); err != nil {
		return &SecurityError{
			Path:   path,
			Issue:  TargetNotWritable,
			Reason: "Directory is not writable: " + path,
			Err:    err,
		}
	}

	return nil
}

// CheckExistingInstallation reports whether path already contains a .claude directory.
func (v *DirectoryValidator) CheckExistingInstallation(path string) bool {
	_, err := os.Stat(filepath.Join(path, ClaudeDirName))
	return err == nil
}

// protectedBy returns the deny-list entry that covers path, if any.
func (v *DirectoryValidator) protectedBy(path string) (string, bool) {
	for _, root := range v.roots {
		if v.samePath(path, root) {
			return root, true
		}
	}
	for _, dir := range v.systemDirs {
		if v.samePath(path, dir) || v.nestedUnder(path, dir) {
			return dir, true
		}
	}
	return "", false
}

func (v *DirectoryValidator) samePath(a, b string) bool {
	a, b = normalizeForCompare(a), normalizeForCompare(b)
	if v.caseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func (v *DirectoryValidator) nestedUnder(path, dir string) bool {
	p, d := normalizeForCompare(path), normalizeForCompare(dir)
	if v.caseInsensitive {
		p, d = strings.ToLower(p), strings.ToLower(d)
	}
	d = strings.TrimSuffix(d, "/")
	return strings.HasPrefix(p, d+"/")
}

// normalizeForCompare cleans a path and uses forward slashes so Windows and
// POSIX deny-list entries compare the same way on every host.
func normalizeForCompare(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") && !strings.HasSuffix(p, ":/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// candidatePaths returns the absolute form of path and, when it differs, the
// symlink-resolved form, so a link pointing into a system directory is caught.
func candidatePaths(path string) []string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	out := []string{abs}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
		out = append(out, resolved)
	}
	return out
}

// probeWritable creates and removes a throwaway file in dir.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".cmat-write-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Remove(name)
}
