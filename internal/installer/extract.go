// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/platform"
)

const (
	// DefaultMaxFileBytes caps a single extracted file (50 MB).
	DefaultMaxFileBytes int64 = 50 << 20
	// DefaultMaxTotalBytes caps the sum of all extracted files (500 MB).
	DefaultMaxTotalBytes int64 = 500 << 20
	// DefaultMaxEntries caps the number of archive members.
	DefaultMaxEntries = 20000

	// suspiciousChars are illegal in Windows file names. They are not a
	// traversal vector on their own, see SecureExtractor.strictNames.
	suspiciousChars = `<>:"|?*`
)

type (
	// SecureExtractor unpacks a template archive into a staging directory.
	// Every member is validated before anything is written for it.
	SecureExtractor struct {
		logger        *log.Logger
		strictNames   bool
		maxFileBytes  int64
		maxTotalBytes int64
		maxEntries    int
	}

	// ExtractorOption configures a SecureExtractor.
	ExtractorOption func(*SecureExtractor)
)

// WithStrictNames turns the illegal-character check from a logged warning
// into a hard *SecurityError.
func WithStrictNames(strict bool) ExtractorOption {
	return func(e *SecureExtractor) {
		e.strictNames = strict
	}
}

// WithMaxFileBytes caps the uncompressed size of a single member.
func WithMaxFileBytes(n int64) ExtractorOption {
	return func(e *SecureExtractor) {
		e.maxFileBytes = n
	}
}

// WithMaxTotalBytes caps the total uncompressed size of the archive.
func WithMaxTotalBytes(n int64) ExtractorOption {
	return func(e *SecureExtractor) {
		e.maxTotalBytes = n
	}
}

// WithMaxEntries caps the number of members an archive may contain.
func WithMaxEntries(n int) ExtractorOption {
	return func(e *SecureExtractor) {
		e.maxEntries = n
	}
}

// WithExtractLogger sets the logger used for advisory warnings.
func WithExtractLogger(l *log.Logger) ExtractorOption {
	return func(e *SecureExtractor) {
		e.logger = l
	}
}

// NewSecureExtractor returns an extractor with the default size limits and
// advisory (non-strict) name checking.
func NewSecureExtractor(opts ...ExtractorOption) *SecureExtractor {
	e := &SecureExtractor{
		maxFileBytes:  DefaultMaxFileBytes,
		maxTotalBytes: DefaultMaxTotalBytes,
		maxEntries:    DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = newDefaultLogger()
	}
	return e
}

// IsSafeEntry reports whether name may be extracted under root.
func (e *SecureExtractor) IsSafeEntry(root, name string) bool {
	return e.ValidateEntry(root, name) == nil
}

// ValidateEntry applies the entry checks in order:
//  1. no ".." path segment
//  2. not absolute (leading separator or drive letter)
//  3. the joined, symlink-resolved path stays strictly inside root
//  4. no Windows-illegal characters (advisory unless strict)
//
// Checks 1 and 2 are fast rejections; check 3 is the binding one.
func (e *SecureExtractor) ValidateEntry(root, name string) error {
	_, err := e.safeTarget(root, name)
	return err
}

// Extract unpacks zipPath into stagingDir and returns the path of the
// extracted .claude directory. On the first unsafe member it removes
// everything already written to stagingDir and returns a *SecurityError
// naming that member.
func (e *SecureExtractor) Extract(zipPath, stagingDir string) (_ string, err error) {
	// The reader may flag insecure member names while still returning a
	// usable archive; every member goes through safeTarget regardless.
	zr, err := zip.OpenReader(zipPath)
	if zr == nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	err = nil
	defer func() {
		// Read-only archive handle.
		_ = zr.Close()
	}()

	if e.maxEntries > 0 && len(zr.File) > e.maxEntries {
		return "", &SecurityError{
			Path:   zipPath,
			Reason: fmt.Sprintf("archive has %d entries (limit %d)", len(zr.File), e.maxEntries),
		}
	}

	defer func() {
		if err != nil {
			clearDir(stagingDir)
		}
	}()

	var total int64
	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		target, vErr := e.safeTarget(stagingDir, zf.Name)
		if vErr != nil {
			return "", vErr
		}

		mode := zf.Mode()
		if mode&os.ModeSymlink != 0 {
			return "", entryError(zf.Name, "symbolic links are not allowed")
		}
		if !mode.IsDir() && !mode.IsRegular() {
			return "", entryError(zf.Name, "unsupported entry type "+mode.Type().String())
		}
		names = append(names, zf.Name)

		if mode.IsDir() || strings.HasSuffix(zf.Name, "/") {
			if mkErr := os.MkdirAll(target, 0o755); mkErr != nil {
				return "", fmt.Errorf("creating directory for %s: %w", zf.Name, mkErr)
			}
			continue
		}

		if e.maxFileBytes > 0 && zf.UncompressedSize64 > uint64(e.maxFileBytes) {
			return "", entryError(zf.Name, fmt.Sprintf("declared size %d exceeds limit %d", zf.UncompressedSize64, e.maxFileBytes))
		}

		n, wErr := e.writeEntry(zf, target)
		if wErr != nil {
			return "", wErr
		}
		total += n
		if e.maxTotalBytes > 0 && total > e.maxTotalBytes {
			return "", &SecurityError{
				Path:   zipPath,
				Reason: fmt.Sprintf("archive expands beyond %d bytes", e.maxTotalBytes),
			}
		}
	}

	e.logger.Debug("archive extracted", "entries", len(names), "bytes", total, "staging", stagingDir)

	return locateClaudeDir(stagingDir, names), nil
}

// safeTarget validates name and returns the filesystem path it extracts to.
func (e *SecureExtractor) safeTarget(root, name string) (string, error) {
	if name == "" {
		return "", entryError(name, "empty entry name")
	}
	if strings.ContainsRune(name, 0) {
		return "", entryError(name, "entry name contains a NUL byte")
	}

	slashed := strings.ReplaceAll(name, `\`, "/")

	for seg := range strings.SplitSeq(slashed, "/") {
		if seg == ".." {
			return "", entryError(name, "path contains a parent directory reference")
		}
	}

	if strings.HasPrefix(slashed, "/") || hasDriveLetter(slashed) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", entryError(name, "absolute paths are not allowed")
	}

	target, err := containedPath(root, slashed)
	if err != nil {
		return "", &SecurityError{Entry: name, Reason: "path escapes the extraction directory", Err: err}
	}

	if c, ok := firstSuspiciousChar(slashed); ok {
		if e.strictNames {
			return "", entryError(name, fmt.Sprintf("illegal character %q in file name", c))
		}
		e.logger.Warn("archive entry contains a character that is illegal on some filesystems",
			"entry", name, "char", string(c))
	}
	if seg, ok := platform.ReservedSegment(slashed); ok {
		if e.strictNames {
			return "", entryError(name, fmt.Sprintf("reserved device name %q in path", seg))
		}
		e.logger.Warn("archive entry uses a reserved Windows device name", "entry", name, "segment", seg)
	}

	return target, nil
}

// writeEntry copies one regular member to target, enforcing the per-file cap
// on the actual decompressed stream rather than the declared header size.
func (e *SecureExtractor) writeEntry(zf *zip.File, target string) (_ int64, err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("creating parent directory for %s: %w", zf.Name, err)
	}

	rc, err := zf.Open()
	if err != nil {
		return 0, fmt.Errorf("reading archive entry %s: %w", zf.Name, err)
	}
	defer func() { _ = rc.Close() }() // read-only entry stream

	perm := zf.Mode().Perm() | 0o600
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", zf.Name, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", zf.Name, closeErr)
		}
	}()

	var src io.Reader = rc
	if e.maxFileBytes > 0 {
		src = io.LimitReader(rc, e.maxFileBytes+1)
	}
	n, err := io.Copy(out, src)
	if err != nil {
		return n, fmt.Errorf("extracting %s: %w", zf.Name, err)
	}
	if e.maxFileBytes > 0 && n > e.maxFileBytes {
		return n, entryError(zf.Name, fmt.Sprintf("decompressed size exceeds limit %d", e.maxFileBytes))
	}
	return n, nil
}

// containedPath joins rel onto the resolved root and returns the joined path
// if, after resolving symlinks of its deepest existing ancestor, it is still
// strictly inside root.
func containedPath(root, rel string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving extraction root: %w", err)
	}
	rootResolved, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return "", fmt.Errorf("resolving extraction root: %w", err)
	}

	target := filepath.Join(rootResolved, filepath.FromSlash(rel))
	resolved, err := resolveExistingPrefix(target)
	if err != nil {
		return "", err
	}

	r, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	if r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", fmt.Errorf("%s is not inside %s", resolved, rootResolved)
	}
	return target, nil
}

// resolveExistingPrefix resolves symlinks in the longest existing ancestor of
// p and re-appends the components that do not exist yet.
func resolveExistingPrefix(p string) (string, error) {
	var rest []string
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

// locateClaudeDir returns the .claude directory inside the staging tree. A
// codeload archive nests everything under "<repo>-<ref>/"; flat archives put
// .claude at the top level.
func locateClaudeDir(stagingDir string, names []string) string {
	flat := filepath.Join(stagingDir, ClaudeDirName)
	if info, err := os.Stat(flat); err == nil && info.IsDir() {
		return flat
	}
	for _, name := range names {
		first, _, found := strings.Cut(strings.ReplaceAll(name, `\`, "/"), "/")
		if found && first != "" && first != "." && first != ClaudeDirName {
			return filepath.Join(stagingDir, first, ClaudeDirName)
		}
	}
	return flat
}

// clearDir removes everything inside dir but keeps dir itself.
func clearDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		_ = os.RemoveAll(filepath.Join(dir, entry.Name()))
	}
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func firstSuspiciousChar(p string) (rune, bool) {
	for _, c := range p {
		if c < 0x20 || strings.ContainsRune(suspiciousChars, c) {
			return c, true
		}
	}
	return 0, false
}

func entryError(name, reason string) *SecurityError {
	return &SecurityError{Entry: name, Reason: reason}
}
