// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/testutil"
)

type (
	// archiveServer serves a swappable archive over TLS and counts requests.
	archiveServer struct {
		srv      *httptest.Server
		requests atomic.Int32

		mu     sync.Mutex
		status int
		body   []byte
	}

	progressLog struct {
		mu     sync.Mutex
		events []ProgressEvent
	}
)

func newArchiveServer(t *testing.T, body []byte) *archiveServer {
	t.Helper()

	as := &archiveServer{status: http.StatusOK, body: body}
	as.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		as.requests.Add(1)
		as.mu.Lock()
		status, data := as.status, as.body
		as.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write(data)
	}))
	t.Cleanup(as.srv.Close)
	return as
}

func (as *archiveServer) set(status int, body []byte) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.status, as.body = status, body
}

func (p *progressLog) record(percent int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ProgressEvent{Percent: percent, Message: message})
}

func (p *progressLog) percents() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.events))
	for i, e := range p.events {
		out[i] = e.Percent
	}
	return out
}

func newTestInstaller(as *archiveServer, opts ...Option) *Installer {
	logger := log.New(io.Discard)
	base := []Option{
		WithLogger(logger),
		WithFetcher(NewArchiveFetcher(WithHTTPClient(as.srv.Client()), WithBaseURL(as.srv.URL))),
		WithExtractor(NewSecureExtractor(WithExtractLogger(logger))),
	}
	return New(append(base, opts...)...)
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// assertOnlyEntries fails unless dir contains exactly the given names,
// which catches leaked temp, staging and backup directories.
func assertOnlyEntries(t *testing.T, dir string, want ...string) {
	t.Helper()
	got, err := readDirNames(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("%s contains %v, want %v", dir, got, want)
	}
}

func TestInstall_FreshDirectory(t *testing.T) {
	t.Parallel()

	as := newArchiveServer(t, testutil.ZipBytes(t, testutil.TemplateEntries("ClaudeMultiAgentTemplate-main")...))
	in := newTestInstaller(as)
	target := t.TempDir()

	var progress progressLog
	if err := in.InstallTo(context.Background(), target, progress.record, false); err != nil {
		t.Fatalf("InstallTo() error = %v", err)
	}

	for _, rel := range requiredV3Files {
		if !testutil.Exists(filepath.Join(target, ClaudeDirName, filepath.FromSlash(rel))) {
			t.Errorf("%s not installed", rel)
		}
	}
	assertOnlyEntries(t, target, ClaudeDirName)

	got := progress.percents()
	if len(got) == 0 || got[len(got)-1] != 100 {
		t.Fatalf("progress = %v, want it to end at 100", got)
	}
	if !slices.IsSorted(got) {
		t.Errorf("progress = %v, want non-decreasing", got)
	}
	if in.Phase() != PhaseCompleted {
		t.Errorf("Phase() = %s, want completed", in.Phase())
	}
	if in.state != (InstallationState{Target: in.Target(), Placed: true}) {
		t.Errorf("state after success = %+v", in.state)
	}
}

func TestInstall_MaliciousArchive(t *testing.T) {
	t.Parallel()

	entries := append(testutil.TemplateEntries("repo-main"),
		testutil.ZipEntry{Name: "../../../../../../tmp/cmat-evil.txt", Body: "pwned"},
		testutil.ZipEntry{Name: "../evil.txt", Body: "pwned"})
	as := newArchiveServer(t, testutil.ZipBytes(t, entries...))
	in := newTestInstaller(as)
	parent := t.TempDir()
	target := filepath.Join(parent, "project")
	testutil.MustMkdirAll(t, target, 0o755)

	err := in.InstallTo(context.Background(), target, nil, false)
	var secErr *SecurityError
	if !errors.As(err, &secErr) {
		t.Fatalf("InstallTo() error = %v, want *SecurityError", err)
	}
	if !strings.Contains(secErr.Entry, "..") {
		t.Errorf("Entry = %q, want the traversal member", secErr.Entry)
	}

	assertOnlyEntries(t, target)
	assertOnlyEntries(t, parent, "project")
	if in.Phase() != PhaseFailed {
		t.Errorf("Phase() = %s, want failed", in.Phase())
	}
}

func TestInstall_InvalidTemplatePreservesExisting(t *testing.T) {
	t.Parallel()

	as := newArchiveServer(t, testutil.ZipBytes(t, testutil.TemplateEntries("repo-main", "queues/task_queue.json")...))
	in := newTestInstaller(as)
	target := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(target, ClaudeDirName, "settings.json"), `{"mine":true}`)
	testutil.MustWriteFile(t, filepath.Join(target, ClaudeDirName, "notes.md"), "keep me")

	err := in.InstallTo(context.Background(), target, nil, true)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("InstallTo() error = %v, want *ValidationError", err)
	}
	if !slices.Equal(valErr.Missing, []string{"queues/task_queue.json"}) {
		t.Errorf("Missing = %v", valErr.Missing)
	}

	if got := testutil.MustReadFile(t, filepath.Join(target, ClaudeDirName, "settings.json")); got != `{"mine":true}` {
		t.Errorf("settings.json = %q, want original", got)
	}
	if got := testutil.MustReadFile(t, filepath.Join(target, ClaudeDirName, "notes.md")); got != "keep me" {
		t.Errorf("notes.md = %q, want original", got)
	}
	assertOnlyEntries(t, target, ClaudeDirName)
}

func TestInstall_SystemDirectoryMakesNoRequest(t *testing.T) {
	t.Parallel()

	if _, err := os.Stat("/usr"); err != nil {
		t.Skip("/usr not present")
	}

	as := newArchiveServer(t, testutil.ZipBytes(t, testutil.TemplateEntries("repo-main")...))
	in := newTestInstaller(as)

	err := in.InstallTo(context.Background(), "/usr", nil, false)
	var secErr *SecurityError
	if !errors.As(err, &secErr) || secErr.Issue != TargetSystemDirectory {
		t.Fatalf("InstallTo(/usr) error = %v, want system directory refusal", err)
	}
	if n := as.requests.Load(); n != 0 {
		t.Errorf("server received %d request(s), want 0", n)
	}
	if in.Phase() != PhaseSelecting {
		t.Errorf("Phase() = %s, want selecting", in.Phase())
	}
}

func TestInstall_ExistingWithoutOverwrite(t *testing.T) {
	t.Parallel()

	as := newArchiveServer(t, testutil.ZipBytes(t, testutil.TemplateEntries("repo-main")...))
	in := newTestInstaller(as)
	target := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(target, ClaudeDirName, "settings.json"), "mine")

	err := in.InstallTo(context.Background(), target, nil, false)
	if !errors.Is(err, ErrInstallationExists) {
		t.Fatalf("InstallTo() error = %v, want ErrInstallationExists", err)
	}
	var insErr *InstallError
	if !errors.As(err, &insErr) || insErr.Step != StepValidateTarget {
		t.Errorf("error = %v, want *InstallError at validate target", err)
	}
	if n := as.requests.Load(); n != 0 {
		t.Errorf("server received %d request(s), want 0", n)
	}
	if got := testutil.MustReadFile(t, filepath.Join(target, ClaudeDirName, "settings.json")); got != "mine" {
		t.Errorf("settings.json = %q, want untouched", got)
	}
}

func TestInstall_OverwriteReplacesAndDiscardsBackup(t *testing.T) {
	t.Parallel()

	as := newArchiveServer(t, testutil.ZipBytes(t, testutil.TemplateEntries("repo-main")...))
	in := newTestInstaller(as)
	target := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(target, ClaudeDirName, "stale.txt"), "old")

	var progress progressLog
	if err := in.InstallTo(context.Background(), target, progress.record, true); err != nil {
		t.Fatalf("InstallTo() error = %v", err)
	}
	if testutil.Exists(filepath.Join(target, ClaudeDirName, "stale.txt")) {
		t.Error("old installation content survived the overwrite")
	}
	if !testutil.Exists(filepath.Join(target, ClaudeDirName, "settings.json")) {
		t.Error("new installation not placed")
	}
	assertOnlyEntries(t, target, ClaudeDirName)
	if !slices.Contains(progress.percents(), StepBackup.Percent()) {
		t.Errorf("progress %v has no backup checkpoint", progress.percents())
	}
}

func TestInstall_NetworkFailureThenRetry(t *testing.T) {
	t.Parallel()

	as := newArchiveServer(t, nil)
	as.set(http.StatusBadGateway, []byte("upstream down"))
	in := newTestInstaller(as)
	target := t.TempDir()

	err := in.InstallTo(context.Background(), target, nil, false)
	var netErr *NetworkError
	if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("InstallTo() error = %v, want *NetworkError 502", err)
	}
	assertOnlyEntries(t, target)
	if in.Phase() != PhaseFailed {
		t.Fatalf("Phase() = %s, want failed", in.Phase())
	}

	as.set(http.StatusOK, testutil.ZipBytes(t, testutil.TemplateEntries("repo-main")...))
	if err := in.Install(context.Background(), nil, false); err != nil {
		t.Fatalf("retry Install() error = %v", err)
	}
	if n := as.requests.Load(); n != 2 {
		t.Errorf("server received %d request(s), want 2", n)
	}
	assertOnlyEntries(t, target, ClaudeDirName)
}

func TestInstall_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	as := newArchiveServer(t, testutil.ZipBytes(t, testutil.TemplateEntries("repo-main")...))
	in := newTestInstaller(as, WithExpectedSHA256(strings.Repeat("ab", 32)))
	target := t.TempDir()

	err := in.InstallTo(context.Background(), target, nil, false)
	var secErr *SecurityError
	if !errors.As(err, &secErr) {
		t.Fatalf("InstallTo() error = %v, want *SecurityError", err)
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("error = %v, want it to wrap ErrChecksumMismatch", err)
	}
	assertOnlyEntries(t, target)
}

func TestInstall_RequiresReadyPhase(t *testing.T) {
	t.Parallel()

	as := newArchiveServer(t, nil)
	in := newTestInstaller(as)

	err := in.Install(context.Background(), nil, false)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Install() before SelectTarget error = %v, want ErrInvalidTransition", err)
	}
	if n := as.requests.Load(); n != 0 {
		t.Errorf("server received %d request(s), want 0", n)
	}
}

func TestSelectTarget(t *testing.T) {
	t.Parallel()

	in := newTestInstaller(newArchiveServer(t, nil))

	if err := in.SelectTarget(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrSecurity) {
		t.Fatalf("SelectTarget(missing) error = %v, want security error", err)
	}
	if in.Phase() != PhaseSelecting || in.Target() != "" {
		t.Errorf("after failure: phase %s target %q", in.Phase(), in.Target())
	}

	dir := t.TempDir()
	if err := in.SelectTarget(dir); err != nil {
		t.Fatalf("SelectTarget() error = %v", err)
	}
	if in.Phase() != PhaseReady {
		t.Errorf("Phase() = %s, want ready", in.Phase())
	}
	abs, _ := filepath.Abs(dir)
	if in.Target() != abs {
		t.Errorf("Target() = %q, want %q", in.Target(), abs)
	}
}

func TestInstall_UnexpectedFailureIsWrapped(t *testing.T) {
	t.Parallel()

	as := newArchiveServer(t, []byte("this is not a zip archive"))
	in := newTestInstaller(as)
	target := t.TempDir()

	err := in.InstallTo(context.Background(), target, nil, false)
	var insErr *InstallError
	if !errors.As(err, &insErr) {
		t.Fatalf("InstallTo() error = %v, want *InstallError", err)
	}
	if insErr.Step != StepExtract {
		t.Errorf("Step = %s, want extract", insErr.Step)
	}
	assertOnlyEntries(t, target)
}

// The placement tests swap the package-level rename and therefore do not run
// in parallel.

func TestInstall_PlaceFailureRestoresBackup(t *testing.T) {
	errBusy := errors.New("device or resource busy")

	tests := []struct {
		name string
		fail func(oldpath string) bool
	}{
		{
			name: "new tree cannot be moved in",
			fail: func(oldpath string) bool {
				return strings.Contains(filepath.ToSlash(oldpath), "/staging/")
			},
		},
		{
			name: "previous tree cannot be moved back",
			fail: func(oldpath string) bool {
				return strings.Contains(filepath.ToSlash(oldpath), "/staging/") || filepath.Base(oldpath) == "previous"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := rename
			t.Cleanup(func() { rename = original })
			rename = func(oldpath, newpath string) error {
				if tt.fail(oldpath) {
					return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errBusy}
				}
				return original(oldpath, newpath)
			}

			as := newArchiveServer(t, testutil.ZipBytes(t, testutil.TemplateEntries("repo-main")...))
			in := newTestInstaller(as)
			target := t.TempDir()
			testutil.MustWriteFile(t, filepath.Join(target, ClaudeDirName, "settings.json"), `{"mine":true}`)
			testutil.MustWriteFile(t, filepath.Join(target, ClaudeDirName, "agents", "custom.md"), "keep me")

			var progress progressLog
			err := in.InstallTo(context.Background(), target, progress.record, true)
			if !errors.Is(err, errBusy) {
				t.Fatalf("InstallTo() error = %v, want the rename failure", err)
			}
			var insErr *InstallError
			if !errors.As(err, &insErr) || insErr.Step != StepPlace {
				t.Errorf("error = %v, want *InstallError at place", err)
			}
			if !slices.Contains(progress.percents(), StepBackup.Percent()) {
				t.Errorf("progress %v: failure happened before the backup step", progress.percents())
			}
			if in.Phase() != PhaseFailed {
				t.Errorf("Phase() = %s, want failed", in.Phase())
			}

			if got := testutil.MustReadFile(t, filepath.Join(target, ClaudeDirName, "settings.json")); got != `{"mine":true}` {
				t.Errorf("settings.json = %q, want original", got)
			}
			if got := testutil.MustReadFile(t, filepath.Join(target, ClaudeDirName, "agents", "custom.md")); got != "keep me" {
				t.Errorf("agents/custom.md = %q, want original", got)
			}
			if testutil.Exists(filepath.Join(target, ClaudeDirName, "scripts", "cmat.sh")) {
				t.Error("template files leaked into the restored installation")
			}
			// No working directory, aside copy or backup may survive.
			assertOnlyEntries(t, target, ClaudeDirName)
		})
	}
}
