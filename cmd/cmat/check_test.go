// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/installer"
	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/testutil"
)

func TestCheckCommand_EmptyDirectory(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	run := runCLI(t, newTestApp(t, nil, nil), "check", target)
	if run.err != nil {
		t.Fatalf("check failed: %v", run.err)
	}
	out := run.stdout.String()
	for _, want := range []string{target, "safe and writable", "none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckCommand_MissingDirectory(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope")
	run := runCLI(t, newTestApp(t, nil, nil), "check", missing)
	if got := exitCode(run.err); got != ExitUserError {
		t.Fatalf("exit code = %d, want %d", got, ExitUserError)
	}
	if !strings.Contains(run.stdout.String(), "does not exist") {
		t.Errorf("output should explain the failure:\n%s", run.stdout)
	}
}

func TestRunCheck(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	claude := filepath.Join(target, installer.ClaudeDirName)
	testutil.MustMkdirAll(t, filepath.Join(claude, "scripts"), 0o755)
	testutil.MustWriteFile(t, filepath.Join(claude, "scripts", "cmat.sh"), "#!/bin/sh\n")
	testutil.MustMkdirAll(t, filepath.Join(target, ".claude.backup-1234"), 0o755)

	report, err := runCheck(target, installer.NewDirectoryValidator(), installer.NewStructureValidator())
	if err != nil {
		t.Fatalf("runCheck() error = %v", err)
	}
	if report.TargetErr != nil {
		t.Errorf("TargetErr = %v, want nil", report.TargetErr)
	}
	if !report.Existing {
		t.Error("Existing = false, want true")
	}
	if report.StructureErr == nil {
		t.Error("incomplete installation passed the structure check")
	}
	if len(report.Backups) != 1 {
		t.Errorf("Backups = %v, want one leftover backup", report.Backups)
	}

	var sb strings.Builder
	printCheckReport(&sb, report)
	out := sb.String()
	for _, want := range []string{"5 required file(s) missing", "settings.json", "Leftover backups", ".claude.backup-1234"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
