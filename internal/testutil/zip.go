// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipEntry describes one archive member. A zero Mode writes a regular 0644
// file. fs.ModeDir writes a directory entry; fs.ModeSymlink writes a symlink
// whose target is Body.
type ZipEntry struct {
	Name string
	Body string
	Mode fs.FileMode
}

// templateFiles is the minimal v3 layout, relative to .claude.
var templateFiles = []string{ //nolint:gochecknoglobals // Test fixture data.
	"scripts/cmat.sh",
	"AGENT_CONTRACTS.json",
	"skills/skills.json",
	"agents/agents.json",
	"queues/task_queue.json",
	"settings.json",
}

// TemplateEntries returns the members of a valid template archive nested
// under root (e.g. "ClaudeMultiAgentTemplate-main"). An empty root produces a
// flat archive. Files named in omit are left out.
func TemplateEntries(root string, omit ...string) []ZipEntry {
	skip := make(map[string]bool, len(omit))
	for _, o := range omit {
		skip[o] = true
	}

	prefix := ".claude/"
	if root != "" {
		prefix = root + "/.claude/"
	}

	entries := []ZipEntry{{Name: prefix, Mode: fs.ModeDir | 0o755}}
	for _, f := range templateFiles {
		if skip[f] {
			continue
		}
		e := ZipEntry{Name: prefix + f, Body: "{}\n"}
		if path.Ext(f) == ".sh" {
			e.Body = "#!/usr/bin/env bash\necho cmat\n"
			e.Mode = 0o755
		}
		entries = append(entries, e)
	}
	return entries
}

// ZipBytes builds an in-memory archive from entries. Names are written
// verbatim so tests can produce hostile archives.
func ZipBytes(t testing.TB, entries ...ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		mode := e.Mode
		switch {
		case mode&fs.ModeDir != 0:
			hdr.Method = zip.Store
		case mode&fs.ModeSymlink != 0:
			mode |= 0o777
		case mode.Perm() == 0:
			mode |= 0o644
		}
		hdr.SetMode(mode)

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("failed to add %q to archive: %v", e.Name, err)
		}
		if mode&fs.ModeDir == 0 {
			if _, err := w.Write([]byte(e.Body)); err != nil {
				t.Fatalf("failed to write %q: %v", e.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish archive: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes an archive built from entries to p.
func WriteZip(t testing.TB, p string, entries ...ZipEntry) {
	t.Helper()
	if err := os.WriteFile(p, ZipBytes(t, entries...), 0o644); err != nil {
		t.Fatalf("failed to write archive %s: %v", p, err)
	}
}
