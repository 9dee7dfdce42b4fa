// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/testutil"
)

func writeTemplateTree(t *testing.T, claudeDir string, omit ...string) {
	t.Helper()
	for _, rel := range requiredV3Files {
		if slices.Contains(omit, rel) {
			continue
		}
		testutil.MustWriteFile(t, filepath.Join(claudeDir, filepath.FromSlash(rel)), "{}")
	}
}

func TestStructureValidator_Valid(t *testing.T) {
	t.Parallel()

	claudeDir := filepath.Join(t.TempDir(), ClaudeDirName)
	writeTemplateTree(t, claudeDir)

	if err := NewStructureValidator().Validate(claudeDir); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestStructureValidator_ListsEveryMissingFile(t *testing.T) {
	t.Parallel()

	claudeDir := filepath.Join(t.TempDir(), ClaudeDirName)
	writeTemplateTree(t, claudeDir, "settings.json", "agents/agents.json")

	err := NewStructureValidator().Validate(claudeDir)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	want := []string{"agents/agents.json", "settings.json"}
	if !slices.Equal(valErr.Missing, want) {
		t.Errorf("Missing = %v, want %v", valErr.Missing, want)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("errors.Is(err, ErrValidation) = false")
	}
}

func TestStructureValidator_MissingDirectory(t *testing.T) {
	t.Parallel()

	err := NewStructureValidator().Validate(filepath.Join(t.TempDir(), "absent"))
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	if len(valErr.Missing) != len(requiredV3Files) {
		t.Errorf("Missing has %d entries, want %d", len(valErr.Missing), len(requiredV3Files))
	}
}

func TestStructureValidator_DirectoryInPlaceOfFile(t *testing.T) {
	t.Parallel()

	claudeDir := filepath.Join(t.TempDir(), ClaudeDirName)
	writeTemplateTree(t, claudeDir, "settings.json")
	if err := os.Mkdir(filepath.Join(claudeDir, "settings.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := NewStructureValidator().Validate(claudeDir)
	var valErr *ValidationError
	if !errors.As(err, &valErr) || !slices.Equal(valErr.Missing, []string{"settings.json"}) {
		t.Fatalf("Validate() error = %v, want settings.json missing", err)
	}
}

func TestStructureValidator_ExtraRequiredFiles(t *testing.T) {
	t.Parallel()

	v := NewStructureValidator(WithExtraRequiredFiles("hooks/pre.sh", " ", "settings.json", "/abs/path"))
	got := v.RequiredFiles()
	if len(got) != len(requiredV3Files)+1 {
		t.Fatalf("RequiredFiles() = %v, want built-ins plus hooks/pre.sh", got)
	}
	if got[len(got)-1] != "hooks/pre.sh" {
		t.Errorf("last entry = %q", got[len(got)-1])
	}

	claudeDir := filepath.Join(t.TempDir(), ClaudeDirName)
	writeTemplateTree(t, claudeDir)
	err := v.Validate(claudeDir)
	var valErr *ValidationError
	if !errors.As(err, &valErr) || !slices.Equal(valErr.Missing, []string{"hooks/pre.sh"}) {
		t.Fatalf("Validate() error = %v, want hooks/pre.sh missing", err)
	}
}
