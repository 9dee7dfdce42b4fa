// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// requiredV3Files must be present, relative to the extracted .claude
// directory, for an archive to be accepted as a v3 template.
var requiredV3Files = []string{ //nolint:gochecknoglobals // Copied into each validator, never mutated.
	"scripts/cmat.sh",
	"AGENT_CONTRACTS.json",
	"skills/skills.json",
	"agents/agents.json",
	"queues/task_queue.json",
	"settings.json",
}

type (
	// StructureValidator checks an extracted .claude tree against the
	// required-file manifest.
	StructureValidator struct {
		required []string
	}

	// StructureOption configures a StructureValidator.
	StructureOption func(*StructureValidator)
)

// WithExtraRequiredFiles appends entries to the built-in manifest. Blank,
// absolute and duplicate entries are ignored; built-in entries cannot be removed.
func WithExtraRequiredFiles(files ...string) StructureOption {
	return func(v *StructureValidator) {
		for _, f := range files {
			f = filepath.ToSlash(strings.TrimSpace(f))
			if f == "" || strings.HasPrefix(f, "/") || slices.Contains(v.required, f) {
				continue
			}
			v.required = append(v.required, f)
		}
	}
}

// NewStructureValidator returns a validator for the v3 template layout.
func NewStructureValidator(opts ...StructureOption) *StructureValidator {
	v := &StructureValidator{required: slices.Clone(requiredV3Files)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RequiredFiles returns a copy of the manifest in check order.
func (v *StructureValidator) RequiredFiles() []string {
	return slices.Clone(v.required)
}

// Validate returns a *ValidationError when claudeDir is missing or when any
// manifest entry is absent or not a regular file. Every missing entry is
// listed, not just the first.
func (v *StructureValidator) Validate(claudeDir string) error {
	info, err := os.Stat(claudeDir)
	if err != nil || !info.IsDir() {
		return &ValidationError{
			Dir:     claudeDir,
			Missing: v.RequiredFiles(),
			Reason:  ".claude directory not found in archive",
		}
	}

	var missing []string
	for _, rel := range v.required {
		fi, err := os.Stat(filepath.Join(claudeDir, filepath.FromSlash(rel)))
		if err != nil || !fi.Mode().IsRegular() {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Dir: claudeDir, Missing: missing}
	}
	return nil
}
