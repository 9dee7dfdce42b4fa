// SPDX-License-Identifier: MPL-2.0

package installer

import "fmt"

const (
	// PhaseSelecting is the initial phase: no target has been accepted yet.
	PhaseSelecting Phase = iota
	// PhaseValidating is entered while a candidate target is being checked.
	PhaseValidating
	// PhaseReady means a validated target is selected and Install may run.
	PhaseReady
	// PhaseInstalling is held for the duration of an Install call.
	PhaseInstalling
	// PhaseCompleted follows a successful Install.
	PhaseCompleted
	// PhaseFailed follows an Install that returned an error.
	PhaseFailed
)

const (
	// StepValidateTarget re-checks the target directory before any I/O.
	StepValidateTarget Step = iota
	// StepDownload fetches the archive into the temp directory.
	StepDownload
	// StepExtract unpacks validated entries into the staging directory.
	StepExtract
	// StepValidateStructure checks the extracted tree against the manifest.
	StepValidateStructure
	// StepBackup snapshots an existing installation.
	StepBackup
	// StepPlace swaps the staged tree into the target.
	StepPlace
	// StepComplete is the terminal step of a successful run.
	StepComplete
)

type (
	// Phase is the externally visible state of an Installer.
	Phase int

	// Step is one stage of the internal install pipeline.
	Step int

	// ProgressEvent is a single progress notification: Percent in [0, 100]
	// and never lower than the previous event of the same Install call.
	ProgressEvent struct {
		Percent int
		Message string
	}

	// ProgressFunc receives each ProgressEvent of an Install call, unpacked
	// into its fields, synchronously on the goroutine running Install. A nil
	// ProgressFunc is valid.
	ProgressFunc func(percent int, message string)

	// InstallationState holds the filesystem resources owned by one Install
	// call. Empty strings mean "not created". It is reset at the start of
	// every call and must not be shared between concurrent installs.
	InstallationState struct {
		// Target is the resolved target directory.
		Target string
		// TempDir is the per-call working directory created inside Target.
		TempDir string
		// ZipPath is the downloaded archive inside TempDir.
		ZipPath string
		// StagingDir is the extraction root inside TempDir.
		StagingDir string
		// BackupPath is the snapshot of a pre-existing .claude directory.
		BackupPath string
		// Placed is true once a new .claude tree has been moved into Target.
		Placed bool
	}
)

// phaseTransitions lists the legal successor phases for each phase.
var phaseTransitions = map[Phase][]Phase{ //nolint:gochecknoglobals // Immutable transition table.
	PhaseSelecting:  {PhaseValidating},
	PhaseValidating: {PhaseReady, PhaseSelecting},
	PhaseReady:      {PhaseInstalling, PhaseValidating},
	PhaseInstalling: {PhaseCompleted, PhaseFailed},
	PhaseCompleted:  {PhaseValidating},
	PhaseFailed:     {PhaseValidating, PhaseInstalling},
}

// stepProgress maps each step to the percentage reported when it starts.
var stepProgress = map[Step]int{ //nolint:gochecknoglobals // Immutable progress checkpoints.
	StepValidateTarget:    0,
	StepDownload:          10,
	StepExtract:           40,
	StepValidateStructure: 60,
	StepBackup:            70,
	StepPlace:             85,
	StepComplete:          100,
}

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseSelecting:
		return "selecting"
	case PhaseValidating:
		return "validating"
	case PhaseReady:
		return "ready"
	case PhaseInstalling:
		return "installing"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// CanTransitionTo reports whether moving from p to next is legal.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String returns a human-readable step label.
func (s Step) String() string {
	switch s {
	case StepValidateTarget:
		return "validate target"
	case StepDownload:
		return "download"
	case StepExtract:
		return "extract"
	case StepValidateStructure:
		return "validate structure"
	case StepBackup:
		return "backup"
	case StepPlace:
		return "place"
	case StepComplete:
		return "complete"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Percent returns the progress checkpoint reported when the step starts.
func (s Step) Percent() int {
	return stepProgress[s]
}

// reset clears every field so a new Install starts with no owned resources.
func (s *InstallationState) reset() {
	*s = InstallationState{}
}

// progressReporter forwards events to a ProgressFunc while keeping the
// reported percentage non-decreasing and within [0, 100]. last is the most
// recent event delivered.
type progressReporter struct {
	fn   ProgressFunc
	last ProgressEvent
}

func (r *progressReporter) report(percent int, message string) {
	if percent < r.last.Percent {
		percent = r.last.Percent
	}
	if percent > 100 {
		percent = 100
	}
	r.last = ProgressEvent{Percent: percent, Message: message}
	if r.fn != nil {
		r.fn(r.last.Percent, r.last.Message)
	}
}
