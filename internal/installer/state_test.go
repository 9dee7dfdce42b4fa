// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"slices"
	"testing"
)

func TestPhaseTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseSelecting, PhaseValidating, true},
		{PhaseSelecting, PhaseInstalling, false},
		{PhaseValidating, PhaseReady, true},
		{PhaseValidating, PhaseSelecting, true},
		{PhaseReady, PhaseInstalling, true},
		{PhaseReady, PhaseCompleted, false},
		{PhaseInstalling, PhaseCompleted, true},
		{PhaseInstalling, PhaseFailed, true},
		{PhaseInstalling, PhaseValidating, false},
		{PhaseCompleted, PhaseInstalling, false},
		{PhaseCompleted, PhaseValidating, true},
		{PhaseFailed, PhaseInstalling, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStepPercentIsMonotonic(t *testing.T) {
	t.Parallel()

	steps := []Step{StepValidateTarget, StepDownload, StepExtract, StepValidateStructure, StepBackup, StepPlace, StepComplete}
	last := -1
	for _, s := range steps {
		if s.Percent() <= last {
			t.Errorf("%s percent %d is not above %d", s, s.Percent(), last)
		}
		last = s.Percent()
	}
	if StepComplete.Percent() != 100 {
		t.Errorf("StepComplete.Percent() = %d, want 100", StepComplete.Percent())
	}
}

func TestProgressReporter(t *testing.T) {
	t.Parallel()

	var got []int
	r := &progressReporter{fn: func(percent int, _ string) { got = append(got, percent) }}
	for _, p := range []int{0, 40, 10, 60, 150} {
		r.report(p, "step")
	}

	want := []int{0, 40, 40, 60, 100}
	if !slices.Equal(got, want) {
		t.Errorf("reported %v, want %v", got, want)
	}
	if r.last != (ProgressEvent{Percent: 100, Message: "step"}) {
		t.Errorf("last = %+v, want the clamped final event", r.last)
	}

	// A nil callback still tracks the last event.
	silent := &progressReporter{}
	silent.report(50, "extracting")
	if silent.last != (ProgressEvent{Percent: 50, Message: "extracting"}) {
		t.Errorf("last = %+v", silent.last)
	}
}

func TestInstallationStateReset(t *testing.T) {
	t.Parallel()

	s := InstallationState{Target: "/t", TempDir: "/t/tmp", BackupPath: "/t/b", Placed: true}
	s.reset()
	if s != (InstallationState{}) {
		t.Errorf("reset() left %+v", s)
	}
}
