// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

type (
	// Fetcher retrieves the template archive into dir and returns its path.
	Fetcher interface {
		Download(ctx context.Context, dir string) (string, error)
	}

	// Installer sequences target validation, download, extraction, structure
	// validation, backup and placement of the template. It is safe to call
	// from multiple goroutines, but only one Install runs at a time; a second
	// concurrent call fails with ErrInvalidTransition.
	Installer struct {
		mu     sync.Mutex
		phase  Phase
		target string

		// state is owned by the goroutine in PhaseInstalling.
		state InstallationState

		logger     *log.Logger
		validator  *DirectoryValidator
		fetcher    Fetcher
		extractor  *SecureExtractor
		structure  *StructureValidator
		backups    *BackupManager
		wantSHA256 string
	}

	// Option configures an Installer.
	Option func(*Installer)
)

// WithLogger sets the structured logger used for step reporting.
func WithLogger(l *log.Logger) Option {
	return func(in *Installer) {
		in.logger = l
	}
}

// WithDirectoryValidator replaces the target validator.
func WithDirectoryValidator(v *DirectoryValidator) Option {
	return func(in *Installer) {
		in.validator = v
	}
}

// WithFetcher replaces the archive fetcher.
func WithFetcher(f Fetcher) Option {
	return func(in *Installer) {
		in.fetcher = f
	}
}

// WithExtractor replaces the archive extractor.
func WithExtractor(e *SecureExtractor) Option {
	return func(in *Installer) {
		in.extractor = e
	}
}

// WithStructureValidator replaces the required-file validator.
func WithStructureValidator(v *StructureValidator) Option {
	return func(in *Installer) {
		in.structure = v
	}
}

// WithBackupManager replaces the backup manager.
func WithBackupManager(m *BackupManager) Option {
	return func(in *Installer) {
		in.backups = m
	}
}

// WithExpectedSHA256 pins the archive to a hex-encoded SHA256 digest. A
// mismatch fails the install with a *SecurityError.
func WithExpectedSHA256(hash string) Option {
	return func(in *Installer) {
		in.wantSHA256 = hash
	}
}

// New returns an Installer in PhaseSelecting. Components not supplied via
// options get their defaults.
func New(opts ...Option) *Installer {
	in := &Installer{phase: PhaseSelecting}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = newDefaultLogger()
	}
	if in.validator == nil {
		in.validator = NewDirectoryValidator()
	}
	if in.fetcher == nil {
		in.fetcher = NewArchiveFetcher()
	}
	if in.extractor == nil {
		in.extractor = NewSecureExtractor(WithExtractLogger(in.logger))
	}
	if in.structure == nil {
		in.structure = NewStructureValidator()
	}
	if in.backups == nil {
		in.backups = NewBackupManager()
	}
	return in
}

// Phase returns the current phase.
func (in *Installer) Phase() Phase {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.phase
}

// Target returns the selected target directory, or "" when none is selected.
func (in *Installer) Target() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.target
}

// SelectTarget validates dir and makes it the install target. On success the
// installer is Ready; on failure it returns to Selecting and the
// *SecurityError from the directory check is returned.
func (in *Installer) SelectTarget(dir string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.phase.CanTransitionTo(PhaseValidating) {
		return fmt.Errorf("%w: cannot select a target while %s", ErrInvalidTransition, in.phase)
	}
	in.phase = PhaseValidating

	abs, err := filepath.Abs(dir)
	if err != nil {
		in.phase, in.target = PhaseSelecting, ""
		return &SecurityError{Path: dir, Issue: TargetMissing, Reason: "Directory does not exist: " + dir, Err: err}
	}
	if err := in.validator.Check(abs); err != nil {
		in.phase, in.target = PhaseSelecting, ""
		return err
	}

	in.target = abs
	in.phase = PhaseReady
	return nil
}

// Install runs the pipeline against the selected target. It requires
// PhaseReady, or PhaseFailed to retry the same target. An existing
// installation is only replaced when overwrite is true.
//
// On failure the target is rolled back and the step's typed error
// (*SecurityError, *NetworkError, *ValidationError) is returned unchanged;
// anything else is wrapped in *InstallError.
func (in *Installer) Install(ctx context.Context, progress ProgressFunc, overwrite bool) (err error) {
	in.mu.Lock()
	if in.target == "" || !in.phase.CanTransitionTo(PhaseInstalling) {
		phase := in.phase
		in.mu.Unlock()
		return fmt.Errorf("%w: cannot install while %s", ErrInvalidTransition, phase)
	}
	in.phase = PhaseInstalling
	target := in.target
	in.mu.Unlock()

	defer func() {
		in.mu.Lock()
		defer in.mu.Unlock()
		if err != nil {
			in.phase = PhaseFailed
		} else {
			in.phase = PhaseCompleted
		}
	}()

	return in.run(ctx, target, &progressReporter{fn: progress}, overwrite)
}

// InstallTo selects dir and installs into it.
func (in *Installer) InstallTo(ctx context.Context, dir string, progress ProgressFunc, overwrite bool) error {
	if err := in.SelectTarget(dir); err != nil {
		return err
	}
	return in.Install(ctx, progress, overwrite)
}

func (in *Installer) run(ctx context.Context, target string, rep *progressReporter, overwrite bool) (err error) {
	st := &in.state
	st.reset()
	st.Target = target

	logger := in.logger.With("target", target)
	step := StepValidateTarget
	begin := func(s Step, msg string) {
		step = s
		logger.Debug(msg, "step", s)
		rep.report(s.Percent(), msg)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := in.backups.Rollback(st); rbErr != nil {
			logger.Error("rollback failed", "error", rbErr, "backup", st.BackupPath)
		}
		if !isTyped(err) {
			err = &InstallError{Step: step, Err: err}
		}
		logger.Warn("installation failed", "step", step, "progress", rep.last.Percent, "last", rep.last.Message, "error", err)
	}()
	defer in.cleanup(st)

	begin(StepValidateTarget, "Validating target directory")
	if err := in.validator.Check(target); err != nil {
		return err
	}
	existing := in.validator.CheckExistingInstallation(target)
	if existing && !overwrite {
		return &InstallError{Step: StepValidateTarget, Err: ErrInstallationExists}
	}

	// Work inside the target so the final rename never crosses filesystems.
	tmp, err := os.MkdirTemp(target, ".cmat-install-*")
	if err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	st.TempDir = tmp
	st.StagingDir = filepath.Join(tmp, "staging")
	if err := os.Mkdir(st.StagingDir, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}

	begin(StepDownload, "Downloading template")
	zipPath, err := in.fetcher.Download(ctx, tmp)
	if err != nil {
		return err
	}
	st.ZipPath = zipPath

	if in.wantSHA256 != "" {
		if err := VerifyFile(zipPath, in.wantSHA256); err != nil {
			var checksumErr *ChecksumError
			if errors.As(err, &checksumErr) {
				return &SecurityError{Path: zipPath, Reason: "archive checksum does not match the pinned value", Err: err}
			}
			return err
		}
	}

	begin(StepExtract, "Extracting template")
	claudeDir, err := in.extractor.Extract(zipPath, st.StagingDir)
	if err != nil {
		return err
	}

	begin(StepValidateStructure, "Validating template structure")
	if err := in.structure.Validate(claudeDir); err != nil {
		return err
	}

	if existing {
		begin(StepBackup, "Backing up existing installation")
		backupPath, err := in.backups.Backup(target)
		if err != nil {
			return err
		}
		st.BackupPath = backupPath
	}

	begin(StepPlace, "Installing template")
	if err := place(st, claudeDir); err != nil {
		return err
	}

	if err := in.backups.Discard(st); err != nil {
		logger.Warn("could not remove backup", "error", err)
	}

	rep.report(StepComplete.Percent(), "Installation complete")
	logger.Info("template installed", "path", filepath.Join(target, ClaudeDirName))
	return nil
}

var rename = os.Rename //nolint:gochecknoglobals // Swappable in tests.

// place swaps the validated tree into <target>/.claude. An existing tree is
// renamed aside first and renamed back if the second rename fails.
func place(st *InstallationState, claudeDir string) error {
	dest := filepath.Join(st.Target, ClaudeDirName)

	var aside string
	if _, err := os.Lstat(dest); err == nil {
		aside = filepath.Join(st.TempDir, "previous")
		if err := rename(dest, aside); err != nil {
			return fmt.Errorf("moving existing installation aside: %w", err)
		}
	}

	if err := rename(claudeDir, dest); err != nil {
		err = fmt.Errorf("moving template into place: %w", err)
		if aside != "" {
			if undoErr := rename(aside, dest); undoErr != nil {
				return errors.Join(err, fmt.Errorf("restoring previous installation: %w", undoErr))
			}
		}
		return err
	}
	st.Placed = true
	return nil
}

// cleanup removes the per-call working directory on every exit path.
func (in *Installer) cleanup(st *InstallationState) {
	if st.TempDir != "" {
		if err := os.RemoveAll(st.TempDir); err != nil {
			in.logger.Warn("could not remove working directory", "path", st.TempDir, "error", err)
		}
	}
	st.TempDir, st.ZipPath, st.StagingDir = "", "", ""
}

func newDefaultLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "installer",
		Level:  log.WarnLevel,
	})
}
