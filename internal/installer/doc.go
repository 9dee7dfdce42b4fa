// SPDX-License-Identifier: MPL-2.0

// Package installer implements the secure CMAT template installer. It downloads
// the template archive, extracts it into a staging directory with zip-slip
// protection, checks the extracted tree against the required-file manifest,
// and atomically swaps it into the target directory, backing up and restoring
// any previous installation on failure.
//
// The package is organized into these concerns:
//   - target.go: DirectoryValidator (existence, system deny-list, writability)
//   - fetch.go: ArchiveFetcher, a single-attempt HTTPS download of the codeload archive
//   - checksum.go: optional SHA256 pinning of the downloaded archive
//   - extract.go: SecureExtractor, per-entry path validation and bounded extraction
//   - structure.go: StructureValidator for the required-file manifest
//   - backup.go: BackupManager snapshot, rollback and discard
//   - state.go: Phase and Step enumerations, InstallationState
//   - installer.go: Installer, the orchestrating state machine
//   - errors.go: SecurityError, NetworkError, ValidationError and InstallError
package installer
