// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// backupPrefix is the name prefix of backup directories created next to .claude.
const backupPrefix = ClaudeDirName + ".backup-"

// BackupManager snapshots an existing .claude directory before it is replaced
// and restores it when the replacement fails.
type BackupManager struct {
	newID func() string
}

// NewBackupManager returns a BackupManager that names backups with random UUIDs.
func NewBackupManager() *BackupManager {
	return &BackupManager{newID: uuid.NewString}
}

// Backup copies <target>/.claude, modes preserved, to
// <target>/.claude.backup-<uuid> and returns the backup path. It returns ""
// and no error when there is nothing to back up. A partial copy is removed.
func (m *BackupManager) Backup(target string) (string, error) {
	src := filepath.Join(target, ClaudeDirName)
	info, err := os.Lstat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("inspecting existing installation: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("existing %s is not a directory", src)
	}

	dst := filepath.Join(target, backupPrefix+m.newID())
	if err := copyTree(src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return "", fmt.Errorf("backing up %s: %w", src, err)
	}
	return dst, nil
}

// Rollback returns the target to its pre-install state. With a backup it
// replaces <target>/.claude with the backup; without one it removes a
// .claude tree only if this install placed it. Calling Rollback again after
// it succeeded is a no-op.
func (m *BackupManager) Rollback(state *InstallationState) error {
	if state == nil || state.Target == "" {
		return nil
	}
	claudeDir := filepath.Join(state.Target, ClaudeDirName)

	if state.BackupPath != "" {
		if _, err := os.Stat(state.BackupPath); err != nil {
			return fmt.Errorf("backup %s is unavailable: %w", state.BackupPath, err)
		}
		if err := os.RemoveAll(claudeDir); err != nil {
			return fmt.Errorf("removing failed installation: %w", err)
		}
		if err := os.Rename(state.BackupPath, claudeDir); err != nil {
			return fmt.Errorf("restoring backup: %w", err)
		}
		state.BackupPath = ""
		state.Placed = false
		return nil
	}

	if state.Placed {
		if err := os.RemoveAll(claudeDir); err != nil {
			return fmt.Errorf("removing failed installation: %w", err)
		}
		state.Placed = false
	}
	return nil
}

// Discard deletes the backup recorded in state after a successful install.
func (m *BackupManager) Discard(state *InstallationState) error {
	if state == nil || state.BackupPath == "" {
		return nil
	}
	if err := os.RemoveAll(state.BackupPath); err != nil {
		return fmt.Errorf("removing backup %s: %w", state.BackupPath, err)
	}
	state.BackupPath = ""
	return nil
}

// FindBackups lists leftover backup directories in target, oldest first. A
// backup survives only when a rollback itself failed.
func FindBackups(target string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(target, backupPrefix+"*"))
	if err != nil {
		return nil, err
	}
	type aged struct {
		path string
		mod  int64
	}
	var found []aged
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		found = append(found, aged{path: p, mod: info.ModTime().UnixNano()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod < found[j].mod })

	out := make([]string, len(found))
	for i, a := range found {
		out[i] = a.path
	}
	return out, nil
}

// copyTree recursively copies src to dst. Symlinks are recreated, not followed.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(out, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, out)
		case info.Mode().IsRegular():
			return copyFile(p, out, info.Mode().Perm())
		default:
			// Sockets, devices and pipes have no place in a template tree.
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }() // read-only

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
