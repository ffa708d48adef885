package vendorengine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// backupRoot returns .meta/backups/<timestamp>/ for a fresh backup.
func backupRoot(workspaceRoot string, at time.Time) string {
	return filepath.Join(workspaceRoot, ".meta", "backups", at.UTC().Format("20060102T150405Z"))
}

// createBackup copies manifests (always) and, if includeComponents is
// set, every listed component's current working tree into a fresh,
// timestamped backup directory, independently listable and restorable.
func createBackup(workspaceRoot string, at time.Time, includeComponents bool, componentDirs map[string]string) (string, error) {
	dst := backupRoot(workspaceRoot, at)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	manifestsSrc := filepath.Join(workspaceRoot, "manifests")
	if _, err := os.Stat(manifestsSrc); err == nil {
		if err := copyDir(manifestsSrc, filepath.Join(dst, "manifests")); err != nil {
			return "", fmt.Errorf("backing up manifests: %w", err)
		}
	}

	if includeComponents {
		for name, dir := range componentDirs {
			if _, err := os.Stat(dir); err != nil {
				continue
			}
			if err := copyDir(dir, filepath.Join(dst, "components", name)); err != nil {
				return "", fmt.Errorf("backing up component %s: %w", name, err)
			}
		}
	}

	log.Printf("created backup at %s (components=%v)", dst, includeComponents)
	return dst, nil
}

// ListBackups returns every backup directory under .meta/backups,
// oldest first (timestamp-named, so lexical order is chronological).
func ListBackups(workspaceRoot string) ([]string, error) {
	root := filepath.Join(workspaceRoot, ".meta", "backups")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// RestoreBackup copies a backup's manifests (and components, if
// present) back over the live workspace tree.
func RestoreBackup(workspaceRoot, backupName string) error {
	src := filepath.Join(workspaceRoot, ".meta", "backups", backupName)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("backup %s not found: %w", backupName, err)
	}

	if _, err := os.Stat(filepath.Join(src, "manifests")); err == nil {
		if err := copyDir(filepath.Join(src, "manifests"), filepath.Join(workspaceRoot, "manifests")); err != nil {
			return fmt.Errorf("restoring manifests: %w", err)
		}
	}

	componentsBackup := filepath.Join(src, "components")
	entries, err := os.ReadDir(componentsBackup)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dst := filepath.Join(workspaceRoot, "components", e.Name())
			if err := os.RemoveAll(dst); err != nil {
				return err
			}
			if err := copyDir(filepath.Join(componentsBackup, e.Name()), dst); err != nil {
				return fmt.Errorf("restoring component %s: %w", e.Name(), err)
			}
		}
	}

	log.Printf("restored backup %s", backupName)
	return nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}
