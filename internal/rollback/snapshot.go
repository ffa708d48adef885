package rollback

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	yaml "gopkg.in/yaml.v3"

	"github.com/tbrumbaugh5396/meta/internal/meta"
)

func snapshotsDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".meta", "snapshots")
}

func snapshotPath(workspaceRoot, id string) string {
	return filepath.Join(snapshotsDir(workspaceRoot), id+".yaml")
}

// Capture writes a new snapshot of env's current pins and returns it.
// Snapshots are the rollback target "snapshot(); apply(change);
// rollback(snapshot)" restores to — callers take one before any
// change they may want to undo.
func Capture(workspaceRoot string, env string, mode meta.StorageMode, pins map[string]string) (*meta.Snapshot, error) {
	s := &meta.Snapshot{
		ID:          uuid.NewString(),
		Environment: env,
		Mode:        mode,
		Pins:        pins,
		CreatedAt:   time.Now(),
	}
	return s, writeSnapshot(workspaceRoot, s)
}

func writeSnapshot(workspaceRoot string, s *meta.Snapshot) error {
	dir := snapshotsDir(workspaceRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshots directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	path := snapshotPath(workspaceRoot, s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a snapshot by id from the workspace's snapshot
// directory, or by an explicit path (for a snapshot file passed
// directly on the command line, which need not live under
// .meta/snapshots).
func ReadSnapshot(workspaceRoot, idOrPath string) (*meta.Snapshot, error) {
	path := idOrPath
	if _, err := os.Stat(path); err != nil {
		path = snapshotPath(workspaceRoot, idOrPath)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", idOrPath, err)
	}
	var s meta.Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", idOrPath, err)
	}
	return &s, nil
}

// ListSnapshots enumerates every captured snapshot, newest first.
func ListSnapshots(workspaceRoot string) ([]meta.Snapshot, error) {
	dir := snapshotsDir(workspaceRoot)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []meta.Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := trimYAMLExt(e.Name())
		s, err := ReadSnapshot(workspaceRoot, id)
		if err != nil {
			log.Printf("skipping unreadable snapshot file %s: %v", e.Name(), err)
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func trimYAMLExt(name string) string {
	const ext = ".yaml"
	if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
		return name[:len(name)-len(ext)]
	}
	return name
}
