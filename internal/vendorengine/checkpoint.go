package vendorengine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// checkpointDir returns .meta/conversion-checkpoints/<txnID>/, unique
// per transaction (google/uuid) so two interrupted transactions never
// collide, per SPEC_FULL.md §4.7.
func checkpointDir(workspaceRoot, txnID string) string {
	return filepath.Join(workspaceRoot, ".meta", "conversion-checkpoints", txnID)
}

func checkpointPath(workspaceRoot, txnID, component string) string {
	return filepath.Join(checkpointDir(workspaceRoot, txnID), component+".yaml")
}

func writeCheckpoint(workspaceRoot, txnID string, cp Checkpoint) error {
	dir := checkpointDir(workspaceRoot, txnID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cp)
	if err != nil {
		return err
	}
	path := checkpointPath(workspaceRoot, txnID, cp.Component)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readCheckpoints(workspaceRoot, txnID string) (map[string]Checkpoint, error) {
	dir := checkpointDir(workspaceRoot, txnID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]Checkpoint{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]Checkpoint{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var cp Checkpoint
		if err := yaml.Unmarshal(data, &cp); err != nil {
			return nil, fmt.Errorf("parsing checkpoint %s: %w", e.Name(), err)
		}
		out[cp.Component] = cp
	}
	return out, nil
}

func recordCheckpoint(workspaceRoot, txnID, component string, state CheckpointState, causeErr error) error {
	cp := Checkpoint{Component: component, State: state, UpdatedAt: time.Now()}
	if causeErr != nil {
		cp.Error = causeErr.Error()
	}
	return writeCheckpoint(workspaceRoot, txnID, cp)
}
