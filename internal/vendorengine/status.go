package vendorengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/meta"
)

// ComponentStatus is one component's on-disk vendored/reference state,
// reported by `vendor status`.
type ComponentStatus struct {
	Name       string
	Present    bool
	Provenance *meta.ProvenanceRecord
}

// Status reports every component's on-disk state without touching the
// network: present-and-vendored (with its provenance record), present
// with no provenance record (a reference-mode checkout), or absent.
func (e *Engine) Status(m *meta.Manifest) map[string]ComponentStatus {
	out := make(map[string]ComponentStatus, len(m.Components))
	for name := range m.Components {
		dir := e.ComponentDir(name)
		st := ComponentStatus{Name: name}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			st.Present = true
			if p, err := readProvenance(dir); err == nil {
				st.Provenance = p
			}
		}
		out[name] = st
	}
	return out
}

// Verify checks every vendored component against its recorded
// provenance (existence, version match, non-empty tree) and, if
// scanSecrets is set, re-scans its tree for secret patterns. The
// returned map holds one entry per checked component, nil for ok.
func (e *Engine) Verify(m *meta.Manifest, scanSecrets bool) map[string]error {
	out := map[string]error{}
	for name := range m.Components {
		dir := e.ComponentDir(name)
		provenance, err := readProvenance(dir)
		if err != nil {
			out[name] = errs.New(errs.KindVendor, "verify", []string{name}, "not vendored: provenance record missing or unreadable", err)
			continue
		}
		if err := verifyVendored(dir, *provenance); err != nil {
			out[name] = err
			continue
		}
		if scanSecrets {
			findings, err := scanTree(dir)
			if err != nil {
				out[name] = fmt.Errorf("secret scan: %w", err)
				continue
			}
			if len(findings) > 0 {
				out[name] = errs.New(errs.KindSecretDetected, "verify", []string{name}, formatFindings(findings), nil)
				continue
			}
		}
		out[name] = nil
	}
	return out
}

// Backup triggers an on-demand backup of the manifests directory and
// every component's current working tree, independent of any
// conversion transaction (`vendor backup`).
func (e *Engine) Backup(m *meta.Manifest) (string, error) {
	dirs := make(map[string]string, len(m.Components))
	for name := range m.Components {
		dirs[name] = e.ComponentDir(name)
	}
	return createBackup(e.WorkspaceRoot, time.Now(), true, dirs)
}

// ListTransactions lists every transaction id with a recorded
// checkpoint directory, most recently created first (uuids are
// unordered, so this sorts by directory mtime).
func ListTransactions(workspaceRoot string) ([]string, error) {
	root := filepath.Join(workspaceRoot, ".meta", "conversion-checkpoints")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	type txn struct {
		id      string
		modTime time.Time
	}
	txns := make([]txn, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		txns = append(txns, txn{id: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].modTime.After(txns[j].modTime) })
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.id
	}
	return out, nil
}

// ListCheckpoints returns every component's recorded checkpoint for
// transaction txnID (`vendor list-checkpoints <txn-id>`).
func ListCheckpoints(workspaceRoot, txnID string) (map[string]Checkpoint, error) {
	return readCheckpoints(workspaceRoot, txnID)
}
