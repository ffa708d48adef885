package vendorengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/resolver"
	"github.com/tbrumbaugh5396/meta/internal/workspacelock"
)

// Reverse runs the vendored-to-reference pipeline: the same pipeline
// shape as Convert, symmetric guarantees, but reading each component's
// provenance record instead of the manifest's pin, cloning the
// upstream repo at the recorded version, and removing the vendored
// tree.
func (e *Engine) Reverse(ctx context.Context, m *meta.Manifest) (*Result, error) {
	order, err := resolver.TopoOrder(m.Components) // step 1 (cycle check); git-available check already covered by Convert's callers sharing one Engine
	if err != nil {
		return nil, err
	}

	if e.Policy.DryRun { // step 2: short-circuit before any filesystem side effect,
		// including workspace lock acquisition, which creates .meta/workspace.lock.
		txnID := uuid.NewString()
		log.Printf("dry-run: would revert %d components to reference mode in transaction %s", len(order), txnID)
		return &Result{TransactionID: txnID, Direction: DirectionToReference}, nil
	}

	lock, err := workspacelock.Acquire(e.WorkspaceRoot, true) // step 3
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	txnID := uuid.NewString()

	componentDirs := map[string]string{}
	for _, name := range order {
		componentDirs[name] = e.ComponentDir(name)
	}
	backupDir, err := createBackup(e.WorkspaceRoot, time.Now(), true, componentDirs) // step 4
	if err != nil {
		return nil, err
	}

	result := &Result{TransactionID: txnID, Direction: DirectionToReference, Failed: map[string]string{}}

	for _, name := range order { // step 7, sequential (no network prefetch benefit on the read-provenance path)
		dst := componentDirs[name]
		provenance, err := readProvenance(dst)
		if err != nil {
			result.Failed[name] = fmt.Sprintf("reading provenance record: %v", err)
			if recErr := recordCheckpoint(e.WorkspaceRoot, txnID, name, CheckpointFailed, err); recErr != nil {
				log.Printf("failed to record checkpoint for %s: %v", name, recErr)
			}
			if e.Policy.Atomic {
				break
			}
			continue
		}

		if err := e.revertOne(ctx, txnID, name, provenance, dst); err != nil {
			result.Failed[name] = err.Error()
			if e.Policy.Atomic {
				if restoreErr := RestoreBackup(e.WorkspaceRoot, filepath.Base(backupDir)); restoreErr != nil {
					log.Printf("failed to restore backup %s after component failure: %v", backupDir, restoreErr)
				}
				result.RolledBack = true
				return result, errs.New(errs.KindVendor, "reverse", []string{name}, "component reversion failed, transaction rolled back", err)
			}
			continue
		}
		result.Succeeded = append(result.Succeeded, name)
	}

	if len(result.Failed) > 0 && !e.Policy.ContinueOnError {
		if restoreErr := RestoreBackup(e.WorkspaceRoot, filepath.Base(backupDir)); restoreErr != nil {
			log.Printf("failed to restore backup %s: %v", backupDir, restoreErr)
		}
		result.RolledBack = true
		return result, errs.New(errs.KindVendor, "reverse", nil, "one or more components failed and continue-on-error is not set", nil)
	}

	log.Printf("reverse transaction %s: %d succeeded, %d failed", txnID, len(result.Succeeded), len(result.Failed))
	return result, nil
}

// revertOne clones the upstream repo at the recorded version into a
// fresh working tree, replacing the vendored tree in place.
func (e *Engine) revertOne(ctx context.Context, txnID, name string, provenance *meta.ProvenanceRecord, dst string) error {
	tmp, err := os.MkdirTemp("", "meta-reference-fetch-*")
	if err != nil {
		return e.fail(txnID, name, err)
	}
	defer os.RemoveAll(tmp)

	if err := e.Fetcher.Clone(ctx, provenance.Repo, tmp); err != nil {
		return e.fail(txnID, name, err)
	}
	if err := e.Fetcher.Checkout(ctx, tmp, provenance.Version); err != nil {
		return e.fail(txnID, name, err)
	}

	if err := os.RemoveAll(dst); err != nil {
		return e.fail(txnID, name, err)
	}
	// copy rather than rename: tmp (os.TempDir) and dst (inside the
	// workspace) may be on different filesystems.
	if err := copyDir(tmp, dst); err != nil {
		return e.fail(txnID, name, err)
	}

	return recordCheckpoint(e.WorkspaceRoot, txnID, name, CheckpointCompleted, nil)
}
