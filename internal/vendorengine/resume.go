package vendorengine

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/workspacelock"
)

// Resume re-enters a previously continue-on-error'd transaction: reads
// its checkpoint directory, skips components already marked
// completed, and retries the components recorded as failed.
func (e *Engine) Resume(ctx context.Context, m *meta.Manifest, env, txnID string) (*Result, error) {
	checkpoints, err := readCheckpoints(e.WorkspaceRoot, txnID)
	if err != nil {
		return nil, err
	}
	if len(checkpoints) == 0 {
		return nil, errs.New(errs.KindCheckpointResume, "resume", nil, fmt.Sprintf("no checkpoints found for transaction %s", txnID), nil)
	}

	lock, err := workspacelock.Acquire(e.WorkspaceRoot, true)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	environment, ok := m.Environments[env]
	if !ok {
		return nil, errs.New(errs.KindManifest, "resume", nil, fmt.Sprintf("unknown environment %q", env), nil)
	}

	result := &Result{TransactionID: txnID, Direction: DirectionToVendored, Failed: map[string]string{}}

	names := make([]string, 0, len(checkpoints))
	for name := range checkpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cp := checkpoints[name]
		if cp.State == CheckpointCompleted {
			result.Succeeded = append(result.Succeeded, name)
			continue
		}

		comp, err := m.Component(name)
		if err != nil {
			result.Failed[name] = err.Error()
			continue
		}
		pin, ok := environment.Pins[name]
		if !ok {
			result.Failed[name] = fmt.Sprintf("no pin for %s in environment %s", name, env)
			continue
		}

		tmp, err := os.MkdirTemp("", "meta-vendor-resume-*")
		if err != nil {
			return nil, err
		}
		if err := e.Fetcher.Clone(ctx, comp.Repo, tmp); err != nil {
			os.RemoveAll(tmp)
			result.Failed[name] = err.Error()
			continue
		}
		if err := e.Fetcher.Checkout(ctx, tmp, pin); err != nil {
			os.RemoveAll(tmp)
			result.Failed[name] = err.Error()
			continue
		}

		if err := e.convertOne(txnID, name, comp, pin, tmp); err != nil {
			result.Failed[name] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, name)
	}

	log.Printf("resumed transaction %s: %d succeeded, %d still failed", txnID, len(result.Succeeded), len(result.Failed))
	return result, nil
}
