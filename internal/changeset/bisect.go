package changeset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tbrumbaugh5396/meta/internal/errs"
)

// Materializer puts the workspace into the state recorded by
// changeset id (rollback-to-changeset followed by apply), so the test
// command below observes exactly that candidate.
type Materializer func(ctx context.Context, changesetID string) error

// BisectStep records one candidate evaluated during a bisect run.
type BisectStep struct {
	ChangesetID string
	Passed      bool
}

// BisectResult is the outcome of a completed bisect: exactly one
// culprit changeset, plus the full trail of steps taken to find it.
type BisectResult struct {
	Culprit string
	Steps   []BisectStep
}

// runTest shells out testCommand with the working directory pinned to
// workspaceRoot and the host environment inherited (no privilege
// escalation), per the Open Question this tool resolves explicitly.
// An errgroup runs the command and a log-tailing goroutine
// concurrently, both bounded by ctx's deadline, so a hung test command
// is observed (via its partial output) rather than silently blocking.
func runTest(ctx context.Context, workspaceRoot, testCommand string) (bool, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", testCommand)
	cmd.Dir = workspaceRoot
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return false, err
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			log.Printf("bisect test output: %s", scanner.Text())
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cmd.Wait()
	})

	if err := g.Wait(); err != nil {
		return false, nil // non-zero exit or output-scan error: candidate fails
	}
	return true, nil
}

// Bisect binary-searches the sequence of committed changesets between
// startID and endID (inclusive) for exactly one culprit: materialize
// each candidate, run testCommand, narrow until one remains.
func (l *Log) Bisect(ctx context.Context, startID, endID, testCommand, workspaceRoot string, materialize Materializer) (*BisectResult, error) {
	committed, err := l.Committed()
	if err != nil {
		return nil, err
	}

	startIdx, endIdx := -1, -1
	for i, cs := range committed {
		if cs.ID == startID {
			startIdx = i
		}
		if cs.ID == endID {
			endIdx = i
		}
	}
	if startIdx == -1 || endIdx == -1 {
		return nil, errs.New(errs.KindConflict, "changeset-bisect", nil,
			fmt.Sprintf("start %s or end %s not found among committed changesets", startID, endID), nil)
	}
	if startIdx > endIdx {
		startIdx, endIdx = endIdx, startIdx
	}

	candidates := committed[startIdx : endIdx+1]
	result := &BisectResult{}

	lo, hi := 0, len(candidates)-1
	for lo < hi {
		mid := (lo + hi) / 2
		cs := candidates[mid]

		stepCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		if err := materialize(stepCtx, cs.ID); err != nil {
			cancel()
			return nil, errs.New(errs.KindVendor, "changeset-bisect", nil, "materializing candidate "+cs.ID, err)
		}
		passed, err := runTest(stepCtx, workspaceRoot, testCommand)
		cancel()
		if err != nil {
			return nil, errs.New(errs.KindVendor, "changeset-bisect", nil, "running test command", err)
		}

		result.Steps = append(result.Steps, BisectStep{ChangesetID: cs.ID, Passed: passed})
		log.Printf("bisect candidate %s: passed=%v", cs.ID, passed)

		if passed {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	result.Culprit = candidates[lo].ID
	return result, nil
}
