// Package gitdriver wraps the git(1) binary with the operations the
// apply orchestrator and vendor engine need. Every
// network operation is retried with bounded exponential backoff,
// classifying errors as transient or permanent the way the teacher's
// MCP connection retry logic does (pkg/cli/mcp_connect_retry.go).
package gitdriver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/pkg/gitutil"
	"github.com/tbrumbaugh5396/meta/pkg/logger"
	"github.com/tbrumbaugh5396/meta/pkg/repoutil"
)

var log = logger.New("gitdriver:driver")

// RetryConfig sets the backoff shape for retried network operations:
// initial delay 1s, factor 2, max 5 attempts, with jitter.
type RetryConfig struct {
	InitialDelay time.Duration
	Factor       float64
	MaxAttempts  int
}

var DefaultRetry = RetryConfig{
	InitialDelay: time.Second,
	Factor:       2,
	MaxAttempts:  5,
}

// Driver runs git commands, never reading arbitrary environment git
// config beyond what the host shell provides.
type Driver struct {
	retry RetryConfig
	// jitter is a seeded source of small timing noise. Injectable for
	// deterministic tests.
	jitter func(base time.Duration) time.Duration
}

func New() *Driver {
	return &Driver{retry: DefaultRetry, jitter: defaultJitter}
}

func defaultJitter(base time.Duration) time.Duration {
	// up to +/-10% jitter without pulling in a PRNG dependency for
	// something this small.
	return base + base/10
}

func (d *Driver) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// runWithRetry executes a network-bound git operation, retrying
// transient failures with bounded exponential backoff and honoring
// context cancellation between attempts.
func (d *Driver) runWithRetry(ctx context.Context, operation, dir string, args ...string) (string, error) {
	var lastOut string
	var lastErr error
	delay := d.retry.InitialDelay

	for attempt := 1; attempt <= d.retry.MaxAttempts; attempt++ {
		out, err := d.run(ctx, dir, args...)
		if err == nil {
			if attempt > 1 {
				log.Printf("%s succeeded after %d attempts", operation, attempt)
			}
			return out, nil
		}

		lastOut, lastErr = out, err
		kind := classify(out, err)
		if kind != errs.KindGitTransient {
			return out, errs.New(kind, operation, nil, strings.TrimSpace(out), err)
		}
		if attempt == d.retry.MaxAttempts {
			break
		}

		wait := d.jitter(delay)
		log.Printf("%s attempt %d/%d failed (transient), retrying in %v", operation, attempt, d.retry.MaxAttempts, wait)
		select {
		case <-ctx.Done():
			return out, errs.New(errs.KindCancelled, operation, nil, "cancelled during retry backoff", ctx.Err())
		case <-time.After(wait):
		}
		delay = time.Duration(float64(delay) * d.retry.Factor)
	}

	return lastOut, errs.New(errs.KindGitTransient, operation, nil, fmt.Sprintf("failed after %d attempts: %s", d.retry.MaxAttempts, strings.TrimSpace(lastOut)), lastErr)
}

// classify decides whether a git failure is transient (timeout,
// connection reset, 5xx-style remote failure) or permanent (auth
// failure, ref not found).
func classify(out string, err error) errs.Kind {
	if err == nil {
		return errs.KindGitTransient
	}
	lower := strings.ToLower(out)
	if gitutil.IsAuthError(lower) {
		return errs.KindGitPermanent
	}
	permanentMarkers := []string{
		"couldn't find remote ref",
		"reference not found",
		"did not match any file",
		"repository not found",
		"pathspec",
	}
	for _, m := range permanentMarkers {
		if strings.Contains(lower, m) {
			return errs.KindGitPermanent
		}
	}
	transientMarkers := []string{
		"timed out",
		"timeout",
		"connection reset",
		"connection refused",
		"could not resolve host",
		"the remote end hung up unexpectedly",
		"early eof",
		"500 internal server error",
		"502 ",
		"503 ",
	}
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return errs.KindGitTransient
		}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Unrecognized non-zero exit with no known marker: treat as
		// permanent so we don't retry something like a malformed
		// command forever.
		return errs.KindGitPermanent
	}
	return errs.KindGitTransient
}

// Clone clones repo into target (must not yet exist). Errors report the
// remote's short "owner/repo" slug rather than the raw URL, parsed over
// any git host (SSH or HTTPS, not just github.com) via pkg/repoutil.
func (d *Driver) Clone(ctx context.Context, repo, target string) error {
	slug := repoutil.Slug(repo)
	_, err := d.runWithRetry(ctx, "clone", "", "clone", repo, target)
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			e.Components = []string{slug}
		}
		return err
	}
	return nil
}

// Fetch updates remote-tracking refs in an existing working tree.
func (d *Driver) Fetch(ctx context.Context, dir string) error {
	_, err := d.runWithRetry(ctx, "fetch", dir, "fetch", "--all", "--tags")
	return err
}

// Checkout moves the working tree to ref (tag, branch, or sha).
func (d *Driver) Checkout(ctx context.Context, dir, ref string) error {
	out, err := d.run(ctx, dir, "checkout", "--force", ref)
	if err != nil {
		return errs.New(classify(out, err), "checkout", nil, strings.TrimSpace(out), err)
	}
	return nil
}

// ResolveSha resolves ref to its commit sha.
func (d *Driver) ResolveSha(ctx context.Context, dir, ref string) (string, error) {
	out, err := d.run(ctx, dir, "rev-parse", ref+"^{commit}")
	if err != nil {
		return "", errs.New(classify(out, err), "resolve-sha", nil, strings.TrimSpace(out), err)
	}
	return strings.TrimSpace(out), nil
}

// CommitSha returns HEAD's commit sha.
func (d *Driver) CommitSha(ctx context.Context, dir string) (string, error) {
	return d.ResolveSha(ctx, dir, "HEAD")
}

// Commit stages files and commits them with message, returning the
// new commit's sha.
func (d *Driver) Commit(ctx context.Context, dir, message string, files []string) (string, error) {
	addArgs := append([]string{"add"}, files...)
	if out, err := d.run(ctx, dir, addArgs...); err != nil {
		return "", errs.New(errs.KindGitPermanent, "commit", nil, strings.TrimSpace(out), err)
	}
	if out, err := d.run(ctx, dir, "commit", "-m", message); err != nil {
		return "", errs.New(errs.KindGitPermanent, "commit", nil, strings.TrimSpace(out), err)
	}
	return d.CommitSha(ctx, dir)
}

// Tag creates an annotated tag.
func (d *Driver) Tag(ctx context.Context, dir, name, message string) error {
	if out, err := d.run(ctx, dir, "tag", "-a", name, "-m", message); err != nil {
		return errs.New(errs.KindGitPermanent, "tag", nil, strings.TrimSpace(out), err)
	}
	return nil
}

// Revert produces a revert commit undoing sha, returning the new
// commit's sha.
func (d *Driver) Revert(ctx context.Context, dir, sha string) (string, error) {
	if out, err := d.run(ctx, dir, "revert", "--no-edit", sha); err != nil {
		return "", errs.New(errs.KindGitPermanent, "revert", nil, strings.TrimSpace(out), err)
	}
	return d.CommitSha(ctx, dir)
}
