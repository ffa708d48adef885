package apply

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/resolver"
	"github.com/tbrumbaugh5396/meta/internal/store"
	"github.com/tbrumbaugh5396/meta/internal/vendorengine"
	"github.com/tbrumbaugh5396/meta/internal/workspacelock"
)

// GitOperator is the subset of *gitdriver.Driver the apply
// orchestrator needs for reference-mode materialization. An interface
// so tests can substitute a fake instead of shelling out to git(1).
type GitOperator interface {
	Clone(ctx context.Context, repo, target string) error
	Fetch(ctx context.Context, dir string) error
	Checkout(ctx context.Context, dir, ref string) error
	ResolveSha(ctx context.Context, dir, ref string) (string, error)
}

// VendorConverter is the subset of *vendorengine.Engine the apply
// orchestrator needs for vendored-mode materialization.
type VendorConverter interface {
	Convert(ctx context.Context, m *meta.Manifest, env string) (*vendorengine.Result, error)
}

// Engine materializes manifests into a workspace. It composes the git
// driver (reference mode), the vendor engine (vendored mode), and the
// content-addressed store (cache hits short-circuit materialization).
type Engine struct {
	WorkspaceRoot string
	Git           GitOperator
	Vendor        VendorConverter
	Store         *store.Store
	ComponentDir  func(string) string
	Policy        Policy
}

func New(workspaceRoot string, git GitOperator, vendor VendorConverter, st *store.Store, componentDir func(string) string, policy Policy) *Engine {
	if policy.ParallelJobs <= 0 {
		policy.ParallelJobs = DefaultPolicy.ParallelJobs
	}
	if policy.RetryCount == 0 {
		policy.RetryCount = DefaultPolicy.RetryCount
	}
	if policy.RetryBackoff == 0 {
		policy.RetryBackoff = DefaultPolicy.RetryBackoff
	}
	return &Engine{WorkspaceRoot: workspaceRoot, Git: git, Vendor: vendor, Store: st, ComponentDir: componentDir, Policy: policy}
}

// Apply plans and executes materialization of env's components under
// the engine's configured policy.
func (e *Engine) Apply(ctx context.Context, m *meta.Manifest, env string) (*Result, error) {
	return e.ApplyWithPolicy(ctx, m, env, e.Policy)
}

// ApplyOnly is Apply scoped to a subset of components (every other
// component is forced to noop) — used by targeted rollback so one
// component's pin can be reverted without touching the rest of env.
func (e *Engine) ApplyOnly(ctx context.Context, m *meta.Manifest, env string, only []string) (*Result, error) {
	policy := e.Policy
	policy.Only = only
	return e.ApplyWithPolicy(ctx, m, env, policy)
}

// ApplyWithPolicy is Apply with an explicit policy override, instead
// of the engine's own configured one.
func (e *Engine) ApplyWithPolicy(ctx context.Context, m *meta.Manifest, env string, policy Policy) (*Result, error) {
	lock, err := workspacelock.Acquire(e.WorkspaceRoot, true)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	inspector := &DiskInspector{Mode: m.Mode, Resolver: e.Git}
	plan, err := Plan(ctx, e.WorkspaceRoot, m, env, policy, e.ComponentDir, inspector)
	if err != nil {
		return nil, err
	}

	result := &Result{Environment: env, Failed: map[string]string{}, Components: map[string]*ComponentResult{}}

	// Vendored components are materialized as one transaction by the
	// vendor engine, which owns its own atomicity/checkpoint/backup
	// guarantees; apply does not try to split that transaction across
	// its own worker pool.
	if m.Mode == meta.ModeVendored && planNeedsVendorImport(plan) {
		if e.Vendor == nil {
			return nil, errs.New(errs.KindApplyFailed, "apply", nil, "workspace mode is vendored but no vendor engine was configured", nil)
		}
		if _, err := e.Vendor.Convert(ctx, m, env); err != nil {
			if !policy.ContinueOnError {
				return result, err
			}
			log.Printf("vendor conversion reported failures, continuing per continue-on-error: %v", err)
		}
	}

	levels, err := resolver.Levels(m.Components)
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if policy.ShowProgress {
		bar = progressbar.Default(int64(len(plan.Components)))
	}

	failed := map[string]bool{}
	for _, level := range levels {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		p := pool.New().WithMaxGoroutines(policy.ParallelJobs)
		type outcome struct {
			name string
			cr   *ComponentResult
		}
		results := make(chan outcome, len(level))

		for _, name := range level {
			name := name
			cp := plan.Components[name]

			if dependencyFailed(cp, failed) {
				results <- outcome{name: name, cr: &ComponentResult{Name: name, Skipped: true}}
				continue
			}

			p.Go(func() {
				cr := e.executeComponent(ctx, name, cp, policy)
				results <- outcome{name: name, cr: cr}
			})
		}
		p.Wait()
		close(results)

		for o := range results {
			result.Components[o.name] = o.cr
			if bar != nil {
				bar.Add(1)
			}
			switch {
			case o.cr.Skipped:
				result.Skipped = append(result.Skipped, o.name)
				failed[o.name] = true // a skipped component's own dependents must skip too
			case o.cr.Error != "":
				result.Failed[o.name] = o.cr.Error
				failed[o.name] = true
			default:
				result.Succeeded = append(result.Succeeded, o.name)
			}
		}
	}

	if len(result.Failed) > 0 && !policy.ContinueOnError {
		return result, errs.New(errs.KindApplyFailed, "apply", nil, fmt.Sprintf("%d component(s) failed", len(result.Failed)), nil)
	}

	log.Printf("apply env=%s: %d succeeded, %d failed, %d skipped", env, len(result.Succeeded), len(result.Failed), len(result.Skipped))
	return result, nil
}

func planNeedsVendorImport(p *Plan) bool {
	for _, cp := range p.Components {
		if cp.Action == ActionVendorImport {
			return true
		}
	}
	return false
}

func dependencyFailed(cp *ComponentPlan, failed map[string]bool) bool {
	for _, dep := range cp.DependsOn {
		if failed[dep] {
			return true
		}
	}
	return false
}

// executeComponent runs the per-component pipeline: materialize (if
// reference mode and not a noop), detect and install packages, apply
// isolation, record a cache entry.
func (e *Engine) executeComponent(ctx context.Context, name string, cp *ComponentPlan, policy Policy) *ComponentResult {
	start := time.Now()
	cr := &ComponentResult{Name: name, Action: cp.Action}

	runCtx := ctx
	var cancel context.CancelFunc
	if policy.PerComponentTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, policy.PerComponentTimeout)
		defer cancel()
	}

	dir := e.ComponentDir(name)

	if cacheHit, err := e.tryCacheRestore(runCtx, name, cp, dir); err != nil {
		cr.Error = err.Error()
		return cr
	} else if cacheHit {
		cr.CacheHit = true
		cr.Duration = time.Since(start)
		return cr
	}

	if err := e.materializeReference(runCtx, name, cp, dir); err != nil {
		cr.Error = err.Error()
		return cr
	}

	if !policy.SkipPackages {
		installDir, err := PrepareIsolation(runCtx, name, dir, cp.Isolation)
		if err != nil {
			cr.Error = err.Error()
			return cr
		}
		if err := e.installPackages(runCtx, name, installDir, policy); err != nil {
			cr.Error = err.Error()
			return cr
		}
	}

	if e.Store != nil && (cp.Action == ActionClone || cp.Action == ActionCheckout) {
		e.recordCache(name, cp, dir)
	}

	cr.Duration = time.Since(start)
	return cr
}

// recordCache stores dir's resulting tree and records a cache entry
// keyed on the same coarse key tryCacheRestore looks up. Failures are
// logged, not fatal — a missed cache write just means the next apply
// re-fetches.
func (e *Engine) recordCache(name string, cp *ComponentPlan, dir string) {
	key := store.CacheKey(name, cp.ToPin, "", nil, [32]byte{})
	if _, err := e.Store.Put(key, dir, name, "", cp.ToPin); err != nil {
		log.Printf("failed to record cache entry for %s: %v", name, err)
	}
}

// tryCacheRestore restores dir from the content-addressed store on a
// build-cache hit, skipping fetch/install entirely. Vendored-mode
// components are always materialized by the vendor engine's own
// transaction, so this only applies to the actions that fetch a fresh
// tree. The cache key omits a source-tree hash (unknowable before
// fetch) and is keyed on component/version/build-target alone — a
// coarser key than the one the vendor engine records after the fact.
func (e *Engine) tryCacheRestore(ctx context.Context, name string, cp *ComponentPlan, dir string) (bool, error) {
	if e.Store == nil || (cp.Action != ActionClone && cp.Action != ActionCheckout) {
		return false, nil
	}
	key := store.CacheKey(name, cp.ToPin, "", nil, [32]byte{})
	hash, ok, err := e.Store.Lookup(key)
	if err != nil || !ok {
		return false, nil
	}
	if err := e.Store.Get(hash, dir); err != nil {
		return false, nil // cache restore failed: fall through to normal materialization
	}
	return true, nil
}

func (e *Engine) materializeReference(ctx context.Context, name string, cp *ComponentPlan, dir string) error {
	switch cp.Action {
	case ActionNoop, ActionUpdateDepsOnly, ActionVendorImport:
		return nil
	case ActionClone:
		if e.Git == nil {
			return nil
		}
		if err := e.Git.Clone(ctx, cp.Repo, dir); err != nil {
			return err
		}
		return e.Git.Checkout(ctx, dir, cp.ToPin)
	case ActionCheckout:
		if e.Git == nil {
			return nil
		}
		if err := e.Git.Fetch(ctx, dir); err != nil {
			return err
		}
		return e.Git.Checkout(ctx, dir, cp.ToPin)
	default:
		return nil
	}
}

// installRunner matches RunInstall's signature; installPackages takes
// one as a parameter so tests can exercise the retry/backoff loop
// without shelling out to a real package manager.
type installRunner func(ctx context.Context, dir string) (string, InstallClassification, error)

func (e *Engine) installPackages(ctx context.Context, name, dir string, policy Policy) error {
	pm := DetectPackageManager(dir)
	if pm == nil {
		return nil
	}
	return e.installPackagesWithRunner(ctx, name, dir, policy, func(ctx context.Context, dir string) (string, InstallClassification, error) {
		return RunInstall(ctx, dir, pm)
	})
}

func (e *Engine) installPackagesWithRunner(ctx context.Context, name, dir string, policy Policy, run installRunner) error {
	var lastErr error
	for attempt := 0; attempt <= policy.RetryCount; attempt++ {
		out, class, err := run(ctx, dir)
		if err == nil {
			return nil
		}
		lastErr = err
		if class == InstallPermanent {
			return err
		}
		log.Printf("package install for %s failed (attempt %d/%d, retryable): %s", name, attempt+1, policy.RetryCount+1, out)
		if attempt == policy.RetryCount {
			break
		}
		select {
		case <-ctx.Done():
			return errs.New(errs.KindCancelled, "package-install", []string{name}, "cancelled during retry backoff", ctx.Err())
		case <-time.After(policy.RetryBackoff):
		}
	}
	return lastErr
}
