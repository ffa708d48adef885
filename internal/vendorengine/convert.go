package vendorengine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"gopkg.in/yaml.v3"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/manifest"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/resolver"
	"github.com/tbrumbaugh5396/meta/internal/workspacelock"
)

// Fetcher is the subset of internal/gitdriver.Driver the vendor engine
// needs to materialize an upstream repo at a pinned version.
type Fetcher interface {
	Clone(ctx context.Context, repo, target string) error
	Checkout(ctx context.Context, dir, ref string) error
}

// Engine drives conversion transactions for one workspace.
type Engine struct {
	WorkspaceRoot string
	Fetcher       Fetcher
	Policy        Policy

	// ComponentDir resolves a component name to its on-disk working
	// tree path (workspace-relative layout is the caller's concern).
	ComponentDir func(component string) string
}

// New constructs an Engine, defaulting Policy fields that were left
// zero-valued to DefaultPolicy's.
func New(workspaceRoot string, fetcher Fetcher, componentDir func(string) string, policy Policy) *Engine {
	if policy.PrefetchWorkers == 0 {
		policy.PrefetchWorkers = DefaultPolicy.PrefetchWorkers
	}
	return &Engine{WorkspaceRoot: workspaceRoot, Fetcher: fetcher, Policy: policy, ComponentDir: componentDir}
}

// Plan computes the dry-run conversion plan without taking the
// workspace lock or touching disk (step 3's "optional dry-run exit",
// callable standalone for `vendor convert --dry-run`).
func (e *Engine) Plan(m *meta.Manifest, direction Direction) (*Plan, error) {
	order, err := resolver.TopoOrder(m.Components)
	if err != nil {
		return nil, err
	}
	return &Plan{TransactionID: uuid.NewString(), Order: order, Direction: direction}, nil
}

// validatePrerequisites implements step 1: git available, manifest
// already parsed (caller holds a valid *meta.Manifest), no cycles, and
// every pin present and semver-valid when converting to vendored mode.
func (e *Engine) validatePrerequisites(m *meta.Manifest, env string) ([]string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, errs.New(errs.KindVendor, "validate-prerequisites", nil, "git not found on PATH", err)
	}

	order, err := resolver.TopoOrder(m.Components)
	if err != nil {
		return nil, err
	}

	environment, ok := m.Environments[env]
	if !ok {
		return nil, errs.New(errs.KindManifest, "validate-prerequisites", nil, fmt.Sprintf("unknown environment %q", env), nil)
	}
	for name := range m.Components {
		pin, ok := environment.Pins[name]
		if !ok {
			return nil, errs.New(errs.KindDependency, "validate-prerequisites", []string{name}, "component has no pin in environment "+env, nil)
		}
		if !manifest.ValidPin(pin) {
			return nil, errs.New(errs.KindManifest, "validate-prerequisites", []string{name}, fmt.Sprintf("invalid pin %q", pin), nil)
		}
	}
	return order, nil
}

// Convert runs the reference-to-vendored pipeline for env: validate,
// lock, (optionally) plan-only exit, backup, order, prefetch, convert
// each component, verify, commit.
func (e *Engine) Convert(ctx context.Context, m *meta.Manifest, env string) (*Result, error) {
	order, err := e.validatePrerequisites(m, env) // step 1
	if err != nil {
		return nil, err
	}
	order = filterOrder(order, e.Policy)

	if e.Policy.DryRun { // step 2: short-circuit before any filesystem side effect,
		// including workspace lock acquisition, which creates .meta/workspace.lock.
		txnID := uuid.NewString()
		log.Printf("dry-run: would convert %d components in transaction %s", len(order), txnID)
		return &Result{TransactionID: txnID, Direction: DirectionToVendored}, nil
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

	existing, err := readCheckpoints(e.WorkspaceRoot, txnID) // step 6 (transaction already open if resuming)
	if err != nil {
		return nil, err
	}

	result := &Result{TransactionID: txnID, Direction: DirectionToVendored, Failed: map[string]string{}}
	environment := m.Environments[env]

	p := pool.New().WithMaxGoroutines(e.Policy.PrefetchWorkers).WithErrors()
	type fetched struct {
		component string
		srcDir    string
	}
	fetchResults := make(chan fetched, len(order))

	for _, name := range order { // step 7, prefetch may overlap
		name := name
		if cp, ok := existing[name]; ok && cp.State == CheckpointCompleted {
			continue
		}
		comp := m.Components[name]
		pin := environment.Pins[name]
		p.Go(func() error {
			tmp, err := os.MkdirTemp("", "meta-vendor-fetch-*")
			if err != nil {
				return err
			}
			if err := e.Fetcher.Clone(ctx, comp.Repo, tmp); err != nil {
				return fmt.Errorf("component %s: %w", name, err)
			}
			if err := e.Fetcher.Checkout(ctx, tmp, pin); err != nil {
				return fmt.Errorf("component %s: %w", name, err)
			}
			fetchResults <- fetched{component: name, srcDir: tmp}
			return nil
		})
	}

	fetchErr := p.Wait()
	close(fetchResults)
	fetchedByComponent := map[string]string{}
	for fr := range fetchResults {
		fetchedByComponent[fr.component] = fr.srcDir
	}
	if fetchErr != nil && e.Policy.Atomic {
		if restoreErr := RestoreBackup(e.WorkspaceRoot, filepath.Base(backupDir)); restoreErr != nil {
			log.Printf("failed to restore backup %s after prefetch failure: %v", backupDir, restoreErr)
		}
		result.RolledBack = true
		return result, errs.New(errs.KindVendor, "convert", nil, "prefetch failed, transaction rolled back", fetchErr)
	}

	for _, name := range order {
		if cp, ok := existing[name]; ok && cp.State == CheckpointCompleted {
			result.Succeeded = append(result.Succeeded, name)
			continue
		}

		src, ok := fetchedByComponent[name]
		if !ok {
			result.Failed[name] = "prefetch did not complete"
			if recErr := recordCheckpoint(e.WorkspaceRoot, txnID, name, CheckpointFailed, fmt.Errorf("prefetch did not complete")); recErr != nil {
				log.Printf("failed to record checkpoint for %s: %v", name, recErr)
			}
			if e.Policy.Atomic {
				break
			}
			continue
		}

		if err := e.convertOne(txnID, name, m.Components[name], environment.Pins[name], src); err != nil {
			result.Failed[name] = err.Error()
			if e.Policy.Atomic {
				if restoreErr := RestoreBackup(e.WorkspaceRoot, filepath.Base(backupDir)); restoreErr != nil {
					log.Printf("failed to restore backup %s after component failure: %v", backupDir, restoreErr)
				}
				result.RolledBack = true
				return result, errs.New(errs.KindVendor, "convert", []string{name}, "component conversion failed, transaction rolled back", err)
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
		return result, errs.New(errs.KindVendor, "convert", nil, "one or more components failed and continue-on-error is not set", nil)
	}

	log.Printf("transaction %s: %d succeeded, %d failed", txnID, len(result.Succeeded), len(result.Failed))
	return result, nil // step 9 (commit)/10 (release, deferred) — caller still owes rewriting the lock file in vendored form
}

// convertOne implements steps 7.a-7.e and 8 for one component: secret
// scan, gitignore filter, materialize into the workspace, write
// provenance, verify, and checkpoint the outcome.
func (e *Engine) convertOne(txnID, name string, comp *meta.Component, pin, fetchedDir string) error {
	defer os.RemoveAll(fetchedDir)

	if e.Policy.FailOnSecrets {
		findings, err := scanTree(fetchedDir)
		if err != nil {
			return e.fail(txnID, name, fmt.Errorf("secret scan: %w", err))
		}
		if len(findings) > 0 {
			return e.fail(txnID, name, errs.New(errs.KindSecretDetected, "secret-scan", []string{name}, formatFindings(findings), nil))
		}
	}

	var ignore *gitignoreFilter
	if e.Policy.RespectGitignore {
		var err error
		ignore, err = loadGitignore(fetchedDir)
		if err != nil {
			return e.fail(txnID, name, fmt.Errorf("loading .gitignore: %w", err))
		}
	}

	dst := e.ComponentDir(name)
	if err := os.RemoveAll(dst); err != nil {
		return e.fail(txnID, name, err)
	}
	if err := copyTreeFiltered(fetchedDir, dst, ignore); err != nil {
		return e.fail(txnID, name, err)
	}

	provenance := meta.ProvenanceRecord{Component: name, Repo: comp.Repo, Version: pin, VendoredAt: time.Now()}
	if err := writeProvenance(dst, provenance); err != nil {
		return e.fail(txnID, name, err)
	}

	if err := verifyVendored(dst, provenance); err != nil {
		return e.fail(txnID, name, err)
	}

	return recordCheckpoint(e.WorkspaceRoot, txnID, name, CheckpointCompleted, nil)
}

// filterOrder restricts a topological order to policy.Only, preserving
// relative order, for `vendor import <components...>` (policy.Only
// set) versus `vendor import-all` (policy.Only empty).
func filterOrder(order []string, policy Policy) []string {
	if len(policy.Only) == 0 {
		return order
	}
	out := make([]string, 0, len(policy.Only))
	for _, name := range order {
		if policy.wants(name) {
			out = append(out, name)
		}
	}
	return out
}

func (e *Engine) fail(txnID, component string, err error) error {
	if recErr := recordCheckpoint(e.WorkspaceRoot, txnID, component, CheckpointFailed, err); recErr != nil {
		log.Printf("failed to record failure checkpoint for %s: %v", component, recErr)
	}
	return err
}

func copyTreeFiltered(src, dst string, ignore *gitignoreFilter) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == ".git" {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore.Ignored(filepath.ToSlash(rel)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
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

func writeProvenance(componentDir string, p meta.ProvenanceRecord) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	path := filepath.Join(componentDir, ".meta-provenance.yaml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readProvenance(componentDir string) (*meta.ProvenanceRecord, error) {
	data, err := os.ReadFile(filepath.Join(componentDir, ".meta-provenance.yaml"))
	if err != nil {
		return nil, err
	}
	var p meta.ProvenanceRecord
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// verifyVendored implements step 8 for one component: provenance
// record present, tree non-empty, semver matches manifest.
func verifyVendored(componentDir string, expected meta.ProvenanceRecord) error {
	p, err := readProvenance(componentDir)
	if err != nil {
		return errs.New(errs.KindVendor, "verify", []string{expected.Component}, "provenance record missing or unreadable", err)
	}
	if p.Version != expected.Version {
		return errs.New(errs.KindVendor, "verify", []string{expected.Component}, fmt.Sprintf("provenance version %q != expected %q", p.Version, expected.Version), nil)
	}
	entries, err := os.ReadDir(componentDir)
	if err != nil || len(entries) == 0 {
		return errs.New(errs.KindVendor, "verify", []string{expected.Component}, "vendored tree is empty", err)
	}
	return nil
}
