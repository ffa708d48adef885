// Package lock implements the lock file subsystem: deterministic
// per-environment pinning, validation against the manifest, promotion
// between environments, and diffing.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/manifest"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var log = logger.New("lock:subsystem")

// PathFor returns the stable per-environment lock file path
// (components.lock.<env>).
func PathFor(workspaceRoot, env string) string {
	return filepath.Join(workspaceRoot, fmt.Sprintf("components.lock.%s", env))
}

// Resolver resolves a component's working tree to a commit sha, used
// only in reference mode. Implemented by internal/gitdriver against a
// real checkout; tests may substitute a fake.
type ShaResolver interface {
	ResolveSha(ctx context.Context, dir, ref string) (string, error)
}

// Generate walks the manifest for env, resolves each component's
// version pin to an immortal identifier, and writes the lock file
// atomically (temp file + rename).
func Generate(ctx context.Context, workspaceRoot string, m *meta.Manifest, env string, checkoutDirFor func(component string) string, resolver ShaResolver) (*meta.Lock, error) {
	environment, ok := m.Environments[env]
	if !ok {
		return nil, errs.New(errs.KindManifest, "generate", nil, fmt.Sprintf("unknown environment %q", env), nil)
	}

	l := &meta.Lock{
		Environment: env,
		Mode:        m.Mode,
		GeneratedAt: time.Now(),
	}

	switch m.Mode {
	case meta.ModeReference:
		l.Reference = map[string]meta.LockEntryReference{}
		for name, pin := range environment.Pins {
			comp, err := m.Component(name)
			if err != nil {
				return nil, errs.New(errs.KindLockMismatch, "generate", []string{name}, "pin refers to unknown component", err)
			}
			var sha string
			if resolver != nil {
				var err error
				sha, err = resolver.ResolveSha(ctx, checkoutDirFor(name), pin)
				if err != nil {
					return nil, errs.New(errs.KindGitTransient, "generate", []string{name}, "resolving pin to commit sha", err)
				}
			}
			l.Reference[name] = meta.LockEntryReference{
				Version:     pin,
				CommitSHA:   sha,
				Repo:        comp.Repo,
				Type:        comp.Type,
				BuildTarget: comp.BuildTarget,
				DependsOn:   append([]string(nil), comp.DependsOn...),
			}
		}
	case meta.ModeVendored:
		l.Vendored = map[string]meta.LockEntryVendored{}
		for name, pin := range environment.Pins {
			comp, err := m.Component(name)
			if err != nil {
				return nil, errs.New(errs.KindLockMismatch, "generate", []string{name}, "pin refers to unknown component", err)
			}
			if !manifest.ValidPin(pin) {
				return nil, errs.New(errs.KindManifest, "generate", []string{name}, fmt.Sprintf("invalid semver pin %q for vendored mode", pin), nil)
			}
			l.Vendored[name] = meta.LockEntryVendored{
				Version:     pin,
				VendoredAt:  time.Now(),
				Repo:        comp.Repo,
				Type:        comp.Type,
				BuildTarget: comp.BuildTarget,
			}
		}
	default:
		return nil, errs.New(errs.KindManifest, "generate", nil, "workspace mode not set", nil)
	}

	if err := writeAtomic(PathFor(workspaceRoot, env), l); err != nil {
		return nil, err
	}
	log.Printf("generated lock for env=%s mode=%s components=%d", env, m.Mode, len(environment.Pins))
	return l, nil
}

func writeAtomic(path string, l *meta.Lock) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return errs.New(errs.KindManifest, "write-lock", nil, path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.New(errs.KindManifest, "write-lock", nil, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.New(errs.KindManifest, "write-lock", nil, path, err)
	}
	return nil
}

// Read loads the lock file for env.
func Read(workspaceRoot, env string) (*meta.Lock, error) {
	path := PathFor(workspaceRoot, env)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.KindLockMismatch, "read", nil, path, err)
	}
	var l meta.Lock
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, errs.New(errs.KindLockMismatch, "read", nil, path, err)
	}
	return &l, nil
}

// Discrepancy describes one mismatch found by Validate.
type Discrepancy struct {
	Component string
	Kind      string // missing | extra | sha-mismatch | mode-mismatch
	Detail    string
}

// ValidateResult is the outcome of Validate.
type ValidateResult struct {
	OK            bool
	Discrepancies []Discrepancy
}

// Validate compares the manifest and the env lock file, reporting
// every discrepancy found.
func Validate(workspaceRoot string, m *meta.Manifest, env string) (*ValidateResult, error) {
	l, err := Read(workspaceRoot, env)
	if err != nil {
		return nil, err
	}

	result := &ValidateResult{OK: true}

	if l.Mode != m.Mode {
		result.OK = false
		result.Discrepancies = append(result.Discrepancies, Discrepancy{
			Kind: "mode-mismatch", Detail: fmt.Sprintf("lock mode %q != workspace mode %q", l.Mode, m.Mode),
		})
	}

	lockedNames := map[string]bool{}
	switch l.Mode {
	case meta.ModeReference:
		for name := range l.Reference {
			lockedNames[name] = true
		}
	case meta.ModeVendored:
		for name := range l.Vendored {
			lockedNames[name] = true
		}
	}

	environment, ok := m.Environments[env]
	if !ok {
		return nil, errs.New(errs.KindManifest, "validate", nil, fmt.Sprintf("unknown environment %q", env), nil)
	}

	for name := range environment.Pins {
		if !lockedNames[name] {
			result.OK = false
			result.Discrepancies = append(result.Discrepancies, Discrepancy{Component: name, Kind: "missing", Detail: "present in manifest but absent from lock"})
		}
	}
	for name := range lockedNames {
		if _, ok := environment.Pins[name]; !ok {
			result.OK = false
			result.Discrepancies = append(result.Discrepancies, Discrepancy{Component: name, Kind: "extra", Detail: "present in lock but absent from manifest"})
		}
	}

	if m.Mode == meta.ModeReference {
		for name, pin := range environment.Pins {
			entry, ok := l.Reference[name]
			if !ok {
				continue // already reported as missing
			}
			if entry.Version != pin {
				result.OK = false
				result.Discrepancies = append(result.Discrepancies, Discrepancy{
					Component: name, Kind: "sha-mismatch",
					Detail: fmt.Sprintf("lock pins %q, manifest pins %q", entry.Version, pin),
				})
			}
		}
	}

	sort.Slice(result.Discrepancies, func(i, j int) bool {
		return result.Discrepancies[i].Component < result.Discrepancies[j].Component
	})

	return result, nil
}

// Promote copies lock entries from src to dst, rewriting the embedded
// environment name. Fails if any component is absent from dst's
// manifest.
func Promote(workspaceRoot string, m *meta.Manifest, src, dst string) (*meta.Lock, error) {
	srcLock, err := Read(workspaceRoot, src)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Environments[dst]; !ok {
		return nil, errs.New(errs.KindManifest, "promote", nil, fmt.Sprintf("unknown destination environment %q", dst), nil)
	}

	names := map[string]bool{}
	switch srcLock.Mode {
	case meta.ModeReference:
		for name := range srcLock.Reference {
			names[name] = true
		}
	case meta.ModeVendored:
		for name := range srcLock.Vendored {
			names[name] = true
		}
	}
	for name := range names {
		if _, err := m.Component(name); err != nil {
			return nil, errs.New(errs.KindLockMismatch, "promote", []string{name}, fmt.Sprintf("component absent from %q manifest", dst), err)
		}
	}

	promoted := *srcLock
	promoted.Environment = dst
	promoted.GeneratedAt = time.Now()

	if err := writeAtomic(PathFor(workspaceRoot, dst), &promoted); err != nil {
		return nil, err
	}
	return &promoted, nil
}

// FieldDiff is one component's field-level difference between two
// environment locks.
type FieldDiff struct {
	Component string
	Field     string
	From, To  string
}

// Diff is the symmetric set diff plus per-component field diff
// between two environment locks.
type Diff struct {
	OnlyInA, OnlyInB []string
	Changed          []FieldDiff
}

// Compare produces the symmetric diff between envA and envB's locks.
func Compare(workspaceRoot, envA, envB string) (*Diff, error) {
	a, err := Read(workspaceRoot, envA)
	if err != nil {
		return nil, err
	}
	b, err := Read(workspaceRoot, envB)
	if err != nil {
		return nil, err
	}

	diff := &Diff{}

	if a.Mode == meta.ModeReference {
		diff.compareReference(a.Reference, b.Reference)
	} else {
		diff.compareVendored(a.Vendored, b.Vendored)
	}

	sort.Strings(diff.OnlyInA)
	sort.Strings(diff.OnlyInB)
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].Component < diff.Changed[j].Component })

	return diff, nil
}

func (d *Diff) compareReference(a, b map[string]meta.LockEntryReference) {
	for name, ea := range a {
		eb, ok := b[name]
		if !ok {
			d.OnlyInA = append(d.OnlyInA, name)
			continue
		}
		if ea.Version != eb.Version {
			d.Changed = append(d.Changed, FieldDiff{Component: name, Field: "version", From: ea.Version, To: eb.Version})
		}
		if ea.CommitSHA != eb.CommitSHA {
			d.Changed = append(d.Changed, FieldDiff{Component: name, Field: "commit_sha", From: ea.CommitSHA, To: eb.CommitSHA})
		}
	}
	for name := range b {
		if _, ok := a[name]; !ok {
			d.OnlyInB = append(d.OnlyInB, name)
		}
	}
}

func (d *Diff) compareVendored(a, b map[string]meta.LockEntryVendored) {
	for name, ea := range a {
		eb, ok := b[name]
		if !ok {
			d.OnlyInA = append(d.OnlyInA, name)
			continue
		}
		if ea.Version != eb.Version {
			d.Changed = append(d.Changed, FieldDiff{Component: name, Field: "version", From: ea.Version, To: eb.Version})
		}
	}
	for name := range b {
		if _, ok := a[name]; !ok {
			d.OnlyInB = append(d.OnlyInB, name)
		}
	}
}
