package rollback

import (
	"context"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/tbrumbaugh5396/meta/internal/apply"
	"github.com/tbrumbaugh5396/meta/internal/changeset"
	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/store"
)

// Applier is the subset of *apply.Engine rollback needs: materialize
// a manifest whose environment pins have already been overridden to
// the resolved rollback target, either across every component (Apply)
// or scoped to a named subset (ApplyOnly, for single-component
// rollback that must leave the rest of the environment untouched).
type Applier interface {
	Apply(ctx context.Context, m *meta.Manifest, env string) (*apply.Result, error)
	ApplyOnly(ctx context.Context, m *meta.Manifest, env string, only []string) (*apply.Result, error)
}

// Reverter is the git capability changeset-kind rollback needs;
// *gitdriver.Driver satisfies it structurally.
type Reverter interface {
	Revert(ctx context.Context, dir, sha string) (string, error)
}

// Engine resolves rollback targets into pin sets and dispatches
// materialization, either through the apply orchestrator (component,
// lock, store, snapshot kinds) or through the changeset log's own
// revert machinery (changeset kind).
type Engine struct {
	WorkspaceRoot string
	Apply         Applier
	Store         *store.Store
	Changelog     *changeset.Log
	ComponentDir  func(string) string
}

// Component rolls back a single component to a prior version or
// commit sha, leaving every other component's pin untouched. Relies
// on apply.Policy.Only to scope materialization to just this one
// component.
func (e *Engine) Component(ctx context.Context, m *meta.Manifest, env, name, target string) (*apply.Result, error) {
	if _, err := m.Component(name); err != nil {
		return nil, err
	}
	overridden, err := e.withOverriddenPin(m, env, name, target)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, overridden, env, []string{name})
}

// Lock rolls back env to the pin set recorded in an arbitrary lock
// file (not necessarily the workspace's current one for env — a
// backed-up or hand-picked lock file path is accepted).
func (e *Engine) Lock(ctx context.Context, m *meta.Manifest, env, lockPath string) (*apply.Result, error) {
	l, err := readLockFile(lockPath)
	if err != nil {
		return nil, err
	}
	if l.Mode != m.Mode {
		return nil, errs.New(errs.KindLockMismatch, "rollback-lock", nil,
			fmt.Sprintf("lock file mode %q does not match workspace mode %q", l.Mode, m.Mode), nil)
	}
	pins := pinsFromLock(l)
	overridden := withPins(m, env, pins)
	return e.apply(ctx, overridden, env, nil)
}

// Snapshot rolls back env to a previously captured snapshot (looked
// up by id under .meta/snapshots, or by an explicit file path).
func (e *Engine) Snapshot(ctx context.Context, m *meta.Manifest, env, idOrPath string) (*apply.Result, error) {
	s, err := ReadSnapshot(e.WorkspaceRoot, idOrPath)
	if err != nil {
		return nil, err
	}
	if s.Mode != m.Mode {
		return nil, errs.New(errs.KindLockMismatch, "rollback-snapshot", nil,
			fmt.Sprintf("snapshot mode %q does not match workspace mode %q", s.Mode, m.Mode), nil)
	}
	overridden := withPins(m, env, s.Pins)
	return e.apply(ctx, overridden, env, nil)
}

// FromStoreHash restores a single component's materialized tree
// directly from a content-addressed store hash, bypassing pin
// resolution and the scheduler entirely — the hash already identifies
// an exact tree.
func (e *Engine) FromStoreHash(ctx context.Context, name, hash string) error {
	if e.Store == nil {
		return errs.New(errs.KindVendor, "rollback-store", []string{name}, "no store configured", nil)
	}
	dir := e.ComponentDir(name)
	if err := e.Store.Get(store.Hash(hash), dir); err != nil {
		return errs.New(errs.KindCacheMiss, "rollback-store", []string{name}, hash, err)
	}
	return nil
}

// Changeset reverts every commit recorded in changeset id, delegating
// to the changeset log's own Rollback (reverse dependency order,
// stop-on-first-failure, marks the changeset rolled-back on success).
func (e *Engine) Changeset(ctx context.Context, id string, rev Reverter) (*changeset.Changeset, error) {
	if e.Changelog == nil {
		return nil, errs.New(errs.KindVendor, "rollback-changeset", nil, "no changeset log configured", nil)
	}
	return e.Changelog.Rollback(ctx, id, rev, func(component string) (string, error) {
		return e.ComponentDir(component), nil
	})
}

// List enumerates every rollback-eligible target present in the
// workspace: locks, snapshots, store entries by component, and
// committed changesets.
func (e *Engine) List(environments []string) (*Listing, error) {
	out := &Listing{StoreByComponent: map[string][]StoreEntry{}}

	for _, env := range environments {
		if _, err := lock.Read(e.WorkspaceRoot, env); err == nil {
			out.Locks = append(out.Locks, env)
		}
	}

	snapshots, err := ListSnapshots(e.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	out.Snapshots = snapshots

	if e.Store != nil {
		hashes, err := e.Store.AllHashes()
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			md, err := e.Store.Query(h)
			if err != nil || md == nil {
				continue
			}
			out.StoreByComponent[md.Component] = append(out.StoreByComponent[md.Component], StoreEntry{
				Hash: string(h), Component: md.Component, CreatedAt: md.CreatedAt,
			})
		}
	}

	if e.Changelog != nil {
		committed, err := e.Changelog.Committed()
		if err != nil {
			return nil, err
		}
		for _, cs := range committed {
			out.Changesets = append(out.Changesets, cs.ID)
		}
	}

	return out, nil
}

func (e *Engine) apply(ctx context.Context, m *meta.Manifest, env string, only []string) (*apply.Result, error) {
	if e.Apply == nil {
		return nil, errs.New(errs.KindVendor, "rollback", nil, "no apply engine configured", nil)
	}
	if len(only) > 0 {
		return e.Apply.ApplyOnly(ctx, m, env, only)
	}
	return e.Apply.Apply(ctx, m, env)
}

// withOverriddenPin returns a shallow copy of m with env's pin for
// name replaced by target; every other component and environment is
// shared with m, not copied.
func (e *Engine) withOverriddenPin(m *meta.Manifest, env, name, target string) (*meta.Manifest, error) {
	environment, ok := m.Environments[env]
	if !ok {
		return nil, errs.New(errs.KindManifest, "rollback", nil, fmt.Sprintf("unknown environment %q", env), nil)
	}
	pins := map[string]string{}
	for k, v := range environment.Pins {
		pins[k] = v
	}
	pins[name] = target
	return withPins(m, env, pins), nil
}

// withPins returns a shallow copy of m with env's Environment replaced
// by one carrying pins.
func withPins(m *meta.Manifest, env string, pins map[string]string) *meta.Manifest {
	copied := *m
	copied.Environments = map[string]*meta.Environment{}
	for name, e := range m.Environments {
		copied.Environments[name] = e
	}
	copied.Environments[env] = &meta.Environment{Name: env, Pins: pins}
	return &copied
}

func readLockFile(path string) (*meta.Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.KindLockMismatch, "rollback-lock", nil, path, err)
	}
	var l meta.Lock
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, errs.New(errs.KindLockMismatch, "rollback-lock", nil, path, err)
	}
	return &l, nil
}

func pinsFromLock(l *meta.Lock) map[string]string {
	pins := map[string]string{}
	switch l.Mode {
	case meta.ModeReference:
		for name, entry := range l.Reference {
			pins[name] = entry.Version
		}
	case meta.ModeVendored:
		for name, entry := range l.Vendored {
			pins[name] = entry.Version
		}
	}
	return pins
}
