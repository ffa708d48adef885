// Package cliutil bootstraps the per-invocation value every command
// needs: resolved configuration, the loaded manifest, and every
// engine constructed against the same workspace root. It exists so
// pkg/cli's command constructors stay thin wrappers around cobra flag
// parsing and Runtime method calls.
package cliutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/tbrumbaugh5396/meta/internal/apply"
	"github.com/tbrumbaugh5396/meta/internal/auditlog"
	"github.com/tbrumbaugh5396/meta/internal/changeset"
	"github.com/tbrumbaugh5396/meta/internal/config"
	"github.com/tbrumbaugh5396/meta/internal/gitdriver"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/internal/manifest"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/rollback"
	"github.com/tbrumbaugh5396/meta/internal/store"
	"github.com/tbrumbaugh5396/meta/internal/store/remote"
	"github.com/tbrumbaugh5396/meta/internal/vendorengine"
	"github.com/tbrumbaugh5396/meta/pkg/constants"
)

// Runtime is the fully-wired set of engines for one command
// invocation, all sharing the same workspace root, settings, and
// (when loaded) manifest.
type Runtime struct {
	Ctx      *config.Context
	Manifest *meta.Manifest

	Git       *gitdriver.Driver
	Store     *store.Store
	Vendor    *vendorengine.Engine
	Apply     *apply.Engine
	Rollback  *rollback.Engine
	Changelog *changeset.Log
	Audit     *auditlog.Log
}

// ComponentDir resolves a component name to its working-tree path,
// shared by every engine.
func (r *Runtime) ComponentDir(name string) string {
	return filepath.Join(r.Ctx.WorkspaceRoot, constants.ComponentsDir, name)
}

// Options controls what NewRuntime wires up; commands that only read
// configuration (e.g. `config get`) can skip the manifest and engines
// entirely.
type Options struct {
	LoadManifest bool
	BindFlags    func(v *viper.Viper)
}

// NewRuntime resolves the workspace root from the current directory,
// loads Settings and (if requested) the manifest, and constructs every
// engine against them.
func NewRuntime(opts Options) (*Runtime, error) {
	workspaceRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}

	settings, err := config.Load(workspaceRoot, opts.BindFlags)
	if err != nil {
		return nil, err
	}
	ctx := config.NewContext(workspaceRoot, settings, uuid.NewString())

	audit, err := auditlog.Open(workspaceRoot, ctx.InvocationID)
	if err != nil {
		return nil, err
	}

	r := &Runtime{Ctx: ctx, Audit: audit}

	if opts.LoadManifest {
		m, err := manifest.Load(filepath.Join(workspaceRoot, settings.ManifestsDir))
		if err != nil {
			return nil, err
		}
		r.Manifest = m
	}

	st, err := store.Open(filepath.Join(workspaceRoot, constants.StoreDir))
	if err != nil {
		return nil, err
	}
	configureRemotes(st, settings)
	r.Store = st

	r.Git = gitdriver.New()

	r.Vendor = vendorengine.New(workspaceRoot, r.Git, r.ComponentDir, vendorengine.DefaultPolicy)

	policy := apply.DefaultPolicy
	policy.ParallelJobs = settings.ParallelJobs
	policy.ShowProgress = settings.ShowProgress
	r.Apply = apply.New(workspaceRoot, r.Git, r.Vendor, st, r.ComponentDir, policy)

	clog, err := changeset.Open(workspaceRoot)
	if err != nil {
		return nil, err
	}
	r.Changelog = clog

	r.Rollback = &rollback.Engine{
		WorkspaceRoot: workspaceRoot,
		Apply:         r.Apply,
		Store:         st,
		Changelog:     clog,
		ComponentDir:  r.ComponentDir,
	}

	return r, nil
}

// configureRemotes attaches the redis/S3-GCS backends named in
// Settings, when set; every call through them already falls back to
// local on failure, so a misconfigured or unreachable backend never
// blocks a command.
func configureRemotes(st *store.Store, settings *config.Settings) {
	if settings.RemoteCache != "" {
		scheme, rest, err := remote.ParseURL(settings.RemoteCache)
		if err == nil && (scheme == "redis" || scheme == "rediss") {
			st.SetRemoteCache(remote.NewRedisCacheBackend(rest, "meta", nil))
		}
	}
	if settings.RemoteStore != "" {
		scheme, rest, err := remote.ParseURL(settings.RemoteStore)
		if err == nil && (scheme == "s3" || scheme == "gs") {
			bucket, prefix := rest, ""
			if idx := indexOfSlash(rest); idx >= 0 {
				bucket, prefix = rest[:idx], rest[idx+1:]
			}
			if backend, err := remote.NewS3Backend(defaultEndpoint(scheme), bucket, prefix, true); err == nil {
				st.SetRemote(backend, remote.NewLimiter(10, 20))
			}
		}
	}
}

func indexOfSlash(s string) int {
	for i, c := range s {
		if c == '/' {
			return i
		}
	}
	return -1
}

func defaultEndpoint(scheme string) string {
	if scheme == "gs" {
		return "storage.googleapis.com"
	}
	return "s3.amazonaws.com"
}

// Close releases the store index and flushes the audit log.
func (r *Runtime) Close() {
	if r.Store != nil {
		_ = r.Store.Close()
	}
	if r.Audit != nil {
		_ = r.Audit.Close()
	}
}

// Inspector builds the on-disk state inspector for r.Manifest's mode.
func (r *Runtime) Inspector() *apply.DiskInspector {
	mode := meta.ModeReference
	if r.Manifest != nil {
		mode = r.Manifest.Mode
	}
	return &apply.DiskInspector{Mode: mode, Resolver: r.Git}
}

// Environment resolves the --env flag against settings.DefaultEnv.
func (r *Runtime) Environment(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return r.Ctx.Settings.DefaultEnv
}

// StartedAt is exposed for commands that report invocation duration.
func (r *Runtime) StartedAt() time.Time { return r.Ctx.StartedAt }

// LiveStoreRoots builds the GC root set named by the workspace's
// reachability rule: every lock file present, every snapshot, and
// every changeset that is in-progress or committed. Each root's
// component/version is resolved to a store hash via the same cache
// key apply.Engine.recordCache writes under; a component with no
// matching cache entry (never cached, or cached under different build
// inputs) contributes no root and is left to GC's reachability sweep.
func (r *Runtime) LiveStoreRoots(environments []string) (map[store.Hash]bool, error) {
	live := map[store.Hash]bool{}

	for _, env := range environments {
		l, err := lock.Read(r.Ctx.WorkspaceRoot, env)
		if err != nil {
			continue
		}
		switch l.Mode {
		case meta.ModeReference:
			for name, entry := range l.Reference {
				addLiveRoot(r.Store, live, name, entry.Version)
			}
		case meta.ModeVendored:
			for name, entry := range l.Vendored {
				addLiveRoot(r.Store, live, name, entry.Version)
			}
		}
	}

	if snapshots, err := rollback.ListSnapshots(r.Ctx.WorkspaceRoot); err == nil {
		for _, s := range snapshots {
			for name, version := range s.Pins {
				addLiveRoot(r.Store, live, name, version)
			}
		}
	}

	if r.Changelog != nil {
		if cur, err := r.Changelog.Current(); err == nil && cur != nil {
			addChangesetRoots(r.Store, live, cur)
		}
		if committed, err := r.Changelog.Committed(); err == nil {
			for _, cs := range committed {
				addChangesetRoots(r.Store, live, cs)
			}
		}
	}

	return live, nil
}

func addChangesetRoots(st *store.Store, live map[store.Hash]bool, cs *changeset.Changeset) {
	for _, rc := range cs.Repos {
		addLiveRoot(st, live, rc.Name, rc.Commit)
	}
}

func addLiveRoot(st *store.Store, live map[store.Hash]bool, component, version string) {
	key := store.CacheKey(component, version, "", nil, [32]byte{})
	if hash, ok, err := st.Lookup(key); err == nil && ok {
		live[hash] = true
	}
}
