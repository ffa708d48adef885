package rollback

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/tbrumbaugh5396/meta/internal/apply"
	"github.com/tbrumbaugh5396/meta/internal/changeset"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/store"
)

type fakeApplier struct {
	lastEnv  string
	lastOnly []string
	lastPins map[string]string
}

func (f *fakeApplier) Apply(ctx context.Context, m *meta.Manifest, env string) (*apply.Result, error) {
	f.lastEnv = env
	f.lastOnly = nil
	f.lastPins = m.Environments[env].Pins
	return &apply.Result{Environment: env}, nil
}

func (f *fakeApplier) ApplyOnly(ctx context.Context, m *meta.Manifest, env string, only []string) (*apply.Result, error) {
	f.lastEnv = env
	f.lastOnly = only
	f.lastPins = m.Environments[env].Pins
	return &apply.Result{Environment: env}, nil
}

func buildManifest() *meta.Manifest {
	a := &meta.Component{Name: "a", Repo: "https://example.com/a.git", Version: "v1.0.0", Type: meta.BuildGeneric}
	b := &meta.Component{Name: "b", Repo: "https://example.com/b.git", Version: "v1.0.0", Type: meta.BuildGeneric, DependsOn: []string{"a"}}
	return &meta.Manifest{
		Mode:       meta.ModeReference,
		Components: map[string]*meta.Component{"a": a, "b": b},
		Order:      []string{"a", "b"},
		Environments: map[string]*meta.Environment{
			"dev": {Name: "dev", Pins: map[string]string{"a": "v1.0.0", "b": "v1.0.0"}},
		},
	}
}

func TestEngine_Component_OverridesOnlyThatPinAndScopesApply(t *testing.T) {
	root := t.TempDir()
	fa := &fakeApplier{}
	e := &Engine{WorkspaceRoot: root, Apply: fa, ComponentDir: func(n string) string { return filepath.Join(root, n) }}

	m := buildManifest()
	_, err := e.Component(context.Background(), m, "dev", "a", "v0.9.0")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, fa.lastOnly)
	require.Equal(t, "v0.9.0", fa.lastPins["a"])
	require.Equal(t, "v1.0.0", fa.lastPins["b"])
	// original manifest must not be mutated
	require.Equal(t, "v1.0.0", m.Environments["dev"].Pins["a"])
}

func TestEngine_Component_UnknownComponentErrors(t *testing.T) {
	e := &Engine{Apply: &fakeApplier{}}
	_, err := e.Component(context.Background(), buildManifest(), "dev", "nope", "v0.9.0")
	require.Error(t, err)
}

func TestEngine_Lock_RestoresFullPinSetFromArbitraryLockFile(t *testing.T) {
	root := t.TempDir()
	fa := &fakeApplier{}
	e := &Engine{WorkspaceRoot: root, Apply: fa}

	l := &meta.Lock{
		Environment: "dev",
		Mode:        meta.ModeReference,
		Reference: map[string]meta.LockEntryReference{
			"a": {Version: "v0.8.0", Repo: "https://example.com/a.git"},
			"b": {Version: "v0.8.0", Repo: "https://example.com/b.git"},
		},
	}
	data, err := yaml.Marshal(l)
	require.NoError(t, err)
	path := filepath.Join(root, "backup.lock")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = e.Lock(context.Background(), buildManifest(), "dev", path)
	require.NoError(t, err)
	require.Nil(t, fa.lastOnly)
	require.Equal(t, "v0.8.0", fa.lastPins["a"])
	require.Equal(t, "v0.8.0", fa.lastPins["b"])
}

func TestEngine_Lock_ModeMismatchErrors(t *testing.T) {
	root := t.TempDir()
	e := &Engine{WorkspaceRoot: root, Apply: &fakeApplier{}}
	l := &meta.Lock{Environment: "dev", Mode: meta.ModeVendored}
	data, _ := yaml.Marshal(l)
	path := filepath.Join(root, "backup.lock")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := e.Lock(context.Background(), buildManifest(), "dev", path)
	require.Error(t, err)
}

func TestEngine_Snapshot_CaptureThenRollbackRestoresPins(t *testing.T) {
	root := t.TempDir()
	fa := &fakeApplier{}
	e := &Engine{WorkspaceRoot: root, Apply: fa}

	snap, err := Capture(root, "dev", meta.ModeReference, map[string]string{"a": "v1.0.0", "b": "v1.0.0"})
	require.NoError(t, err)

	m := buildManifest()
	m.Environments["dev"].Pins["a"] = "v2.0.0" // simulate a later change

	_, err = e.Snapshot(context.Background(), m, "dev", snap.ID)
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", fa.lastPins["a"])
}

func TestEngine_Store_RestoresComponentTreeFromHash(t *testing.T) {
	root := t.TempDir()
	st, err := store.Open(filepath.Join(root, ".meta-store"))
	require.NoError(t, err)
	defer st.Close()

	seed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seed, "file.txt"), []byte("hello"), 0o644))
	hash, err := st.Add(seed, "a", "")
	require.NoError(t, err)

	componentDir := filepath.Join(root, "components", "a")
	e := &Engine{WorkspaceRoot: root, Store: st, ComponentDir: func(n string) string { return componentDir }}

	require.NoError(t, e.FromStoreHash(context.Background(), "a", string(hash)))
	require.FileExists(t, filepath.Join(componentDir, "file.txt"))
}

func TestEngine_Changeset_DelegatesToChangesetLog(t *testing.T) {
	root := t.TempDir()
	clog, err := changeset.Open(root)
	require.NoError(t, err)

	cs, err := clog.Create("alice", "a change", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, clog.RecordCommit(cs.ID, changeset.RepoCommit{Name: "a", Repo: "https://example.com/a.git", Commit: "abc123"}))
	_, err = clog.Finalize(cs.ID)
	require.NoError(t, err)

	e := &Engine{WorkspaceRoot: root, Changelog: clog, ComponentDir: func(n string) string { return filepath.Join(root, "components", n) }}

	rev := &fakeReverter{}
	out, err := e.Changeset(context.Background(), cs.ID, rev)
	require.NoError(t, err)
	require.Equal(t, changeset.StatusRolledBack, out.Status)
	require.Equal(t, []string{"abc123"}, rev.seen)
}

type fakeReverter struct {
	seen []string
}

func (f *fakeReverter) Revert(ctx context.Context, dir, sha string) (string, error) {
	f.seen = append(f.seen, sha)
	return sha, nil
}

func TestEngine_List_EnumeratesLocksSnapshotsStoreAndChangesets(t *testing.T) {
	root := t.TempDir()
	m := buildManifest()

	require.NoError(t, os.MkdirAll(root, 0o755))
	_, err := lock.Generate(context.Background(), root, m, "dev", func(string) string { return root }, nil)
	require.NoError(t, err)

	_, err = Capture(root, "dev", meta.ModeReference, map[string]string{"a": "v1.0.0"})
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(root, ".meta-store"))
	require.NoError(t, err)
	defer st.Close()
	seed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seed, "f"), []byte("x"), 0o644))
	_, err = st.Add(seed, "a", "")
	require.NoError(t, err)

	clog, err := changeset.Open(root)
	require.NoError(t, err)
	cs, err := clog.Create("alice", "a change", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, clog.RecordCommit(cs.ID, changeset.RepoCommit{Name: "a", Repo: "https://example.com/a.git", Commit: "abc123"}))
	_, err = clog.Finalize(cs.ID)
	require.NoError(t, err)

	e := &Engine{WorkspaceRoot: root, Store: st, Changelog: clog}
	listing, err := e.List([]string{"dev"})
	require.NoError(t, err)
	require.Equal(t, []string{"dev"}, listing.Locks)
	require.Len(t, listing.Snapshots, 1)
	require.Contains(t, listing.StoreByComponent, "a")
	require.Equal(t, []string{cs.ID}, listing.Changesets)
}
