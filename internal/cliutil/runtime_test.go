package cliutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tbrumbaugh5396/meta/internal/changeset"
	"github.com/tbrumbaugh5396/meta/internal/config"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/rollback"
	"github.com/tbrumbaugh5396/meta/internal/store"
)

type fakeResolver struct{}

func (fakeResolver) ResolveSha(ctx context.Context, dir, ref string) (string, error) {
	return "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", nil
}

func newTestRuntime(t *testing.T, root string) *Runtime {
	t.Helper()
	st, err := store.Open(filepath.Join(root, "store"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clog, err := changeset.Open(root)
	require.NoError(t, err)

	return &Runtime{
		Ctx:       config.NewContext(root, &config.Defaults, "test-invocation"),
		Store:     st,
		Changelog: clog,
	}
}

func addToStore(t *testing.T, st *store.Store, component, version string) {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "marker"), []byte(component+version), 0o644))

	key := store.CacheKey(component, version, "", nil, [32]byte{})
	_, err := st.Put(key, src, component, "", "")
	require.NoError(t, err)
}

func TestLiveStoreRoots_IncludesLockedComponents(t *testing.T) {
	root := t.TempDir()
	r := newTestRuntime(t, root)
	addToStore(t, r.Store, "a", "v1.0.0")

	m := &meta.Manifest{
		Mode:       meta.ModeVendored,
		Components: map[string]*meta.Component{"a": {Name: "a", Repo: "https://example.com/a.git", Version: "v1.0.0", Type: meta.BuildGeneric}},
		Environments: map[string]*meta.Environment{
			"dev": {Name: "dev", Pins: map[string]string{"a": "v1.0.0"}},
		},
	}
	_, err := lock.Generate(context.Background(), root, m, "dev", func(string) string { return root }, nil)
	require.NoError(t, err)

	roots, err := r.LiveStoreRoots([]string{"dev"})
	require.NoError(t, err)
	require.Len(t, roots, 1)
}

func TestLiveStoreRoots_IncludesSnapshotPins(t *testing.T) {
	root := t.TempDir()
	r := newTestRuntime(t, root)
	addToStore(t, r.Store, "a", "v2.0.0")

	_, err := rollback.Capture(root, "dev", meta.ModeVendored, map[string]string{"a": "v2.0.0"})
	require.NoError(t, err)

	roots, err := r.LiveStoreRoots(nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
}

func TestLiveStoreRoots_IncludesInProgressAndCommittedChangesets(t *testing.T) {
	root := t.TempDir()
	r := newTestRuntime(t, root)
	addToStore(t, r.Store, "a", "commit-a")
	addToStore(t, r.Store, "b", "commit-b")

	inProgress, err := r.Changelog.Create("tester", "wip change", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, r.Changelog.RecordCommit(inProgress.ID, changeset.RepoCommit{Name: "a", Repo: "https://example.com/a.git", Commit: "commit-a"}))

	roots, err := r.LiveStoreRoots(nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	_, err = r.Changelog.Finalize(inProgress.ID)
	require.NoError(t, err)

	committed, err := r.Changelog.Create("tester", "second change", []string{"b"})
	require.NoError(t, err)
	require.NoError(t, r.Changelog.RecordCommit(committed.ID, changeset.RepoCommit{Name: "b", Repo: "https://example.com/b.git", Commit: "commit-b"}))
	_, err = r.Changelog.Finalize(committed.ID)
	require.NoError(t, err)

	roots, err = r.LiveStoreRoots(nil)
	require.NoError(t, err)
	require.Len(t, roots, 2)
}

func TestLiveStoreRoots_SkipsUncachedOrMissingLock(t *testing.T) {
	root := t.TempDir()
	r := newTestRuntime(t, root)

	roots, err := r.LiveStoreRoots([]string{"dev"})
	require.NoError(t, err)
	require.Empty(t, roots)
}
