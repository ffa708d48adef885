package health

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tbrumbaugh5396/meta/internal/changeset"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/internal/meta"
)

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

func TestPreApply_PassesOnCleanManifest(t *testing.T) {
	m := buildManifest()
	require.NoError(t, PreApply(t.TempDir(), m, "dev", PreApplyOptions{}))
}

func TestPreApply_MissingDependencyErrors(t *testing.T) {
	m := buildManifest()
	m.Components["b"].DependsOn = []string{"ghost"}
	err := PreApply(t.TempDir(), m, "dev", PreApplyOptions{})
	require.Error(t, err)
}

func TestPreApply_CycleErrors(t *testing.T) {
	m := buildManifest()
	m.Components["a"].DependsOn = []string{"b"}
	err := PreApply(t.TempDir(), m, "dev", PreApplyOptions{})
	require.Error(t, err)
}

func TestPreApply_LockedRequiresMatchingLock(t *testing.T) {
	root := t.TempDir()
	m := buildManifest()

	_, err := lock.Generate(context.Background(), root, m, "dev", func(string) string { return root }, nil)
	require.NoError(t, err)

	require.NoError(t, PreApply(root, m, "dev", PreApplyOptions{Locked: true}))

	m.Environments["dev"].Pins["a"] = "v2.0.0"
	err = PreApply(root, m, "dev", PreApplyOptions{Locked: true})
	require.Error(t, err)
}

func TestPreApply_InProgressChangesetBlocks(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(root, 0o755))
	clog, err := changeset.Open(root)
	require.NoError(t, err)
	_, err = clog.Create("alice", "wip", []string{"a"})
	require.NoError(t, err)

	m := buildManifest()
	err = PreApply(root, m, "dev", PreApplyOptions{Changelog: clog})
	require.Error(t, err)
}

func TestPreApply_NoChangelogSkipsInProgressCheck(t *testing.T) {
	m := buildManifest()
	require.NoError(t, PreApply(t.TempDir(), m, "dev", PreApplyOptions{Changelog: nil}))
}

func TestPreApply_FinalizedChangesetDoesNotBlock(t *testing.T) {
	root := t.TempDir()
	clog, err := changeset.Open(root)
	require.NoError(t, err)
	cs, err := clog.Create("alice", "done", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, clog.RecordCommit(cs.ID, changeset.RepoCommit{Name: "a", Repo: "https://example.com/a.git", Commit: "abc"}))
	_, err = clog.Finalize(cs.ID)
	require.NoError(t, err)

	m := buildManifest()
	require.NoError(t, PreApply(root, m, "dev", PreApplyOptions{Changelog: clog}))
}
