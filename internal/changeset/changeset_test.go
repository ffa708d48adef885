package changeset

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreate_EnforcesAtMostOneInProgress(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)

	cs1, err := log.Create("alice", "first change", []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, cs1.Status)

	_, err = log.Create("bob", "second change", []string{"c"})
	require.Error(t, err)

	cur, err := log.Current()
	require.NoError(t, err)
	require.Equal(t, cs1.ID, cur.ID)
}

func TestRecordCommitAndFinalize(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)

	cs, err := log.Create("alice", "adds a feature", []string{"a", "b"})
	require.NoError(t, err)

	require.NoError(t, log.RecordCommit(cs.ID, RepoCommit{Name: "a", Repo: "github.com/x/a", Commit: "abc123", Branch: "main"}))
	require.NoError(t, log.RecordCommit(cs.ID, RepoCommit{Name: "b", Repo: "github.com/x/b", Commit: "def456", Branch: "main"}))

	finalized, err := log.Finalize(cs.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCommitted, finalized.Status)
	require.Len(t, finalized.Repos, 2)

	cur, err := log.Current()
	require.NoError(t, err)
	require.Nil(t, cur)

	// A new changeset can now begin.
	cs2, err := log.Create("bob", "second change", []string{"c"})
	require.NoError(t, err)
	require.NotEqual(t, cs.ID, cs2.ID)
}

type fakeReverter struct {
	fail map[string]bool
	seen []string
}

func (f *fakeReverter) Revert(ctx context.Context, dir, sha string) (string, error) {
	f.seen = append(f.seen, sha)
	if f.fail[sha] {
		return "", fmt.Errorf("simulated revert failure for %s", sha)
	}
	return "revert-of-" + sha, nil
}

func TestRollback_ReversesInOrderAndMarksStatus(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)

	cs, err := log.Create("alice", "multi-repo change", []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, log.RecordCommit(cs.ID, RepoCommit{Name: "a", Commit: "sha-a"}))
	require.NoError(t, log.RecordCommit(cs.ID, RepoCommit{Name: "b", Commit: "sha-b"}))
	_, err = log.Finalize(cs.ID)
	require.NoError(t, err)

	rev := &fakeReverter{fail: map[string]bool{}}
	dirOf := func(component string) (string, error) { return "/repos/" + component, nil }

	result, err := log.Rollback(context.Background(), cs.ID, rev, dirOf)
	require.NoError(t, err)
	require.Equal(t, StatusRolledBack, result.Status)
	// reverse dependency order: b (recorded last) reverted first
	require.Equal(t, []string{"sha-b", "sha-a"}, rev.seen)
}

func TestRollback_PartialFailureMarksFailedWithoutAutoUndo(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)

	cs, err := log.Create("alice", "multi-repo change", []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, log.RecordCommit(cs.ID, RepoCommit{Name: "a", Commit: "sha-a"}))
	require.NoError(t, log.RecordCommit(cs.ID, RepoCommit{Name: "b", Commit: "sha-b"}))
	_, err = log.Finalize(cs.ID)
	require.NoError(t, err)

	rev := &fakeReverter{fail: map[string]bool{"sha-a": true}}
	dirOf := func(component string) (string, error) { return "/repos/" + component, nil }

	_, err = log.Rollback(context.Background(), cs.ID, rev, dirOf)
	require.Error(t, err)

	got, err := log.Get(cs.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	// b was reverted before a failed; both attempts are recorded, no
	// auto-undo of b's successful revert.
	require.Equal(t, []string{"sha-b", "sha-a"}, rev.seen)
}

func TestRender_NonTTYPlainText(t *testing.T) {
	cs := &Changeset{ID: "abc", Status: StatusCommitted, Author: "alice", Description: "# A title\n\nbody text"}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, cs, false))
	require.Contains(t, buf.String(), "# A title")
	require.Contains(t, buf.String(), "id: abc")
}
