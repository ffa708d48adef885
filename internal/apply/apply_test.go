package apply

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/store"
	"github.com/tbrumbaugh5396/meta/internal/vendorengine"
)

type fakeGit struct {
	failClone    map[string]bool
	failCheckout map[string]bool
	shas         map[string]string // dir -> sha ResolveSha returns
}

func (f *fakeGit) Clone(ctx context.Context, repo, target string) error {
	if f.failClone[repo] {
		return simErr{"clone", repo}
	}
	if err := os.MkdirAll(filepath.Join(target, ".git"), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(target, "marker"), []byte("x"), 0o644)
}

func (f *fakeGit) Fetch(ctx context.Context, dir string) error { return nil }

func (f *fakeGit) Checkout(ctx context.Context, dir, ref string) error {
	if f.failCheckout[ref] {
		return simErr{"checkout", ref}
	}
	if f.shas == nil {
		f.shas = map[string]string{}
	}
	f.shas[dir] = ref
	return nil
}

func (f *fakeGit) ResolveSha(ctx context.Context, dir, ref string) (string, error) {
	if sha, ok := f.shas[dir]; ok {
		return sha, nil
	}
	return "", simErr{"resolve-sha", dir}
}

type simErr struct{ op, arg string }

func (e simErr) Error() string { return e.op + " failed for " + e.arg }

type fakeVendor struct {
	called bool
	err    error
}

func (f *fakeVendor) Convert(ctx context.Context, m *meta.Manifest, env string) (*vendorengine.Result, error) {
	f.called = true
	return &vendorengine.Result{}, f.err
}

func buildManifest(mode meta.StorageMode) *meta.Manifest {
	a := &meta.Component{Name: "a", Repo: "https://example.com/a.git", Version: "v1.0.0", Type: meta.BuildGeneric}
	b := &meta.Component{Name: "b", Repo: "https://example.com/b.git", Version: "v1.0.0", Type: meta.BuildGeneric, DependsOn: []string{"a"}}
	return &meta.Manifest{
		Mode:       mode,
		Components: map[string]*meta.Component{"a": a, "b": b},
		Order:      []string{"a", "b"},
		Environments: map[string]*meta.Environment{
			"dev": {Name: "dev", Pins: map[string]string{"a": "v1.0.0", "b": "v1.0.0"}},
		},
	}
}

func newEngine(t *testing.T, root string, git GitOperator, vendor VendorConverter) *Engine {
	t.Helper()
	componentDir := func(name string) string { return filepath.Join(root, "components", name) }
	policy := Policy{SkipPackages: true, ParallelJobs: 2, RetryCount: 0, RetryBackoff: time.Millisecond}
	return New(root, git, vendor, nil, componentDir, policy)
}

func TestApply_ClonesMissingComponentsInDependencyOrder(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	e := newEngine(t, root, git, nil)

	result, err := e.Apply(context.Background(), buildManifest(meta.ModeReference), "dev")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, result.Succeeded)
	require.Empty(t, result.Failed)
	require.Equal(t, ActionClone, result.Components["a"].Action)
	require.Equal(t, ActionClone, result.Components["b"].Action)
}

func TestApply_NoopWhenAlreadyAtPin(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	componentDir := func(name string) string { return filepath.Join(root, "components", name) }

	// pre-materialize "a" at its target pin
	dirA := componentDir("a")
	require.NoError(t, os.MkdirAll(filepath.Join(dirA, ".git"), 0o755))
	git.shas = map[string]string{dirA: "v1.0.0"}

	e := New(root, git, nil, nil, componentDir, Policy{SkipPackages: true, ParallelJobs: 2})
	result, err := e.Apply(context.Background(), buildManifest(meta.ModeReference), "dev")
	require.NoError(t, err)
	require.Equal(t, ActionNoop, result.Components["a"].Action)
	require.Equal(t, ActionClone, result.Components["b"].Action)
	require.ElementsMatch(t, []string{"a", "b"}, result.Succeeded)
}

func TestApply_DependentSkippedWhenDependencyFails(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{failClone: map[string]bool{"https://example.com/a.git": true}}
	e := newEngine(t, root, git, nil)
	e.Policy.ContinueOnError = true

	result, err := e.Apply(context.Background(), buildManifest(meta.ModeReference), "dev")
	require.NoError(t, err)
	require.Contains(t, result.Failed, "a")
	require.Contains(t, result.Skipped, "b")
	require.Empty(t, result.Succeeded)
}

func TestApply_FailFastReturnsErrorWithoutContinueOnError(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{failClone: map[string]bool{"https://example.com/a.git": true}}
	e := newEngine(t, root, git, nil)

	_, err := e.Apply(context.Background(), buildManifest(meta.ModeReference), "dev")
	require.Error(t, err)
}

func TestApply_VendoredModeDelegatesToVendorEngine(t *testing.T) {
	root := t.TempDir()
	vendor := &fakeVendor{}
	e := newEngine(t, root, nil, vendor)

	result, err := e.Apply(context.Background(), buildManifest(meta.ModeVendored), "dev")
	require.NoError(t, err)
	require.True(t, vendor.called)
	// vendored components are not cloned/checked out by the orchestrator itself
	require.Equal(t, ActionVendorImport, result.Components["a"].Action)
}

func TestApply_VendoredModeWithoutVendorEngineErrors(t *testing.T) {
	root := t.TempDir()
	e := newEngine(t, root, nil, nil)

	_, err := e.Apply(context.Background(), buildManifest(meta.ModeVendored), "dev")
	require.Error(t, err)
}

func TestApply_CacheHitSkipsFetch(t *testing.T) {
	root := t.TempDir()
	storeRoot := filepath.Join(root, ".meta-store")
	st, err := store.Open(storeRoot)
	require.NoError(t, err)
	defer st.Close()

	componentDir := func(name string) string { return filepath.Join(root, "components", name) }

	// prime the cache: put a pre-built tree under the same coarse key
	// Apply will look up for component "a" at pin v1.0.0.
	seedDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "built"), []byte("ok"), 0o644))
	key := store.CacheKey("a", "v1.0.0", "", nil, [32]byte{})
	_, err = st.Put(key, seedDir, "a", "", "v1.0.0")
	require.NoError(t, err)

	git := &fakeGit{}
	e := New(root, git, nil, st, componentDir, Policy{SkipPackages: true, ParallelJobs: 2})

	result, err := e.Apply(context.Background(), buildManifest(meta.ModeReference), "dev")
	require.NoError(t, err)
	require.True(t, result.Components["a"].CacheHit)
	require.FileExists(t, filepath.Join(componentDir("a"), "built"))
}

func TestApply_RetriesRetryableInstallFailureThenSucceeds(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	componentDir := func(name string) string { return filepath.Join(root, "components", name) }
	e := New(root, git, nil, nil, componentDir, Policy{ParallelJobs: 1, RetryCount: 2, RetryBackoff: time.Millisecond})

	attempts := 0
	err := e.installPackagesWithRunner(context.Background(), "a", componentDir("a"), e.Policy, func(ctx context.Context, dir string) (string, InstallClassification, error) {
		attempts++
		if attempts < 2 {
			return "network timeout", InstallRetryable, simErr{"install", "a"}
		}
		return "", InstallRetryable, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestApply_PermanentInstallFailureDoesNotRetry(t *testing.T) {
	root := t.TempDir()
	componentDir := func(name string) string { return filepath.Join(root, "components", name) }
	e := New(root, &fakeGit{}, nil, nil, componentDir, Policy{ParallelJobs: 1, RetryCount: 3, RetryBackoff: time.Millisecond})

	attempts := 0
	err := e.installPackagesWithRunner(context.Background(), "a", componentDir("a"), e.Policy, func(ctx context.Context, dir string) (string, InstallClassification, error) {
		attempts++
		return "checksum mismatch", InstallPermanent, simErr{"install", "a"}
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestApply_CancelledContextStopsBeforeNextLevel(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	e := newEngine(t, root, git, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Apply(ctx, buildManifest(meta.ModeReference), "dev")
	require.NoError(t, err)
	require.True(t, result.Cancelled)
}

func TestApply_OnlyScopesMaterializationToNamedComponents(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	e := newEngine(t, root, git, nil)
	e.Policy.ContinueOnError = false

	result, err := e.ApplyOnly(context.Background(), buildManifest(meta.ModeReference), "dev", []string{"a"})
	require.NoError(t, err)
	require.Equal(t, ActionClone, result.Components["a"].Action)
	require.Equal(t, ActionNoop, result.Components["b"].Action)
}

func TestClassifyAction(t *testing.T) {
	require.Equal(t, ActionClone, classifyAction(meta.ModeReference, false, "", "v1"))
	require.Equal(t, ActionVendorImport, classifyAction(meta.ModeVendored, false, "", "v1"))
	require.Equal(t, ActionNoop, classifyAction(meta.ModeReference, true, "v1", "v1"))
	require.Equal(t, ActionCheckout, classifyAction(meta.ModeReference, true, "v1", "v2"))
	require.Equal(t, ActionVendorImport, classifyAction(meta.ModeVendored, true, "v1", "v2"))
}
