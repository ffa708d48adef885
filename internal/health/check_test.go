package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tbrumbaugh5396/meta/internal/meta"
)

type fakeInspector struct {
	actual string
	exists bool
	err    error
}

func (f *fakeInspector) Inspect(ctx context.Context, name, dir string) (string, bool, error) {
	return f.actual, f.exists, f.err
}

func TestCheckComponent_MissingWhenNotOnDisk(t *testing.T) {
	c := &meta.Component{Name: "a", Type: meta.BuildGeneric}
	ch := CheckComponent(context.Background(), c, "/nowhere", "v1.0.0", &fakeInspector{exists: false}, nil, CheckOptions{})
	require.Equal(t, StatusMissing, ch.Status)
}

func TestCheckComponent_HealthyWhenPinMatchesAndDepsPresent(t *testing.T) {
	root := t.TempDir()
	depDir := filepath.Join(root, "dep")
	require.NoError(t, os.MkdirAll(depDir, 0o755))

	c := &meta.Component{Name: "b", Type: meta.BuildGeneric, DependsOn: []string{"dep"}}
	ch := CheckComponent(context.Background(), c, root, "v1.0.0", &fakeInspector{actual: "v1.0.0", exists: true}, map[string]string{"dep": depDir}, CheckOptions{})
	require.Equal(t, StatusHealthy, ch.Status)
}

func TestCheckComponent_MismatchWhenPinDiffers(t *testing.T) {
	c := &meta.Component{Name: "a", Type: meta.BuildGeneric}
	ch := CheckComponent(context.Background(), c, t.TempDir(), "v2.0.0", &fakeInspector{actual: "v1.0.0", exists: true}, nil, CheckOptions{})
	require.Equal(t, StatusMismatch, ch.Status)
}

func TestCheckComponent_MissingWhenDependencyNotMaterialized(t *testing.T) {
	root := t.TempDir()
	c := &meta.Component{Name: "b", Type: meta.BuildGeneric, DependsOn: []string{"dep"}}
	ch := CheckComponent(context.Background(), c, root, "v1.0.0", &fakeInspector{actual: "v1.0.0", exists: true}, map[string]string{"dep": filepath.Join(root, "nope")}, CheckOptions{})
	require.Equal(t, StatusMissing, ch.Status)
}

func TestCheckComponent_BrokenWhenDependencyDirUnknown(t *testing.T) {
	c := &meta.Component{Name: "b", Type: meta.BuildGeneric, DependsOn: []string{"dep"}}
	ch := CheckComponent(context.Background(), c, t.TempDir(), "v1.0.0", &fakeInspector{actual: "v1.0.0", exists: true}, map[string]string{}, CheckOptions{})
	require.Equal(t, StatusBroken, ch.Status)
}

func TestCheckComponent_BrokenWhenInspectorErrors(t *testing.T) {
	c := &meta.Component{Name: "a", Type: meta.BuildGeneric}
	ch := CheckComponent(context.Background(), c, t.TempDir(), "v1.0.0", &fakeInspector{err: require.AnError}, nil, CheckOptions{})
	require.Equal(t, StatusBroken, ch.Status)
}

func TestCheckComponent_BuildFailureReportsBroken(t *testing.T) {
	c := &meta.Component{Name: "a", Type: meta.BuildKind("unknown-kind")}
	ch := CheckComponent(context.Background(), c, t.TempDir(), "v1.0.0", &fakeInspector{actual: "v1.0.0", exists: true}, nil, CheckOptions{Build: true})
	// no build command registered for an unknown kind: runCommand no-ops, so it stays healthy
	require.Equal(t, StatusHealthy, ch.Status)
}
