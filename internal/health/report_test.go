package health

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_ChecksEveryPinnedComponentInAlphabeticalOrder(t *testing.T) {
	root := t.TempDir()
	m := buildManifest()
	componentDir := func(name string) string { return filepath.Join(root, name) }

	report, err := Run(context.Background(), m, "dev", componentDir, &fakeInspector{exists: false}, CheckOptions{}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, report.Order)
	require.False(t, report.OK())
	require.Equal(t, StatusMissing, report.Components["a"].Status)
}

func TestRun_RestrictsToOnlyNames(t *testing.T) {
	root := t.TempDir()
	m := buildManifest()
	componentDir := func(name string) string { return filepath.Join(root, name) }

	report, err := Run(context.Background(), m, "dev", componentDir, &fakeInspector{exists: false}, CheckOptions{}, []string{"a"})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, report.Order)
}

func TestRun_UnknownEnvironmentErrors(t *testing.T) {
	m := buildManifest()
	_, err := Run(context.Background(), m, "nope", func(string) string { return "" }, &fakeInspector{}, CheckOptions{}, nil)
	require.Error(t, err)
}

func TestReport_ErrReflectsUnhealthyComponents(t *testing.T) {
	report := &Report{
		Environment: "dev",
		Order:       []string{"a", "b"},
		Components: map[string]*ComponentHealth{
			"a": {Name: "a", Status: StatusHealthy},
			"b": {Name: "b", Status: StatusMissing},
		},
	}
	require.Error(t, report.Err())
	require.Equal(t, []string{"b"}, report.Unhealthy())
}

func TestReport_ErrNilWhenAllHealthy(t *testing.T) {
	report := &Report{
		Order: []string{"a"},
		Components: map[string]*ComponentHealth{
			"a": {Name: "a", Status: StatusHealthy},
		},
	}
	require.NoError(t, report.Err())
}
