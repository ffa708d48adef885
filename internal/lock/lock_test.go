package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbrumbaugh5396/meta/internal/meta"
)

type fakeResolver struct{}

func (fakeResolver) ResolveSha(ctx context.Context, dir, ref string) (string, error) {
	return "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", nil
}

func buildManifest() *meta.Manifest {
	return &meta.Manifest{
		Mode: meta.ModeReference,
		Components: map[string]*meta.Component{
			"A": {Name: "A", Repo: "https://example.com/a.git", Version: "v1.0.0", Type: meta.BuildGeneric},
			"B": {Name: "B", Repo: "https://example.com/b.git", Version: "v1.0.0", Type: meta.BuildGeneric, DependsOn: []string{"A"}},
		},
		Environments: map[string]*meta.Environment{
			"dev":     {Name: "dev", Pins: map[string]string{"A": "v1.0.0", "B": "v1.0.0"}},
			"staging": {Name: "staging", Pins: map[string]string{}},
		},
	}
}

func TestGenerateAndValidate_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := buildManifest()

	l, err := Generate(context.Background(), dir, m, "dev", func(string) string { return dir }, fakeResolver{})
	require.NoError(t, err)
	assert.Len(t, l.Reference, 2)

	result, err := Validate(dir, m, "dev")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.Discrepancies)
}

func TestValidate_DetectsMissingAndExtra(t *testing.T) {
	dir := t.TempDir()
	m := buildManifest()

	_, err := Generate(context.Background(), dir, m, "dev", func(string) string { return dir }, fakeResolver{})
	require.NoError(t, err)

	// Drop a component from the manifest's dev pins after locking.
	delete(m.Environments["dev"].Pins, "B")
	m.Environments["dev"].Pins["C"] = "v1.0.0"
	m.Components["C"] = &meta.Component{Name: "C", Repo: "https://example.com/c.git", Version: "v1.0.0", Type: meta.BuildGeneric}

	result, err := Validate(dir, m, "dev")
	require.NoError(t, err)
	assert.False(t, result.OK)

	var kinds []string
	for _, d := range result.Discrepancies {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, "missing")
	assert.Contains(t, kinds, "extra")
}

func TestPromoteThenCompare(t *testing.T) {
	dir := t.TempDir()
	m := buildManifest()

	_, err := Generate(context.Background(), dir, m, "dev", func(string) string { return dir }, fakeResolver{})
	require.NoError(t, err)

	_, err = Promote(dir, m, "dev", "staging")
	require.NoError(t, err)

	diff, err := Compare(dir, "dev", "staging")
	require.NoError(t, err)
	assert.Empty(t, diff.Changed)
	assert.Empty(t, diff.OnlyInA)
	assert.Empty(t, diff.OnlyInB)

	// Diverge dev and regenerate.
	m.Environments["dev"].Pins["A"] = "v1.1.0"
	m.Components["A"].Version = "v1.1.0"
	_, err = Generate(context.Background(), dir, m, "dev", func(string) string { return dir }, fakeResolver{})
	require.NoError(t, err)

	diff, err = Compare(dir, "dev", "staging")
	require.NoError(t, err)
	require.Len(t, diff.Changed, 1)
	assert.Equal(t, "A", diff.Changed[0].Component)
	assert.Equal(t, "v1.1.0", diff.Changed[0].From)
	assert.Equal(t, "v1.0.0", diff.Changed[0].To)
}
