package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheKey_DeterministicRegardlessOfDepOrder(t *testing.T) {
	digest := [32]byte{1, 2, 3}
	k1 := CacheKey("widget", "v1.2.0", "//widget:build", []string{"b", "a"}, digest)
	k2 := CacheKey("widget", "v1.2.0", "//widget:build", []string{"a", "b"}, digest)
	require.Equal(t, k1, k2)
}

func TestCacheKey_DiffersOnBuildTarget(t *testing.T) {
	digest := [32]byte{1, 2, 3}
	k1 := CacheKey("widget", "v1.2.0", "//widget:build", nil, digest)
	k2 := CacheKey("widget", "v1.2.0", "//widget:test", nil, digest)
	require.NotEqual(t, k1, k2)
}

func TestStore_PutLookupInvalidate(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0o644))

	s, err := Open(filepath.Join(t.TempDir(), ".meta-store"))
	require.NoError(t, err)
	defer s.Close()

	key := CacheKey("widget", "v1", "//widget:build", nil, [32]byte{})

	_, ok, err := s.Lookup(key)
	require.NoError(t, err)
	require.False(t, ok)

	hash, err := s.Put(key, src, "widget", "//widget:build", "d1")
	require.NoError(t, err)

	got, ok, err := s.Lookup(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, hash, got)

	require.NoError(t, s.InvalidateKey(key))
	_, ok, err = s.Lookup(key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_InvalidateComponent(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0o644))

	s, err := Open(filepath.Join(t.TempDir(), ".meta-store"))
	require.NoError(t, err)
	defer s.Close()

	k1 := CacheKey("widget", "v1", "//widget:build", nil, [32]byte{1})
	k2 := CacheKey("widget", "v2", "//widget:build", nil, [32]byte{2})
	_, err = s.Put(k1, src, "widget", "//widget:build", "d1")
	require.NoError(t, err)
	_, err = s.Put(k2, src, "widget", "//widget:build", "d2")
	require.NoError(t, err)

	require.NoError(t, s.InvalidateComponent("widget"))

	_, ok, err := s.Lookup(k1)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = s.Lookup(k2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSchemeOf(t *testing.T) {
	scheme, err := schemeOf("s3://my-bucket/prefix")
	require.NoError(t, err)
	require.Equal(t, "s3", scheme)

	_, err = schemeOf("file:///tmp/x")
	require.Error(t, err)
}
