package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGC_PreservesReferencedDeletesUnreferenced(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), ".meta-store"))
	require.NoError(t, err)
	defer s.Close()

	kept := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(kept, "f.txt"), []byte("kept"), 0o644))
	keptHash, err := s.Add(kept, "widget", "d1")
	require.NoError(t, err)

	orphan := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(orphan, "f.txt"), []byte("orphan"), 0o644))
	orphanHash, err := s.Add(orphan, "gadget", "d2")
	require.NoError(t, err)

	roots := func() (map[Hash]bool, error) {
		return map[Hash]bool{keptHash: true}, nil
	}

	result, err := s.GC(roots, time.Hour)
	require.NoError(t, err)
	require.Contains(t, result.StoreEntriesDeleted, orphanHash)
	require.NotContains(t, result.StoreEntriesDeleted, keptHash)

	meta, err := s.Query(keptHash)
	require.NoError(t, err)
	require.NotNil(t, meta)

	meta, err = s.Query(orphanHash)
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestGC_ExpiresOldCacheEntriesOnly(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), ".meta-store"))
	require.NoError(t, err)
	defer s.Close()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0o644))

	key := CacheKey("widget", "v1", "//widget:build", nil, [32]byte{})
	hash, err := s.Put(key, src, "widget", "//widget:build", "d1")
	require.NoError(t, err)

	roots := func() (map[Hash]bool, error) {
		return map[Hash]bool{hash: true}, nil
	}

	// TTL of zero makes every cache entry immediately eligible.
	result, err := s.GC(roots, 0)
	require.NoError(t, err)
	require.Contains(t, result.CacheEntriesExpired, key)

	_, ok, err := s.Lookup(key)
	require.NoError(t, err)
	require.False(t, ok)

	// The store entry itself survives because it's still referenced by
	// the live root, independent of the cache-entry expiry.
	meta, err := s.Query(hash)
	require.NoError(t, err)
	require.NotNil(t, meta)
}

func TestGC_RootsErrorPropagates(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), ".meta-store"))
	require.NoError(t, err)
	defer s.Close()

	boom := func() (map[Hash]bool, error) {
		return nil, os.ErrInvalid
	}
	_, err = s.GC(boom, time.Hour)
	require.Error(t, err)
}
