package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/store/remote"
)

// CacheKey computes the build-cache key from canonical inputs:
// component version, build target, transitive dependency pins, and
// the component's source tree hash.
func CacheKey(component, version, buildTarget string, depHashes []string, sourceTreeHash [32]byte) Hash {
	hasher, _ := blake2b.New256(nil)
	fmt.Fprintf(hasher, "%s\n%s\n%s\n", component, version, buildTarget)
	sorted := append([]string(nil), depHashes...)
	// deterministic regardless of caller's dependency iteration order
	sortStrings(sorted)
	for _, d := range sorted {
		fmt.Fprintf(hasher, "%s\n", d)
	}
	hasher.Write(sourceTreeHash[:])
	return Hash(fmt.Sprintf("%x", hasher.Sum(nil)))
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Put stores source under the store and records key -> resulting hash
// in the cache index, mirroring the mapping to the remote cache
// backend (if configured) so other workspaces can reuse the hit.
func (s *Store) Put(key Hash, sourcePath, component, buildTarget, inputsDigest string) (Hash, error) {
	hash, err := s.Add(sourcePath, component, inputsDigest)
	if err != nil {
		return "", err
	}
	if err := s.index.putCacheEntry(key, hash, component, buildTarget); err != nil {
		return "", fmt.Errorf("recording cache entry: %w", err)
	}
	if s.remoteCache != nil {
		if err := s.remoteCache.SetKey(context.Background(), string(key), string(hash), 30*24*time.Hour); err != nil {
			storeLog.Printf("failed to mirror cache entry %s to remote cache: %v", key, err)
		}
	}
	return hash, nil
}

// Lookup returns the store hash for key, or ok=false on a cache miss.
// A local miss falls through to the remote cache so a hit produced by
// another workspace is still honored.
func (s *Store) Lookup(key Hash) (Hash, bool, error) {
	hash, _, ok, err := s.index.lookupCacheEntry(key)
	if err != nil {
		return "", false, err
	}
	if ok {
		return hash, true, nil
	}
	if s.remoteCache == nil {
		return "", false, nil
	}
	val, ok, err := s.remoteCache.GetKey(context.Background(), string(key))
	if err != nil {
		storeLog.Printf("remote cache lookup failed for %s, treating as miss: %v", key, err)
		return "", false, nil
	}
	if !ok {
		return "", false, nil
	}
	return Hash(val), true, nil
}

// InvalidateKey removes a single cache entry by key.
func (s *Store) InvalidateKey(key Hash) error {
	return s.index.deleteCacheEntry(key)
}

// InvalidateComponent removes every cache entry recorded for
// component.
func (s *Store) InvalidateComponent(component string) error {
	return s.index.deleteCacheEntriesByComponent(component)
}

// ExpiredCacheEntries returns cache keys older than ttl, eligible for
// GC sweep regardless of whether their underlying store entry is
// still referenced (cache entries expire by age; store entries are
// immortal until GC'd).
func (s *Store) ExpiredCacheEntries(ttl time.Duration) ([]Hash, error) {
	return s.index.allCacheEntriesOlderThan(ttl)
}

// schemeOf reports the backend scheme (s3, gs, redis, rediss) encoded
// in a remote_store / remote_cache config URL.
func schemeOf(url string) (string, error) {
	scheme, _, err := remote.ParseURL(url)
	if err != nil {
		return "", errs.New(errs.KindRemoteBackend, "scheme", nil, fmt.Sprintf("unrecognized backend url %q", url), err)
	}
	return scheme, nil
}
