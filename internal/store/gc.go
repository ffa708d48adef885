package store

import (
	"time"

	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var gcLog = logger.New("store:gc")

// RootProvider supplies the set of hashes currently reachable from a
// live root (lock files, snapshots, in-progress/committed changesets).
type RootProvider func() (map[Hash]bool, error)

// GCResult reports what a sweep did.
type GCResult struct {
	StoreEntriesDeleted []Hash
	CacheEntriesExpired []Hash
}

// GC performs a single-pass mark-and-sweep over the store: anything
// not transitively referenced from a live root is removable. It is
// safe to run concurrently with reads because an entry is deleted
// only after a pending-delete list is built and re-verified against a
// fresh root snapshot immediately before the delete, so a reference
// created after marking but before sweeping is never lost.
func (s *Store) GC(roots RootProvider, cacheTTL time.Duration) (*GCResult, error) {
	live, err := roots()
	if err != nil {
		return nil, err
	}

	all, err := s.AllHashes()
	if err != nil {
		return nil, err
	}

	var pendingDelete []Hash
	for _, h := range all {
		if !live[h] {
			pendingDelete = append(pendingDelete, h)
		}
	}

	// Re-verify immediately before deleting: a reference could have
	// been added between the initial mark and now.
	liveAgain, err := roots()
	if err != nil {
		return nil, err
	}

	result := &GCResult{}
	for _, h := range pendingDelete {
		if liveAgain[h] {
			continue
		}
		if err := s.Delete(h); err != nil {
			gcLog.Printf("failed to delete unreferenced store entry %s: %v", h, err)
			continue
		}
		result.StoreEntriesDeleted = append(result.StoreEntriesDeleted, h)
	}

	expired, err := s.ExpiredCacheEntries(cacheTTL)
	if err != nil {
		return nil, err
	}
	for _, key := range expired {
		if err := s.InvalidateKey(key); err != nil {
			gcLog.Printf("failed to expire cache entry %s: %v", key, err)
			continue
		}
		result.CacheEntriesExpired = append(result.CacheEntriesExpired, key)
	}

	gcLog.Printf("gc complete: %d store entries deleted, %d cache entries expired", len(result.StoreEntriesDeleted), len(result.CacheEntriesExpired))
	return result, nil
}
