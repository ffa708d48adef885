// Package rollback resolves a rollback target — a prior version, a
// commit sha, a lock file, a store hash, a snapshot, or a changeset —
// into a concrete pin set and delegates materialization to the apply
// orchestrator. Snapshots are its one piece of owned state: serialized
// pin maps captured for later rollback.
package rollback

import (
	"time"

	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var log = logger.New("rollback:engine")

// StoreEntry describes one content-addressed store entry tagged with
// the component it was recorded for, as surfaced by listing.
type StoreEntry struct {
	Hash      string
	Component string
	CreatedAt time.Time
}

// Listing is the result of enumerating every rollback-eligible target
// present in the workspace.
type Listing struct {
	Locks            []string // environment names with a lock file present
	Snapshots        []meta.Snapshot
	StoreByComponent map[string][]StoreEntry
	Changesets       []string // committed changeset ids
}
