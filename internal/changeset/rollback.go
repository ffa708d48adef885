package changeset

import (
	"context"
	"fmt"

	"github.com/tbrumbaugh5396/meta/internal/errs"
)

// Reverter is the minimal git capability rollback needs from a
// component's working tree; internal/gitdriver.Driver satisfies it
// structurally.
type Reverter interface {
	Revert(ctx context.Context, dir, sha string) (string, error)
}

// RepoDirFunc resolves a component name to its on-disk working tree.
type RepoDirFunc func(component string) (string, error)

// Rollback reverts every commit recorded in changeset id, in reverse
// dependency order (the order RepoCommit entries were recorded is
// already dependency order, so the reverse of that list is correct).
// If any single revert fails, the changeset is marked failed and
// rollback stops — previously successful reverts are left in place;
// the user decides what to do next.
func (l *Log) Rollback(ctx context.Context, id string, rev Reverter, dirOf RepoDirFunc) (*Changeset, error) {
	cs, err := l.readChangeset(id)
	if err != nil {
		return nil, err
	}
	if cs.Status != StatusCommitted {
		return nil, errs.New(errs.KindConflict, "changeset-rollback", nil,
			fmt.Sprintf("changeset %s is not committed (status=%s)", id, cs.Status), nil)
	}

	for i := len(cs.Repos) - 1; i >= 0; i-- {
		rc := cs.Repos[i]
		dir, err := dirOf(rc.Name)
		if err != nil {
			if markErr := l.markFailed(id); markErr != nil {
				log.Printf("failed to mark changeset %s failed after dir resolution error: %v", id, markErr)
			}
			return nil, errs.New(errs.KindVendor, "changeset-rollback", []string{rc.Name}, "resolving component working tree", err)
		}
		if _, err := rev.Revert(ctx, dir, rc.Commit); err != nil {
			log.Printf("revert of %s@%s failed, marking changeset %s failed: %v", rc.Name, rc.Commit, id, err)
			if markErr := l.markFailed(id); markErr != nil {
				log.Printf("failed to mark changeset %s failed: %v", id, markErr)
			}
			return nil, err
		}
	}

	if err := l.markRolledBack(id); err != nil {
		return nil, err
	}
	return l.readChangeset(id)
}
