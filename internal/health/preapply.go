package health

import (
	"fmt"

	"github.com/tbrumbaugh5396/meta/internal/changeset"
	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/resolver"
)

// PreApplyOptions controls which pre-apply invariant checks run.
type PreApplyOptions struct {
	// Locked requires env's lock file to validate cleanly against m.
	Locked bool
	// Changelog, if set, is checked for an in-progress changeset that
	// would block this apply. Nil skips the check.
	Changelog *changeset.Log
}

// PreApply runs the invariants apply must satisfy before scheduling
// any work: the dependency graph must resolve with no cycles and no
// component depending on an unknown name, the env lock must validate
// when Locked is set, and no changeset may be in-progress.
func PreApply(workspaceRoot string, m *meta.Manifest, env string, opts PreApplyOptions) error {
	if _, err := resolver.TopoOrder(m.Components); err != nil {
		return err
	}
	if err := checkMissingDeps(m); err != nil {
		return err
	}

	if opts.Locked {
		result, err := lock.Validate(workspaceRoot, m, env)
		if err != nil {
			return err
		}
		if !result.OK {
			return errs.New(errs.KindLockMismatch, "pre-apply", nil,
				fmt.Sprintf("%d discrepancy(ies) between lock and manifest", len(result.Discrepancies)), nil)
		}
	}

	if opts.Changelog != nil {
		cur, err := opts.Changelog.Current()
		if err != nil {
			return err
		}
		if cur != nil {
			return errs.New(errs.KindConflict, "pre-apply", nil,
				fmt.Sprintf("changeset %s is in-progress; finalize or roll it back before applying", cur.ID), nil)
		}
	}

	return nil
}

func checkMissingDeps(m *meta.Manifest) error {
	for name, c := range m.Components {
		for _, dep := range c.DependsOn {
			if _, ok := m.Components[dep]; !ok {
				return errs.New(errs.KindDependency, "pre-apply", []string{name},
					fmt.Sprintf("depends_on unknown component %q", dep), nil)
			}
		}
	}
	return nil
}
