// Package apply implements the orchestrator that materializes a
// manifest's components into the workspace for a target environment:
// planning, dependency-ordered scheduling with a bounded worker pool,
// per-component execution (git or vendor materialization, package
// manager install, isolation, cache recording), and cooperative
// cancellation.
package apply

import (
	"time"

	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var log = logger.New("apply:orchestrator")

// Action is the classification of what a component's materialization
// step must do, decided by diffing the target pin against on-disk
// state.
type Action string

const (
	ActionNoop             Action = "noop"
	ActionClone            Action = "clone"
	ActionCheckout         Action = "checkout"
	ActionVendorImport     Action = "vendor-import"
	ActionUpdateDepsOnly   Action = "update-deps-only"
)

// ComponentPlan is one component's planned action plus the state it
// is expected to move from and to.
type ComponentPlan struct {
	Name      string
	Repo      string
	Action    Action
	FromPin   string // "" if not currently materialized
	ToPin     string
	DependsOn []string
	Isolation meta.IsolationPolicy
}

// Plan is the ordered, diffed materialization plan for one
// apply invocation.
type Plan struct {
	Environment string
	Order       []string // topological order, ties broken alphabetically
	Components  map[string]*ComponentPlan
}

// Policy controls scheduling width, timeouts, and failure handling
// for one Apply invocation.
type Policy struct {
	ParallelJobs        int           // worker pool width, default 4
	SkipPackages        bool          // skip package-manager install step
	ContinueOnError     bool          // a failed component does not abort independent work
	RetryCount          int           // per-component retry attempts beyond the first
	RetryBackoff        time.Duration // base delay between retries
	PerComponentTimeout time.Duration // 0 = no per-component deadline
	Locked              bool          // resolve pins from the lock file rather than the manifest
	ShowProgress        bool          // render a progressbar/v3 bar to stderr
	Only                []string      // if set, every other component is forced to noop (used by targeted rollback)
}

// wants reports whether name is in scope for this policy's run. An
// empty Only means every component is in scope.
func (p Policy) wants(name string) bool {
	if len(p.Only) == 0 {
		return true
	}
	for _, n := range p.Only {
		if n == name {
			return true
		}
	}
	return false
}

// DefaultPolicy matches the documented scheduling defaults.
var DefaultPolicy = Policy{
	ParallelJobs: 4,
	RetryCount:   2,
	RetryBackoff: 2 * time.Second,
}

// ComponentResult is the outcome of materializing one component.
type ComponentResult struct {
	Name     string
	Action   Action
	Skipped  bool // dependency of a failed component, skipped and reported
	Error    string
	CacheHit bool
	Duration time.Duration
}

// Result is the aggregate outcome of one Apply invocation.
type Result struct {
	Environment string
	Succeeded   []string
	Failed      map[string]string
	Skipped     []string
	Components  map[string]*ComponentResult
	Cancelled   bool
}
