// Package vendorengine implements the conversion pipeline between
// reference and vendored storage modes. Safety is the central
// concern — every transaction is backed by a restorable backup, and
// failure policy (atomic vs continue-on-error) is explicit up front.
package vendorengine

import (
	"time"

	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var log = logger.New("vendorengine:convert")

// Policy controls failure and scanning behavior for a conversion
// transaction.
type Policy struct {
	Atomic           bool // roll back the whole transaction on any component failure
	ContinueOnError  bool // commit over the successful subset; failures wait for resume
	FailOnSecrets    bool // abort a component (or the transaction) when a secret is found
	FailWholeOnSecret bool // when FailOnSecrets, abort the whole transaction rather than just the component
	RespectGitignore bool // honor the upstream .gitignore when copying
	DryRun           bool // stop after step 3 with just the plan
	PrefetchWorkers  int  // bounded prefetch pool width for network fetches
	Only             []string // if set, every other component is left untouched (used by `vendor import`)
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

// DefaultPolicy rolls back the whole transaction on any failure.
var DefaultPolicy = Policy{
	Atomic:           true,
	RespectGitignore: true,
	PrefetchWorkers:  4,
}

// CheckpointState is the closed set of per-component checkpoint
// states recorded during a transaction.
type CheckpointState string

const (
	CheckpointCompleted CheckpointState = "completed"
	CheckpointFailed    CheckpointState = "failed"
)

// Checkpoint is one component's recorded outcome within a
// transaction, persisted so `resume` can skip completed work.
type Checkpoint struct {
	Component string          `yaml:"component"`
	State     CheckpointState `yaml:"state"`
	Error     string          `yaml:"error,omitempty"`
	UpdatedAt time.Time       `yaml:"updated_at"`
}

// Plan is the dry-run output: the components that would be converted,
// in the order they would be converted.
type Plan struct {
	TransactionID string
	Order         []string
	Direction     Direction
}

// Direction is the conversion direction.
type Direction string

const (
	DirectionToVendored  Direction = "reference-to-vendored"
	DirectionToReference Direction = "vendored-to-reference"
)

// Result summarizes a completed (or partially completed) transaction.
type Result struct {
	TransactionID string
	Direction     Direction
	Succeeded     []string
	Failed        map[string]string // component -> error detail
	RolledBack    bool
}
