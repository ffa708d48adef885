// Package health implements the pre-apply invariant checks (cycle and
// missing-dependency detection, lock validation, in-progress-changeset
// blocking) and the post-apply / standalone per-component status
// checks (existence, pin match, dependency presence, optional
// build/test verification) that back the validate, apply --locked, and
// health commands.
package health

import (
	"fmt"
	"time"

	"github.com/tbrumbaugh5396/meta/internal/errs"
)

// Status is one component's observed health.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusMismatch Status = "mismatch"
	StatusMissing  Status = "missing"
	StatusBroken   Status = "broken"
)

// ComponentHealth is one component's check outcome.
type ComponentHealth struct {
	Name      string
	Status    Status
	Desired   string
	Actual    string
	Detail    string
	CheckedAt time.Time
}

// Report is the aggregate outcome of a health run over an environment,
// in stable alphabetical order so repeated runs at the same workspace
// state render identically.
type Report struct {
	Environment string
	Components  map[string]*ComponentHealth
	Order       []string
}

// OK reports whether every component in the report reached
// StatusHealthy.
func (r *Report) OK() bool {
	for _, ch := range r.Components {
		if ch.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// Unhealthy returns the names of every component not at StatusHealthy,
// in report order.
func (r *Report) Unhealthy() []string {
	var names []string
	for _, name := range r.Order {
		if r.Components[name].Status != StatusHealthy {
			names = append(names, name)
		}
	}
	return names
}

// Err returns a KindManifest error naming every unhealthy component if
// the report is not OK, and nil otherwise — the aggregate exit-code
// signal the health and apply --locked commands surface. KindManifest
// is used rather than a dedicated kind because an unhealthy component
// is, at bottom, a mismatch between the manifest's declared state and
// what's on disk, and the error kind set is closed.
func (r *Report) Err() error {
	unhealthy := r.Unhealthy()
	if len(unhealthy) == 0 {
		return nil
	}
	return errs.New(errs.KindManifest, "health", unhealthy,
		fmt.Sprintf("%d component(s) not healthy", len(unhealthy)), nil)
}
