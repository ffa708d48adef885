package apply

import (
	"context"
	"fmt"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/internal/resolver"
)

// StateInspector reports what is currently materialized at a
// component's working directory, so Plan can classify the action
// needed to reach the target pin.
type StateInspector interface {
	// Inspect returns the pin currently checked out at dir (best
	// effort: a branch name, tag, or vendored provenance version) and
	// whether anything is present at all.
	Inspect(ctx context.Context, name, dir string) (pin string, present bool, err error)
}

// effectivePins resolves the pin set Plan diffs against: the lock
// file when locked is set, otherwise the manifest's environment pins.
func effectivePins(workspaceRoot string, m *meta.Manifest, env string, locked bool) (map[string]string, error) {
	if !locked {
		environment, ok := m.Environments[env]
		if !ok {
			return nil, errs.New(errs.KindManifest, "plan", nil, fmt.Sprintf("unknown environment %q", env), nil)
		}
		return environment.Pins, nil
	}

	l, err := lock.Read(workspaceRoot, env)
	if err != nil {
		return nil, err
	}
	pins := map[string]string{}
	switch l.Mode {
	case meta.ModeReference:
		for name, entry := range l.Reference {
			pins[name] = entry.Version
		}
	case meta.ModeVendored:
		for name, entry := range l.Vendored {
			pins[name] = entry.Version
		}
	}
	return pins, nil
}

// Plan computes the ordered, diffed materialization plan for env.
// componentDir maps a component name to its expected on-disk
// directory; inspector reports what (if anything) is already there.
func Plan(ctx context.Context, workspaceRoot string, m *meta.Manifest, env string, policy Policy, componentDir func(string) string, inspector StateInspector) (*Plan, error) {
	order, err := resolver.TopoOrder(m.Components)
	if err != nil {
		return nil, err
	}

	pins, err := effectivePins(workspaceRoot, m, env, policy.Locked)
	if err != nil {
		return nil, err
	}

	p := &Plan{Environment: env, Order: order, Components: map[string]*ComponentPlan{}}

	for _, name := range order {
		comp, err := m.Component(name)
		if err != nil {
			return nil, err
		}
		toPin, ok := pins[name]
		if !ok {
			return nil, errs.New(errs.KindDependency, "plan", []string{name}, fmt.Sprintf("no pin for component in environment %q", env), nil)
		}

		dir := componentDir(name)
		fromPin, present, err := inspector.Inspect(ctx, name, dir)
		if err != nil {
			return nil, errs.New(errs.KindDependency, "plan", []string{name}, "inspecting on-disk state", err)
		}

		action := classifyAction(m.Mode, present, fromPin, toPin)
		if !policy.wants(name) {
			action = ActionNoop
		}

		p.Components[name] = &ComponentPlan{
			Name:      name,
			Repo:      comp.Repo,
			Action:    action,
			FromPin:   fromPin,
			ToPin:     toPin,
			DependsOn: append([]string(nil), comp.DependsOn...),
			Isolation: comp.Isolation,
		}
	}

	return p, nil
}

// classifyAction diffs the on-disk state against the target pin. A
// present component already at the target pin is a noop: its
// dependency install step still runs (idempotent), it just skips
// fetch/checkout/vendor-import.
func classifyAction(mode meta.StorageMode, present bool, fromPin, toPin string) Action {
	if !present {
		if mode == meta.ModeVendored {
			return ActionVendorImport
		}
		return ActionClone
	}
	if fromPin == toPin {
		return ActionNoop
	}
	if mode == meta.ModeVendored {
		return ActionVendorImport
	}
	return ActionCheckout
}
