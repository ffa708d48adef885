// Package resolver computes dependency order over the component graph
// and resolves semver range conflicts across components.
package resolver

import (
	"fmt"
	"sort"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/meta"
)

// TopoOrder returns components in dependency order (leaves first).
// Ties within a level break alphabetically by component name, so two
// runs over identical state produce an identical order.
func TopoOrder(components map[string]*meta.Component) ([]string, error) {
	inDegree := make(map[string]int, len(components))
	dependents := make(map[string][]string, len(components))

	for name, c := range components {
		if _, ok := inDegree[name]; !ok {
			inDegree[name] = 0
		}
		for _, dep := range c.DependsOn {
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		newlyReady := dependents[next]
		sort.Strings(newlyReady)
		for _, dep := range newlyReady {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(components) {
		var stuck []string
		for name, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, errs.New(errs.KindCycle, "topo-order", stuck, "dependency cycle detected", nil)
	}

	return order, nil
}

// Levels groups components into dependency layers: level 0 has no
// unresolved dependencies, level N depends only on components in
// levels < N. Names within a level are sorted alphabetically, so the
// apply orchestrator's scheduler produces a stable, debuggable plan
// regardless of map iteration order.
func Levels(components map[string]*meta.Component) ([][]string, error) {
	inDegree := make(map[string]int, len(components))
	dependents := make(map[string][]string, len(components))

	for name, c := range components {
		if _, ok := inDegree[name]; !ok {
			inDegree[name] = 0
		}
		for _, dep := range c.DependsOn {
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var levels [][]string
	placed := 0
	for len(inDegree) > 0 {
		var level []string
		for name, deg := range inDegree {
			if deg == 0 {
				level = append(level, name)
			}
		}
		if len(level) == 0 {
			break // cycle: remaining components never reach in-degree 0
		}
		sort.Strings(level)
		levels = append(levels, level)
		placed += len(level)

		for _, name := range level {
			delete(inDegree, name)
		}
		for _, name := range level {
			for _, dep := range dependents[name] {
				if _, ok := inDegree[dep]; ok {
					inDegree[dep]--
				}
			}
		}
	}

	if placed != len(components) {
		var stuck []string
		for name := range inDegree {
			stuck = append(stuck, name)
		}
		sort.Strings(stuck)
		return nil, errs.New(errs.KindCycle, "levels", stuck, "dependency cycle detected", nil)
	}

	return levels, nil
}

// ReverseDeps returns the set of components that directly depend on
// name.
func ReverseDeps(components map[string]*meta.Component, name string) map[string]bool {
	out := map[string]bool{}
	for cname, c := range components {
		for _, dep := range c.DependsOn {
			if dep == name {
				out[cname] = true
			}
		}
	}
	return out
}

// TransitiveClosure returns every component name reachable by walking
// DependsOn edges from name (name itself excluded).
func TransitiveClosure(components map[string]*meta.Component, name string) (map[string]bool, error) {
	visited := map[string]bool{}
	var walk func(string) error
	walk = func(cur string) error {
		c, ok := components[cur]
		if !ok {
			return errs.New(errs.KindDependency, "transitive-closure", []string{cur}, "unknown component", nil)
		}
		for _, dep := range c.DependsOn {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(name); err != nil {
		return nil, err
	}
	return visited, nil
}

// Conflict describes one component whose aggregated version
// constraints cannot be jointly satisfied.
type Conflict struct {
	Name              string
	ConflictingRanges []string
}

// ConflictsError enumerates every conflicting constraint set found.
type ConflictsError struct {
	Conflicts []Conflict
}

func (e *ConflictsError) Error() string {
	return fmt.Sprintf("%d unsatisfiable constraint set(s)", len(e.Conflicts))
}

// Strategy selects how an overlapping-but-non-conflicting set of
// ranges collapses to a single chosen version.
type Strategy string

const (
	StrategyLatest       Strategy = "latest"
	StrategyConservative Strategy = "conservative"
	StrategyFirst        Strategy = "first"
	StrategyHighest      Strategy = "highest"
)

// Constraint is one component's requested range from one requiring
// component.
type Constraint struct {
	Component string
	Range     string // caret, tilde, exact, or >= form over vMAJOR.MINOR.PATCH
	From      string // the requiring component, for diagnostics
}

// Conflicts evaluates every component's aggregated constraint set
// under strategy and reports any that cannot be jointly satisfied.
// It does not mutate the manifest; callers apply the resolution.
func Conflicts(constraintsByComponent map[string][]Constraint, candidateVersions map[string][]string, strategy Strategy) ([]Conflict, error) {
	var conflicts []Conflict
	for name, constraints := range constraintsByComponent {
		candidates := candidateVersions[name]
		_, err := Resolve(constraints, candidates, strategy)
		if err != nil {
			var ranges []string
			for _, c := range constraints {
				ranges = append(ranges, fmt.Sprintf("%s wants %s", c.From, c.Range))
			}
			conflicts = append(conflicts, Conflict{Name: name, ConflictingRanges: ranges})
		}
	}
	if len(conflicts) > 0 {
		return conflicts, &ConflictsError{Conflicts: conflicts}
	}
	return nil, nil
}

// Resolve picks one candidate version satisfying every constraint,
// per strategy. StrategyFirst returns the first satisfying candidate
// in candidates' caller-supplied order (the order requirements were
// encountered), independent of semver precedence; every other
// strategy sorts the satisfying set by semver precedence first.
func Resolve(constraints []Constraint, candidates []string, strategy Strategy) (string, error) {
	var satisfying []string
	for _, cand := range candidates {
		ok := true
		for _, c := range constraints {
			if !SatisfiesRange(cand, c.Range) {
				ok = false
				break
			}
		}
		if ok {
			satisfying = append(satisfying, cand)
		}
	}

	if len(satisfying) == 0 {
		return "", fmt.Errorf("no candidate version satisfies all constraints")
	}

	// Capture encounter order before any sort mutates it.
	firstSatisfying := satisfying[0]

	switch strategy {
	case StrategyFirst:
		return firstSatisfying, nil
	case StrategyLatest:
		sortSemver(satisfying)
		return satisfying[len(satisfying)-1], nil
	case StrategyConservative:
		sortSemver(satisfying)
		return satisfying[0], nil
	case StrategyHighest:
		sorted := append([]string(nil), candidates...)
		sortSemver(sorted)
		return sorted[len(sorted)-1], nil
	default:
		return "", fmt.Errorf("unknown conflict resolution strategy %q", strategy)
	}
}
