package health

import (
	"context"
	"fmt"
	"sort"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/meta"
)

// Run checks every component pinned in env, returning a stable,
// alphabetically-ordered report. If only is non-empty, the report is
// restricted to those component names.
func Run(ctx context.Context, m *meta.Manifest, env string, componentDir func(string) string, inspector Inspector, opts CheckOptions, only []string) (*Report, error) {
	environment, ok := m.Environments[env]
	if !ok {
		return nil, errs.New(errs.KindManifest, "health", nil, fmt.Sprintf("unknown environment %q", env), nil)
	}

	dirs := make(map[string]string, len(m.Components))
	for name := range m.Components {
		dirs[name] = componentDir(name)
	}

	wanted := map[string]bool{}
	for _, name := range only {
		wanted[name] = true
	}

	names := make([]string, 0, len(environment.Pins))
	for name := range environment.Pins {
		if len(wanted) > 0 && !wanted[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	report := &Report{Environment: env, Components: map[string]*ComponentHealth{}}
	for _, name := range names {
		c, err := m.Component(name)
		if err != nil {
			return nil, err
		}
		ch := CheckComponent(ctx, c, dirs[name], environment.Pins[name], inspector, dirs, opts)
		report.Components[name] = ch
		report.Order = append(report.Order, name)
	}
	return report, nil
}
