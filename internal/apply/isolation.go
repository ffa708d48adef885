package apply

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/meta"
)

// PrepareIsolation creates the isolated environment comp's isolation
// policy declares (if any) and returns the directory a package
// install should run inside of. A none policy is a no-op that returns
// dir unchanged.
func PrepareIsolation(ctx context.Context, name, dir string, policy meta.IsolationPolicy) (string, error) {
	switch policy {
	case "", meta.IsolationNone:
		return dir, nil
	case meta.IsolationVenv:
		venvDir := dir + "/.meta-venv"
		cmd := exec.CommandContext(ctx, "python3", "-m", "venv", venvDir)
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", errs.New(errs.KindDependency, "isolation-venv", []string{name}, string(out), err)
		}
		return dir, nil
	case meta.IsolationContainer:
		image := fmt.Sprintf("meta-component-%s:local", name)
		cmd := exec.CommandContext(ctx, "docker", "build", "-t", image, dir)
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", errs.New(errs.KindDependency, "isolation-container", []string{name}, string(out), err)
		}
		return dir, nil
	default:
		return "", errs.New(errs.KindDependency, "isolation", []string{name}, fmt.Sprintf("unrecognized isolation policy %q", policy), nil)
	}
}
