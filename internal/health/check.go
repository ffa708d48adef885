package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/tbrumbaugh5396/meta/internal/meta"
)

// Inspector reports on-disk component state; *apply.DiskInspector
// satisfies it structurally.
type Inspector interface {
	Inspect(ctx context.Context, name, dir string) (string, bool, error)
}

// CheckOptions controls the optional, more expensive checks.
type CheckOptions struct {
	Build bool
	Test  bool
}

// buildCommands maps a component's declared build kind to the command
// that verifies it builds, mirroring the marker-driven detection
// internal/apply's package-manager layer uses for install.
var buildCommands = map[meta.BuildKind][]string{
	meta.BuildNPM:     {"npm", "run", "build"},
	meta.BuildPython:  {"python", "-m", "py_compile", "."},
	meta.BuildDocker:  {"docker", "build", "."},
	meta.BuildBazel:   {"bazel", "build", "//..."},
	meta.BuildGeneric: {"go", "build", "./..."},
}

var testCommands = map[meta.BuildKind][]string{
	meta.BuildNPM:     {"npm", "test"},
	meta.BuildPython:  {"pytest"},
	meta.BuildDocker:  {"docker", "build", "--target", "test", "."},
	meta.BuildBazel:   {"bazel", "test", "//..."},
	meta.BuildGeneric: {"go", "test", "./..."},
}

// CheckComponent reports c's health: existence on disk, pin match
// against desired, dependency presence, and — if requested — build and
// test verification. dependencyDirs maps each of c.DependsOn to its
// component directory, so presence can be checked without re-running
// the resolver.
func CheckComponent(ctx context.Context, c *meta.Component, dir, desired string, inspector Inspector, dependencyDirs map[string]string, opts CheckOptions) *ComponentHealth {
	ch := &ComponentHealth{Name: c.Name, Desired: desired, CheckedAt: time.Now()}

	actual, exists, err := inspector.Inspect(ctx, c.Name, dir)
	if err != nil {
		ch.Status = StatusBroken
		ch.Detail = err.Error()
		return ch
	}
	ch.Actual = actual
	if !exists {
		ch.Status = StatusMissing
		ch.Detail = "component directory not present"
		return ch
	}

	for _, dep := range c.DependsOn {
		depDir, ok := dependencyDirs[dep]
		if !ok {
			ch.Status = StatusBroken
			ch.Detail = fmt.Sprintf("dependency %q has no known directory", dep)
			return ch
		}
		if info, statErr := os.Stat(depDir); statErr != nil || !info.IsDir() {
			ch.Status = StatusMissing
			ch.Detail = fmt.Sprintf("dependency %q is not materialized", dep)
			return ch
		}
	}

	if desired != "" && actual != "" && actual != desired {
		ch.Status = StatusMismatch
		ch.Detail = fmt.Sprintf("on-disk %s, desired %s", actual, desired)
		return ch
	}

	if opts.Build {
		if out, buildErr := runCommand(ctx, dir, buildCommands[c.Type]); buildErr != nil {
			ch.Status = StatusBroken
			ch.Detail = fmt.Sprintf("build failed: %s", out)
			return ch
		}
	}
	if opts.Test {
		if out, testErr := runCommand(ctx, dir, testCommands[c.Type]); testErr != nil {
			ch.Status = StatusBroken
			ch.Detail = fmt.Sprintf("tests failed: %s", out)
			return ch
		}
	}

	ch.Status = StatusHealthy
	return ch
}

func runCommand(ctx context.Context, dir string, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
