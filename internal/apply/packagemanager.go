package apply

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tbrumbaugh5396/meta/internal/errs"
)

// PackageManager is one package manager's detected presence and
// lockfile-preferring install invocation.
type PackageManager struct {
	Name    string
	Marker  string
	Command []string
}

// detectors is checked in order; the first marker file present in dir
// wins. go.mod is checked last since a repo can carry both a
// Dockerfile and a go.mod, and the Dockerfile build is usually the
// intended one for this component.
var detectors = []PackageManager{
	{Name: "npm", Marker: "package-lock.json", Command: []string{"npm", "ci"}},
	{Name: "npm", Marker: "package.json", Command: []string{"npm", "install"}},
	{Name: "python-poetry", Marker: "pyproject.toml", Command: []string{"poetry", "install"}},
	{Name: "python-pip", Marker: "requirements.txt", Command: []string{"pip", "install", "-r", "requirements.txt"}},
	{Name: "python-setuptools", Marker: "setup.py", Command: []string{"pip", "install", "."}},
	{Name: "cargo", Marker: "Cargo.lock", Command: []string{"cargo", "fetch"}},
	{Name: "cargo", Marker: "Cargo.toml", Command: []string{"cargo", "build"}},
	{Name: "go", Marker: "go.mod", Command: []string{"go", "mod", "download"}},
	{Name: "docker", Marker: "Dockerfile", Command: []string{"docker", "build", "."}},
}

// DetectPackageManager inspects dir's top level for a recognized
// marker file, returning nil if none match.
func DetectPackageManager(dir string) *PackageManager {
	for _, d := range detectors {
		if _, err := os.Stat(filepath.Join(dir, d.Marker)); err == nil {
			pm := d
			return &pm
		}
	}
	return nil
}

// InstallClassification distinguishes a retryable install failure
// (network/fetch) from a non-retryable one (checksum/lock conflict).
type InstallClassification int

const (
	InstallRetryable InstallClassification = iota
	InstallPermanent
)

// RunInstall runs pm's install command in dir, returning the
// combined output and a classification of any failure.
func RunInstall(ctx context.Context, dir string, pm *PackageManager) (string, InstallClassification, error) {
	cmd := exec.CommandContext(ctx, pm.Command[0], pm.Command[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), InstallRetryable, nil
	}
	return string(out), classifyInstallFailure(string(out)), errs.New(errs.KindDependency, "package-install", nil, pm.Name, err)
}

var checksumMarkers = []string{
	"checksum mismatch",
	"integrity checksum failed",
	"lockfile",
	"EINTEGRITY",
	"hash mismatch",
	"conflicting dependency",
}

func classifyInstallFailure(out string) InstallClassification {
	lower := strings.ToLower(out)
	for _, m := range checksumMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return InstallPermanent
		}
	}
	return InstallRetryable
}
