package apply

import (
	"context"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/tbrumbaugh5396/meta/internal/meta"
)

// ShaResolver resolves a ref to a commit sha inside an existing
// working tree; satisfied structurally by *gitdriver.Driver.
type ShaResolver interface {
	ResolveSha(ctx context.Context, dir, ref string) (string, error)
}

// DiskInspector reports on-disk component state by mode: for
// reference components it resolves HEAD's commit sha via git; for
// vendored components it reads the provenance record written by the
// vendor engine.
type DiskInspector struct {
	Mode     meta.StorageMode
	Resolver ShaResolver
}

func (d *DiskInspector) Inspect(ctx context.Context, name, dir string) (string, bool, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false, nil
	}

	switch d.Mode {
	case meta.ModeVendored:
		return d.inspectVendored(dir)
	default:
		return d.inspectReference(ctx, dir)
	}
}

func (d *DiskInspector) inspectReference(ctx context.Context, dir string) (string, bool, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return "", false, nil // directory exists but isn't a git checkout yet
	}
	if d.Resolver == nil {
		return "", true, nil
	}
	sha, err := d.Resolver.ResolveSha(ctx, dir, "HEAD")
	if err != nil {
		return "", true, nil // present but unresolvable (detached/corrupt); treat as needing checkout
	}
	return sha, true, nil
}

func (d *DiskInspector) inspectVendored(dir string) (string, bool, error) {
	path := filepath.Join(dir, ".meta-provenance.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		entries, readErr := os.ReadDir(dir)
		if readErr == nil && len(entries) > 0 {
			return "", true, nil // tree present, no provenance: treat as needing re-import
		}
		return "", false, nil
	}
	var p meta.ProvenanceRecord
	if err := yaml.Unmarshal(data, &p); err != nil {
		return "", true, nil
	}
	return p.Version, true, nil
}
