// Package meta defines the core in-memory data model shared by every
// engine in the workspace: components, environments, features, and the
// storage-mode variant tag that disambiguates reference trees from
// vendored ones. The model is read-only once a manifest has been loaded;
// nothing in this package touches disk.
package meta

import (
	"fmt"
	"time"
)

// StorageMode is the workspace-wide variant tag distinguishing how a
// component's tree is materialized on disk. The two modes are mutually
// exclusive per workspace.
type StorageMode string

const (
	ModeReference StorageMode = "reference"
	ModeVendored  StorageMode = "vendored"
)

func (m StorageMode) Valid() bool {
	return m == ModeReference || m == ModeVendored
}

// BuildKind is the closed set of package-manager/build kinds a
// component may declare.
type BuildKind string

const (
	BuildBazel   BuildKind = "bazel"
	BuildPython  BuildKind = "python"
	BuildNPM     BuildKind = "npm"
	BuildDocker  BuildKind = "docker"
	BuildGeneric BuildKind = "generic"
)

var validBuildKinds = map[BuildKind]bool{
	BuildBazel: true, BuildPython: true, BuildNPM: true, BuildDocker: true, BuildGeneric: true,
}

func (k BuildKind) Valid() bool { return validBuildKinds[k] }

// IsolationPolicy controls whether a component's package-manager
// install step runs in a named isolated environment.
type IsolationPolicy string

const (
	IsolationNone      IsolationPolicy = "none"
	IsolationVenv      IsolationPolicy = "venv"
	IsolationContainer IsolationPolicy = "container"
)

func (p IsolationPolicy) Valid() bool {
	switch p {
	case "", IsolationNone, IsolationVenv, IsolationContainer:
		return true
	default:
		return false
	}
}

// Component is the identity and attribute set of a versioned,
// externally-sourced code unit the workspace composes.
type Component struct {
	Name        string          `yaml:"-" validate:"required,componentname"`
	Repo        string          `yaml:"repo" validate:"required,url"`
	Version     string          `yaml:"version" validate:"required,pinformat"`
	Type        BuildKind       `yaml:"type" validate:"required,buildkind"`
	BuildTarget string          `yaml:"build_target,omitempty"`
	DependsOn   []string        `yaml:"depends_on,omitempty"`
	Isolation   IsolationPolicy `yaml:"isolation,omitempty" validate:"isolationpolicy"`
}

// ReservedEnvironments can never be removed from a workspace.
var ReservedEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// Environment is a complete pin set: component name -> version pin.
type Environment struct {
	Name string            `yaml:"-" validate:"required"`
	Pins map[string]string `yaml:"-"`
}

// ContractEdge is a directed producer -> consumer data-contract edge
// declared between two feature member components.
type ContractEdge struct {
	Producer       string `yaml:"producer" validate:"required"`
	ProducerOutput string `yaml:"producer_output" validate:"required"`
	Consumer       string `yaml:"consumer" validate:"required"`
	ConsumerInput  string `yaml:"consumer_input" validate:"required"`
}

// Feature is a declarative, non-executable composition used as a
// verification target.
type Feature struct {
	Name        string         `yaml:"-" validate:"required"`
	Description string         `yaml:"description,omitempty"`
	Components  []string       `yaml:"components" validate:"required,min=1"`
	Contracts   []ContractEdge `yaml:"contracts,omitempty"`
	Policies    []string       `yaml:"policies,omitempty"`
}

// Manifest is the complete, validated, read-only in-memory graph
// produced by the manifest model (internal/manifest).
type Manifest struct {
	Mode         StorageMode
	Components   map[string]*Component
	Order        []string // insertion order, for diagnostics
	Environments map[string]*Environment
	Features     map[string]*Feature
}

// Lookup returns the component by name, or an error naming it.
func (m *Manifest) Component(name string) (*Component, error) {
	c, ok := m.Components[name]
	if !ok {
		return nil, fmt.Errorf("component %q: %w", name, ErrNotFound)
	}
	return c, nil
}

// LockEntryReference is one component's materialization identity in
// reference-mode lock files.
type LockEntryReference struct {
	Version     string    `yaml:"version"`
	CommitSHA   string    `yaml:"commit_sha"`
	Repo        string    `yaml:"repo"`
	Type        BuildKind `yaml:"type"`
	BuildTarget string    `yaml:"build_target,omitempty"`
	DependsOn   []string  `yaml:"depends_on,omitempty"`
}

// LockEntryVendored is one component's materialization identity in
// vendored-mode lock files.
type LockEntryVendored struct {
	Version     string    `yaml:"version"`
	VendoredAt  time.Time `yaml:"vendored_at"`
	Repo        string    `yaml:"repo"`
	Type        BuildKind `yaml:"type"`
	BuildTarget string    `yaml:"build_target,omitempty"`
}

// Lock is a generated, per-environment, mode-tagged pin-binding
// artifact. Exactly one of the two entry maps is populated, selected
// by Mode — an explicit variant tag in place of duck-typed dispatch.
type Lock struct {
	Environment string                         `yaml:"environment"`
	Mode        StorageMode                    `yaml:"mode"`
	GeneratedAt time.Time                      `yaml:"generated_at"`
	Reference   map[string]LockEntryReference  `yaml:"reference,omitempty"`
	Vendored    map[string]LockEntryVendored   `yaml:"vendored,omitempty"`
}

// ProvenanceRecord is the small metadata file placed next to a
// vendored component's tree.
type ProvenanceRecord struct {
	Component  string    `yaml:"component"`
	Repo       string    `yaml:"repo"`
	Version    string    `yaml:"version"`
	VendoredAt time.Time `yaml:"vendored_at"`
}

// Snapshot is a serialized pin map captured for later rollback.
type Snapshot struct {
	ID          string            `yaml:"id"`
	Environment string            `yaml:"environment"`
	Mode        StorageMode       `yaml:"mode"`
	Pins        map[string]string `yaml:"pins"`
	CreatedAt   time.Time         `yaml:"created_at"`
}
