// Package manifest loads and validates components.yaml,
// environments.yaml, and features.yaml into the typed, read-only
// in-memory graph defined in internal/meta.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	goyaml "github.com/goccy/go-yaml"
	validatorpkg "github.com/go-playground/validator/v10"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/meta"
)

// pinGrammar matches vMAJOR.MINOR.PATCH, a 40-hex commit sha, or a
// bare branch name (anything else printable with no whitespace).
var (
	semverPin = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)
	shaPin    = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	branchPin = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
)

// ValidPin reports whether s matches the version-pin grammar: a semver
// tag, a 40-hex commit sha, or a branch name.
func ValidPin(s string) bool {
	return semverPin.MatchString(s) || shaPin.MatchString(s) || branchPin.MatchString(s)
}

var validate = newStructValidator()

func newStructValidator() *validatorpkg.Validate {
	v := validatorpkg.New()
	_ = v.RegisterValidation("pinformat", func(fl validatorpkg.FieldLevel) bool {
		return ValidPin(fl.Field().String())
	})
	_ = v.RegisterValidation("buildkind", func(fl validatorpkg.FieldLevel) bool {
		return meta.BuildKind(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("isolationpolicy", func(fl validatorpkg.FieldLevel) bool {
		return meta.IsolationPolicy(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("componentname", func(fl validatorpkg.FieldLevel) bool {
		return regexp.MustCompile(`^[A-Za-z0-9_-]+$`).MatchString(fl.Field().String())
	})
	return v
}

type rawComponentsFile struct {
	Meta struct {
		Mode string `yaml:"mode"`
	} `yaml:"meta"`
	Components map[string]meta.Component `yaml:"components"`
}

type rawEnvironmentsFile struct {
	Environments map[string]map[string]string `yaml:"environments"`
}

type rawFeaturesFile struct {
	Features map[string]meta.Feature `yaml:"features"`
}

// Load reads components.yaml, environments.yaml, and features.yaml
// from dir and returns the validated, read-only manifest graph.
func Load(dir string) (*meta.Manifest, error) {
	if err := ensureSchemasCompiled(); err != nil {
		return nil, errs.New(errs.KindManifest, "load", nil, "compiling embedded schemas", err)
	}

	components, mode, order, err := loadComponents(filepath.Join(dir, "components.yaml"))
	if err != nil {
		return nil, err
	}
	environments, err := loadEnvironments(filepath.Join(dir, "environments.yaml"))
	if err != nil {
		return nil, err
	}
	features, err := loadFeatures(filepath.Join(dir, "features.yaml"))
	if err != nil {
		return nil, err
	}

	m := &meta.Manifest{
		Mode:         mode,
		Components:   components,
		Order:        order,
		Environments: environments,
		Features:     features,
	}

	if err := crossValidate(m); err != nil {
		return nil, err
	}
	return m, nil
}

func readYAMLDoc(path string) (map[string]any, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errs.New(errs.KindManifest, "read", nil, path, err)
	}
	var doc map[string]any
	if err := goyaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, errs.New(errs.KindManifest, "parse", nil, path, err)
	}
	return doc, data, nil
}

func loadComponents(path string) (map[string]*meta.Component, meta.StorageMode, []string, error) {
	doc, data, err := readYAMLDoc(path)
	if err != nil {
		return nil, "", nil, err
	}
	if err := validateAgainstSchema(componentsSch, doc, "components.yaml"); err != nil {
		return nil, "", nil, errs.New(errs.KindManifest, "validate-schema", nil, path, err)
	}

	var raw rawComponentsFile
	if err := goyaml.Unmarshal(data, &raw); err != nil {
		return nil, "", nil, errs.New(errs.KindManifest, "decode", nil, path, err)
	}

	mode := meta.StorageMode(raw.Meta.Mode)
	if !mode.Valid() {
		return nil, "", nil, errs.New(errs.KindManifest, "validate", nil, fmt.Sprintf("unknown workspace mode %q", raw.Meta.Mode), nil)
	}

	out := make(map[string]*meta.Component, len(raw.Components))
	order := make([]string, 0, len(raw.Components))
	// goccy/go-yaml decodes map[string]T preserving only Go map
	// iteration order, not document order; re-walk the raw node order
	// from the document for diagnostic stability.
	if rawOrdered, ok := doc["components"].(map[string]any); ok {
		for name := range rawOrdered {
			order = append(order, name)
		}
	}

	for name, c := range raw.Components {
		comp := c
		comp.Name = name
		if err := validate.Struct(&comp); err != nil {
			return nil, "", nil, errs.New(errs.KindManifest, "validate-struct", []string{name}, err.Error(), nil)
		}
		out[name] = &comp
	}

	return out, mode, order, nil
}

func loadEnvironments(path string) (map[string]*meta.Environment, error) {
	doc, data, err := readYAMLDoc(path)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(environSch, doc, "environments.yaml"); err != nil {
		return nil, errs.New(errs.KindManifest, "validate-schema", nil, path, err)
	}

	var raw rawEnvironmentsFile
	if err := goyaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.New(errs.KindManifest, "decode", nil, path, err)
	}

	out := make(map[string]*meta.Environment, len(raw.Environments))
	for name, pins := range raw.Environments {
		out[name] = &meta.Environment{Name: name, Pins: pins}
	}
	for reserved := range meta.ReservedEnvironments {
		if _, ok := out[reserved]; !ok {
			// Reserved environments must exist but may be empty until
			// first configured; an absent entry is not an error, it
			// simply has no pins yet.
			out[reserved] = &meta.Environment{Name: reserved, Pins: map[string]string{}}
		}
	}
	return out, nil
}

func loadFeatures(path string) (map[string]*meta.Feature, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]*meta.Feature{}, nil
	}
	doc, data, err := readYAMLDoc(path)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(featuresSch, doc, "features.yaml"); err != nil {
		return nil, errs.New(errs.KindManifest, "validate-schema", nil, path, err)
	}

	var raw rawFeaturesFile
	if err := goyaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.New(errs.KindManifest, "decode", nil, path, err)
	}

	out := make(map[string]*meta.Feature, len(raw.Features))
	for name, f := range raw.Features {
		feat := f
		feat.Name = name
		if err := validate.Struct(&feat); err != nil {
			return nil, errs.New(errs.KindManifest, "validate-struct", nil, fmt.Sprintf("feature %q: %v", name, err), nil)
		}
		out[name] = &feat
	}
	return out, nil
}

// crossValidate checks references between the three files: every
// environment pin must name a real component, every feature member
// and contract endpoint must name a real component, and every
// dependency must name a real component.
func crossValidate(m *meta.Manifest) error {
	for name, c := range m.Components {
		for _, dep := range c.DependsOn {
			if _, ok := m.Components[dep]; !ok {
				return errs.New(errs.KindManifest, "cross-validate", []string{name}, fmt.Sprintf("depends_on unknown component %q", dep), nil)
			}
		}
	}
	for envName, env := range m.Environments {
		for compName := range env.Pins {
			if _, ok := m.Components[compName]; !ok {
				return errs.New(errs.KindManifest, "cross-validate", []string{compName}, fmt.Sprintf("environment %q pins unknown component", envName), nil)
			}
		}
	}
	for featName, feat := range m.Features {
		for _, compName := range feat.Components {
			if _, ok := m.Components[compName]; !ok {
				return errs.New(errs.KindManifest, "cross-validate", []string{compName}, fmt.Sprintf("feature %q references unknown component", featName), nil)
			}
		}
		for _, edge := range feat.Contracts {
			if _, ok := m.Components[edge.Producer]; !ok {
				return errs.New(errs.KindManifest, "cross-validate", []string{edge.Producer}, fmt.Sprintf("feature %q contract references unknown producer", featName), nil)
			}
			if _, ok := m.Components[edge.Consumer]; !ok {
				return errs.New(errs.KindManifest, "cross-validate", []string{edge.Consumer}, fmt.Sprintf("feature %q contract references unknown consumer", featName), nil)
			}
		}
	}
	return nil
}
