package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/components.schema.json
var componentsSchemaJSON string

//go:embed schemas/environments.schema.json
var environmentsSchemaJSON string

//go:embed schemas/features.schema.json
var featuresSchemaJSON string

var (
	schemaOnce    sync.Once
	componentsSch *jsonschema.Schema
	environSch    *jsonschema.Schema
	featuresSch   *jsonschema.Schema
	compileErr    error
)

func compileSchemas() error {
	compileErr = nil
	var err error
	componentsSch, err = compileSchema(componentsSchemaJSON, "meta://components.schema.json")
	if err != nil {
		compileErr = err
		return err
	}
	environSch, err = compileSchema(environmentsSchemaJSON, "meta://environments.schema.json")
	if err != nil {
		compileErr = err
		return err
	}
	featuresSch, err = compileSchema(featuresSchemaJSON, "meta://features.schema.json")
	if err != nil {
		compileErr = err
		return err
	}
	return nil
}

func compileSchema(schemaJSON, url string) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("parsing embedded schema %s: %w", url, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource %s: %w", url, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", url, err)
	}
	return schema, nil
}

// validateAgainstSchema normalizes doc through a JSON round-trip
// (YAML decoders produce map[string]interface{} with non-JSON-native
// key types in places; jsonschema wants pure JSON values) and runs it
// through the named compiled schema.
func validateAgainstSchema(which *jsonschema.Schema, doc any, context string) error {
	normalized, err := normalizeForSchema(doc)
	if err != nil {
		return fmt.Errorf("%s: normalizing for schema validation: %w", context, err)
	}
	if err := which.Validate(normalized); err != nil {
		return fmt.Errorf("%s: schema validation failed: %w", context, err)
	}
	return nil
}

func normalizeForSchema(doc any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func ensureSchemasCompiled() error {
	schemaOnce.Do(func() {
		_ = compileSchemas()
	})
	return compileErr
}
