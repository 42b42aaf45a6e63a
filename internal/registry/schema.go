package registry

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://truststack.local/schemas/"

// Document kinds with an embedded schema.
const (
	schemaIndustry = "industry"
	schemaSegment  = "segment"
	schemaUseCase  = "use_case"
	schemaPack     = "pack"
	schemaControls = "controls"
	schemaDomains  = "domains"
)

var compiledSchemas = sync.OnceValues(func() (map[string]*jsonschema.Schema, error) {
	names := []string{schemaIndustry, schemaSegment, schemaUseCase, schemaPack, schemaControls, schemaDomains}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range names {
		data, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name+".schema.json", bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema %s load failed: %w", name, err)
		}
	}

	out := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		compiled, err := c.Compile(schemaBaseURL + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
		}
		out[name] = compiled
	}
	return out, nil
})

// decodeDocument validates a YAML document against the named schema and then
// decodes it into out.
func decodeDocument(data []byte, schema string, out any) error {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	if generic == nil {
		return fmt.Errorf("empty document")
	}

	// The validator expects JSON-shaped values, so round-trip through JSON.
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("document is not representable as json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("document is not representable as json: %w", err)
	}

	schemas, err := compiledSchemas()
	if err != nil {
		return err
	}
	if err := schemas[schema].Validate(instance); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
