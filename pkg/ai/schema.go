package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var compiledSchemas sync.Map // schema name -> *jsonschema.Schema

// CompileSchema compiles a JSON schema definition and caches it under name.
func CompileSchema(name string, definition map[string]interface{}) (*jsonschema.Schema, error) {
	if cached, ok := compiledSchemas.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %q: %w", name, err)
	}

	url := fmt.Sprintf("mem://schemas/%s.json", name)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %q: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}

	compiledSchemas.Store(name, schema)
	return schema, nil
}

// decodeArguments turns the raw function arguments of a structured call into an
// object and validates it against the request's parameter schema.
func decodeArguments(req StructuredRequest, raw string) (map[string]interface{}, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, schemaMismatch("arguments of %s are not valid JSON: %v", req.SchemaName, err)
	}
	args, ok := value.(map[string]interface{})
	if !ok {
		return nil, schemaMismatch("arguments of %s are not a JSON object", req.SchemaName)
	}
	if len(req.Parameters) == 0 {
		return args, nil
	}

	schema, err := CompileSchema(req.SchemaName, req.Parameters)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(value); err != nil {
		return nil, schemaMismatch("arguments of %s do not match the schema: %v", req.SchemaName, err)
	}
	return args, nil
}
