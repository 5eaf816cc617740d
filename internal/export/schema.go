package export

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/taxonomy-import.schema.json
var importSchemaJSON []byte

const importSchemaURL = "taxonomy-import.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(importSchemaURL, bytes.NewReader(importSchemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(importSchemaURL)
})

// SchemaIssue is one failed assertion of the import schema.
type SchemaIssue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// SchemaError reports an encoded document that does not match the import
// schema.
type SchemaError struct {
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = fmt.Sprintf("%s: %s", is.Location, is.Message)
	}
	return "export: schema validation failed: " + strings.Join(parts, "; ")
}

// ValidateSchema checks encoded JSON against the embedded import schema.
func ValidateSchema(encoded []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("export: compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(encoded, &v); err != nil {
		return fmt.Errorf("export: decode for validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &SchemaError{Issues: collectIssues(ve)}
		}
		return fmt.Errorf("export: validate: %w", err)
	}
	return nil
}

func collectIssues(err *jsonschema.ValidationError) []SchemaIssue {
	var issues []SchemaIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			loc := strings.TrimSpace(node.InstanceLocation)
			if loc == "" {
				loc = "/"
			}
			issues = append(issues, SchemaIssue{Location: loc, Message: strings.TrimSpace(node.Message)})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}
