package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema is the minimum contract every extraction response has to
// meet before it is trusted. Category detail blocks stay optional; the model
// frequently omits them and the typed decode tolerates that.
const extractionSchema = `{
	"type": "object",
	"required": ["summary", "key_insights", "annual_cost", "one_time_costs"],
	"properties": {
		"summary": {"type": "string"},
		"key_insights": {"type": "array", "items": {"type": "string"}},
		"annual_cost": {"type": "number"},
		"one_time_costs": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["description", "amount"],
				"properties": {
					"description": {"type": "string"},
					"amount": {"type": "number"}
				}
			}
		},
		"subcategory": {"type": "string"}
	}
}`

var compiledExtractionSchema = mustCompileSchema("extraction.json", extractionSchema)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

func validateExtractionJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("unmarshal extraction json: %w", err)
	}
	if err := compiledExtractionSchema.Validate(value); err != nil {
		return fmt.Errorf("extraction json does not match schema: %w", err)
	}
	return nil
}
