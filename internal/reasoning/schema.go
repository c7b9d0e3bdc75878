package reasoning

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var summarySchema = map[string]any{
	"type":     "object",
	"required": []any{"summary", "sources"},
	"properties": map[string]any{
		"summary": map[string]any{"type": "string", "minLength": 1},
		"sources": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"url"},
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
					"url":   map[string]any{"type": "string"},
				},
			},
		},
	},
}

var recommendationSchema = map[string]any{
	"type":     "object",
	"required": []any{"action", "reasoning"},
	"properties": map[string]any{
		"action":    map[string]any{"type": "string", "minLength": 1},
		"reasoning": map[string]any{"type": "string", "minLength": 1},
	},
}

func compileSchema(name string, data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}
