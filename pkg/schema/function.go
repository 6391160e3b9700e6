package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// FunctionProperty is the subset of JSON Schema accepted by the function calling API
type FunctionProperty struct {
	Type                 string                       `json:"type"`
	Title                string                       `json:"title,omitempty"`
	Description          string                       `json:"description,omitempty"`
	Enum                 []any                        `json:"enum,omitempty"`
	Default              any                          `json:"default,omitempty"`
	Examples             []any                        `json:"examples,omitempty"`
	Items                *FunctionProperty            `json:"items,omitempty"`
	Properties           map[string]*FunctionProperty `json:"properties,omitempty"`
	AdditionalProperties *bool                        `json:"additionalProperties,omitempty"`
	Required             []string                     `json:"required,omitempty"`
}

var (
	trueVal  = true
	falseVal = false
)

// FunctionDefinition returns the tool definition for the function calling API.
// params is the tool Parameters, usually *jsonschema.Schema.
// In strict mode the objects do not allow additional properties.
func FunctionDefinition(name, description string, params any, strict bool) shared.FunctionDefinitionParam {
	def := shared.FunctionDefinitionParam{
		Name:       name,
		Parameters: FunctionParameters(params, strict),
	}
	if description != "" {
		def.Description = openai.String(description)
	}
	if strict {
		def.Strict = openai.Bool(true)
	}
	return def
}

// FunctionParameters returns the parameters as JSON object
func FunctionParameters(params any, strict bool) shared.FunctionParameters {
	if params == nil {
		return nil
	}
	if sc, ok := params.(*jsonschema.Schema); ok {
		if sc == nil {
			return nil
		}
		params = toFunctionProperty(sc, strict)
	}

	js, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var res shared.FunctionParameters
	if err = json.Unmarshal(js, &res); err != nil {
		return nil
	}
	return res
}

func toFunctionProperty(in *jsonschema.Schema, strict bool) *FunctionProperty {
	if in == nil {
		return nil
	}

	result := &FunctionProperty{
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Enum:        in.Enum,
		Default:     in.Default,
		Examples:    in.Examples,
		Required:    in.Required,
	}

	if in.AdditionalProperties != nil {
		result.AdditionalProperties = &trueVal
	} else if strict && in.Type == "object" {
		result.AdditionalProperties = &falseVal
	}

	if in.Properties != nil {
		result.Properties = make(map[string]*FunctionProperty)
		for pair := in.Properties.Oldest(); pair != nil; pair = pair.Next() {
			result.Properties[pair.Key] = toFunctionProperty(pair.Value, strict)
		}
	}

	if in.Items != nil {
		result.Items = toFunctionProperty(in.Items, strict)
	}

	return result
}
