package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/agenttools/pkg/llmutils"
	"github.com/effective-security/agenttools/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type SearchType string

// Search represents a search request with various parameters.
type Search struct {
	Query string     `json:"query" jsonschema:"title=Query,description=Query to search for relevant content"`
	Topic string     `json:"topic,omitempty" jsonschema:"title=Topic,description=Topic of the search\\, with coma."`
	Type  SearchType `json:"type" jsonschema:"title=Type,description=Type of search,enum=web,enum=image"`
	Args  []*KVPair  `json:"args,omitempty" jsonschema:"title=Args,description=Arguments for the search"`
}

// KVPair represents a key-value pair.
type KVPair struct {
	Key   string `json:"key" jsonschema:"title=Key,description=Key of the pair"`
	Value string `json:"value" jsonschema:"title=Value,description=Value of the pair"`
}

func decode(t *testing.T, js string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(js), &v))
	return v
}

func TestSchema(t *testing.T) {
	t.Parallel()

	s, err := schema.New(reflect.TypeOf(Search{}))
	require.NoError(t, err)

	exp := `{
	"properties": {
		"query": {
			"type": "string",
			"title": "Query",
			"description": "Query to search for relevant content"
		},
		"topic": {
			"type": "string",
			"title": "Topic",
			"description": "Topic of the search, with coma."
		},
		"type": {
			"type": "string",
			"enum": [
				"web",
				"image"
			],
			"title": "Type",
			"description": "Type of search"
		},
		"args": {
			"items": {
				"properties": {
					"key": {
						"type": "string",
						"title": "Key",
						"description": "Key of the pair"
					},
					"value": {
						"type": "string",
						"title": "Value",
						"description": "Value of the pair"
					}
				},
				"type": "object",
				"required": [
					"key",
					"value"
				]
			},
			"type": "array",
			"title": "Args",
			"description": "Arguments for the search"
		}
	},
	"type": "object",
	"required": [
		"query",
		"type"
	]
}`
	assert.Equal(t, exp, s.String())
	assert.Equal(t, exp, llmutils.ToJSONIndent(s.Parameters))

	s2, err := schema.For[Search]()
	require.NoError(t, err)
	assert.Same(t, s, s2, "schema must be cached")

	s3, err := schema.New(reflect.TypeOf(&Search{}))
	require.NoError(t, err)
	assert.Same(t, s, s3, "pointer and struct share the schema")

	_, err = schema.New(reflect.TypeOf(""))
	assert.EqualError(t, err, "schema: expected struct, got string")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	s, err := schema.For[Search]()
	require.NoError(t, err)

	tcases := []struct {
		name  string
		input string
		err   string
	}{
		{name: "valid", input: `{"query":"golang","type":"web"}`},
		{name: "extra fields", input: `{"query":"golang","type":"web","unknown":1}`},
		{name: "nested", input: `{"query":"golang","type":"image","args":[{"key":"k","value":"v"}]}`},
		{name: "missing", input: `{"type":"web"}`, err: "invalid input: /: missing properties: 'query'"},
		{name: "enum", input: `{"query":"golang","type":"video"}`, err: `invalid input: /type: value must be one of "web", "image"`},
		{name: "type", input: `{"query":1,"type":"web"}`, err: "invalid input: /query: expected string, but got number"},
		{name: "nested missing", input: `{"query":"q","type":"web","args":[{"key":"k"}]}`, err: "invalid input: /args/0: missing properties: 'value'"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Validate(decode(t, tc.input))
			if tc.err == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tc.err)
			}
		})
	}
}

