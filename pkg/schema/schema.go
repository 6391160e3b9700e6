package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const defsPrefix = "#/$defs/"

// registry keeps the built schemas keyed by the struct type,
// so T and *T share the same entry.
type registry struct {
	lock  sync.Mutex
	items map[reflect.Type]*Schema
}

var schemas = &registry{items: map[reflect.Type]*Schema{}}

func (r *registry) get(t reflect.Type) (*Schema, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if s, ok := r.items[t]; ok {
		return s, nil
	}
	s, err := build(t)
	if err != nil {
		return nil, err
	}
	r.items[t] = s
	return s, nil
}

// Schema describes the input of a tool.
type Schema struct {
	// RawSchema is the schema as reflected from the Go type
	RawSchema *jsonschema.Schema
	// Parameters is the flattened object schema used for
	// function calling and input validation
	Parameters *jsonschema.Schema

	validator *Validator
}

// New returns the schema of the struct type t, or pointer to it.
func New(t reflect.Type) (*Schema, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("schema: expected struct, got %s", t.Kind())
	}
	return schemas.get(t)
}

// For returns the schema of the type T
func For[T any]() (*Schema, error) {
	return New(reflect.TypeFor[T]())
}

func (s *Schema) String() string {
	js, _ := json.MarshalIndent(s.Parameters, "", "\t")
	return string(js)
}

// Validate checks the decoded JSON value against the Parameters schema.
func (s *Schema) Validate(v any) error {
	return s.validator.Validate(v)
}

func build(t reflect.Type) (*Schema, error) {
	raw := reflectStruct(t)
	params := flatten(raw)

	v, err := NewValidator(t.Name(), params)
	if err != nil {
		return nil, err
	}

	return &Schema{
		RawSchema:  raw,
		Parameters: params,
		validator:  v,
	}, nil
}

// flatten returns the object schema of the root type
// with the $defs references inlined.
func flatten(raw *jsonschema.Schema) *jsonschema.Schema {
	rootName := strings.TrimPrefix(raw.Ref, defsPrefix)
	root := raw
	if def, ok := raw.Definitions[rootName]; ok && rootName != "" {
		root = def
	}

	res := &jsonschema.Schema{
		Type:       root.Type,
		Properties: root.Properties,
		Required:   root.Required,
	}
	inline(res.Properties, raw.Definitions, map[*jsonschema.Schema]bool{})
	return res
}

// inline replaces the references in props, each definition is walked once
// so recursive types terminate.
func inline(props *orderedmap.OrderedMap[string, *jsonschema.Schema], defs jsonschema.Definitions, seen map[*jsonschema.Schema]bool) {
	if props == nil {
		return
	}
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value = deref(pair.Value, defs)
		if items := pair.Value.Items; items != nil {
			pair.Value.Items = deref(items, defs)
			if !seen[pair.Value.Items] {
				seen[pair.Value.Items] = true
				inline(pair.Value.Items.Properties, defs, seen)
			}
		}
		if !seen[pair.Value] {
			seen[pair.Value] = true
			inline(pair.Value.Properties, defs, seen)
		}
	}
}

func deref(s *jsonschema.Schema, defs jsonschema.Definitions) *jsonschema.Schema {
	if s.Ref == "" {
		return s
	}
	if def, ok := defs[strings.TrimPrefix(s.Ref, defsPrefix)]; ok {
		return def
	}
	return s
}

// reflectStruct reflects the type with the nested structs expanded in place.
func reflectStruct(t reflect.Type) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
		// same struct names in different packages must not collide,
		// see https://github.com/invopop/jsonschema/issues/42
		Namer: func(t reflect.Type) string {
			if t.Kind() != reflect.Struct {
				return t.Name()
			}
			id := xxhash.Sum64String(t.PkgPath() + "/" + t.Name())
			return t.Name() + "@" + strconv.FormatUint(id, 10)
		},
	}
	return r.ReflectFromType(t)
}
