package schema

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks decoded JSON values against a compiled schema.
type Validator struct {
	compiled *sjsonschema.Schema
}

// NewValidator compiles the function schema for runtime validation.
func NewValidator(name string, s *jsonschema.Schema) (*Validator, error) {
	js, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}

	compiled, err := sjsonschema.CompileString(name+".json", string(js))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile schema %s", name)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate returns an error if v does not conform to the schema.
// The value must be produced by decoding JSON into `any`.
func (v *Validator) Validate(val any) error {
	if v == nil || v.compiled == nil {
		return nil
	}
	if err := v.compiled.Validate(val); err != nil {
		var ve *sjsonschema.ValidationError
		if errors.As(err, &ve) {
			return errors.Newf("invalid input: %s", describe(ve))
		}
		return errors.Wrap(err, "invalid input")
	}
	return nil
}

// describe returns the most specific validation message
func describe(ve *sjsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
