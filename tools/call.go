package tools

import (
	"context"
	"encoding/json"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/pkg/llmutils"
	"github.com/effective-security/agenttools/pkg/schema"
)

// Parameters returns the function parameters definition of the input type I.
func Parameters[I any]() any {
	sc, err := schema.For[I]()
	if err != nil {
		return nil
	}
	return sc.Parameters
}

// ParseInput decodes the raw LLM input into I,
// after validating it against the schema of I.
func ParseInput[I any](input string) (*I, error) {
	sc, err := schema.For[I]()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create schema")
	}

	data := llmutils.CleanJSON([]byte(input))

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewError(KindValidation, ErrFailedUnmarshalInput.Error(), ErrFailedUnmarshalInput, err)
	}
	if err := sc.Validate(raw); err != nil {
		return nil, NewError(KindValidation, err.Error(), ErrFailedUnmarshalInput, err)
	}

	var req I
	if err := ljson.Unmarshal(data, &req); err != nil {
		return nil, NewError(KindValidation, ErrFailedUnmarshalInput.Error(), ErrFailedUnmarshalInput, err)
	}
	return &req, nil
}

// Render returns the content of the tool output
func Render(out any) (string, error) {
	if cp, ok := out.(ContentProvider); ok {
		return cp.GetContent(), nil
	}
	bs, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal output")
	}
	return string(bs), nil
}

// Call runs the tool with the raw LLM input:
// the input is validated before the tool is invoked,
// and the output is rendered as the content for the LLM.
func Call[I any, O any](ctx context.Context, t Tool[I, O], input string) (string, error) {
	req, err := ParseInput[I](input)
	if err != nil {
		return "", err
	}
	out, err := t.Run(ctx, req)
	if err != nil {
		return "", err
	}
	return Render(out)
}
