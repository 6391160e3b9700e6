package tools

import (
	"github.com/effective-security/agenttools/pkg/llmutils"
)

// StringOutput is a plain text tool result.
type StringOutput struct {
	Text string `json:"text" yaml:"text"`
}

// NewStringOutput returns StringOutput
func NewStringOutput(text string) *StringOutput {
	return &StringOutput{Text: text}
}

func (o *StringOutput) GetContent() string {
	return o.Text
}

func (o *StringOutput) String() string {
	return o.Text
}

// JSONOutput is a structured tool result.
// The content sent to the LLM is the JSON encoding of Result.
type JSONOutput[T any] struct {
	Result T `json:"result" yaml:"result"`
}

// NewJSONOutput returns JSONOutput
func NewJSONOutput[T any](result T) *JSONOutput[T] {
	return &JSONOutput[T]{Result: result}
}

func (o *JSONOutput[T]) GetContent() string {
	return llmutils.ToJSON(o.Result)
}

func (o *JSONOutput[T]) String() string {
	return o.GetContent()
}

