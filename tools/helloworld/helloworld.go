// Package helloworld provides a greeting tool, used to check the agent wiring.
package helloworld

import (
	"context"

	"github.com/effective-security/agenttools/tools"
)

// ToolName is the name of the tool
const ToolName = "HelloWorld"

// Request represents the tool input.
type Request struct {
	Identifier string `json:"identifier" yaml:"identifier" jsonschema:"title=Identifier,description=The identifier (person\\, object\\, animal\\, etc.) used to when saying Hello"`
}

// Tool says hello
type Tool struct {
	name        string
	description string
}

// ensure Tool implements the tools.Tool interface
var _ tools.Tool[Request, tools.StringOutput] = (*Tool)(nil)
var _ tools.Snapshotter = (*Tool)(nil)

// New returns the tool
func New() *Tool {
	return &Tool{
		name:        ToolName,
		description: "Says hello when asked for a special greeting.",
	}
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() any {
	return tools.Parameters[Request]()
}

func (t *Tool) Snapshot() (*tools.Snapshot, error) {
	return tools.NewSnapshot(t.name, nil)
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	return tools.Call(ctx, t, input)
}

func (t *Tool) Run(_ context.Context, req *Request) (*tools.StringOutput, error) {
	return tools.NewStringOutput("Hello, " + req.Identifier), nil
}
