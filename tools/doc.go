// Package tools defines the Tool interface for LLM agents: input schema, call
// pipeline, output shapes and the error taxonomy shared by all tool adapters.
// Tools enable agents to interact with external systems and APIs in a
// structured, extensible way.
package tools
