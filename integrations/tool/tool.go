package tool

import "context"

// Tool is an external action an LLM can invoke from a node: a search, an
// API call, a calculation. Implementations should validate their input,
// respect ctx cancellation, and return descriptive errors.
type Tool interface {
	// Name is the identifier the LLM refers to this tool by, matching the
	// name in the tool's ToolSpec.
	Name() string

	// Call executes the tool. input should match the ToolSpec's Schema.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}
