// Package tool implements the function calling subsystem that lets the agent
// invoke structured capabilities (market data, portfolio operations,
// configuration changes) with schema validated arguments and consistent
// error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/sudheer1135/fin-agent/internal/util"
)

// Tool is a callable capability exposed to the model.
//
// Implementations should provide descriptive names (snake_case), a JSON
// schema for parameters, handle errors gracefully, and be safe for repeated
// sequential calls.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description is provided to the LLM to help it decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]interface{}

	// Call executes the tool with already-parsed arguments.
	Call(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
