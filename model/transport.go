package model

import "context"

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Request captures one normalized chat call: the full message snapshot plus
// tool schema and streaming mode. Messages are replayed verbatim; transports
// must preserve their order.
type Request struct {
	Messages   []Message        `json:"messages"`
	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice string           `json:"tool_choice,omitempty"` // "auto" (default), "none"
	Stream     bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a completed turn.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chunk is one element of the lazy response sequence. Partial chunks carry a
// raw text delta (which may contain partial sentinel markers); the terminal
// chunk has Partial=false and carries the fully assembled Message. In
// streaming mode a well-behaved transport yields all partial chunks first and
// then exactly one terminal chunk; in non-streaming mode it yields only the
// terminal chunk.
type Chunk struct {
	Partial      bool        `json:"partial"`
	Delta        string      `json:"delta,omitempty"`
	Message      *Message    `json:"message,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a transport implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "deepseek", "anthropic", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Transport is the minimal interface the agent loop requires to drive
// generation. Chat returns immediately; chunks and at most one error arrive on
// the returned channels, both of which are closed when the call completes.
// Cancellation flows through ctx and must be observable while the caller is
// blocked on either channel.
type Transport interface {
	Chat(ctx context.Context, req Request) (<-chan Chunk, <-chan error)

	// Info returns information about the transport implementation.
	Info() Info
}
