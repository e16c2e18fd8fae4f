// Package anthropic provides a model.Transport implementation backed by the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/sudheer1135/fin-agent/model"
)

// Options configures the Anthropic adapter (model id, temperature, max
// tokens, credentials).
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string // empty means the default Anthropic endpoint
}

// Transport wraps the Anthropic Messages API behind model.Transport.
type Transport struct {
	client *anthropic.Client
	opts   Options
}

// NewTransport creates a new adapter using the official client.
func NewTransport(optFns ...func(o *Options)) *Transport {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)
	return &Transport{client: &client, opts: opts}
}

// NewTransportFromClient creates an adapter from an existing client.
func NewTransportFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Transport {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Transport{client: client, opts: opts}
}

// Chat implements unified streaming / non-streaming generation.
func (t *Transport) Chat(ctx context.Context, req model.Request) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       anthropic.Model(t.opts.Model),
			Messages:    buildMessages(req.Messages),
			MaxTokens:   t.opts.MaxTokens,
			Temperature: anthropic.Float(t.opts.Temperature),
		}
		if system := extractSystemBlocks(req.Messages); len(system) > 0 {
			params.System = system
		}
		if len(req.Tools) > 0 && req.ToolChoice != "none" {
			params.Tools = buildTools(req.Tools)
		}

		if req.Stream {
			t.handleStreaming(ctx, params, out, errCh)
			return
		}
		t.handleNonStreaming(ctx, params, out, errCh)
	}()

	return out, errCh
}

func (t *Transport) handleNonStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Chunk,
	errCh chan<- error,
) {
	resp, err := t.client.Messages.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("anthropic api error: %w", err)
		return
	}
	msg := messageFromBlocks(resp.Content)
	usage := &model.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	select {
	case out <- model.Chunk{Message: &msg, FinishReason: finishReason(string(resp.StopReason)), Usage: usage}:
	case <-ctx.Done():
		errCh <- ctx.Err()
	}
}

// handleStreaming forwards text deltas as partial chunks while the SDK
// accumulator rebuilds the complete message for the terminal chunk.
func (t *Transport) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Chunk,
	errCh chan<- error,
) {
	stream := t.client.Messages.NewStreaming(ctx, params)
	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("anthropic stream accumulate: %w", err)
			return
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				select {
				case out <- model.Chunk{Partial: true, Delta: delta.Text}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}

	msg := messageFromBlocks(acc.Content)
	select {
	case out <- model.Chunk{Message: &msg, FinishReason: finishReason(string(acc.StopReason))}:
	case <-ctx.Done():
		errCh <- ctx.Err()
	}
}

// messageFromBlocks converts response content blocks (text + tool_use) into a
// normalized assistant message.
func messageFromBlocks(blocks []anthropic.ContentBlockUnion) model.Message {
	msg := model.Message{Role: model.RoleAssistant}
	for _, block := range blocks {
		switch block.Type {
		case "text":
			msg.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := "{}"
			if toolBlock.Input != nil {
				if b, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(b)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	return msg
}

// finishReason maps Anthropic stop reasons onto the shared vocabulary.
func finishReason(stop string) string {
	switch stop {
	case "", "end_turn":
		return "stop"
	case "tool_use":
		return "tool_calls"
	default:
		return stop
	}
}

// buildMessages converts normalized messages to the Anthropic format: tool
// results become tool_result blocks inside a user message directly after the
// assistant turn that requested them, which the snapshot ordering guarantees.
func buildMessages(msgs []model.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			continue // handled separately via params.System
		case model.RoleUser:
			if m.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case model.RoleAssistant:
			content := buildAssistantContent(m)
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		case model.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		default:
			if m.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	return messages
}

func buildAssistantContent(m model.Message) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	if m.Content != "" {
		content = append(content, anthropic.NewTextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		var input interface{}
		if tc.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
				input = tc.Arguments // fallback to raw string
			}
		}
		content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
	}
	return content
}

// extractSystemBlocks collects system entries for the dedicated system field.
func extractSystemBlocks(msgs []model.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range msgs {
		if m.Role == model.RoleSystem && m.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	return blocks
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if params := tdef.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := params["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []interface{}:
					for _, r := range req {
						if s, ok := r.(string); ok {
							inputSchema.Required = append(inputSchema.Required, s)
						}
					}
				}
			}
		}
		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Function.Name)
	}
	return anthropicTools
}

// Info returns metadata describing this adapter.
func (t *Transport) Info() model.Info {
	return model.Info{Name: t.opts.Model, Provider: "anthropic", SupportsTools: true}
}
