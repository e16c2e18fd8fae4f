package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudheer1135/fin-agent/conversation"
	"github.com/sudheer1135/fin-agent/model"
	"github.com/sudheer1135/fin-agent/tool"
)

// recordingSink captures streamed text for assertions.
type recordingSink struct {
	mu      sync.Mutex
	b       strings.Builder
	flushes int
}

func (s *recordingSink) Write(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.WriteString(text)
}

func (s *recordingSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
}

func (s *recordingSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "echo "+name,
		map[string]any{"type": "object", "properties": map[string]any{
			"value": map[string]any{"type": "string"},
		}},
		func(_ context.Context, args map[string]any) (any, error) {
			v, _ := args["value"].(string)
			return name + ":" + v, nil
		})
}

func newLoop(t *testing.T, mock *model.MockTransport, reg *tool.Registry, optFns ...func(o *Options)) (*Loop, *conversation.Conversation) {
	t.Helper()
	conv := conversation.New("system prompt")
	return New(mock, reg, conv, optFns...), conv
}

func TestRunPlainAnswer(t *testing.T) {
	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{
		Deltas:  []string{"Hello", " there"},
		Message: &model.Message{Role: model.RoleAssistant},
	})

	visible := &recordingSink{}
	loop, conv := newLoop(t, mock, tool.NewRegistry(), func(o *Options) {
		o.VisibleSink = visible
	})

	out, err := loop.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)
	assert.Equal(t, "Hello there", visible.String())

	msgs := conv.Snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Hello there", msgs[2].Content)
}

func TestRunStripsReasoningFromHistory(t *testing.T) {
	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{
		Deltas:  []string{"<think>checking the numbers</think>\n", "Revenue rose 12%."},
		Message: &model.Message{Role: model.RoleAssistant},
	})

	visible := &recordingSink{}
	reasoning := &recordingSink{}
	loop, conv := newLoop(t, mock, tool.NewRegistry(), func(o *Options) {
		o.VisibleSink = visible
		o.ReasoningSink = reasoning
	})

	out, err := loop.Run(context.Background(), "how did they do?")
	require.NoError(t, err)
	assert.Equal(t, "Revenue rose 12%.", out)
	assert.Equal(t, "checking the numbers", reasoning.String())

	// Hidden text never enters the history.
	last := conv.Snapshot()[2]
	assert.Equal(t, "Revenue rose 12%.", last.Content)
}

func TestRunDispatchesToolCallsInOrder(t *testing.T) {
	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{
		Message: &model.Message{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{
				{ID: "call_a", Name: "alpha", Arguments: `{"value":"1"}`},
				{ID: "call_b", Name: "bravo", Arguments: `{"value":"2"}`},
			},
		},
	})
	mock.Enqueue(model.MockTurn{
		Deltas:  []string{"done"},
		Message: &model.Message{Role: model.RoleAssistant},
	})

	reg := tool.NewRegistry(echoTool("alpha"), echoTool("bravo"))
	loop, conv := newLoop(t, mock, reg)

	out, err := loop.Run(context.Background(), "run both")
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	msgs := conv.Snapshot()
	// system, user, assistant(tool calls), 2 tool results, assistant answer
	require.Len(t, msgs, 6)
	assert.Equal(t, model.RoleTool, msgs[3].Role)
	assert.Equal(t, "call_a", msgs[3].ToolCallID)
	assert.Equal(t, "alpha:1", msgs[3].Content)
	assert.Equal(t, "call_b", msgs[4].ToolCallID)
	assert.Equal(t, "bravo:2", msgs[4].Content)

	// The second model call saw the tool results.
	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[1], 5)
}

func TestRunToolErrorsBecomeResultText(t *testing.T) {
	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{
		Message: &model.Message{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{
				{ID: "c1", Name: "missing_tool", Arguments: "{}"},
				{ID: "c2", Name: "alpha", Arguments: "not json"},
			},
		},
	})
	mock.Enqueue(model.MockTurn{Message: &model.Message{Role: model.RoleAssistant}})

	loop, conv := newLoop(t, mock, tool.NewRegistry(echoTool("alpha")))

	_, err := loop.Run(context.Background(), "go")
	require.NoError(t, err)

	msgs := conv.Snapshot()
	assert.Contains(t, msgs[3].Content, "error:")
	assert.Contains(t, msgs[4].Content, "invalid arguments")
}

func TestRunTransportErrorKeepsCommittedTurns(t *testing.T) {
	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{
		Message: &model.Message{
			Role:      model.RoleAssistant,
			ToolCalls: []model.ToolCall{{ID: "c1", Name: "alpha", Arguments: `{"value":"x"}`}},
		},
	})
	mock.Enqueue(model.MockTurn{Err: errors.New("connection reset")})

	loop, conv := newLoop(t, mock, tool.NewRegistry(echoTool("alpha")))

	_, err := loop.Run(context.Background(), "go")
	require.ErrorContains(t, err, "connection reset")

	// The failed call added nothing; the completed tool turn stays.
	msgs := conv.Snapshot()
	require.Len(t, msgs, 4)
	assert.Equal(t, model.RoleTool, msgs[3].Role)
}

func TestRunInterruptionCommitsPartialText(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{
		Deltas:       []string{"Revenue rose"},
		OnDeltasSent: cancel,
		Block:        true,
	})

	visible := &recordingSink{}
	loop, conv := newLoop(t, mock, tool.NewRegistry(), func(o *Options) {
		o.VisibleSink = visible
	})

	out, err := loop.Run(ctx, "summarize")
	require.NoError(t, err)

	// The sink already rendered the partial text; the result is empty so
	// callers cannot mistake an interrupted turn for a completed one.
	assert.Empty(t, out)
	assert.Equal(t, "Revenue rose", visible.String())

	msgs := conv.Snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "Revenue rose", msgs[2].Content)
	assert.Empty(t, msgs[2].ToolCalls)
}

func TestRunInterruptionWithNoTextAddsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{OnDeltasSent: cancel, Block: true})

	loop, conv := newLoop(t, mock, tool.NewRegistry())

	out, err := loop.Run(ctx, "summarize")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Len(t, conv.Snapshot(), 2)
}

func TestRunSynthesizesFinalMessage(t *testing.T) {
	mock := model.NewMockTransport()
	// Stream ends after deltas with no terminal chunk.
	mock.Enqueue(model.MockTurn{Deltas: []string{"partial answer"}})

	loop, conv := newLoop(t, mock, tool.NewRegistry())

	out, err := loop.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "partial answer", out)
	assert.Equal(t, "partial answer", conv.Snapshot()[2].Content)
}

func TestRunSynthesizeDisabled(t *testing.T) {
	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{Deltas: []string{"partial"}})

	loop, _ := newLoop(t, mock, tool.NewRegistry(), func(o *Options) {
		o.SynthesizeFinal = false
	})

	_, err := loop.Run(context.Background(), "hi")
	assert.ErrorContains(t, err, "without a final message")
}

func TestRunReconfigureRebuildsTransport(t *testing.T) {
	first := model.NewMockTransport()
	first.Enqueue(model.MockTurn{
		Message: &model.Message{
			Role:      model.RoleAssistant,
			ToolCalls: []model.ToolCall{{ID: "c1", Name: "set_config", Arguments: `{}`}},
		},
	})

	second := model.NewMockTransport()
	second.Enqueue(model.MockTurn{
		Deltas:  []string{"switched"},
		Message: &model.Message{Role: model.RoleAssistant},
	})

	applied := false
	reg := tool.NewRegistry(tool.NewFunctionTool("set_config", "switch model",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			applied = true
			return "ok", nil
		}))

	loop, _ := newLoop(t, first, reg, func(o *Options) {
		o.ReconfigureTool = "set_config"
		o.TransportFactory = func() (model.Transport, error) { return second, nil }
	})

	out, err := loop.Run(context.Background(), "use openai instead")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "switched", out)

	// The follow-up call went to the rebuilt transport.
	assert.Len(t, first.Calls(), 1)
	assert.Len(t, second.Calls(), 1)
}

func TestRunRefreshesSystemPrompt(t *testing.T) {
	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{Message: &model.Message{Role: model.RoleAssistant, Content: "ok"}})

	prompt := "v1"
	loop, conv := newLoop(t, mock, tool.NewRegistry(), func(o *Options) {
		o.SystemPrompt = func() string { return prompt }
	})

	prompt = "v2"
	_, err := loop.Run(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, "v2", conv.Snapshot()[0].Content)
	assert.Equal(t, "v2", mock.Calls()[0][0].Content)
}

func TestRunNonStreamingDemuxesTerminalContent(t *testing.T) {
	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{
		Message: &model.Message{
			Role:    model.RoleAssistant,
			Content: "<think>deliberating</think>\nThe close was 11.5.",
		},
	})

	visible := &recordingSink{}
	reasoning := &recordingSink{}
	loop, conv := newLoop(t, mock, tool.NewRegistry(), func(o *Options) {
		o.Stream = false
		o.VisibleSink = visible
		o.ReasoningSink = reasoning
	})

	out, err := loop.Run(context.Background(), "quote please")
	require.NoError(t, err)
	assert.Equal(t, "The close was 11.5.", out)
	assert.Equal(t, "deliberating", reasoning.String())
	assert.Equal(t, "The close was 11.5.", conv.Snapshot()[2].Content)

	// The sink renders the answer exactly once in non-streaming mode too,
	// so callers must not print the returned text again.
	assert.Equal(t, "The close was 11.5.", visible.String())
}

func TestRunMaxIters(t *testing.T) {
	mock := model.NewMockTransport()
	for i := 0; i < 3; i++ {
		mock.Enqueue(model.MockTurn{
			Message: &model.Message{
				Role:      model.RoleAssistant,
				ToolCalls: []model.ToolCall{{ID: "c", Name: "alpha", Arguments: "{}"}},
			},
		})
	}

	loop, _ := newLoop(t, mock, tool.NewRegistry(echoTool("alpha")), func(o *Options) {
		o.MaxIters = 3
	})

	_, err := loop.Run(context.Background(), "loop forever")
	assert.ErrorContains(t, err, "did not converge")
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})

	mock := model.NewMockTransport()
	mock.Enqueue(model.MockTurn{
		OnDeltasSent: func() { close(started) },
		Block:        true,
	})

	loop, _ := newLoop(t, mock, tool.NewRegistry())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = loop.Run(ctx, "first")
	}()

	<-started
	_, err := loop.Run(context.Background(), "second")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	cancel()
	<-done
}
