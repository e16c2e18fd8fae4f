// Package agent runs the conversation loop: send history to the model,
// stream the reply, dispatch any tool calls, and repeat until the model
// answers in plain text.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sudheer1135/fin-agent/conversation"
	"github.com/sudheer1135/fin-agent/logging"
	"github.com/sudheer1135/fin-agent/model"
	"github.com/sudheer1135/fin-agent/stream"
	"github.com/sudheer1135/fin-agent/tool"
)

// TransportFactory builds a fresh transport from current settings. The loop
// calls it after a reconfigure tool runs so the next model call uses the new
// provider.
type TransportFactory func() (model.Transport, error)

// Options configures a Loop.
type Options struct {
	// Stream requests incremental output from the transport.
	Stream bool
	// MaxIters bounds the number of model calls per Run, guarding against
	// tool call cycles that never converge.
	MaxIters int
	// SynthesizeFinal controls recovery when a stream ends without a
	// terminal message: when true the accumulated visible text becomes the
	// assistant message, when false Run fails.
	SynthesizeFinal bool
	// SystemPrompt, when set, is evaluated at the start of every Run and
	// installed as the system message, so external context such as the
	// investor profile stays current.
	SystemPrompt func() string
	// ReconfigureTool names the tool whose successful completion triggers a
	// transport rebuild. Empty disables the behavior.
	ReconfigureTool string
	// TransportFactory rebuilds the transport after reconfiguration.
	TransportFactory TransportFactory
	// VisibleSink receives answer text as it streams.
	VisibleSink Sink
	// ReasoningSink receives hidden reasoning text as it streams. Reasoning
	// is display-only and never enters the conversation history.
	ReasoningSink Sink
	// Logger receives loop diagnostics.
	Logger logging.Logger
}

// Loop drives one agent over a conversation and a tool registry.
type Loop struct {
	transport model.Transport
	registry  *tool.Registry
	conv      *conversation.Conversation
	opts      Options
	running   atomic.Bool
}

// New creates a loop. The conversation is shared with the caller, who may
// persist it between runs.
func New(transport model.Transport, registry *tool.Registry, conv *conversation.Conversation, optFns ...func(o *Options)) *Loop {
	opts := Options{
		Stream:          true,
		MaxIters:        16,
		SynthesizeFinal: true,
		VisibleSink:     NopSink{},
		ReasoningSink:   NopSink{},
		Logger:          logging.NewNoOpLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Loop{
		transport: transport,
		registry:  registry,
		conv:      conv,
		opts:      opts,
	}
}

// ErrAlreadyRunning is returned when Run is called while another Run is in
// flight on the same loop.
var ErrAlreadyRunning = errors.New("agent run already in progress")

// Run appends input as a user message and drives the model until it
// produces a plain text answer, executing tool calls along the way. It
// returns the visible answer text. Cancelling ctx stops the run, commits
// whatever visible text had streamed so far to the history, and returns an
// empty result with a nil error.
func (l *Loop) Run(ctx context.Context, input string) (string, error) {
	if !l.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRunning
	}
	defer l.running.Store(false)

	runID := uuid.NewString()
	l.opts.Logger.Debug("run started", "run_id", runID, "model", l.transport.Info().Name)

	if l.opts.SystemPrompt != nil {
		l.conv.RefreshSystemPrompt(l.opts.SystemPrompt())
	}

	l.conv.AppendUser(input)

	for iter := 0; iter < l.opts.MaxIters; iter++ {
		visible, msg, err := l.awaitResponse(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// Interrupted. Keep the partial answer so the model sees
				// what the user saw, but report an empty result: the sink
				// already rendered the text and the turn did not complete.
				if visible != "" {
					l.conv.AppendAssistant(model.Message{Content: visible})
				}

				l.opts.Logger.Info("run interrupted", "run_id", runID)

				return "", nil
			}

			l.opts.Logger.Error("model call failed", "run_id", runID, "error", err)

			return "", err
		}

		l.conv.AppendAssistant(msg)

		if !msg.HasToolCalls() {
			l.opts.Logger.Debug("run finished", "run_id", runID, "iters", iter+1)

			return visible, nil
		}

		results, reconfigured := l.dispatch(ctx, msg.ToolCalls)
		l.conv.AppendToolResults(results)

		if reconfigured {
			l.rebuildTransport(runID)
		}
	}

	return "", fmt.Errorf("tool loop did not converge after %d model calls", l.opts.MaxIters)
}

// awaitResponse performs one model call and consumes the stream. It returns
// the visible text and the assembled assistant message. The message content
// is the demultiplexed visible text only, so hidden reasoning is never
// replayed to the model.
func (l *Loop) awaitResponse(ctx context.Context) (string, model.Message, error) {
	chunks, errCh := l.transport.Chat(ctx, model.Request{
		Messages: l.conv.Snapshot(),
		Tools:    l.registry.Definitions(),
		Stream:   l.opts.Stream,
	})

	demux := stream.NewDemux()

	var visible strings.Builder

	var final *model.Message

	sawPartial := false

	emit := func(spans []stream.Span) {
		for _, span := range spans {
			switch span.Kind {
			case stream.SpanVisible:
				visible.WriteString(span.Text)
				l.opts.VisibleSink.Write(span.Text)
			case stream.SpanReasoning:
				l.opts.ReasoningSink.Write(span.Text)
			}
		}
	}

	finishSinks := func() {
		l.opts.VisibleSink.Flush()
		l.opts.ReasoningSink.Flush()
	}

	for chunks != nil || errCh != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil

				continue
			}

			if chunk.Partial {
				sawPartial = true
				emit(demux.Feed(chunk.Delta))

				continue
			}

			if chunk.Message != nil {
				final = chunk.Message
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil

				continue
			}

			emit(demux.Flush())
			finishSinks()

			return visible.String(), model.Message{}, err
		case <-ctx.Done():
			emit(demux.Flush())
			finishSinks()

			return visible.String(), model.Message{}, ctx.Err()
		}
	}

	// Non-streaming calls deliver the whole reply in the terminal message,
	// so it goes through the same demultiplexer.
	if !sawPartial && final != nil && final.Content != "" {
		emit(demux.Feed(final.Content))
	}

	emit(demux.Flush())
	finishSinks()

	if final == nil {
		if !l.opts.SynthesizeFinal {
			return "", model.Message{}, errors.New("stream ended without a final message")
		}

		final = &model.Message{Role: model.RoleAssistant}
	}

	final.Content = visible.String()

	return visible.String(), *final, nil
}

func (l *Loop) rebuildTransport(runID string) {
	if l.opts.TransportFactory == nil {
		return
	}

	t, err := l.opts.TransportFactory()
	if err != nil {
		l.opts.Logger.Warn("transport rebuild failed, keeping current model",
			"run_id", runID, "error", err)

		return
	}

	l.transport = t
	l.opts.Logger.Info("transport rebuilt", "run_id", runID, "model", t.Info().Name)
}
