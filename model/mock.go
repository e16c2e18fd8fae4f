package model

import (
	"context"
	"fmt"
	"sync"
)

// MockTurn scripts one Chat call of a MockTransport.
type MockTurn struct {
	Deltas  []string // partial content chunks emitted before the terminal chunk
	Message *Message // terminal assembled message; nil means no terminal chunk
	Err     error    // transport-level failure emitted instead of chunks

	// OnDeltasSent is invoked after the last delta has been received by the
	// consumer. Tests use it to trigger cancellation at a deterministic point.
	OnDeltasSent func()

	// Block keeps the call pending after the deltas until ctx is cancelled,
	// simulating a stalled provider. The ctx error is then reported.
	Block bool
}

// MockTransport is a scripted in-memory Transport useful for tests. Each Chat
// call consumes the next queued turn and records the message snapshot it was
// given. Chunks are delivered over unbuffered channels so tests can reason
// about exactly when the consumer has seen them.
type MockTransport struct {
	mu    sync.Mutex
	turns []MockTurn
	calls [][]Message
}

// NewMockTransport constructs an empty scripted transport.
func NewMockTransport() *MockTransport { return &MockTransport{} }

// Enqueue appends a scripted turn.
func (m *MockTransport) Enqueue(t MockTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
}

// Calls returns the message snapshots passed to each Chat invocation.
func (m *MockTransport) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// Chat implements Transport by replaying the next scripted turn.
func (m *MockTransport) Chat(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk)
	errCh := make(chan error, 1)

	m.mu.Lock()
	snapshot := make([]Message, len(req.Messages))
	copy(snapshot, req.Messages)
	m.calls = append(m.calls, snapshot)

	var turn MockTurn
	if len(m.turns) == 0 {
		turn = MockTurn{Err: fmt.Errorf("mock transport: no scripted turn for call %d", len(m.calls))}
	} else {
		turn = m.turns[0]
		m.turns = m.turns[1:]
	}
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errCh)

		if turn.Err != nil {
			errCh <- turn.Err
			return
		}
		for _, delta := range turn.Deltas {
			select {
			case out <- Chunk{Partial: true, Delta: delta}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if turn.OnDeltasSent != nil {
			turn.OnDeltasSent()
		}
		if turn.Block {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		if turn.Message == nil {
			return // sequence ends without a terminal chunk
		}
		msg := *turn.Message
		finish := "stop"
		if msg.HasToolCalls() {
			finish = "tool_calls"
		}
		select {
		case out <- Chunk{Message: &msg, FinishReason: finish}:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}

// Info implements Transport.
func (m *MockTransport) Info() Info {
	return Info{Name: "mock", Provider: "mock", SupportsTools: true}
}
