// Package conversation maintains the ordered message history shared
// between the user, the assistant, and tool results, along with a
// simple JSON file store for persistence across sessions.
package conversation

import (
	"sync"

	"github.com/sudheer1135/fin-agent/model"
)

// Conversation is an ordered, mutable message history. Index 0 is
// reserved for the system prompt. All methods are safe for concurrent
// use.
type Conversation struct {
	mu       sync.Mutex
	messages []model.Message
}

// New returns a conversation seeded with the given system prompt.
func New(systemPrompt string) *Conversation {
	return &Conversation{
		messages: []model.Message{model.SystemMessage(systemPrompt)},
	}
}

// AppendUser appends a user message.
func (c *Conversation) AppendUser(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, model.UserMessage(content))
}

// AppendAssistant appends an assistant message as produced by the model,
// including any tool calls it carries.
func (c *Conversation) AppendAssistant(msg model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Role = model.RoleAssistant
	c.messages = append(c.messages, msg)
}

// AppendToolResults appends tool result messages in the order given.
func (c *Conversation) AppendToolResults(results []model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, results...)
}

// RefreshSystemPrompt replaces the system message at index 0. If the
// history does not start with a system message, one is inserted.
func (c *Conversation) RefreshSystemPrompt(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.messages) > 0 && c.messages[0].Role == model.RoleSystem {
		c.messages[0].Content = content
		return
	}

	c.messages = append([]model.Message{model.SystemMessage(content)}, c.messages...)
}

// Snapshot returns a copy of the current history. The caller may hold
// or mutate the returned slice freely.
func (c *Conversation) Snapshot() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Message, len(c.messages))
	copy(out, c.messages)

	return out
}

// Reset discards everything except a fresh system prompt.
func (c *Conversation) Reset(systemPrompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = []model.Message{model.SystemMessage(systemPrompt)}
}

// Len returns the number of messages including the system prompt.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.messages)
}
