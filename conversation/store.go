package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sudheer1135/fin-agent/model"
)

// Store persists a conversation as a JSON file on disk.
type Store struct {
	// Path is the JSON file location.
	Path string
}

// NewStore returns a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Save writes the conversation history to disk, creating parent
// directories as needed.
func (s *Store) Save(c *Conversation) error {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create conversation dir: %w", err)
	}

	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write conversation: %w", err)
	}

	return nil
}

// Load reads a conversation from disk and installs the given system
// prompt at index 0, so persisted histories always carry the current
// prompt rather than the one in effect when they were written. A
// missing file yields a fresh conversation.
func (s *Store) Load(systemPrompt string) (*Conversation, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(systemPrompt), nil
		}

		return nil, fmt.Errorf("read conversation: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}

	c := &Conversation{messages: messages}
	c.RefreshSystemPrompt(systemPrompt)

	return c, nil
}

// Clear removes the persisted history file. Clearing a store that has
// nothing saved is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove conversation: %w", err)
	}

	return nil
}
