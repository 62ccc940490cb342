package models

import (
	"time"
)

// Conversation is a titled, ordered sequence of messages persisted under
// one id. The message slice is append-only; insertion order is significant.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a deep copy. The store hands out clones so callers can
// never mutate the cached record behind its back.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	for i := range cp.Messages {
		files := cp.Messages[i].Metadata.GeneratedFiles
		if len(files) > 0 {
			cp.Messages[i].Metadata.GeneratedFiles = append([]FileOperation(nil), files...)
		}
	}
	return &cp
}

// LastMessage returns the most recent message or nil for an empty conversation.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}
