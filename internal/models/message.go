// Package models defines data structures for the pagewright conversation core.
package models

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FileAction is the operation a FileOperation applies to its path.
type FileAction string

const (
	FileActionCreate FileAction = "create"
	FileActionUpdate FileAction = "update"
	FileActionDelete FileAction = "delete"
)

// Valid reports whether the action is one of the known values.
func (a FileAction) Valid() bool {
	switch a {
	case FileActionCreate, FileActionUpdate, FileActionDelete:
		return true
	}
	return false
}

// FileOperation describes a single file the assistant wants written.
type FileOperation struct {
	Path     string     `json:"path"`
	Content  string     `json:"content"`
	Action   FileAction `json:"action"`
	Language string     `json:"language,omitempty"`
}

// MessageMetadata carries per-message annotations.
type MessageMetadata struct {
	Timestamp      time.Time       `json:"timestamp"`
	IsError        bool            `json:"is_error,omitempty"`
	GeneratedFiles []FileOperation `json:"generated_files,omitempty"`
}

// Message is a single chat message. Messages are immutable once created;
// corrections append new messages rather than editing prior ones.
type Message struct {
	ID       string          `json:"id"`
	Role     Role            `json:"role"`
	Content  string          `json:"content"`
	Metadata MessageMetadata `json:"metadata"`
}
