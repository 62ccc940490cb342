package server

import "github.com/pagewright/pagewright/internal/models"

// Frame types exchanged over the websocket.
const (
	frameSubmit = "submit"
	frameResult = "result"
	frameError  = "error"
)

// submitFrame is one user turn sent by the client. ID is echoed back so
// the client can correlate concurrent submits.
type submitFrame struct {
	Type           string `json:"type"`
	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Text           string `json:"text"`
}

// resultFrame is the server's answer to one submit.
type resultFrame struct {
	Type           string                 `json:"type"`
	ID             string                 `json:"id,omitempty"`
	ConversationID string                 `json:"conversationId,omitempty"`
	Text           string                 `json:"text,omitempty"`
	FileOperations []models.FileOperation `json:"fileOperations,omitempty"`
	StartPreview   bool                   `json:"startPreview,omitempty"`
	IsError        bool                   `json:"isError,omitempty"`
	Error          string                 `json:"error,omitempty"`
}
