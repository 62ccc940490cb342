package handlers

import (
	"context"

	"github.com/pagewright/pagewright/internal/models"
)

// ChatHandler answers general conversation turns. It serves generalChat,
// documentAnalysis and imageAnalysis intents, which all reduce to a plain
// model call with the conversation history.
type ChatHandler struct {
	Deps *Dependencies
}

func NewChatHandler(deps *Dependencies) *ChatHandler {
	return &ChatHandler{Deps: deps}
}

func (h *ChatHandler) Name() string { return "chat" }

func (h *ChatHandler) Handle(ctx context.Context, req *Request) (*models.Envelope, error) {
	messages := ensureSystemPrompt(req.Messages, chatSystemPrompt)
	messages = append(messages, models.Message{
		Role:    models.RoleUser,
		Content: req.UserInput,
	})

	env, err := h.Deps.completeEnvelope(ctx, messages)
	if err != nil {
		return nil, err
	}

	// A chat turn that declares no intent is an info request.
	if !env.Intent.IsInfoRequest && !env.Intent.IsCodeRequest && !env.Intent.IsTemplateRequest {
		env.Intent.IsInfoRequest = true
	}
	return env, nil
}

// ensureSystemPrompt prepends fallback as a system message when the
// working list carries none of its own.
func ensureSystemPrompt(messages []models.Message, fallback string) []models.Message {
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			return messages
		}
	}
	out := make([]models.Message, 0, len(messages)+1)
	out = append(out, models.Message{Role: models.RoleSystem, Content: fallback})
	return append(out, messages...)
}
