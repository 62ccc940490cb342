// Package handlers provides the per-intent strategies that turn a message
// list into a response envelope via one model call.
package handlers

import (
	"context"
	"log/slog"

	"github.com/pagewright/pagewright/internal/fsops"
	"github.com/pagewright/pagewright/internal/llm"
	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/models"
)

// TemplateSource resolves template context for the template handler.
// *db.Client satisfies this.
type TemplateSource interface {
	GetTemplateByName(ctx context.Context, name string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]*models.Template, error)
}

// Dependencies holds shared services for handlers.
type Dependencies struct {
	Gateway   llm.Gateway
	Templates TemplateSource
	Files     fsops.FileSystem
	Logger    *slog.Logger
	Metrics   *metrics.Collector

	// ParseAttempts is the number of normal envelope-parse attempts before
	// the single strict-prompt attempt.
	ParseAttempts int
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Request is the working input for one handler invocation.
type Request struct {
	// Messages is the working list: system prompt plus recent history,
	// already filtered of prior error turns.
	Messages []models.Message

	// UserInput is the text of the current user turn.
	UserInput string

	// TemplateContext optionally names the active template.
	TemplateContext string
}

// Handler turns a request into an envelope via one model call. A gateway
// failure is not retried here; it propagates to the router's handle step.
type Handler interface {
	Name() string
	Handle(ctx context.Context, req *Request) (*models.Envelope, error)
}
