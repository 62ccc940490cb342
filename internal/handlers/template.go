package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pagewright/pagewright/internal/db"
	"github.com/pagewright/pagewright/internal/fsops"
	"github.com/pagewright/pagewright/internal/models"
)

// TemplateHandler generates files from stored templates. It resolves the
// template context (a named template, or the full catalog when none is
// named), asks the model for the file set, and applies the resulting
// operations to the workspace.
type TemplateHandler struct {
	Deps *Dependencies
}

func NewTemplateHandler(deps *Dependencies) *TemplateHandler {
	return &TemplateHandler{Deps: deps}
}

func (h *TemplateHandler) Name() string { return "template" }

func (h *TemplateHandler) Handle(ctx context.Context, req *Request) (*models.Envelope, error) {
	tctx, err := h.resolveTemplateContext(ctx, req.TemplateContext)
	if err != nil {
		return nil, err
	}

	messages := ensureSystemPrompt(req.Messages, templateSystemPrompt)
	if tctx != "" {
		messages = append(messages, models.Message{
			Role:    models.RoleSystem,
			Content: tctx,
		})
	}
	messages = append(messages, models.Message{
		Role:    models.RoleUser,
		Content: req.UserInput,
	})

	env, err := h.Deps.completeEnvelope(ctx, messages)
	if err != nil {
		return nil, err
	}

	if len(env.FileOperations) > 0 && h.Deps.Files != nil {
		applied := fsops.Apply(h.Deps.Files, env.FileOperations, h.Deps.logger())
		h.Deps.logger().Info("applied file operations", "requested", len(env.FileOperations), "applied", applied)
	}

	env.Intent.IsTemplateRequest = true
	return env, nil
}

// resolveTemplateContext builds the template portion of the prompt. With a
// name it loads that template; an unknown name degrades to the catalog so
// the model can still steer the user. With no name it lists the catalog.
func (h *TemplateHandler) resolveTemplateContext(ctx context.Context, name string) (string, error) {
	if h.Deps.Templates == nil {
		return "", nil
	}

	if name != "" {
		tpl, err := h.Deps.Templates.GetTemplateByName(ctx, name)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return "", fmt.Errorf("load template %q: %w", name, err)
		}
		if tpl != nil {
			return fmt.Sprintf("Active template %q:\n\n%s", tpl.Name, tpl.Content), nil
		}
		h.Deps.logger().Warn("template not found, falling back to catalog", "name", name)
	}

	templates, err := h.Deps.Templates.ListTemplates(ctx)
	if err != nil {
		return "", fmt.Errorf("list templates: %w", err)
	}
	if len(templates) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Available templates:\n")
	for _, t := range templates {
		b.WriteString("- ")
		b.WriteString(t.Name)
		if t.Description != nil && *t.Description != "" {
			b.WriteString(": ")
			b.WriteString(*t.Description)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
