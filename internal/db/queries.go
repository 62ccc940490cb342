// Package db provides SurrealDB query functions for conversation storage.
package db

import (
	"context"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/models"
)

// conversationRecord is the wire shape of a conversation row. Messages are
// embedded so one UPSERT overwrites the full snapshot.
type conversationRecord struct {
	ID           surrealmodels.RecordID `json:"id"`
	Title        string                 `json:"title"`
	SystemPrompt *string                `json:"system_prompt,omitempty"`
	Messages     []models.Message       `json:"messages"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func (r *conversationRecord) toModel() *models.Conversation {
	c := &models.Conversation{
		ID:        models.MustRecordIDString(r.ID),
		Title:     r.Title,
		Messages:  r.Messages,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.SystemPrompt != nil {
		c.SystemPrompt = *r.SystemPrompt
	}
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	return c
}

// PutConversation writes a full conversation snapshot, creating or
// replacing the record under its id.
func (c *Client) PutConversation(ctx context.Context, conv *models.Conversation) error {
	defer c.recordTiming(metrics.OpDBWrite, time.Now())

	vars := map[string]any{
		"id": conv.ID,
		"data": map[string]any{
			"title":      conv.Title,
			"messages":   conv.Messages,
			"created_at": conv.CreatedAt,
			"updated_at": conv.UpdatedAt,
		},
	}
	if conv.SystemPrompt != "" {
		vars["data"].(map[string]any)["system_prompt"] = conv.SystemPrompt
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("conversation", $id) CONTENT $data
	`, vars)
	return wrapQueryError(err)
}

// GetConversation retrieves a conversation snapshot by id.
// Returns nil if not found.
func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	defer c.recordTiming(metrics.OpDBRead, time.Now())

	results, err := surrealdb.Query[[]conversationRecord](ctx, c.db, `
		SELECT * FROM type::record("conversation", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, wrapQueryError(err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0].toModel(), nil
}

// ListConversations returns all conversation snapshots, most recently
// updated first. Used to hydrate the store cache on startup.
func (c *Client) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	defer c.recordTiming(metrics.OpDBRead, time.Now())

	results, err := surrealdb.Query[[]conversationRecord](ctx, c.db, `
		SELECT * FROM conversation ORDER BY updated_at DESC
	`, nil)
	if err != nil {
		return nil, wrapQueryError(err)
	}

	var out []*models.Conversation
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			out = append(out, (*results)[0].Result[i].toModel())
		}
	}
	return out, nil
}

// DeleteConversation removes a conversation record.
// Returns true if a record was deleted.
func (c *Client) DeleteConversation(ctx context.Context, id string) (bool, error) {
	defer c.recordTiming(metrics.OpDBWrite, time.Now())

	results, err := surrealdb.Query[[]conversationRecord](ctx, c.db, `
		DELETE type::record("conversation", $id) RETURN BEFORE
	`, map[string]any{"id": id})
	if err != nil {
		return false, wrapQueryError(err)
	}

	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}

// ClearConversations removes every conversation record. Testing only.
func (c *Client) ClearConversations(ctx context.Context) error {
	defer c.recordTiming(metrics.OpDBWrite, time.Now())

	_, err := surrealdb.Query[any](ctx, c.db, `DELETE conversation`, nil)
	return wrapQueryError(err)
}

// templateRecord is the wire shape of a template row.
type templateRecord struct {
	ID          surrealmodels.RecordID `json:"id"`
	Name        string                 `json:"name"`
	Description *string                `json:"description,omitempty"`
	Content     string                 `json:"content"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func (r *templateRecord) toModel() *models.Template {
	return &models.Template{
		ID:          models.MustRecordIDString(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Content:     r.Content,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// UpsertTemplate creates or updates a template keyed by its slugified name.
func (c *Client) UpsertTemplate(ctx context.Context, input models.TemplateInput) (*models.Template, error) {
	defer c.recordTiming(metrics.OpDBWrite, time.Now())

	now := time.Now().UTC()
	data := map[string]any{
		"name":       input.Name,
		"content":    input.Content,
		"updated_at": now,
	}
	if input.Description != nil {
		data["description"] = *input.Description
	}

	results, err := surrealdb.Query[[]templateRecord](ctx, c.db, `
		UPSERT type::record("template", $id) MERGE $data
	`, map[string]any{
		"id":   models.Slugify(input.Name),
		"data": data,
	})
	if err != nil {
		return nil, wrapQueryError(err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return (*results)[0].Result[0].toModel(), nil
}

// GetTemplateByName retrieves a template by display name.
// Returns nil if not found.
func (c *Client) GetTemplateByName(ctx context.Context, name string) (*models.Template, error) {
	defer c.recordTiming(metrics.OpDBRead, time.Now())

	results, err := surrealdb.Query[[]templateRecord](ctx, c.db, `
		SELECT * FROM type::record("template", $id)
	`, map[string]any{"id": models.Slugify(name)})
	if err != nil {
		return nil, wrapQueryError(err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0].toModel(), nil
}

// ListTemplates returns all templates ordered by name.
func (c *Client) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	defer c.recordTiming(metrics.OpDBRead, time.Now())

	results, err := surrealdb.Query[[]templateRecord](ctx, c.db, `
		SELECT * FROM template ORDER BY name
	`, nil)
	if err != nil {
		return nil, wrapQueryError(err)
	}

	var out []*models.Template
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			out = append(out, (*results)[0].Result[i].toModel())
		}
	}
	return out, nil
}

// DeleteTemplate removes a template by display name.
// Returns true if a record was deleted.
func (c *Client) DeleteTemplate(ctx context.Context, name string) (bool, error) {
	defer c.recordTiming(metrics.OpDBWrite, time.Now())

	results, err := surrealdb.Query[[]templateRecord](ctx, c.db, `
		DELETE type::record("template", $id) RETURN BEFORE
	`, map[string]any{"id": models.Slugify(name)})
	if err != nil {
		return false, wrapQueryError(err)
	}
	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}
