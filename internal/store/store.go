// Package store owns durable, resumable conversation state. It keeps a
// write-through in-memory cache over the durable backend and is the only
// writer of that cache.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagewright/pagewright/internal/models"
)

// Sentinel errors. Check with errors.Is.
var (
	// ErrNotFound indicates an operation on an unknown conversation id.
	ErrNotFound = errors.New("conversation not found")

	// ErrDurableIO indicates the durable write or read failed. On writes
	// the in-memory state is retained, so the caller may retry without
	// risking duplicate messages.
	ErrDurableIO = errors.New("durable storage error")
)

// Backend is the durable storage collaborator: whole conversation
// snapshots keyed by id. *db.Client satisfies this.
type Backend interface {
	PutConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) (bool, error)
	ClearConversations(ctx context.Context) error
}

// Store is the conversation store. All exported methods are safe for
// concurrent use; the cache is mutated only here, never by callers.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu        sync.Mutex
	cache     map[string]*models.Conversation
	current   string // "" means no current conversation
	hydrated  bool
	hydrating chan struct{} // non-nil while hydration is in flight
}

// New creates a store over the given backend. The cache hydrates lazily
// on first use.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		cache:   make(map[string]*models.Conversation),
	}
}

// ensureHydrated loads all persisted conversations into the cache exactly
// once. Concurrent callers wait for the in-flight hydration instead of
// observing a half-empty cache and reporting false NotFounds.
func (s *Store) ensureHydrated(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.hydrated {
			s.mu.Unlock()
			return nil
		}
		if s.hydrating != nil {
			ch := s.hydrating
			s.mu.Unlock()
			select {
			case <-ch:
				// Re-check: the attempt may have failed
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		ch := make(chan struct{})
		s.hydrating = ch
		s.mu.Unlock()

		convs, err := s.backend.ListConversations(ctx)

		s.mu.Lock()
		s.hydrating = nil
		if err == nil {
			for _, conv := range convs {
				s.cache[conv.ID] = conv
			}
			s.hydrated = true
			s.logger.Info("conversation cache hydrated", "count", len(convs))
		}
		s.mu.Unlock()
		close(ch)

		if err != nil {
			return fmt.Errorf("%w: hydrate: %v", ErrDurableIO, err)
		}
		return nil
	}
}

// CreateConversation allocates a fresh id, persists the new conversation
// (optionally seeded with a system-prompt message) and makes it current
// if no conversation was current yet.
func (s *Store) CreateConversation(ctx context.Context, title, systemPrompt string) (*models.Conversation, error) {
	if err := s.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:           uuid.New().String(),
		Title:        title,
		SystemPrompt: systemPrompt,
		Messages:     []models.Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if systemPrompt != "" {
		conv.Messages = append(conv.Messages, models.Message{
			ID:       uuid.New().String(),
			Role:     models.RoleSystem,
			Content:  systemPrompt,
			Metadata: models.MessageMetadata{Timestamp: now},
		})
	}

	if err := s.backend.PutConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrDurableIO, conv.ID, err)
	}

	s.mu.Lock()
	s.cache[conv.ID] = conv
	if s.current == "" {
		s.current = conv.ID
	}
	s.mu.Unlock()

	s.logger.Info("conversation created", "id", conv.ID, "title", title)
	return conv.Clone(), nil
}

// AddMessage appends a message and writes the updated snapshot through to
// durable storage. Appending is idempotent by message id: retrying after
// a durable failure re-persists without duplicating the message. On a
// durable failure the in-memory append is retained and the message id is
// returned alongside the error.
func (s *Store) AddMessage(ctx context.Context, conversationID string, msg models.Message) (string, error) {
	if err := s.ensureHydrated(ctx); err != nil {
		return "", err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Metadata.Timestamp.IsZero() {
		msg.Metadata.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	conv, ok := s.cache[conversationID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNotFound, conversationID)
	}

	if !hasMessage(conv, msg.ID) {
		conv.Messages = append(conv.Messages, msg)
		conv.UpdatedAt = time.Now().UTC()
	}
	snapshot := conv.Clone()
	s.mu.Unlock()

	if err := s.backend.PutConversation(ctx, snapshot); err != nil {
		s.logger.Warn("durable write failed, message retained in memory",
			"conversation", conversationID, "message", msg.ID, "error", err)
		return msg.ID, fmt.Errorf("%w: add message: %v", ErrDurableIO, err)
	}

	return msg.ID, nil
}

func hasMessage(conv *models.Conversation, id string) bool {
	for i := range conv.Messages {
		if conv.Messages[i].ID == id {
			return true
		}
	}
	return false
}

// GetConversation returns a deep copy of the conversation.
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if err := s.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.cache[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return conv.Clone(), nil
}

// ListConversations returns copies of all conversations, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	if err := s.ensureHydrated(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Conversation, 0, len(s.cache))
	for _, conv := range s.cache {
		out = append(out, conv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// DeleteConversation removes the conversation from cache and durable
// storage. If it was current, the current pointer moves to the most
// recently updated remaining conversation, or clears.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if err := s.ensureHydrated(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.cache[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.cache, id)
	if s.current == id {
		s.current = s.mostRecentLocked()
	}
	repointed := s.current
	s.mu.Unlock()

	if _, err := s.backend.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrDurableIO, id, err)
	}

	s.logger.Info("conversation deleted", "id", id, "current", repointed)
	return nil
}

// ClearConversations deletes every conversation and resets the current
// pointer.
func (s *Store) ClearConversations(ctx context.Context) error {
	if err := s.ensureHydrated(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = make(map[string]*models.Conversation)
	s.current = ""
	s.mu.Unlock()

	if err := s.backend.ClearConversations(ctx); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrDurableIO, err)
	}

	s.logger.Info("all conversations deleted")
	return nil
}

// mostRecentLocked returns the id of the most recently updated cached
// conversation, or "". Caller must hold the mutex.
func (s *Store) mostRecentLocked() string {
	best := ""
	var bestTime time.Time
	for id, conv := range s.cache {
		if best == "" || conv.UpdatedAt.After(bestTime) {
			best = id
			bestTime = conv.UpdatedAt
		}
	}
	return best
}

// SwitchConversation points the current pointer at id. Existence is
// validated against the latest cache state, not a stale snapshot, so a
// switch cannot race a concurrent delete into a dangling pointer.
func (s *Store) SwitchConversation(ctx context.Context, id string) error {
	if err := s.ensureHydrated(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.current = id
	return nil
}

// CurrentID returns the current conversation id, or "" if none is set.
func (s *Store) CurrentID(ctx context.Context) (string, error) {
	if err := s.ensureHydrated(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}
