package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagewright/pagewright/internal/models"
)

// fakeBackend is an in-memory durable backend with failure injection.
type fakeBackend struct {
	mu      sync.Mutex
	records map[string]*models.Conversation

	failPuts  bool
	failList  bool
	listDelay time.Duration
	listCalls int
	putCalls  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{records: make(map[string]*models.Conversation)}
}

func (f *fakeBackend) PutConversation(ctx context.Context, conv *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.failPuts {
		return errors.New("disk on fire")
	}
	f.records[conv.ID] = conv.Clone()
	return nil
}

func (f *fakeBackend) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return conv.Clone(), nil
}

func (f *fakeBackend) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	f.mu.Lock()
	f.listCalls++
	fail := f.failList
	delay := f.listDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, errors.New("connection refused")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Conversation
	for _, conv := range f.records {
		out = append(out, conv.Clone())
	}
	return out, nil
}

func (f *fakeBackend) DeleteConversation(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[id]
	delete(f.records, id)
	return ok, nil
}

func (f *fakeBackend) ClearConversations(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = make(map[string]*models.Conversation)
	return nil
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend(), nil)

	conv, err := s.CreateConversation(ctx, "Demo", "")
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	assert.Equal(t, "Demo", conv.Title)
	assert.Empty(t, conv.Messages)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	// First conversation becomes current
	current, err := s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, current)
}

func TestCreateSeedsSystemPrompt(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend(), nil)

	conv, err := s.CreateConversation(ctx, "Seeded", "You build web pages.")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, models.RoleSystem, conv.Messages[0].Role)
	assert.Equal(t, "You build web pages.", conv.Messages[0].Content)
}

func TestAddMessageAppendsAndPersists(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := New(backend, nil)

	conv, err := s.CreateConversation(ctx, "Demo", "")
	require.NoError(t, err)

	id1, err := s.AddMessage(ctx, conv.ID, models.Message{Role: models.RoleUser, Content: "hello"})
	require.NoError(t, err)
	id2, err := s.AddMessage(ctx, conv.ID, models.Message{Role: models.RoleAssistant, Content: "hi there"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.Equal(t, "hi there", got.Messages[1].Content)

	// Write-through: the backend holds the full snapshot
	persisted, err := backend.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Len(t, persisted.Messages, 2)
}

func TestAddMessageUnknownConversation(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend(), nil)

	_, err := s.AddMessage(ctx, "nope", models.Message{Role: models.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddMessageDurableFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := New(backend, nil)

	conv, err := s.CreateConversation(ctx, "Demo", "")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.failPuts = true
	backend.mu.Unlock()

	msgID, err := s.AddMessage(ctx, conv.ID, models.Message{Role: models.RoleUser, Content: "hello"})
	require.ErrorIs(t, err, ErrDurableIO)
	require.NotEmpty(t, msgID)

	// Visible locally despite the failed durable write
	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	// Retry with the same id succeeds and does not duplicate
	backend.mu.Lock()
	backend.failPuts = false
	backend.mu.Unlock()

	retryID, err := s.AddMessage(ctx, conv.ID, models.Message{ID: msgID, Role: models.RoleUser, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, msgID, retryID)

	got, err = s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	persisted, err := backend.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Len(t, persisted.Messages, 1)
}

func TestDeleteRepointsCurrent(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend(), nil)

	only, err := s.CreateConversation(ctx, "Only", "")
	require.NoError(t, err)

	// Deleting the only conversation clears the current pointer
	require.NoError(t, s.DeleteConversation(ctx, only.ID))
	current, err := s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	// With several conversations, delete repoints to a surviving one
	a, err := s.CreateConversation(ctx, "A", "")
	require.NoError(t, err)
	b, err := s.CreateConversation(ctx, "B", "")
	require.NoError(t, err)

	require.NoError(t, s.SwitchConversation(ctx, a.ID))
	require.NoError(t, s.DeleteConversation(ctx, a.ID))

	current, err = s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, current)
}

func TestDeleteUnknownConversation(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend(), nil)
	assert.ErrorIs(t, s.DeleteConversation(ctx, "ghost"), ErrNotFound)
}

func TestSwitchValidatesAgainstLatestCache(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend(), nil)

	a, err := s.CreateConversation(ctx, "A", "")
	require.NoError(t, err)
	b, err := s.CreateConversation(ctx, "B", "")
	require.NoError(t, err)

	require.NoError(t, s.SwitchConversation(ctx, b.ID))
	require.NoError(t, s.DeleteConversation(ctx, a.ID))

	// Switching to the deleted conversation is rejected
	assert.ErrorIs(t, s.SwitchConversation(ctx, a.ID), ErrNotFound)

	current, err := s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, current)
}

func TestHydrationLoadsPersistedConversations(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	now := time.Now().UTC()
	backend.records["persisted"] = &models.Conversation{
		ID:    "persisted",
		Title: "From last run",
		Messages: []models.Message{
			{ID: "m1", Role: models.RoleUser, Content: "hello", Metadata: models.MessageMetadata{Timestamp: now}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s := New(backend, nil)
	got, err := s.GetConversation(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "From last run", got.Title)
	assert.Len(t, got.Messages, 1)
}

func TestHydrationRunsOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.listDelay = 20 * time.Millisecond

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("conv-%d", i)
		backend.records[id] = &models.Conversation{ID: id, Title: id, UpdatedAt: time.Now().UTC()}
	}

	s := New(backend, nil)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = s.GetConversation(ctx, fmt.Sprintf("conv-%d", n%5))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	backend.mu.Lock()
	calls := backend.listCalls
	backend.mu.Unlock()
	assert.Equal(t, 1, calls, "hydration should run exactly once")
}

func TestHydrationFailureIsReportedAndRetried(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.failList = true
	backend.records["conv"] = &models.Conversation{ID: "conv", Title: "t"}

	s := New(backend, nil)

	_, err := s.GetConversation(ctx, "conv")
	require.ErrorIs(t, err, ErrDurableIO)

	backend.mu.Lock()
	backend.failList = false
	backend.mu.Unlock()

	got, err := s.GetConversation(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, "conv", got.ID)
}

func TestClearConversationsResetsEverything(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := New(backend, nil)

	first, err := s.CreateConversation(ctx, "one", "")
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, "two", "")
	require.NoError(t, err)

	require.NoError(t, s.ClearConversations(ctx))

	current, err := s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	all, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = s.GetConversation(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend(), nil)

	conv, err := s.CreateConversation(ctx, "Demo", "")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, conv.ID, models.Message{Role: models.RoleUser, Content: "original"})
	require.NoError(t, err)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	got.Messages[0].Content = "mutated"

	again, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Content)
}
