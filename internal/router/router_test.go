package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagewright/pagewright/internal/handlers"
	"github.com/pagewright/pagewright/internal/llm"
	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/models"
	"github.com/pagewright/pagewright/internal/store"
)

// memBackend is an in-memory durable backend for router tests.
type memBackend struct {
	mu    sync.Mutex
	convs map[string]*models.Conversation
}

func newMemBackend() *memBackend {
	return &memBackend{convs: make(map[string]*models.Conversation)}
}

func (b *memBackend) PutConversation(_ context.Context, conv *models.Conversation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.convs[conv.ID] = conv.Clone()
	return nil
}

func (b *memBackend) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.convs[id]; ok {
		return c.Clone(), nil
	}
	return nil, nil
}

func (b *memBackend) ListConversations(_ context.Context) ([]*models.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.Conversation, 0, len(b.convs))
	for _, c := range b.convs {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (b *memBackend) DeleteConversation(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.convs[id]; !ok {
		return false, nil
	}
	delete(b.convs, id)
	return true, nil
}

func (b *memBackend) ClearConversations(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.convs = make(map[string]*models.Conversation)
	return nil
}

// stubGateway answers classification and envelope calls separately,
// telling them apart by the schema hint.
type stubGateway struct {
	mu            sync.Mutex
	classifyReply string
	classifyErr   error
	envelopeReply string
	envelopeErr   error
	envelopeFn    func(messages []models.Message) (string, error)
	classifyCalls int
	envelopeCalls int
}

func (g *stubGateway) Invoke(_ context.Context, messages []models.Message, opts *llm.InvokeOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if opts != nil && strings.Contains(opts.SchemaHint, `"kind"`) {
		g.classifyCalls++
		return g.classifyReply, g.classifyErr
	}
	g.envelopeCalls++
	if g.envelopeFn != nil {
		return g.envelopeFn(messages)
	}
	return g.envelopeReply, g.envelopeErr
}

const chatClassification = `{"kind": "generalChat", "confidence": 0.9, "explanation": "small talk"}`

const infoEnvelope = `{
	"intent": {"isInfoRequest": true, "isCodeRequest": false, "isTemplateRequest": false},
	"fileOperations": [],
	"preview": {"shouldStartPreview": false},
	"response": {"text": "hi there"}
}`

type testRig struct {
	router    *Router
	store     *store.Store
	gateway   *stubGateway
	collector *metrics.Collector
}

func newTestRig(gw *stubGateway) *testRig {
	st := store.New(newMemBackend(), nil)
	collector := metrics.NewCollector()
	deps := &handlers.Dependencies{Gateway: gw, Metrics: collector, ParseAttempts: 2}
	r := New(st, gw, handlers.NewChatHandler(deps), handlers.NewTemplateHandler(deps), Options{
		ParseAttempts: 2,
		Metrics:       collector,
	})
	return &testRig{router: r, store: st, gateway: gw, collector: collector}
}

func TestSubmitHappyPath(t *testing.T) {
	rig := newTestRig(&stubGateway{classifyReply: chatClassification, envelopeReply: infoEnvelope})
	ctx := context.Background()

	conv, err := rig.store.CreateConversation(ctx, "Demo", "")
	require.NoError(t, err)

	res, err := rig.router.Submit(ctx, conv.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", res.Text)
	assert.Empty(t, res.FileOperations)
	assert.False(t, res.IsError)
	assert.Equal(t, models.IntentGeneralChat, res.Classification.Kind)

	got, err := rig.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, models.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "hi there", got.Messages[1].Content)
}

func TestSubmitFencedEnvelopeRecovered(t *testing.T) {
	fenced := "```json\n" + infoEnvelope + "\n```"
	rig := newTestRig(&stubGateway{classifyReply: chatClassification, envelopeReply: fenced})
	ctx := context.Background()

	res, err := rig.router.Submit(ctx, "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", res.Text)
	assert.Equal(t, 1, rig.gateway.envelopeCalls)
}

func TestSubmitGarbageFallsBackToDefaultEnvelope(t *testing.T) {
	rig := newTestRig(&stubGateway{classifyReply: "not json at all", envelopeReply: "not json at all"})
	ctx := context.Background()

	res, err := rig.router.Submit(ctx, "", "hello")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultEnvelopeText, res.Text)
	assert.Empty(t, res.FileOperations)
	assert.False(t, res.IsError)
	assert.Equal(t, models.IntentGeneralChat, res.Classification.Kind)

	snap := rig.collector.Snapshot()
	assert.Equal(t, int64(1), snap.FailOpenClassify)
	assert.Equal(t, int64(1), snap.DefaultEnvelopes)
}

func TestSubmitEmptyIDCreatesConversation(t *testing.T) {
	rig := newTestRig(&stubGateway{classifyReply: chatClassification, envelopeReply: infoEnvelope})
	ctx := context.Background()

	res, err := rig.router.Submit(ctx, "", "set up a pricing page for me please, with three tiers")
	require.NoError(t, err)
	require.NotEmpty(t, res.ConversationID)

	got, err := rig.store.GetConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
	assert.LessOrEqual(t, len(got.Title), 55)
}

func TestSubmitAfterDeleteOfOnlyConversation(t *testing.T) {
	rig := newTestRig(&stubGateway{classifyReply: chatClassification, envelopeReply: infoEnvelope})
	ctx := context.Background()

	res, err := rig.router.Submit(ctx, "", "hello")
	require.NoError(t, err)

	require.NoError(t, rig.store.DeleteConversation(ctx, res.ConversationID))
	current, err := rig.store.CurrentID(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	res2, err := rig.router.Submit(ctx, "", "x")
	require.NoError(t, err)
	assert.NotEqual(t, res.ConversationID, res2.ConversationID)
}

func TestSubmitClassifyGatewayErrorFailsOpen(t *testing.T) {
	rig := newTestRig(&stubGateway{classifyErr: errors.New("provider down"), envelopeReply: infoEnvelope})
	ctx := context.Background()

	res, err := rig.router.Submit(ctx, "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", res.Text)
	assert.Equal(t, models.IntentGeneralChat, res.Classification.Kind)
	assert.Equal(t, int64(1), rig.collector.Snapshot().FailOpenClassify)
}

func TestSubmitHandlerErrorCommitsSyntheticMessage(t *testing.T) {
	boom := errors.New("provider down")
	rig := newTestRig(&stubGateway{classifyReply: chatClassification, envelopeErr: boom})
	ctx := context.Background()

	conv, err := rig.store.CreateConversation(ctx, "Demo", "")
	require.NoError(t, err)

	res, err := rig.router.Submit(ctx, conv.ID, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "error")

	got, gerr := rig.store.GetConversation(ctx, conv.ID)
	require.NoError(t, gerr)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, models.RoleAssistant, got.Messages[0].Role)
	assert.True(t, got.Messages[0].Metadata.IsError)
}

func TestSubmitErrorTurnsExcludedFromPrompt(t *testing.T) {
	boom := errors.New("provider down")
	gw := &stubGateway{classifyReply: chatClassification, envelopeErr: boom}
	rig := newTestRig(gw)
	ctx := context.Background()

	res, err := rig.router.Submit(ctx, "", "hello")
	require.Error(t, err)

	var sawError bool
	gw.mu.Lock()
	gw.envelopeErr = nil
	gw.envelopeFn = func(messages []models.Message) (string, error) {
		for _, m := range messages {
			if m.Metadata.IsError {
				sawError = true
			}
		}
		return infoEnvelope, nil
	}
	gw.mu.Unlock()

	_, err = rig.router.Submit(ctx, res.ConversationID, "try again")
	require.NoError(t, err)
	assert.False(t, sawError, "prior error turn must not reach the prompt")
}

func TestSubmitUnknownConversation(t *testing.T) {
	rig := newTestRig(&stubGateway{classifyReply: chatClassification, envelopeReply: infoEnvelope})

	_, err := rig.router.Submit(context.Background(), "no-such-id", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitTemplateIntentDispatchesTemplateHandler(t *testing.T) {
	templateClassification := `{"kind": "templateCreation", "confidence": 0.95, "explanation": "asked for a template build"}`
	withFiles := `{
		"intent": {"isInfoRequest": false, "isCodeRequest": true, "isTemplateRequest": true},
		"fileOperations": [{"path": "index.html", "content": "<h1>hi</h1>", "action": "create", "language": "html"}],
		"preview": {"shouldStartPreview": true},
		"response": {"text": "generated the page"}
	}`
	rig := newTestRig(&stubGateway{classifyReply: templateClassification, envelopeReply: withFiles})
	ctx := context.Background()

	res, err := rig.router.Submit(ctx, "", "build the landing page template")
	require.NoError(t, err)
	assert.Equal(t, models.IntentTemplateCreation, res.Classification.Kind)
	require.Len(t, res.FileOperations, 1)
	assert.Equal(t, "index.html", res.FileOperations[0].Path)
	assert.True(t, res.StartPreview)

	got, err := rig.store.GetConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Len(t, got.Messages[1].Metadata.GeneratedFiles, 1)
}

func TestSubmitCancelledBeforeCommit(t *testing.T) {
	rig := newTestRig(&stubGateway{classifyReply: chatClassification, envelopeReply: infoEnvelope})
	ctx := context.Background()

	conv, err := rig.store.CreateConversation(ctx, "Demo", "")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = rig.router.Submit(cancelled, conv.ID, "hello")
	require.ErrorIs(t, err, context.Canceled)

	got, err := rig.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages, "cancelled submit must not persist anything")
}

func TestSubmitSameConversationSerialized(t *testing.T) {
	gw := &stubGateway{classifyReply: chatClassification}
	gw.envelopeFn = func([]models.Message) (string, error) {
		return infoEnvelope, nil
	}
	rig := newTestRig(gw)
	ctx := context.Background()

	conv, err := rig.store.CreateConversation(ctx, "Demo", "")
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, serr := rig.router.Submit(ctx, conv.ID, "hello")
			assert.NoError(t, serr)
		}()
	}
	wg.Wait()

	got, err := rig.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, callers*2)
	for i := 0; i < len(got.Messages); i += 2 {
		assert.Equal(t, models.RoleUser, got.Messages[i].Role, "message %d", i)
		assert.Equal(t, models.RoleAssistant, got.Messages[i+1].Role, "message %d", i+1)
	}
}

func TestPromptWindowTrimsHistory(t *testing.T) {
	conv := &models.Conversation{SystemPrompt: "persona"}
	for i := 0; i < 30; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		conv.Messages = append(conv.Messages, models.Message{Role: role, Content: "m"})
	}

	got := promptWindow(conv, 10)
	require.Len(t, got, 11)
	assert.Equal(t, models.RoleSystem, got[0].Role)
	assert.Equal(t, "persona", got[0].Content)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "hello", deriveTitle("hello"))
	assert.Equal(t, "first line", deriveTitle("first line\nsecond line"))
	assert.Equal(t, "New conversation", deriveTitle(""))
	long := strings.Repeat("a", 80)
	assert.Equal(t, strings.Repeat("a", 50)+"…", deriveTitle(long))

	wide := strings.Repeat("€", 60)
	got := deriveTitle(wide)
	assert.Equal(t, strings.Repeat("€", 50)+"…", got)
	assert.True(t, utf8.ValidString(got))
}

func TestNewDefaults(t *testing.T) {
	st := store.New(newMemBackend(), nil)
	r := New(st, &stubGateway{}, nil, nil, Options{})
	assert.Equal(t, defaultHistoryWindow, r.historyWindow)
	assert.Equal(t, defaultParseAttempts, r.parseAttempts)
}

// recordingHandler captures the request it was dispatched.
type recordingHandler struct {
	name string
	req  *handlers.Request
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(_ context.Context, req *handlers.Request) (*models.Envelope, error) {
	h.req = req
	env := models.DefaultEnvelope()
	return &env, nil
}

func TestSubmitPassesTemplateName(t *testing.T) {
	gw := &stubGateway{
		classifyReply: `{"kind": "templateCreation", "confidence": 0.95, "explanation": "named a template", "templateName": "landing-page"}`,
	}
	st := store.New(newMemBackend(), nil)
	tmpl := &recordingHandler{name: "template"}
	r := New(st, gw, &recordingHandler{name: "chat"}, tmpl, Options{ParseAttempts: 2})

	_, err := r.Submit(context.Background(), "", "use the landing-page template")
	require.NoError(t, err)
	require.NotNil(t, tmpl.req)
	assert.Equal(t, "landing-page", tmpl.req.TemplateContext)
}
