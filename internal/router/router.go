// Package router sequences one submit call through classification,
// dispatch and commit as an explicit state machine.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pagewright/pagewright/internal/handlers"
	"github.com/pagewright/pagewright/internal/llm"
	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/models"
	"github.com/pagewright/pagewright/internal/store"
)

// state is one node of the submit state machine.
type state int

const (
	stateIngest state = iota
	stateClassify
	stateDispatch
	stateHandle
	stateCommit
	stateDone
)

func (s state) String() string {
	switch s {
	case stateIngest:
		return "ingest"
	case stateClassify:
		return "classify"
	case stateDispatch:
		return "dispatch"
	case stateHandle:
		return "handle"
	case stateCommit:
		return "commit"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// graphState is the per-submit working state. It is discarded when the
// call is cancelled before commit; nothing partial is persisted.
type graphState struct {
	conversationID string
	userText       string

	// working is the prompt list: system prompt, recent history, then the
	// current user message as its last element.
	working []models.Message
	userMsg models.Message

	classification *models.IntentClassification
	classifyErr    error

	handler   handlers.Handler
	envelope  *models.Envelope
	handleErr error

	result    *Result
	commitErr error
}

// Result is the outcome of one submit call.
type Result struct {
	ConversationID string
	MessageID      string
	Text           string
	FileOperations []models.FileOperation
	StartPreview   bool
	Classification *models.IntentClassification
	IsError        bool
}

const (
	defaultHistoryWindow = 10
	defaultParseAttempts = 2
)

// Options configure a Router beyond its required collaborators.
type Options struct {
	// HistoryWindow is the number of trailing history messages included in
	// the prompt, not counting the system prompt or the current turn.
	HistoryWindow int

	// ParseAttempts is the normal structured-parse attempt count before
	// the strict retry, for classification calls.
	ParseAttempts int

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Router drives submit calls. Calls on the same conversation are
// serialized; calls on different conversations proceed concurrently.
type Router struct {
	store    *store.Store
	gateway  llm.Gateway
	chat     handlers.Handler
	template handlers.Handler

	historyWindow int
	parseAttempts int
	logger        *slog.Logger
	collector     *metrics.Collector

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Router over the given store, gateway and handlers.
func New(st *store.Store, gateway llm.Gateway, chat, template handlers.Handler, opts Options) *Router {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	if opts.ParseAttempts <= 0 {
		opts.ParseAttempts = defaultParseAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Router{
		store:         st,
		gateway:       gateway,
		chat:          chat,
		template:      template,
		historyWindow: opts.HistoryWindow,
		parseAttempts: opts.ParseAttempts,
		logger:        opts.Logger,
		collector:     opts.Metrics,
		locks:         make(map[string]*sync.Mutex),
	}
}

// conversationLock returns the serialization mutex for one conversation.
func (r *Router) conversationLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// Submit runs one user turn through the state machine and returns the
// committed result. An empty conversationID creates a new conversation.
// A handler-level failure still commits a synthetic error message and is
// returned alongside the result describing it.
func (r *Router) Submit(ctx context.Context, conversationID, userText string) (*Result, error) {
	if conversationID == "" {
		conv, err := r.store.CreateConversation(ctx, deriveTitle(userText), "")
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conv.ID
	}

	lock := r.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	gs := &graphState{conversationID: conversationID, userText: userText}

	for st := stateIngest; st != stateDone; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := r.step(ctx, st, gs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st, err)
		}
		st = next
	}

	if gs.commitErr != nil {
		return gs.result, gs.commitErr
	}
	if gs.handleErr != nil {
		return gs.result, gs.handleErr
	}
	return gs.result, nil
}

// step is the transition function. It returns the next state; an error
// return aborts the machine without committing anything.
func (r *Router) step(ctx context.Context, st state, gs *graphState) (state, error) {
	switch st {
	case stateIngest:
		return r.ingest(ctx, gs)
	case stateClassify:
		return r.classify(ctx, gs)
	case stateDispatch:
		return r.dispatch(gs)
	case stateHandle:
		return r.handle(ctx, gs)
	case stateCommit:
		return r.commit(ctx, gs)
	}
	return stateDone, fmt.Errorf("unexpected state %s", st)
}

// ingest loads the conversation and builds the working message list with
// the new user turn at its tail. Nothing is persisted yet.
func (r *Router) ingest(ctx context.Context, gs *graphState) (state, error) {
	conv, err := r.store.GetConversation(ctx, gs.conversationID)
	if err != nil {
		return stateDone, err
	}

	gs.working = promptWindow(conv, r.historyWindow)
	gs.userMsg = models.Message{
		ID:      uuid.NewString(),
		Role:    models.RoleUser,
		Content: gs.userText,
		Metadata: models.MessageMetadata{
			Timestamp: time.Now().UTC(),
		},
	}
	gs.working = append(gs.working, gs.userMsg)
	return stateClassify, nil
}

// classify asks the gateway for an intent verdict. Any failure here is
// absorbed: the machine continues with generalChat.
func (r *Router) classify(ctx context.Context, gs *graphState) (state, error) {
	started := time.Now()
	classification, err := r.classifyIntent(ctx, gs.working)
	if r.collector != nil {
		r.collector.RecordTiming(metrics.OpClassify, time.Since(started))
	}
	if err != nil {
		r.logger.Warn("classification failed, defaulting to general chat",
			"conversation", gs.conversationID, "error", err)
		if r.collector != nil {
			r.collector.Increment(metrics.CounterFailOpenClassify)
		}
		gs.classifyErr = err
		gs.classification = &models.IntentClassification{
			Kind:        models.IntentGeneralChat,
			Confidence:  0,
			Explanation: "classifier unavailable",
		}
		return stateDispatch, nil
	}
	gs.classification = classification
	return stateDispatch, nil
}

// dispatch maps the intent kind to a handler. Only template creation has
// a dedicated handler; everything else is general chat.
func (r *Router) dispatch(gs *graphState) (state, error) {
	switch gs.classification.Kind {
	case models.IntentTemplateCreation:
		gs.handler = r.template
	default:
		gs.handler = r.chat
	}
	r.logger.Debug("dispatching",
		"conversation", gs.conversationID,
		"intent", gs.classification.Kind,
		"confidence", gs.classification.Confidence,
		"handler", gs.handler.Name())
	return stateHandle, nil
}

// handle invokes the selected handler. A handler error is recorded, not
// returned; commit turns it into a synthetic error message.
func (r *Router) handle(ctx context.Context, gs *graphState) (state, error) {
	req := &handlers.Request{
		Messages:        gs.working[:len(gs.working)-1],
		UserInput:       gs.userText,
		TemplateContext: gs.classification.TemplateName,
	}
	started := time.Now()
	env, err := gs.handler.Handle(ctx, req)
	if r.collector != nil {
		r.collector.RecordTiming(metrics.OpHandle, time.Since(started))
	}
	if err != nil {
		gs.handleErr = fmt.Errorf("%s handler: %w", gs.handler.Name(), err)
		return stateCommit, nil
	}
	gs.envelope = env
	return stateCommit, nil
}

// commit durably appends this turn's outcome. On success the user and
// assistant messages are both persisted; on a handler failure only one
// synthetic assistant message describing the error is.
func (r *Router) commit(ctx context.Context, gs *graphState) (state, error) {
	if gs.handleErr != nil {
		errMsg := models.Message{
			ID:      uuid.NewString(),
			Role:    models.RoleAssistant,
			Content: fmt.Sprintf("I ran into an error handling that request: %v", gs.handleErr),
			Metadata: models.MessageMetadata{
				Timestamp: time.Now().UTC(),
				IsError:   true,
			},
		}
		id, err := r.store.AddMessage(ctx, gs.conversationID, errMsg)
		if err != nil {
			if !errors.Is(err, store.ErrDurableIO) {
				return stateDone, err
			}
			gs.commitErr = err
		}
		gs.result = &Result{
			ConversationID: gs.conversationID,
			MessageID:      id,
			Text:           errMsg.Content,
			FileOperations: []models.FileOperation{},
			Classification: gs.classification,
			IsError:        true,
		}
		return stateDone, nil
	}

	if _, err := r.store.AddMessage(ctx, gs.conversationID, gs.userMsg); err != nil {
		if !errors.Is(err, store.ErrDurableIO) {
			return stateDone, err
		}
		gs.commitErr = err
	}

	assistant := models.Message{
		ID:      uuid.NewString(),
		Role:    models.RoleAssistant,
		Content: gs.envelope.Response.Text,
		Metadata: models.MessageMetadata{
			Timestamp:      time.Now().UTC(),
			GeneratedFiles: gs.envelope.FileOperations,
		},
	}
	id, err := r.store.AddMessage(ctx, gs.conversationID, assistant)
	if err != nil {
		if !errors.Is(err, store.ErrDurableIO) {
			return stateDone, err
		}
		gs.commitErr = err
	}

	gs.result = &Result{
		ConversationID: gs.conversationID,
		MessageID:      id,
		Text:           gs.envelope.Response.Text,
		FileOperations: gs.envelope.FileOperations,
		StartPreview:   gs.envelope.Preview.ShouldStartPreview,
		Classification: gs.classification,
	}
	return stateDone, nil
}

// promptWindow builds the prompt prefix: the system prompt (explicit
// field or leading system message) plus the trailing window of history,
// skipping prior error turns.
func promptWindow(conv *models.Conversation, window int) []models.Message {
	out := make([]models.Message, 0, window+1)

	history := conv.Messages
	if len(history) > 0 && history[0].Role == models.RoleSystem {
		out = append(out, history[0])
		history = history[1:]
	} else if conv.SystemPrompt != "" {
		out = append(out, models.Message{Role: models.RoleSystem, Content: conv.SystemPrompt})
	}

	kept := make([]models.Message, 0, len(history))
	for _, m := range history {
		if m.Metadata.IsError {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) > window {
		kept = kept[len(kept)-window:]
	}
	return append(out, kept...)
}

const maxTitleLen = 50

// deriveTitle makes a conversation title from the first user turn.
func deriveTitle(userText string) string {
	title := userText
	for i, r := range title {
		if r == '\n' {
			title = title[:i]
			break
		}
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		runes := []rune(title)
		title = string(runes[:maxTitleLen]) + "…"
	}
	if title == "" {
		title = "New conversation"
	}
	return title
}
