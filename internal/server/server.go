// Package server exposes the conversation router over a websocket chat
// endpoint with lifecycle management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/router"
)

const shutdownTimeout = 5 * time.Second

// Server serves the chat websocket plus health and metrics endpoints.
type Server struct {
	router    *router.Router
	logger    *slog.Logger
	collector *metrics.Collector
	addr      string
	upgrader  websocket.Upgrader
}

// New creates a server bound to addr.
func New(addr string, r *router.Router, logger *slog.Logger, collector *metrics.Collector) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		router:    r,
		logger:    logger,
		collector: collector,
		addr:      addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return LoggingMiddleware(s.logger)(mux)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.collector == nil {
		_ = json.NewEncoder(w).Encode(struct{}{})
		return
	}
	_ = json.NewEncoder(w).Encode(s.collector.Snapshot())
}

// handleWS runs one chat session. Submits on a connection are processed
// concurrently; the router serializes turns per conversation, and a write
// lock keeps response frames whole.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	writeFrame := func(frame resultFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(frame); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var frame submitFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		if frame.Type != frameSubmit {
			writeFrame(resultFrame{Type: frameError, ID: frame.ID, Error: "unknown frame type: " + frame.Type})
			continue
		}
		if frame.Text == "" {
			writeFrame(resultFrame{Type: frameError, ID: frame.ID, Error: "text must not be empty"})
			continue
		}

		wg.Add(1)
		go func(frame submitFrame) {
			defer wg.Done()
			writeFrame(s.submit(ctx, frame))
		}(frame)
	}
}

// submit runs one turn through the router and maps the outcome to a
// response frame.
func (s *Server) submit(ctx context.Context, frame submitFrame) resultFrame {
	res, err := s.router.Submit(ctx, frame.ConversationID, frame.Text)
	if err != nil && res == nil {
		return resultFrame{Type: frameError, ID: frame.ID, ConversationID: frame.ConversationID, Error: err.Error()}
	}

	out := resultFrame{
		Type:           frameResult,
		ID:             frame.ID,
		ConversationID: res.ConversationID,
		Text:           res.Text,
		FileOperations: res.FileOperations,
		StartPreview:   res.StartPreview,
		IsError:        res.IsError,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
