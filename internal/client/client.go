// Package client provides a websocket client for the pagewright server.
package client

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pagewright/pagewright/internal/models"
)

// Client talks to a pagewright server over one websocket connection.
// It is safe for concurrent Submit calls.
type Client struct {
	endpoint string
	timeout  time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan response
	readErr error
}

// Result is the outcome of one remote submit.
type Result struct {
	ConversationID string
	Text           string
	FileOperations []models.FileOperation
	StartPreview   bool
	IsError        bool
}

type response struct {
	res *Result
	err error
}

// wire frame, mirrors the server's protocol.
type frame struct {
	Type           string                 `json:"type"`
	ID             string                 `json:"id,omitempty"`
	ConversationID string                 `json:"conversationId,omitempty"`
	Text           string                 `json:"text,omitempty"`
	FileOperations []models.FileOperation `json:"fileOperations,omitempty"`
	StartPreview   bool                   `json:"startPreview,omitempty"`
	IsError        bool                   `json:"isError,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// New creates a client for the given endpoint. An empty endpoint falls
// back to PAGEWRIGHT_SERVER_URL, then localhost:8473. The per-submit
// timeout can be set via PAGEWRIGHT_CLIENT_TIMEOUT.
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("PAGEWRIGHT_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "ws://localhost:8473/ws"
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("PAGEWRIGHT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		pending:  make(map[string]chan response),
	}
}

// Connect dials the server. It is idempotent; an already-connected client
// keeps its connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	c.conn = conn
	c.readErr = nil
	go c.readLoop(conn)
	return nil
}

// Close tears down the connection. Pending submits fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// readLoop fans incoming frames out to their waiting submit calls.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			c.readErr = err
			if c.conn == conn {
				c.conn = nil
			}
			for id, ch := range c.pending {
				ch <- response{err: fmt.Errorf("connection lost: %w", err)}
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		if ok {
			delete(c.pending, f.ID)
		}
		c.mu.Unlock()
		if !ok {
			continue
		}

		if f.Type == "error" {
			ch <- response{err: fmt.Errorf("server error: %s", f.Error)}
			continue
		}
		res := &Result{
			ConversationID: f.ConversationID,
			Text:           f.Text,
			FileOperations: f.FileOperations,
			StartPreview:   f.StartPreview,
			IsError:        f.IsError,
		}
		var err error
		if f.Error != "" {
			err = fmt.Errorf("%s", f.Error)
		}
		ch <- response{res: res, err: err}
	}
}

// Submit sends one user turn and waits for its result. An empty
// conversationID asks the server to start a new conversation.
func (c *Client) Submit(ctx context.Context, conversationID, text string) (*Result, error) {
	id := uuid.NewString()
	ch := make(chan response, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("not connected")
	}
	c.pending[id] = ch
	err := conn.WriteJSON(frame{Type: "submit", ID: id, ConversationID: conversationID, Text: text})
	c.mu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("send submit: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if resp.err != nil && resp.res == nil {
			return nil, resp.err
		}
		return resp.res, resp.err
	case <-timer.C:
		c.forget(id)
		return nil, fmt.Errorf("submit timed out after %s", c.timeout)
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
