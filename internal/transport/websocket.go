package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SupplyGuard/internal/backend"

	"github.com/gorilla/websocket"
)

// WebSocketTransport exchanges one JSON frame per chat request over a
// persistent connection, redialing after any failure.
type WebSocketTransport struct {
	url         string
	dialTimeout time.Duration
	conn        *websocket.Conn
	logger      *slog.Logger
	mu          sync.Mutex
	closed      bool
}

// NewWebSocketTransport creates a WebSocket transport. The connection is dialed on first use.
func NewWebSocketTransport(url string, dialTimeout time.Duration, logger *slog.Logger) (*WebSocketTransport, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	logger.Debug("created chat WebSocket transport", "url", url)
	return &WebSocketTransport{
		url:         url,
		dialTimeout: dialTimeout,
		logger:      logger,
	}, nil
}

// Name returns the endpoint URL
func (t *WebSocketTransport) Name() string {
	return t.url
}

// Send writes req as one text frame and reads one response frame
func (t *WebSocketTransport) Send(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport is closed")
	}

	conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Time{}
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// unblock ReadJSON when ctx is cancelled without a deadline
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteJSON(req); err != nil {
		t.drop()
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	var resp backend.ChatResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", ctxErr)
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("endpoint error: %s", resp.Error)
	}
	return &resp, nil
}

func (t *WebSocketTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}

	dialCtx := ctx
	if t.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.dialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	t.logger.Info("connected chat WebSocket transport", "url", t.url)
	t.conn = conn
	return conn, nil
}

func (t *WebSocketTransport) drop() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// Close disconnects from the endpoint
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.conn != nil {
		// Send close message
		t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.conn.Close()
		t.conn = nil
	}

	t.logger.Info("closed chat WebSocket transport", "url", t.url)
	return nil
}
