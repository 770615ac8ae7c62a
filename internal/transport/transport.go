// Package transport carries chat requests to the chat endpoint.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"SupplyGuard/internal/backend"
)

// Transport sends one chat request and returns the endpoint's response
type Transport interface {
	// Send performs one request/response exchange
	Send(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)

	// Close releases any held connection
	Close() error

	// Name returns the endpoint the transport talks to
	Name() string
}

// Options tune transport construction
type Options struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	// DialTimeout bounds the WebSocket handshake; zero means no bound.
	DialTimeout time.Duration
}

// New picks a transport by URL scheme: ws:// and wss:// use WebSocket,
// anything else is treated as an HTTP endpoint.
func New(endpoint string, opts Options) (Transport, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return NewWebSocketTransport(endpoint, opts.DialTimeout, opts.Logger)
	}
	return NewHTTPTransport(endpoint, opts.HTTPClient, opts.Logger)
}
