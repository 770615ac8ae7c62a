package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"SupplyGuard/internal/backend"
)

// maxResponseBody caps how much of a response body is read
const maxResponseBody = 1 << 20

// HTTPTransport posts chat requests as JSON
type HTTPTransport struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPTransport creates an HTTP transport for endpoint. A nil client gets
// one without a timeout; callers bound requests through the context.
func NewHTTPTransport(endpoint string, client *http.Client, logger *slog.Logger) (*HTTPTransport, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if client == nil {
		client = &http.Client{}
	}

	logger.Debug("created chat HTTP transport", "url", endpoint)
	return &HTTPTransport{
		endpoint:   endpoint,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Name returns the endpoint URL
func (t *HTTPTransport) Name() string {
	return t.endpoint
}

// Send posts req and decodes the JSON reply. Non-2xx statuses and bodies that
// are not a JSON object are errors.
func (t *HTTPTransport) Send(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(requestJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, string(body))
	}

	var resp backend.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

// Close is a no-op for HTTP
func (t *HTTPTransport) Close() error {
	return nil
}
