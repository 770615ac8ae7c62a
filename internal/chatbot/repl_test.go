package chatbot

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"SupplyGuard/internal/conversation"
	"SupplyGuard/internal/fallback"
	"SupplyGuard/internal/resolver"
	"SupplyGuard/internal/storage"
	"SupplyGuard/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runREPL(t *testing.T, w *Widget, input string) string {
	t.Helper()
	var out bytes.Buffer
	repl := NewREPL(w, strings.NewReader(input), &out, nil)
	require.NoError(t, repl.Run(context.Background()))
	return out.String()
}

func TestREPLConversation(t *testing.T) {
	w := newWidget(t, storage.NewMemorySlot(), resolver.New(nil, nil, nil))

	out := runREPL(t, w, "show me the dashboard\n/quit\nignored\n")

	assert.Contains(t, out, "=== SupplyGuard AI ===")
	assert.Contains(t, out, "SupplyGuard AI: Welcome to SupplyGuard AI.")
	assert.Contains(t, out, "SupplyGuard AI is typing...")
	assert.Contains(t, out, fallback.DashboardResponse)
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
	assert.Len(t, w.Messages(), 3, "input after /quit is not read")
}

func TestREPLAskAndExamples(t *testing.T) {
	w := newWidget(t, storage.NewMemorySlot(), resolver.New(nil, nil, nil))

	out := runREPL(t, w, "/examples\n/ask 1\n/ask 9\n/ask\n")

	for _, q := range ExampleQueries {
		assert.Contains(t, out, q)
	}
	assert.Contains(t, out, fallback.SupplierResponse)
	assert.Contains(t, out, `Error: no example query "9"`)
	assert.Contains(t, out, "Error: usage: /ask <n>")

	msgs := w.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, ExampleQueries[0], msgs[1].Text)
}

func TestREPLClear(t *testing.T) {
	slot := storage.NewMemorySlot()
	w := newWidget(t, slot, resolver.New(nil, nil, nil))

	out := runREPL(t, w, "tell me about tariffs\n/clear\n")

	assert.Contains(t, out, "Conversation cleared.")
	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.WelcomeText, msgs[0].Text)
}

func TestREPLStopsWhenContextCancelled(t *testing.T) {
	var hits atomic.Int32
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"message":"from the endpoint"}`)
	}))
	defer endpoint.Close()

	tr, err := transport.New(endpoint.URL+"/api/v1/chat", transport.Options{})
	require.NoError(t, err)
	w := newWidget(t, storage.NewMemorySlot(), resolver.New(tr, nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	repl := NewREPL(w, strings.NewReader("dashboard\nalerts\n"), &out, nil)
	require.NoError(t, repl.Run(ctx))

	assert.Len(t, w.Messages(), 1, "no turn is submitted after cancellation")
	assert.Zero(t, hits.Load())
	assert.NotContains(t, out.String(), fallback.DashboardResponse)
	assert.True(t, strings.HasSuffix(out.String(), "Goodbye!\n"))
}

func TestREPLReturnsWhileInputIsBlocked(t *testing.T) {
	w := newWidget(t, storage.NewMemorySlot(), resolver.New(nil, nil, nil))
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	repl := NewREPL(w, pr, &out, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- repl.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Len(t, w.Messages(), 1)
}

func TestREPLUnknownCommand(t *testing.T) {
	w := newWidget(t, storage.NewMemorySlot(), resolver.New(nil, nil, nil))

	out := runREPL(t, w, "/bogus\n/help\n")

	assert.Contains(t, out, "Error: unknown command: /bogus")
	assert.Contains(t, out, "/ask <n>")
	assert.Len(t, w.Messages(), 1)
}
