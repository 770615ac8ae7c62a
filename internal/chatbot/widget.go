// Package chatbot drives the conversation: the send state machine, the Widget
// that applies its effects, and the terminal renderer.
package chatbot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"SupplyGuard/internal/conversation"
)

// ExampleQueries are the canned questions offered to the user
var ExampleQueries = []string{
	"How do I filter suppliers by risk level?",
	"What do the dashboard time filters do?",
	"How do I generate a risk assessment report?",
	"How many critical suppliers do I have?",
}

// Responder produces the bot reply for a user turn
type Responder interface {
	Resolve(ctx context.Context, history []conversation.Message, text string) (string, error)
}

// View is what a renderer sees after every transition
type View struct {
	Messages []conversation.Message
	Typing   bool
}

// Widget owns one conversation and enforces at most one outstanding request
type Widget struct {
	store       *conversation.Store
	responder   Responder
	logger      *slog.Logger
	now         func() time.Time
	pending     bool
	typing      bool
	subscribers []subscriber
	nextSubID   int
	mu          sync.Mutex
}

type subscriber struct {
	id int
	fn func(View)
}

// WidgetOption configures a Widget
type WidgetOption func(*Widget)

// WithWidgetLogger sets the logger
func WithWidgetLogger(logger *slog.Logger) WidgetOption {
	return func(w *Widget) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWidgetClock overrides the time source used for new messages
func WithWidgetClock(now func() time.Time) WidgetOption {
	return func(w *Widget) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWidget creates a widget over a loaded store
func NewWidget(store *conversation.Store, responder Responder, opts ...WidgetOption) *Widget {
	w := &Widget{
		store:       store,
		responder:   responder,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Subscribe registers fn to be called with the view after every transition.
// Subscribers run in registration order. The returned function unsubscribes.
func (w *Widget) Subscribe(fn func(View)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSubID
	w.nextSubID++
	w.subscribers = append(w.subscribers, subscriber{id: id, fn: fn})
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, sub := range w.subscribers {
			if sub.id == id {
				w.subscribers = append(w.subscribers[:i:i], w.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Submit sends text as a user turn and blocks until the bot reply is stored.
// It returns false without doing anything when text is blank or another
// reply is still outstanding.
func (w *Widget) Submit(ctx context.Context, text string) bool {
	req, err := w.dispatch(Submitted{Text: text, At: w.now()})
	if req == nil {
		return false
	}
	if err != nil {
		w.logger.Error("failed to store user message", "error", err)
		w.fail()
		return true
	}

	reply, err := w.responder.Resolve(ctx, req.History, req.Text)
	if err != nil {
		w.logger.Error("failed to get reply", "error", err)
		w.fail()
		return true
	}

	if _, err := w.dispatch(Replied{Text: reply, At: w.now()}); err != nil {
		w.logger.Error("failed to store bot message", "error", err)
	}
	return true
}

// SendCanned submits one of the offered example queries
func (w *Widget) SendCanned(ctx context.Context, query string) bool {
	return w.Submit(ctx, query)
}

// Clear empties the conversation back to the welcome message
func (w *Widget) Clear() {
	if _, err := w.dispatch(Cleared{At: w.now()}); err != nil {
		w.logger.Error("failed to clear conversation", "error", err)
	}
}

// Messages returns the current conversation
func (w *Widget) Messages() []conversation.Message {
	return w.store.Messages()
}

// Pending reports whether a reply is outstanding
func (w *Widget) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// View returns the current render state
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return View{Messages: w.store.Messages(), Typing: w.typing}
}

func (w *Widget) fail() {
	if _, err := w.dispatch(ReplyFailed{At: w.now()}); err != nil {
		w.logger.Error("failed to store apology message", "error", err)
	}
}

// dispatch runs one transition and applies its effects. It returns the reply
// request, if any, and the first effect error.
func (w *Widget) dispatch(ev Event) (*RequestReply, error) {
	w.mu.Lock()

	state := State{Messages: w.store.Messages(), Pending: w.pending}
	next, effects := Reduce(state, ev)
	if len(effects) == 0 {
		w.mu.Unlock()
		return nil, nil
	}

	var req *RequestReply
	var firstErr error
	for _, effect := range effects {
		switch e := effect.(type) {
		case AppendMessage:
			if err := w.store.Append(e.Message); err != nil && firstErr == nil {
				firstErr = err
			}
		case ShowTyping:
			w.typing = true
		case HideTyping:
			w.typing = false
		case RequestReply:
			r := e
			req = &r
		case ResetConversation:
			if err := w.store.Reset(e.Welcome); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	w.pending = next.Pending

	view := View{Messages: w.store.Messages(), Typing: w.typing}
	subs := make([]func(View), 0, len(w.subscribers))
	for _, sub := range w.subscribers {
		subs = append(subs, sub.fn)
	}
	w.mu.Unlock()

	for _, fn := range subs {
		fn(view)
	}
	return req, firstErr
}
