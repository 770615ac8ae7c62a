// Package resolver produces bot replies: the chat endpoint first, the local
// rule engine whenever the endpoint fails.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SupplyGuard/internal/backend"
	"SupplyGuard/internal/conversation"
	"SupplyGuard/internal/fallback"
	"SupplyGuard/internal/transport"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// EmptyReplyResponse is returned when the endpoint answers without a message
const EmptyReplyResponse = "I apologize, but I encountered an error. Please try again."

const instrumentationName = "SupplyGuard/internal/resolver"

var errNoTransport = errors.New("no chat endpoint configured")

// Resolver asks the chat endpoint and degrades to local rules on failure
type Resolver struct {
	transport transport.Transport
	rules     *fallback.RuleSet
	context   ContextSource
	timeout   time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer

	requestDuration metric.Float64Histogram
	fallbacks       metric.Int64Counter
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout bounds each remote call; zero disables the bound
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithTracer overrides the tracer (defaults to the global provider)
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Resolver) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithMeter records metrics on meter (defaults to the global provider)
func WithMeter(meter metric.Meter) Option {
	return func(r *Resolver) {
		if meter != nil {
			r.initInstruments(meter)
		}
	}
}

// New creates a Resolver. A nil transport sends every turn to the rules;
// nil rules use fallback.Default and a nil source reports an empty StaticContext.
func New(tr transport.Transport, rules *fallback.RuleSet, source ContextSource, opts ...Option) *Resolver {
	if rules == nil {
		rules = fallback.Default()
	}
	if source == nil {
		source = StaticContext{}
	}

	r := &Resolver{
		transport: tr,
		rules:     rules,
		context:   source,
		logger:    slog.Default(),
		tracer:    otel.Tracer(instrumentationName),
	}
	r.initInstruments(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) initInstruments(meter metric.Meter) {
	histogram, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Chat endpoint request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		r.logger.Warn("failed to create histogram", "error", err)
	} else {
		r.requestDuration = histogram
	}

	counter, err := meter.Int64Counter(
		"chat.resolver.fallbacks",
		metric.WithDescription("Replies produced by the local rule engine"),
	)
	if err != nil {
		r.logger.Warn("failed to create counter", "error", err)
	} else {
		r.fallbacks = counter
	}
}

// Resolve returns the reply to text given the prior conversation. Remote
// failures are absorbed; the only error is a request that cannot be built.
func (r *Resolver) Resolve(ctx context.Context, history []conversation.Message, text string) (string, error) {
	req, err := r.BuildRequest(history, text)
	if err != nil {
		return "", err
	}

	reply, err := r.callRemote(ctx, req)
	if err != nil {
		local, rule := r.rules.Classify(text)
		r.logger.Warn("chat endpoint failed, using local fallback", "error", err, "rule", rule)
		if r.fallbacks != nil {
			r.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
		}
		return local, nil
	}
	return reply, nil
}

// BuildRequest maps the prior conversation to chat roles, appends text as the
// final user turn and attaches a fresh Context snapshot.
func (r *Resolver) BuildRequest(history []conversation.Message, text string) (backend.ChatRequest, error) {
	chatCtx, err := r.context.Snapshot()
	if err != nil {
		return backend.ChatRequest{}, fmt.Errorf("failed to build request context: %w", err)
	}

	messages := make([]backend.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, backend.ChatMessage{Role: msg.Role(), Content: msg.Text})
	}
	messages = append(messages, backend.ChatMessage{Role: "user", Content: text})

	return backend.ChatRequest{Messages: messages, Context: chatCtx}, nil
}

func (r *Resolver) callRemote(ctx context.Context, req backend.ChatRequest) (string, error) {
	if r.transport == nil {
		return "", errNoTransport
	}

	ctx, span := r.tracer.Start(ctx, "chat_endpoint_call",
		trace.WithAttributes(
			attribute.String("chat.endpoint", r.transport.Name()),
			attribute.Int("chat.messages", len(req.Messages)),
		))
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.transport.Send(ctx, req)
	if r.requestDuration != nil {
		r.requestDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Bool("chat.server_fallback", resp.Fallback))
	if resp.Message == "" {
		return EmptyReplyResponse, nil
	}
	return resp.Message, nil
}
