// Package server serves the chat endpoint the widget talks to.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"SupplyGuard/internal/backend"
	"SupplyGuard/internal/cache"
	"SupplyGuard/internal/fallback"
)

const instrumentationName = "SupplyGuard/internal/server"

// Error messages returned to clients
const (
	ErrInvalidBody      = "invalid request body"
	ErrMessagesRequired = "Messages are required"
)

const maxBodyBytes = 1 << 20

// Options configure a Server
type Options struct {
	// Assistant answers in-scope questions; nil serves every request from Rules.
	Assistant      Assistant
	Rules          *fallback.RuleSet
	Cache          *cache.ReplyCache
	AllowedOrigins []string
	Logger         *slog.Logger
	Now            func() time.Time
}

// Server handles chat requests over HTTP and WebSocket
type Server struct {
	assistant Assistant
	rules     *fallback.RuleSet
	cache     *cache.ReplyCache
	origins   []string
	logger    *slog.Logger
	now       func() time.Time
	upgrader  websocket.Upgrader

	tracer           trace.Tracer
	requests         metric.Int64Counter
	assistantLatency metric.Float64Histogram
}

// New creates a Server
func New(opts Options) *Server {
	s := &Server{
		assistant: opts.Assistant,
		rules:     opts.Rules,
		cache:     opts.Cache,
		origins:   opts.AllowedOrigins,
		logger:    opts.Logger,
		now:       opts.Now,
		tracer:    otel.Tracer(instrumentationName),
	}
	if s.rules == nil {
		s.rules = fallback.Default()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(s.origins, origin)
		},
	}

	meter := otel.Meter(instrumentationName)
	var err error
	s.requests, err = meter.Int64Counter("chat.server.requests",
		metric.WithDescription("Chat requests answered, by reply source"))
	if err != nil {
		s.logger.Warn("failed to create counter", "error", err)
	}
	s.assistantLatency, err = meter.Float64Histogram("chat.server.assistant.duration",
		metric.WithDescription("Upstream assistant call duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		s.logger.Warn("failed to create histogram", "error", err)
	}
	return s
}

// Router returns the HTTP handler with all routes and middleware
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))
	r.Use(CORS(s.origins))

	r.Post(backend.ChatPath, s.handleChat)
	r.Get(backend.ChatStreamPath, s.handleChatStream)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chat server listening", "addr", addr, "assistant", s.assistant != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down chat server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req backend.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, ErrMessagesRequired)
		return
	}

	writeJSON(w, http.StatusOK, s.Answer(r.Context(), req))
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade chat stream", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("chat stream closed", "error", err)
			}
			return
		}

		var resp backend.ChatResponse
		var req backend.ChatRequest
		switch {
		case json.Unmarshal(data, &req) != nil:
			resp = backend.ChatResponse{Error: ErrInvalidBody}
		case len(req.Messages) == 0:
			resp = backend.ChatResponse{Error: ErrMessagesRequired}
		default:
			resp = s.Answer(r.Context(), req)
		}

		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("failed to write chat stream response", "error", err)
			return
		}
	}
}

// Answer produces the response for a request with at least one message. It
// never fails: without an assistant, or when the assistant errors, the reply
// comes from the rules and is flagged as a fallback.
func (s *Server) Answer(ctx context.Context, req backend.ChatRequest) backend.ChatResponse {
	userMessage := req.LastUserContent()

	if s.assistant == nil {
		s.logger.Warn("assistant not configured, using fallback responses")
		return s.fallbackReply(ctx, userMessage)
	}

	page := req.Context.CurrentPage
	key := cache.GenerateCacheKey(page, req.Messages)
	if reply, ok := s.cache.Get(key); ok {
		s.logger.Debug("serving cached reply", "messages", len(req.Messages))
		s.count(ctx, "cache")
		return backend.NewReply(reply, false, s.now())
	}

	ctx, span := s.tracer.Start(ctx, "assistant_call",
		trace.WithAttributes(
			attribute.String("chat.page", page),
			attribute.Int("chat.messages", len(req.Messages)),
		))
	defer span.End()

	start := time.Now()
	reply, err := s.assistant.Reply(ctx, page, req.Messages)
	if s.assistantLatency != nil {
		s.assistantLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("assistant call failed", "error", err)
		return s.fallbackReply(ctx, userMessage)
	}

	s.logger.Info("generated reply", "messages", len(req.Messages), "reply_len", len(reply))
	s.cache.Put(key, reply)
	s.count(ctx, "assistant")
	return backend.NewReply(reply, false, s.now())
}

func (s *Server) fallbackReply(ctx context.Context, userMessage string) backend.ChatResponse {
	reply, rule := s.rules.Classify(userMessage)
	s.logger.Debug("fallback reply", "rule", rule)
	s.count(ctx, "fallback")
	return backend.NewReply(reply, true, s.now())
}

func (s *Server) count(ctx context.Context, source string) {
	if s.requests != nil {
		s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
