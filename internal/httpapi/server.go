package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"omnichat/internal/chat"
	"omnichat/internal/config"
	"omnichat/internal/content"
	"omnichat/internal/model"
	"omnichat/internal/upstream"
)

type ChatService interface {
	Chat(ctx context.Context, in chat.Input) (chat.Result, error)
	Provider() string
}

// UpstreamChecker is implemented by adapters that can probe their provider.
type UpstreamChecker interface {
	CheckModels(ctx context.Context) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
	IncChatFailure(code string)
}

type Dependencies struct {
	Chat           ChatService
	Upstream       UpstreamChecker
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	chat         ChatService
	upstream     UpstreamChecker
	metrics      MetricsObserver
	metricsRoute http.Handler
	now          func() time.Time
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")

	statusClientClosedRequest = 499
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Chat == nil {
		panic("httpapi: chat service is required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		chat:         deps.Chat,
		upstream:     deps.Upstream,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
		now:          time.Now,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", "")
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(noStore)
		r.Post("/chat", s.handleChat)
		r.Get("/test", s.handleTest)
	})

	if static := newStaticHandler(cfg.StaticDir, cfg.StaticMaxAge); static != nil {
		r.Handle("/*", static)
	}

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ready := model.ReadyResponse{OK: true, ServiceName: "omnichat", Provider: s.chat.Provider()}
	if s.upstream == nil {
		writeJSON(w, http.StatusOK, ready)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.upstream.CheckModels(ctx); err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "not_ready", "upstream check failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ready)
}

func (s *server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.TestResponse{
		Message:   "server is running",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	var req model.ChatRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return
	}
	if err := ensureBodyFullyConsumed(decoder); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return
	}

	in := chat.Input{Message: req.Message, ImageData: req.ImageData}
	if req.AudioData != nil {
		in.Audio = &content.AudioPayload{
			Data:        req.AudioData.Data,
			Format:      req.AudioData.Format,
			DurationSec: req.AudioData.DurationSec,
		}
	}

	result, err := s.chat.Chat(r.Context(), in)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	s.logger.Info("chat_completed",
		"request_id", requestIDFromContext(r.Context()),
		"provider", result.Provider,
		"model", result.Model,
		"blocks", strings.Join(result.Kinds, ","),
		"duration_ms", result.Duration.Milliseconds(),
	)
	writeJSON(w, http.StatusOK, model.ChatResponse{Success: true, Message: result.Message})
}

func (s *server) handleJSONDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", fmt.Sprintf("request exceeds %d bytes", s.cfg.MaxBodyBytes), "")
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body", "")
}

func (s *server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "request failed"
	details := ""

	var upstreamErr *upstream.Error
	var netErr net.Error
	switch {
	case errors.Is(err, content.ErrEmptyRequest):
		status = http.StatusBadRequest
		code = "empty_request"
		message = "message, image or audio is required"
	case errors.Is(err, content.ErrInvalidPayload):
		status = http.StatusBadRequest
		code = "invalid_request"
		message = err.Error()
	case errors.As(err, &upstreamErr):
		status = upstreamErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		code = "upstream_error"
		message = fmt.Sprintf("upstream request failed: %d", upstreamErr.StatusCode)
		details = upstreamErr.Body
	case errors.Is(err, upstream.ErrUnknownShape):
		code = "unknown_upstream_response"
		message = "unknown upstream response format"
		details = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		code = "timeout"
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		status = statusClientClosedRequest
		code = "canceled"
		message = "request canceled"
	case errors.As(err, &netErr):
		status = http.StatusBadGateway
		code = "upstream_unreachable"
		message = "upstream unreachable"
		details = err.Error()
	default:
		details = err.Error()
	}

	if status >= 500 {
		s.logger.Error("chat_failed", "request_id", requestIDFromContext(r.Context()), "code", code, "error", err)
	}
	s.writeError(w, r, status, code, message, details)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	if s.metrics != nil && strings.HasPrefix(r.URL.Path, "/api/") {
		s.metrics.IncChatFailure(code)
	}
	writeJSON(w, status, model.ChatResponse{
		Success:   false,
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func ensureBodyFullyConsumed(decoder *json.Decoder) error {
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple JSON values")
		}
		return err
	}
	return nil
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}
