package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnichat/internal/chat"
	"omnichat/internal/config"
	"omnichat/internal/model"
	"omnichat/internal/upstream"
	"omnichat/internal/upstream/dashscope"
	"omnichat/internal/upstream/openai"
)

type stubChat struct {
	result chat.Result
	err    error
	input  chat.Input
	panic  bool
}

func (s *stubChat) Chat(_ context.Context, in chat.Input) (chat.Result, error) {
	if s.panic {
		panic("boom")
	}
	s.input = in
	return s.result, s.err
}

func (s *stubChat) Provider() string { return "stub" }

type stubUpstream struct{ err error }

func (s stubUpstream) CheckModels(context.Context) error { return s.err }

func testConfig() config.Config {
	return config.Config{
		MaxBodyBytes:   1024 * 1024,
		AllowedOrigins: []string{"*"},
		StaticMaxAge:   time.Hour,
	}
}

func newTestHandler(t *testing.T, cfg config.Config, deps Dependencies) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, logger, deps)
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, model.ChatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body=%s", w.Body.String())
	return w, resp
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{Chat: &stubChat{}})

	w := get(h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestChatEndToEndThroughNativeAdapter(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"output":{"text":"hi"}}`)
	}))
	defer provider.Close()

	svc := chat.New(dashscope.New(provider.URL, "key", provider.Client()), "qwen-vl-plus", 5*time.Second)
	h := newTestHandler(t, testConfig(), Dependencies{Chat: svc})

	w, resp := postChat(t, h, `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)
	assert.Equal(t, "hi", resp.Message)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestChatSuccessAlwaysCarriesMessage(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{Chat: &stubChat{result: chat.Result{Message: "hi"}}})

	w, _ := postChat(t, h, `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, true, raw["success"])
	assert.Equal(t, "hi", raw["message"])
}

func TestChatEmptyUpstreamReplyIsNotASuccess(t *testing.T) {
	for name, body := range map[string]string{
		"empty string":       `{"choices":[{"message":{"content":""}}]}`,
		"parts without text": `{"choices":[{"message":{"content":[{"type":"audio","audio":{"id":"x"}}]}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, body)
			}))
			defer provider.Close()

			svc := chat.New(openai.New(provider.URL, "key", provider.Client()), "qwen3-omni-flash", 5*time.Second)
			h := newTestHandler(t, testConfig(), Dependencies{Chat: svc})

			w, resp := postChat(t, h, `{"message":"hello"}`)
			assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
			assert.False(t, resp.Success)
			assert.Equal(t, "unknown_upstream_response", resp.Code)
		})
	}
}

func TestChatForwardsAllPayloads(t *testing.T) {
	stub := &stubChat{result: chat.Result{Message: "ok"}}
	h := newTestHandler(t, testConfig(), Dependencies{Chat: stub})

	w, _ := postChat(t, h, `{"message":"m","imageData":"data:image/jpeg;base64,AA==","audioData":{"data":"UklG","format":"wav","durationSec":3},"extra":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "m", stub.input.Message)
	assert.Equal(t, "data:image/jpeg;base64,AA==", stub.input.ImageData)
	require.NotNil(t, stub.input.Audio)
	assert.Equal(t, "UklG", stub.input.Audio.Data)
	assert.Equal(t, 3, stub.input.Audio.DurationSec)
}

func TestChatEmptyRequest(t *testing.T) {
	svc := chat.New(dashscope.New("http://127.0.0.1:1", "key", nil), "m", time.Second)
	h := newTestHandler(t, testConfig(), Dependencies{Chat: svc})

	for _, body := range []string{`{}`, `{"message":"   "}`, `{"audioData":{"data":""}}`} {
		w, resp := postChat(t, h, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.False(t, resp.Success, body)
		assert.Equal(t, "empty_request", resp.Code, body)
		assert.NotEmpty(t, resp.Error, body)
		assert.NotEmpty(t, resp.RequestID, body)
	}
}

func TestChatRejectsBadJSONAndOversizedBodies(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 64
	h := newTestHandler(t, cfg, Dependencies{Chat: &stubChat{}})

	w, resp := postChat(t, h, `{"message":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", resp.Code)

	w, resp = postChat(t, h, `{"message":"`+strings.Repeat("a", 128)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request_too_large", resp.Code)
}

func TestChatPropagatesUpstreamStatusAndBody(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer provider.Close()

	svc := chat.New(openai.New(provider.URL, "key", provider.Client()), "qwen3-omni-flash", 5*time.Second)
	h := newTestHandler(t, testConfig(), Dependencies{Chat: svc})

	w, resp := postChat(t, h, `{"message":"hello"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
	assert.Equal(t, "upstream_error", resp.Code)
	assert.Equal(t, `{"error":{"message":"slow down"}}`, resp.Details)
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown shape", upstream.ErrUnknownShape, http.StatusInternalServerError, "unknown_upstream_response"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"canceled", context.Canceled, statusClientClosedRequest, "canceled"},
		{"transport", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, http.StatusBadGateway, "upstream_unreachable"},
		{"odd upstream status", &upstream.Error{StatusCode: 302}, http.StatusBadGateway, "upstream_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, testConfig(), Dependencies{Chat: &stubChat{err: tc.err}})
			w, resp := postChat(t, h, `{"message":"hello"}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, resp.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestPanicIsRecoveredAsJSON(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{Chat: &stubChat{panic: true}})

	w, resp := postChat(t, h, `{"message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", resp.Code)
}

func TestAPITestEndpoint(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{Chat: &stubChat{}})

	w := get(h, "/api/test")
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.TestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)
	_, err := time.Parse(time.RFC3339Nano, resp.Timestamp)
	assert.NoError(t, err, "timestamp %q is not RFC 3339", resp.Timestamp)
}

func TestReadyz(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{Chat: &stubChat{}})
	w := get(h, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"provider":"stub"`)

	h = newTestHandler(t, testConfig(), Dependencies{Chat: &stubChat{}, Upstream: stubUpstream{err: io.EOF}})
	w = get(h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{Chat: &stubChat{}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestStaticAssetsCachePolicy(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"index.html":    "<html></html>",
		"app.js":        "console.log(1)",
		"sw.js":         "self.addEventListener('fetch', () => {})",
		"manifest.json": "{}",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	cfg := testConfig()
	cfg.StaticDir = dir
	h := newTestHandler(t, cfg, Dependencies{Chat: &stubChat{}})

	cases := map[string]string{
		"/":              "no-cache",
		"/sw.js":         "no-cache",
		"/manifest.json": "no-cache",
		"/app.js":        "public, max-age=3600, stale-while-revalidate=86400",
	}
	for path, want := range cases {
		w := get(h, path)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, want, w.Header().Get("Cache-Control"), path)
	}

	w := get(h, "/api/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"not_found"`, "unknown API routes must stay JSON")
}
