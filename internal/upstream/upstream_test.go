package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSendsJSONWithBearer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.Header.Get("X-Extra"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer ts.Close()

	var observed string
	var observedStatus int
	body, err := Do(context.Background(), ts.Client(), func(endpoint string, status int, _ time.Duration) {
		observed, observedStatus = endpoint, status
	}, Call{
		Endpoint: "test",
		URL:      ts.URL,
		APIKey:   "k",
		Header:   http.Header{"X-Extra": []string{"1"}},
		Body:     map[string]int{"a": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "test", observed)
	assert.Equal(t, http.StatusOK, observedStatus)
}

func TestDoReturnsErrorForNon2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 5000), http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := Do(context.Background(), ts.Client(), nil, Call{URL: ts.URL, Body: struct{}{}})
	var upErr *Error
	require.True(t, errors.As(err, &upErr), "got %T", err)
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Len(t, upErr.Body, 4096+3, "body was not truncated")
}

func TestJoinParts(t *testing.T) {
	got, err := JoinParts([]any{
		map[string]any{"text": "Hello, "},
		map[string]any{"type": "audio"},
		map[string]any{"content": "world"},
		map[string]any{"text": "", "content": "!"},
		"stray",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", got)

	got, err = JoinParts("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	_, err = JoinParts(nil)
	assert.ErrorIs(t, err, ErrUnknownShape)
	_, err = JoinParts(42.0)
	assert.ErrorIs(t, err, ErrUnknownShape)
}
