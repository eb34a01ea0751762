// Package upstream defines the contract shared by the provider adapters: the
// Adapter strategy, the error types surfaced to the proxy and the JSON-over-HTTP
// plumbing they use to reach a provider.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"omnichat/internal/content"
)

// Adapter maps a normalized request onto one provider's wire format and
// returns the reply text.
type Adapter interface {
	Name() string
	Complete(ctx context.Context, req content.Request) (string, error)
}

type ObserverFunc func(endpoint string, status int, duration time.Duration)

// Error is a non-2xx reply from the provider.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream request failed with status %d", e.StatusCode)
}

// ErrUnknownShape is returned when a 2xx reply has no recognizable message.
var ErrUnknownShape = errors.New("unknown upstream response shape")

var codec = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}

// Call is one JSON request against a provider endpoint.
type Call struct {
	Endpoint string // metrics label
	Method   string
	URL      string
	APIKey   string
	Header   http.Header
	Body     any
}

// Do sends the call and returns the raw 2xx body. Non-2xx replies become *Error.
func Do(ctx context.Context, httpClient *http.Client, observer ObserverFunc, call Call) ([]byte, error) {
	started := time.Now()
	statusCode := 0
	defer func() {
		if observer != nil {
			observer(call.Endpoint, statusCode, time.Since(started))
		}
	}()

	var body io.Reader
	if call.Body != nil {
		payload, err := Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("encode upstream request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	method := call.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return nil, err
	}
	for key, values := range call.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+call.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: TruncateBody(string(respBody))}
	}
	return respBody, nil
}

// JoinParts flattens a message content value. Strings pass through; arrays
// concatenate each part's "text" or "content" field in order, skipping parts
// with neither. Any other value is an unknown shape.
func JoinParts(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []any:
		var sb strings.Builder
		for _, item := range v {
			p, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := p["text"].(string); ok && text != "" {
				sb.WriteString(text)
			} else if text, ok := p["content"].(string); ok && text != "" {
				sb.WriteString(text)
			}
		}
		return sb.String(), nil
	default:
		return "", ErrUnknownShape
	}
}

func TruncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}
