package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"omnichat/internal/content"
	"omnichat/internal/upstream"
)

type Option func(*Client)

// Client speaks the OpenAI-compatible chat/completions format.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	observer   upstream.ObserverFunc
}

type ChatMessage struct {
	Role    string          `json:"role"`
	Content []content.Block `json:"content"`
}

type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

func WithObserver(observer upstream.ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func New(baseURL, apiKey string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Name() string { return "openai" }

// BuildRequest maps a normalized request onto the chat/completions body.
// Content is always an array of typed parts, even for text-only turns.
func BuildRequest(req content.Request) ChatCompletionRequest {
	return ChatCompletionRequest{
		Model:    req.Model,
		Messages: []ChatMessage{{Role: "user", Content: req.Blocks}},
		Stream:   false,
	}
}

func (c *Client) Complete(ctx context.Context, req content.Request) (string, error) {
	body, err := upstream.Do(ctx, c.httpClient, c.observer, upstream.Call{
		Endpoint: "chat_completions",
		URL:      c.baseURL + "/chat/completions",
		APIKey:   c.apiKey,
		Body:     BuildRequest(req),
	})
	if err != nil {
		return "", err
	}
	return parseChatCompletion(body)
}

// CheckModels is a cheap authenticated call used for readiness.
func (c *Client) CheckModels(ctx context.Context) error {
	_, err := upstream.Do(ctx, c.httpClient, c.observer, upstream.Call{
		Endpoint: "models",
		Method:   http.MethodGet,
		URL:      c.baseURL + "/models",
		APIKey:   c.apiKey,
	})
	return err
}

func parseChatCompletion(data []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := upstream.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", upstream.ErrUnknownShape, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: missing choices", upstream.ErrUnknownShape)
	}
	text, err := upstream.JoinParts(parsed.Choices[0].Message.Content)
	if err != nil {
		return "", fmt.Errorf("%w: missing choices[0].message.content", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty choices[0].message.content", upstream.ErrUnknownShape)
	}
	return text, nil
}
