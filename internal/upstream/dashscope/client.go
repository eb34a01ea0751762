// Package dashscope is the native DashScope text-generation adapter. It is the
// older of the two Qwen paths; the OpenAI-compatible adapter is the default.
package dashscope

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"omnichat/internal/content"
	"omnichat/internal/upstream"
)

const DefaultURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

type Option func(*Client)

type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	observer   upstream.ObserverFunc
}

type Message struct {
	Role string `json:"role"`
	// Content is a plain string for text-only turns, otherwise []content.Block.
	Content any `json:"content"`
}

type Input struct {
	Messages []Message `json:"messages"`
}

type Parameters struct {
	ResultFormat string `json:"result_format"`
}

type GenerationRequest struct {
	Model      string     `json:"model"`
	Input      Input      `json:"input"`
	Parameters Parameters `json:"parameters"`
}

func WithObserver(observer upstream.ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func New(url, apiKey string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	c := &Client{
		url:        strings.TrimSpace(url),
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

func (c *Client) Name() string { return "dashscope" }

// BuildRequest maps a normalized request onto the native generation body.
// Text-only turns collapse content to the bare string; an image without text
// is sent with content.DefaultImagePrompt.
func BuildRequest(req content.Request) GenerationRequest {
	var msgContent any = req.Blocks
	switch {
	case !content.HasMedia(req.Blocks):
		msgContent = content.Text(req.Blocks)
	case hasKind(req.Blocks, content.KindImageURL) && !hasKind(req.Blocks, content.KindText):
		blocks := make([]content.Block, 0, len(req.Blocks)+1)
		blocks = append(blocks, content.Block{Kind: content.KindText, Text: content.DefaultImagePrompt})
		msgContent = append(blocks, req.Blocks...)
	}
	return GenerationRequest{
		Model:      req.Model,
		Input:      Input{Messages: []Message{{Role: "user", Content: msgContent}}},
		Parameters: Parameters{ResultFormat: "message"},
	}
}

func hasKind(blocks []content.Block, kind content.Kind) bool {
	for _, b := range blocks {
		if b.Kind == kind {
			return true
		}
	}
	return false
}

func (c *Client) Complete(ctx context.Context, req content.Request) (string, error) {
	body, err := upstream.Do(ctx, c.httpClient, c.observer, upstream.Call{
		Endpoint: "generation",
		URL:      c.url,
		APIKey:   c.apiKey,
		Header:   http.Header{"X-DashScope-SSE": []string{"disable"}},
		Body:     BuildRequest(req),
	})
	if err != nil {
		return "", err
	}
	return parseGeneration(body)
}

// parseGeneration prefers output.choices[0].message.content and falls back to
// output.text. A reply without any text is an unknown shape.
func parseGeneration(data []byte) (string, error) {
	var parsed struct {
		Output *struct {
			Text    *string `json:"text"`
			Choices []struct {
				Message struct {
					Content any `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"output"`
	}
	if err := upstream.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", upstream.ErrUnknownShape, err)
	}
	if parsed.Output == nil {
		return "", fmt.Errorf("%w: missing output", upstream.ErrUnknownShape)
	}
	if len(parsed.Output.Choices) > 0 && parsed.Output.Choices[0].Message.Content != nil {
		text, err := upstream.JoinParts(parsed.Output.Choices[0].Message.Content)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	if parsed.Output.Text != nil && strings.TrimSpace(*parsed.Output.Text) != "" {
		return *parsed.Output.Text, nil
	}
	return "", fmt.Errorf("%w: no text in output.choices or output.text", upstream.ErrUnknownShape)
}
