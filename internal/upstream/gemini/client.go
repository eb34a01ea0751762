// Package gemini adapts normalized requests to the Gemini API through the
// official GenAI SDK. Images and audio travel as inline parts.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"omnichat/internal/content"
	"omnichat/internal/upstream"
)

type Config struct {
	APIKey     string
	BaseURL    string // optional, overrides the SDK default endpoint
	HTTPClient *http.Client
	Observer   upstream.ObserverFunc
}

type Client struct {
	client   *genai.Client
	observer upstream.ObserverFunc
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(cfg.BaseURL, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{client: client, observer: cfg.Observer}, nil
}

func (c *Client) Name() string { return "gemini" }

// BuildContents converts blocks into a single user turn, keeping block order.
func BuildContents(blocks []content.Block) ([]*genai.Content, error) {
	parts := make([]*genai.Part, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case content.KindText:
			parts = append(parts, genai.NewPartFromText(b.Text))
		case content.KindImageURL:
			mime, data, err := content.ParseDataURI(b.ImageURL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, genai.NewPartFromBytes(data, mime))
		case content.KindInputAudio:
			data, err := base64.StdEncoding.DecodeString(b.Audio.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: decode audio block: %v", content.ErrInvalidPayload, err)
			}
			parts = append(parts, genai.NewPartFromBytes(data, "audio/"+b.Audio.Format))
		}
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

func (c *Client) Complete(ctx context.Context, req content.Request) (string, error) {
	contents, err := BuildContents(req.Blocks)
	if err != nil {
		return "", err
	}

	started := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, nil)
	status := http.StatusOK
	if err != nil {
		status = 0
		if apiErr, ok := asAPIError(err); ok {
			status = apiErr.Code
			err = &upstream.Error{StatusCode: apiErr.Code, Body: upstream.TruncateBody(apiErr.Message)}
		}
	}
	if c.observer != nil {
		c.observer("generate_content", status, time.Since(started))
	}
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", upstream.ErrUnknownShape)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: candidate has no text", upstream.ErrUnknownShape)
	}
	return text, nil
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}
