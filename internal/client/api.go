// Package client drives one chat turn from captured input to revealed reply:
// it calls the proxy, bounds the wait, classifies failures into user-facing
// messages and reveals replies with a typewriter effect.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"omnichat/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnknownReply is returned for a 2xx reply without success and a message.
var ErrUnknownReply = errors.New("backend returned an unexpected reply")

// ReplyError is a non-2xx reply from the proxy.
type ReplyError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *ReplyError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed: %d", e.StatusCode)
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

func (c *APIClient) Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return model.ChatResponse{}, fmt.Errorf("encode chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return model.ChatResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.ChatResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ChatResponse{}, err
	}

	var reply model.ChatResponse
	decodeErr := json.Unmarshal(body, &reply)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		replyErr := &ReplyError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			replyErr.Code = reply.Code
			replyErr.Message = reply.Error
			replyErr.Details = reply.Details
		}
		return model.ChatResponse{}, replyErr
	}
	if decodeErr != nil {
		return model.ChatResponse{}, fmt.Errorf("%w: %v", ErrUnknownReply, decodeErr)
	}
	if !reply.Success || reply.Message == "" {
		return model.ChatResponse{}, ErrUnknownReply
	}
	return reply, nil
}

// Ping calls GET /api/test.
func (c *APIClient) Ping(ctx context.Context) (model.TestResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/test", nil)
	if err != nil {
		return model.TestResponse{}, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.TestResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.TestResponse{}, &ReplyError{StatusCode: resp.StatusCode}
	}
	var out model.TestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.TestResponse{}, fmt.Errorf("%w: %v", ErrUnknownReply, err)
	}
	return out, nil
}
