package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	TopP        *float64             `json:"top_p,omitempty"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int                `json:"index"`
		Message models.ChatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIClient is a focused OpenAI-compatible chat completions client.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	topP        float64
	httpClient  *http.Client
}

type OpenAIOption func(*OpenAIClient)

func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		c.httpClient = httpClient
	}
}

// WithSampling overrides the default temperature (0.7) and top_p (0.6).
func WithSampling(temperature, topP float64) OpenAIOption {
	return func(c *OpenAIClient) {
		c.temperature = temperature
		c.topP = topP
	}
}

// NewOpenAIClient creates a chat completions client for model.
func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	c := &OpenAIClient{
		baseURL:     "https://api.openai.com/v1",
		apiKey:      apiKey,
		model:       model,
		temperature: 0.7,
		topP:        0.6,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Chat sends messages and returns the first choice's content. Failures are
// *CompletionError values classified by kind.
func (c *OpenAIClient) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	temperature, topP := c.temperature, c.topP
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &temperature,
		TopP:        &topP,
	})
	if err != nil {
		return "", &CompletionError{Kind: InvalidRequest, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := chatURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &CompletionError{Kind: InvalidRequest, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", &CompletionError{Kind: ConnectionFailed, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &CompletionError{
			Kind:       kindForStatus(res.StatusCode),
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("unexpected status %d from %s: %s", res.StatusCode, url, string(buf)),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", &CompletionError{Kind: ConnectionFailed, Err: fmt.Errorf("read response body: %w", err)}
	}
	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &CompletionError{Kind: Unknown, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(payload.Choices) == 0 {
		return "", &CompletionError{Kind: Unknown, Err: errors.New("no choices in response")}
	}
	return strings.TrimSpace(payload.Choices[0].Message.Content), nil
}

func kindForStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusRequestTimeout, status >= 500:
		return ConnectionFailed
	case status >= 400:
		return InvalidRequest
	default:
		return Unknown
	}
}
