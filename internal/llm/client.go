package llm

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

	"github.com/tidwall/gjson"

	"github.com/illegalcall/palmistry/internal/config"
)

var (
	// ErrUpstream is returned when the completion API answers with a non-200 status.
	ErrUpstream = errors.New("upstream completion failed")
	// ErrEmptyAnswer is returned when the completion carries no text.
	ErrEmptyAnswer = errors.New("empty completion")
)

// VisionClient asks a vision-capable chat model one question about one image.
type VisionClient interface {
	Complete(ctx context.Context, req VisionRequest) (string, error)
}

// VisionRequest is a single-turn image question.
type VisionRequest struct {
	System    string
	ImageURL  string // https URL or data URL
	Text      string
	MaxTokens int
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	http    *http.Client
}

func NewHTTPClient(cfg config.AIConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		http:    &http.Client{},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// Complete sends one request. There is no retry.
func (c *HTTPClient) Complete(ctx context.Context, req VisionRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: API key is not configured", ErrUpstream)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "image_url", ImageURL: &imageURL{URL: req.ImageURL}},
			{Type: "text", Text: req.Text},
		},
	})

	reqBytes, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, MaxTokens: req.MaxTokens})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(string(body), 300))
	}

	answer := gjson.GetBytes(body, "choices.0.message.content").String()
	if strings.TrimSpace(answer) == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
