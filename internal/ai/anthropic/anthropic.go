// Package anthropic streams completions from the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/ai/sse"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultMaxTokens = 4096
	APIVersion       = "2023-06-01"
	messagesPath     = "/v1/messages"
)

var _ ai.Streamer = (*Client)(nil)

type Client struct {
	ai.Client
	MaxTokens int
}

// New creates a Client for baseURL. maxTokens <= 0 selects DefaultMaxTokens.
func New(baseURL string, maxTokens int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	c := &Client{Client: ai.NewClient("Anthropic", baseURL, timeout), MaxTokens: maxTokens}
	c.Headers = map[string]string{"anthropic-version": APIVersion}
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type event struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// buildRequest sends temperature only; newer models reject it together
// with top_p.
func (c *Client) buildRequest(req ai.Request) apiRequest {
	temperature, _ := req.Sampling()
	return apiRequest{
		Model:       req.Model,
		System:      req.SystemPrompt,
		Messages:    []message{{Role: "user", Content: req.UserInput}},
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		Stream:      true,
	}
}

func (c *Client) Stream(ctx context.Context, req ai.Request, emit ai.EmitFunc) error {
	auth := ai.Auth{Key: req.APIKey, Header: "x-api-key"}
	body, err := c.PostStream(ctx, messagesPath, auth, c.buildRequest(req))
	if err != nil {
		return err
	}
	defer body.Close()

	hasContent := false
	err = sse.Scan(body, func(data string) (bool, error) {
		var ev event
		if json.Unmarshal([]byte(data), &ev) != nil {
			return false, nil
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Text == "" {
				return false, nil
			}
			hasContent = true
			return false, emit(ev.Delta.Text)
		case "message_stop":
			return true, nil
		case "error":
			msg := "Unknown API error"
			if ev.Error != nil && ev.Error.Message != "" {
				msg = ev.Error.Message
			}
			return true, errors.New(msg)
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if !hasContent {
		return &ai.NoContentError{Vendor: "Anthropic"}
	}
	return nil
}
