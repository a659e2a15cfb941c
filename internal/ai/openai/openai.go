package openai

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/ai/sse"
)

const (
	DefaultBaseURL  = "https://api.openai.com"
	completionsPath = "/v1/chat/completions"
)

var _ ai.Streamer = (*Client)(nil)

type Client struct {
	ai.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{Client: ai.NewClient("OpenAI", baseURL, timeout)}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func buildRequest(req ai.Request) apiRequest {
	msgs := make([]message, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, message{Role: "user", Content: req.UserInput})
	temperature, topP := req.Sampling()
	return apiRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: temperature,
		TopP:        topP,
		Stream:      true,
	}
}

func (c *Client) Stream(ctx context.Context, req ai.Request, emit ai.EmitFunc) error {
	body, err := c.PostStream(ctx, completionsPath, ai.Auth{Key: req.APIKey}, buildRequest(req))
	if err != nil {
		return err
	}
	defer body.Close()

	hasContent := false
	err = sse.Scan(body, func(data string) (bool, error) {
		if data == sse.Done {
			return true, nil
		}
		var chunk streamChunk
		if json.Unmarshal([]byte(data), &chunk) != nil || len(chunk.Choices) == 0 {
			return false, nil
		}
		text := chunk.Choices[0].Delta.Content
		if text == nil || *text == "" {
			return false, nil
		}
		hasContent = true
		return false, emit(*text)
	})
	if err != nil {
		return err
	}
	if !hasContent {
		return &ai.NoContentError{Vendor: "OpenAI"}
	}
	return nil
}
