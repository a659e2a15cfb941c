package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/ai/sse"
)

const DefaultHost = "http://localhost:11434"

var _ ai.Streamer = (*Client)(nil)

type Client struct {
	ai.Client
}

func New(host string, timeout time.Duration) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{Client: ai.NewClient("Ollama", host, timeout)}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type apiRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Options  options   `json:"options"`
	Stream   bool      `json:"stream"`
}

type streamLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Stream reads Ollama's newline-delimited JSON chat stream.
func (c *Client) Stream(ctx context.Context, req ai.Request, emit ai.EmitFunc) error {
	msgs := make([]message, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, message{Role: "user", Content: req.UserInput})
	temperature, topP := req.Sampling()
	payload := apiRequest{
		Model:    req.Model,
		Messages: msgs,
		Options:  options{Temperature: temperature, TopP: topP},
		Stream:   true,
	}

	body, err := c.PostStream(ctx, "/api/chat", ai.Auth{}, payload)
	if err != nil {
		return err
	}
	defer body.Close()

	hasContent := false
	err = sse.Lines(body, func(line string) (bool, error) {
		line = strings.TrimSpace(line)
		if line == "" {
			return false, nil
		}
		var sl streamLine
		if json.Unmarshal([]byte(line), &sl) != nil {
			return false, nil
		}
		if sl.Error != "" {
			return true, errors.New(sl.Error)
		}
		if sl.Message.Content != "" {
			hasContent = true
			if err := emit(sl.Message.Content); err != nil {
				return true, err
			}
		}
		return sl.Done, nil
	})
	if err != nil {
		return err
	}
	if !hasContent {
		return &ai.NoContentError{Vendor: "Ollama"}
	}
	return nil
}
