// Package gemini streams completions from the Google Generative Language API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/ai/sse"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

var _ ai.Streamer = (*Client)(nil)

type Client struct {
	ai.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{Client: ai.NewClient("Google", baseURL, timeout)}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type thinkingConfig struct {
	ThinkingLevel string `json:"thinkingLevel"`
}

type generationConfig struct {
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"topP"`
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type apiRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type streamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ThinkingLevel maps the request's reasoning effort onto Gemini's levels.
// It returns "" when thinking is off.
func ThinkingLevel(level *int) string {
	if level == nil || *level <= 0 {
		return ""
	}
	switch *level {
	case 2:
		return "HIGH"
	case 1:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func buildRequest(req ai.Request) apiRequest {
	temperature, topP := req.Sampling()
	out := apiRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.UserInput}}}},
		GenerationConfig: generationConfig{
			Temperature: temperature,
			TopP:        topP,
		},
	}
	if req.SystemPrompt != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	if lvl := ThinkingLevel(req.ThinkingLevel); lvl != "" {
		out.GenerationConfig.ThinkingConfig = &thinkingConfig{ThinkingLevel: lvl}
	}
	return out
}

func (c *Client) Stream(ctx context.Context, req ai.Request, emit ai.EmitFunc) error {
	path := fmt.Sprintf("/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		url.PathEscape(req.Model), url.QueryEscape(req.APIKey))

	body, err := c.PostStream(ctx, path, ai.Auth{}, buildRequest(req))
	if err != nil {
		var apiErr *ai.APIError
		if errors.As(err, &apiErr) {
			return FriendlyError(apiErr, req.Model)
		}
		return err
	}
	defer body.Close()

	hasContent := false
	err = sse.Scan(body, func(data string) (bool, error) {
		var chunk streamChunk
		if json.Unmarshal([]byte(data), &chunk) != nil {
			return false, nil
		}
		if chunk.Error != nil {
			msg := chunk.Error.Message
			if msg == "" {
				msg = "Unknown API error"
			}
			return true, errors.New(msg)
		}
		for _, cand := range chunk.Candidates {
			for _, p := range cand.Content.Parts {
				if p.Text == "" {
					continue
				}
				hasContent = true
				if err := emit(p.Text); err != nil {
					return true, err
				}
			}
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if !hasContent {
		return &ai.NoContentError{Vendor: "AI"}
	}
	return nil
}

// FriendlyError turns a failed Gemini response into a message a user can act on.
func FriendlyError(e *ai.APIError, model string) error {
	raw := e.Raw
	if raw == "" {
		raw = e.Body
	}
	switch {
	case strings.Contains(raw, "API_KEY") || strings.Contains(raw, "api_key"):
		return errors.New("Invalid Google API Key. Please check your API key in Settings.")
	case e.Code == 404 || strings.Contains(raw, "not found") || strings.Contains(raw, "NOT_FOUND"):
		return fmt.Errorf("Model '%s' not found. Please select a different model.", model)
	case e.Code == 429 || strings.Contains(raw, "RATE_LIMIT"):
		return errors.New("API rate limit exceeded. Please wait a moment and try again.")
	case strings.Contains(raw, "quota") || strings.Contains(raw, "QUOTA"):
		return errors.New("API quota exceeded. Please check your Google Cloud billing.")
	default:
		return fmt.Errorf("API Error (%s): %s", e.Status, e.Body)
	}
}
