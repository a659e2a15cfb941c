package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Vendor tags accepted by the dispatcher.
const (
	VendorGoogle    = "google"
	VendorOpenAI    = "openai"
	VendorAnthropic = "anthropic"
	VendorOllama    = "ollama"
)

var (
	ErrUnsupportedVendor = errors.New("Unsupported vendor")
	ErrMissingModel      = errors.New("missing model")
	ErrMissingAPIKey     = errors.New("missing API key")
)

// EmitFunc receives each decoded text fragment as soon as it arrives.
// Returning an error aborts the stream.
type EmitFunc func(chunk string) error

// Streamer is implemented by every vendor adapter.
type Streamer interface {
	Stream(ctx context.Context, req Request, emit EmitFunc) error
}

// Request is a single "run a prompt" call. It is consumed once.
type Request struct {
	Vendor       string  `json:"vendor"`
	Model        string  `json:"model"`
	APIKey       string  `json:"api_key"`
	SystemPrompt string  `json:"system_prompt"`
	UserInput    string  `json:"user_input"`
	// Temperature and TopP are nil when the caller wants the stored defaults.
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	// ThinkingLevel is the optional reasoning effort: 0 off, 1 medium, 2 high,
	// any other positive value low.
	ThinkingLevel *int `json:"thinking_level,omitempty"`
}

// VendorTag normalizes the request's vendor tag.
func (r Request) VendorTag() string {
	return strings.ToLower(strings.TrimSpace(r.Vendor))
}

// Sampling returns the sampling parameters, zero when unset.
func (r Request) Sampling() (temperature, topP float64) {
	if r.Temperature != nil {
		temperature = *r.Temperature
	}
	if r.TopP != nil {
		topP = *r.TopP
	}
	return temperature, topP
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Validate checks the fields every vendor needs.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return ErrMissingModel
	}
	if r.APIKey == "" && NeedsAPIKey(r.VendorTag()) {
		return fmt.Errorf("%w for %s", ErrMissingAPIKey, r.VendorTag())
	}
	return nil
}

// NeedsAPIKey reports whether the vendor authenticates with an API key.
func NeedsAPIKey(vendor string) bool {
	return vendor != VendorOllama
}

// NoContentError is returned when a whole stream produced no text.
type NoContentError struct {
	Vendor string
}

func (e *NoContentError) Error() string {
	return fmt.Sprintf("No response received from %s. Please check your API key and model selection.", e.Vendor)
}

// ErrNoContent matches any *NoContentError via errors.Is.
var ErrNoContent = errors.New("no content received")

func (e *NoContentError) Is(target error) bool { return target == ErrNoContent }
