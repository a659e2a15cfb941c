// Package settings persists user preferences and per-vendor API keys as YAML.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kiliankoe/fabricdash/internal/ai"
)

type Settings struct {
	GoogleAPIKey    string `yaml:"google_api_key" json:"google_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key" json:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key" json:"anthropic_api_key"`

	DefaultVendor      string  `yaml:"default_vendor" json:"default_vendor"`
	DefaultModel       string  `yaml:"default_model" json:"default_model"`
	DefaultTemperature float64 `yaml:"default_temperature" json:"default_temperature"`
	DefaultTopP        float64 `yaml:"default_top_p" json:"default_top_p"`

	OllamaURL string `yaml:"ollama_url" json:"ollama_url"`
}

func Defaults() Settings {
	return Settings{
		DefaultVendor:      ai.VendorGoogle,
		DefaultModel:       "gemini-2.0-flash",
		DefaultTemperature: 0.7,
		DefaultTopP:        0.9,
		OllamaURL:          "http://localhost:11434",
	}
}

// APIKey returns the stored key for a vendor tag. Ollama needs none.
func (s Settings) APIKey(vendor string) string {
	switch strings.ToLower(vendor) {
	case ai.VendorGoogle:
		return s.GoogleAPIKey
	case ai.VendorOpenAI:
		return s.OpenAIAPIKey
	case ai.VendorAnthropic:
		return s.AnthropicAPIKey
	}
	return ""
}

func (s Settings) HasAPIKey(vendor string) bool {
	if !ai.NeedsAPIKey(strings.ToLower(vendor)) {
		return true
	}
	return s.APIKey(vendor) != ""
}

// Masked returns a copy with API keys reduced to their last four characters.
func (s Settings) Masked() Settings {
	s.GoogleAPIKey = mask(s.GoogleAPIKey)
	s.OpenAIAPIKey = mask(s.OpenAIAPIKey)
	s.AnthropicAPIKey = mask(s.AnthropicAPIKey)
	return s
}

func mask(k string) string {
	if k == "" {
		return ""
	}
	if len(k) <= 4 {
		return "****"
	}
	return "****" + k[len(k)-4:]
}

// Store loads and saves Settings at a fixed path.
type Store struct {
	path string

	mu     sync.Mutex
	cached *Settings
}

// DefaultPath is ~/.config/fabric-gui/settings.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "fabric-gui", "settings.yaml")
	}
	return filepath.Join(home, ".config", "fabric-gui", "settings.yaml")
}

func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

func (st *Store) Path() string { return st.path }

// Load returns the saved settings, or defaults when the file is missing or
// unreadable. Fields absent from the file keep their defaults.
func (st *Store) Load() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cached != nil {
		return *st.cached
	}
	s := Defaults()
	if b, err := os.ReadFile(st.path); err == nil {
		if yaml.Unmarshal(b, &s) != nil {
			s = Defaults()
		}
	}
	st.cached = &s
	return s
}

// Save writes s to disk and replaces the cached copy.
func (st *Store) Save(s Settings) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(st.path, b, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	st.cached = &s
	return nil
}

// Patch is a partial update. Nil sampling fields and empty strings leave
// the current value alone, so zero can still be set explicitly.
type Patch struct {
	GoogleAPIKey    string `json:"google_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key"`

	DefaultVendor      string   `json:"default_vendor"`
	DefaultModel       string   `json:"default_model"`
	DefaultTemperature *float64 `json:"default_temperature"`
	DefaultTopP        *float64 `json:"default_top_p"`

	OllamaURL string `json:"ollama_url"`
}

// Merge applies patch onto s. Masked keys sent back by a client are
// ignored so they never overwrite the real ones.
func (s Settings) Merge(patch Patch) Settings {
	setKey := func(dst *string, v string) {
		if v != "" && !strings.HasPrefix(v, "****") {
			*dst = v
		}
	}
	setKey(&s.GoogleAPIKey, patch.GoogleAPIKey)
	setKey(&s.OpenAIAPIKey, patch.OpenAIAPIKey)
	setKey(&s.AnthropicAPIKey, patch.AnthropicAPIKey)
	if patch.DefaultVendor != "" {
		s.DefaultVendor = patch.DefaultVendor
	}
	if patch.DefaultModel != "" {
		s.DefaultModel = patch.DefaultModel
	}
	if patch.DefaultTemperature != nil {
		s.DefaultTemperature = *patch.DefaultTemperature
	}
	if patch.DefaultTopP != nil {
		s.DefaultTopP = *patch.DefaultTopP
	}
	if patch.OllamaURL != "" {
		s.OllamaURL = patch.OllamaURL
	}
	return s
}

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid settings")

func (s Settings) Validate() error {
	if s.DefaultTemperature < 0 || s.DefaultTemperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalid)
	}
	if s.DefaultTopP < 0 || s.DefaultTopP > 1 {
		return fmt.Errorf("%w: top_p must be within [0, 1]", ErrInvalid)
	}
	return nil
}
