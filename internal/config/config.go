package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port     string
	LogLevel string

	PatternsFallbackDir string

	ResourceDir       string
	TranscriptPython  string
	TranscriptTimeout time.Duration

	RequestTimeout     time.Duration
	GoogleBaseURL      string
	OpenAIBaseURL      string
	AnthropicBaseURL   string
	AnthropicMaxTokens int
	OllamaHost         string

	SettingsFile  string
	ExportEnabled bool
	ExportFile    string

	UIUser string
	UIPass string
}

// Load reads a .env file if present and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}
	return FromEnv()
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.LogLevel = getenv("LOG_LEVEL", "info")
	c.PatternsFallbackDir = os.Getenv("PATTERNS_FALLBACK_DIR")
	c.ResourceDir = getenv("RESOURCE_DIR", executableDir())
	c.TranscriptPython = os.Getenv("TRANSCRIPT_PYTHON")
	c.TranscriptTimeout = getduration("TRANSCRIPT_TIMEOUT", 2*time.Minute)
	c.RequestTimeout = getduration("REQUEST_TIMEOUT", 10*time.Minute)
	c.GoogleBaseURL = os.Getenv("GOOGLE_BASE_URL")
	c.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	c.AnthropicBaseURL = os.Getenv("ANTHROPIC_BASE_URL")
	c.AnthropicMaxTokens = getint("ANTHROPIC_MAX_TOKENS", 4096)
	c.OllamaHost = os.Getenv("OLLAMA_HOST")
	c.SettingsFile = os.Getenv("SETTINGS_FILE")
	c.ExportEnabled = getenv("EXPORT_ENABLED", "false") == "true"
	c.ExportFile = getenv("EXPORT_FILE", "./fabricdash-history.txt")
	c.UIUser = os.Getenv("UI_USER")
	c.UIPass = os.Getenv("UI_PASS")
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid duration, using default")
		return def
	}
	return d
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
		return def
	}
	return n
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
