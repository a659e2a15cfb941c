package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/ai/anthropic"
	"github.com/kiliankoe/fabricdash/internal/ai/gemini"
	"github.com/kiliankoe/fabricdash/internal/ai/ollama"
	"github.com/kiliankoe/fabricdash/internal/ai/openai"
	"github.com/kiliankoe/fabricdash/internal/api"
	"github.com/kiliankoe/fabricdash/internal/config"
	"github.com/kiliankoe/fabricdash/internal/patterns"
	"github.com/kiliankoe/fabricdash/internal/run"
	"github.com/kiliankoe/fabricdash/internal/runner"
	"github.com/kiliankoe/fabricdash/internal/settings"
	"github.com/kiliankoe/fabricdash/internal/transcript"
	"github.com/kiliankoe/fabricdash/internal/ws"
	staticserver "github.com/kiliankoe/fabricdash/static"
)

const version = "v0.3.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`FabricDash - web UI backend for Fabric patterns

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables (also read from .env):
  PORT                   Port to listen on (default: 8080)
  LOG_LEVEL              debug, info, warn or error (default: info)
  FABRIC_PATTERNS_DIR    Patterns directory (default: ~/.config/fabric/patterns)
  PATTERNS_FALLBACK_DIR  Extra patterns directory tried last
  RESOURCE_DIR           Directory holding resources/youtube_transcript.py
  TRANSCRIPT_PYTHON      Interpreter for the transcript script (default: python3)
  TRANSCRIPT_TIMEOUT     Transcript script timeout (default: 2m)
  REQUEST_TIMEOUT        Upper bound for a single AI request (default: 10m)
  GOOGLE_BASE_URL        Gemini API base URL override
  OPENAI_BASE_URL        OpenAI API base URL override
  ANTHROPIC_BASE_URL     Anthropic API base URL override
  ANTHROPIC_MAX_TOKENS   max_tokens sent to Anthropic (default: 4096)
  OLLAMA_HOST            Ollama host URL (default: settings file, then http://localhost:11434)
  SETTINGS_FILE          Settings file (default: ~/.config/fabric-gui/settings.yaml)
  EXPORT_ENABLED         Append finished runs to a history file (default: false)
  EXPORT_FILE            History file path (default: ./fabricdash-history.txt)
  UI_USER                Username for basic auth on the UI and API
  UI_PASS                Password for basic auth on the UI and API

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000

Visit http://localhost:8080 after starting the server.
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("FabricDash %s\n", version)
		return
	}

	cfg := config.Load()
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerologlog.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		logger.Info().Str("method", c.Request.Method).Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "version": version, "time": time.Now().UTC()})
	})

	// Stores
	ps := patterns.New(cfg.PatternsFallbackDir)
	ss := settings.NewStore(cfg.SettingsFile)
	tf := transcript.New(cfg.ResourceDir, cfg.TranscriptPython, cfg.TranscriptTimeout)
	logger.Info().Str("patterns", ps.Resolve()).Str("settings", ss.Path()).Msg("stores ready")

	// Vendors
	ollamaHost := cfg.OllamaHost
	if ollamaHost == "" {
		ollamaHost = ss.Load().OllamaURL
	}
	dispatcher := ai.NewDispatcher(logger)
	dispatcher.Register(ai.VendorGoogle, gemini.New(cfg.GoogleBaseURL, cfg.RequestTimeout))
	dispatcher.Register(ai.VendorOpenAI, openai.New(cfg.OpenAIBaseURL, cfg.RequestTimeout))
	dispatcher.Register(ai.VendorAnthropic, anthropic.New(cfg.AnthropicBaseURL, cfg.AnthropicMaxTokens, cfg.RequestTimeout))
	dispatcher.Register(ai.VendorOllama, ollama.New(ollamaHost, cfg.RequestTimeout))

	rn := runner.New(logger, dispatcher, ps, ss, run.NewManager(), runner.Options{
		ExportEnabled: cfg.ExportEnabled,
		ExportFile:    cfg.ExportFile,
	})

	// Optional basic auth for everything but the healthcheck
	protected := r.Group("/")
	if cfg.UIUser != "" && cfg.UIPass != "" {
		protected.Use(gin.BasicAuth(gin.Accounts{cfg.UIUser: cfg.UIPass}))
	}

	// Socket server + REST API
	io := ws.New(logger, ctx, rn, ps, tf).Mount(protected)
	defer io.Close()
	api.New(logger, rn, ps, tf, ss, dispatcher.Vendors()).Register(protected)

	// Serve frontend (if embedded build is present) for all other routes
	r.NoRoute(func(c *gin.Context) {
		if cfg.UIUser != "" && cfg.UIPass != "" {
			user, pass, ok := c.Request.BasicAuth()
			if !ok || user != cfg.UIUser || pass != cfg.UIPass {
				c.Header("WWW-Authenticate", `Basic realm="Authorization Required"`)
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
		}
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
