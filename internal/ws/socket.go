package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"

	"github.com/kiliankoe/fabricdash/internal/patterns"
	"github.com/kiliankoe/fabricdash/internal/runner"
	"github.com/kiliankoe/fabricdash/internal/transcript"
)

// Events emitted to the UI.
const (
	EventChunk    = "ai-chunk"
	EventComplete = "ai-complete"
	EventError    = "error"
)

// Emitter is the part of socketio.Conn the handlers need.
type Emitter interface {
	Emit(event string, v ...interface{})
}

type Server struct {
	log         zerolog.Logger
	runner      *runner.Runner
	patterns    *patterns.Store
	transcripts *transcript.Fetcher
	// base is the parent context of every run; it is cancelled on shutdown.
	base context.Context
}

func New(log zerolog.Logger, base context.Context, rn *runner.Runner, ps *patterns.Store, tf *transcript.Fetcher) *Server {
	return &Server{log: log, base: base, runner: rn, patterns: ps, transcripts: tf}
}

type runPayload = runner.Job

type cancelPayload struct {
	RunID string `json:"runId"`
}

type contentPayload struct {
	Name string `json:"name"`
}

type transcriptPayload struct {
	URL        string `json:"url"`
	Timestamps bool   `json:"timestamps"`
	// Format wraps the transcript as model input.
	Format bool `json:"format"`
}

// Mount attaches the Socket.IO server with handlers to the given routes.
func (srv *Server) Mount(r gin.IRoutes) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		srv.log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "pattern:run", func(s socketio.Conn, payload runPayload) map[string]any {
		return srv.RunPattern(s, s.ID(), payload)
	})

	io.OnEvent("/", "pattern:cancel", func(s socketio.Conn, payload cancelPayload) map[string]any {
		return srv.CancelRun(s, payload.RunID)
	})

	io.OnEvent("/", "patterns:list", func(s socketio.Conn) map[string]any {
		return srv.ListPatterns(s)
	})

	io.OnEvent("/", "pattern:content", func(s socketio.Conn, payload contentPayload) map[string]any {
		return srv.PatternContent(s, payload.Name)
	})

	io.OnEvent("/", "transcript:get", func(s socketio.Conn, payload transcriptPayload) map[string]any {
		return srv.Transcript(s, payload)
	})

	io.OnEvent("/", "runs:list", func(s socketio.Conn) map[string]any {
		return map[string]any{"runs": srv.runner.Runs().Active()}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		if s == nil {
			srv.log.Error().Err(e).Msg("socket error")
			return
		}
		srv.log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		n := srv.runner.Runs().CancelOwner(s.ID())
		srv.log.Info().Str("sid", s.ID()).Str("reason", reason).Int("cancelledRuns", n).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			srv.log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	// Mount to router
	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) err(s Emitter, code, message string) map[string]any {
	s.Emit(EventError, map[string]any{"code": code, "message": message})
	return map[string]any{"error": message}
}
