// Package api exposes the REST and SSE surface next to the Socket.IO channel.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/patterns"
	"github.com/kiliankoe/fabricdash/internal/run"
	"github.com/kiliankoe/fabricdash/internal/runner"
	"github.com/kiliankoe/fabricdash/internal/settings"
	"github.com/kiliankoe/fabricdash/internal/transcript"
)

type Handler struct {
	log         zerolog.Logger
	runner      *runner.Runner
	patterns    *patterns.Store
	transcripts *transcript.Fetcher
	settings    *settings.Store
	vendors     []string
}

func New(log zerolog.Logger, rn *runner.Runner, ps *patterns.Store, tf *transcript.Fetcher, ss *settings.Store, vendors []string) *Handler {
	return &Handler{log: log, runner: rn, patterns: ps, transcripts: tf, settings: ss, vendors: vendors}
}

// Register adds the /api routes to r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api")
	g.GET("/patterns", h.listPatterns)
	g.GET("/patterns/:name", h.patternContent)
	g.GET("/models", h.models)
	g.GET("/vendors", h.listVendors)
	g.POST("/run", h.run)
	g.GET("/runs", h.listRuns)
	g.DELETE("/runs/:id", h.cancelRun)
	g.POST("/transcript", h.transcript)
	g.GET("/settings", h.getSettings)
	g.PUT("/settings", h.putSettings)
}

func (h *Handler) listPatterns(c *gin.Context) {
	names, err := h.patterns.List()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": names})
}

func (h *Handler) patternContent(c *gin.Context) {
	name := c.Param("name")
	content, err := h.patterns.Content(name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "content": content})
}

func (h *Handler) models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": ai.Models()})
}

func (h *Handler) listVendors(c *gin.Context) {
	s := h.settings.Load()
	out := make([]gin.H, 0, len(h.vendors))
	for _, v := range h.vendors {
		out = append(out, gin.H{"name": v, "configured": s.HasAPIKey(v)})
	}
	c.JSON(http.StatusOK, gin.H{"vendors": out})
}

// run streams a completion as server-sent events: one "chunk" event per
// fragment, then a single "complete" event. The run id is also returned in
// the X-Run-ID header so the caller can cancel it.
func (h *Handler) run(c *gin.Context) {
	var job runner.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	job.Owner = c.ClientIP()

	rn, ctx, req, err := h.runner.Start(c.Request.Context(), job)
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Str("run", rn.ID).Str("vendor", req.VendorTag()).Str("model", req.Model).Str("pattern", job.Pattern).Msg("api run")

	c.Header("X-Run-ID", rn.ID)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	err = h.runner.Execute(ctx, rn, req, func(chunk string) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		c.SSEvent("chunk", gin.H{"runId": rn.ID, "chunk": chunk})
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		if c.Request.Context().Err() != nil {
			return
		}
		c.SSEvent("chunk", gin.H{"runId": rn.ID, "chunk": runner.ErrorChunk(err)})
		c.SSEvent("complete", gin.H{"runId": rn.ID, "success": false, "error": err.Error()})
		c.Writer.Flush()
		return
	}
	c.SSEvent("complete", gin.H{"runId": rn.ID, "success": true})
	c.Writer.Flush()
}

func (h *Handler) listRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": h.runner.Runs().Active()})
}

func (h *Handler) cancelRun(c *gin.Context) {
	if err := h.runner.Runs().Cancel(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type transcriptRequest struct {
	URL        string `json:"url" binding:"required"`
	Timestamps bool   `json:"timestamps"`
	Format     bool   `json:"format"`
}

func (h *Handler) transcript(c *gin.Context) {
	var body transcriptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if err := transcript.CheckURL(body.URL); err != nil {
		fail(c, err)
		return
	}
	out, err := h.transcripts.Fetch(c.Request.Context(), body.URL, body.Timestamps)
	if err != nil {
		h.log.Warn().Err(err).Str("url", body.URL).Msg("transcript")
		fail(c, err)
		return
	}
	if !body.Format {
		c.JSON(http.StatusOK, gin.H{"transcript": out})
		return
	}
	res, err := transcript.Text(out, body.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": res.Transcript, "videoId": res.VideoID})
}

func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Load().Masked())
}

func (h *Handler) putSettings(c *gin.Context) {
	var patch settings.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings body"})
		return
	}
	next := h.settings.Load().Merge(patch)
	if err := next.Validate(); err != nil {
		fail(c, err)
		return
	}
	if err := h.settings.Save(next); err != nil {
		h.log.Error().Err(err).Str("file", h.settings.Path()).Msg("save settings")
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, next.Masked())
}

func fail(c *gin.Context, err error) {
	c.JSON(status(err), gin.H{"error": err.Error()})
}

func status(err error) int {
	var exit *transcript.ExitError
	switch {
	case errors.Is(err, patterns.ErrInvalidName),
		errors.Is(err, transcript.ErrInvalidURL),
		errors.Is(err, settings.ErrInvalid),
		errors.Is(err, ai.ErrMissingModel),
		errors.Is(err, ai.ErrMissingAPIKey),
		errors.Is(err, ai.ErrUnsupportedVendor):
		return http.StatusBadRequest
	case errors.Is(err, patterns.ErrPatternNotFound),
		errors.Is(err, patterns.ErrContentNotFound),
		errors.Is(err, run.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, patterns.ErrDirNotFound),
		errors.Is(err, transcript.ErrScriptNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &exit):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
