package ws

import (
	"context"
	"errors"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/patterns"
	"github.com/kiliankoe/fabricdash/internal/run"
	"github.com/kiliankoe/fabricdash/internal/runner"
	"github.com/kiliankoe/fabricdash/internal/transcript"
)

// RunPattern starts a run in the background and acks with its id. Fragments
// arrive as ai-chunk events; ai-complete closes the run.
func (srv *Server) RunPattern(s Emitter, owner string, job runner.Job) map[string]any {
	job.Owner = owner
	rn, ctx, req, err := srv.runner.Start(srv.base, job)
	if err != nil {
		return srv.err(s, errorCode(err), err.Error())
	}
	srv.log.Info().Str("run", rn.ID).Str("vendor", req.VendorTag()).Str("model", req.Model).Str("pattern", job.Pattern).Msg("pattern:run")

	go func() {
		err := srv.runner.Execute(ctx, rn, req, func(chunk string) error {
			s.Emit(EventChunk, map[string]any{"runId": rn.ID, "chunk": chunk})
			return nil
		})
		if err != nil {
			s.Emit(EventChunk, map[string]any{"runId": rn.ID, "chunk": runner.ErrorChunk(err)})
			s.Emit(EventComplete, map[string]any{"runId": rn.ID, "success": false, "error": err.Error()})
			return
		}
		s.Emit(EventComplete, map[string]any{"runId": rn.ID, "success": true})
	}()

	return map[string]any{"runId": rn.ID}
}

func (srv *Server) CancelRun(s Emitter, runID string) map[string]any {
	if err := srv.runner.Runs().Cancel(runID); err != nil {
		return srv.err(s, errorCode(err), err.Error())
	}
	srv.log.Info().Str("run", runID).Msg("pattern:cancel")
	return map[string]any{"ok": true}
}

func (srv *Server) ListPatterns(s Emitter) map[string]any {
	names, err := srv.patterns.List()
	if err != nil {
		return srv.err(s, errorCode(err), err.Error())
	}
	return map[string]any{"patterns": names}
}

func (srv *Server) PatternContent(s Emitter, name string) map[string]any {
	content, err := srv.patterns.Content(name)
	if err != nil {
		return srv.err(s, errorCode(err), err.Error())
	}
	return map[string]any{"name": name, "content": content}
}

func (srv *Server) Transcript(s Emitter, p transcriptPayload) map[string]any {
	if err := transcript.CheckURL(p.URL); err != nil {
		return srv.err(s, errorCode(err), err.Error())
	}
	out, err := srv.transcripts.Fetch(srv.base, p.URL, p.Timestamps)
	if err != nil {
		srv.log.Warn().Err(err).Str("url", p.URL).Msg("transcript:get")
		return srv.err(s, errorCode(err), err.Error())
	}
	if !p.Format {
		return map[string]any{"transcript": out}
	}
	res, err := transcript.Text(out, p.URL)
	if err != nil {
		return srv.err(s, "transcript_failed", err.Error())
	}
	return map[string]any{"transcript": res.Transcript, "videoId": res.VideoID}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, patterns.ErrInvalidName),
		errors.Is(err, transcript.ErrInvalidURL),
		errors.Is(err, ai.ErrUnsupportedVendor),
		errors.Is(err, ai.ErrMissingModel),
		errors.Is(err, ai.ErrMissingAPIKey):
		return "bad_request"
	case errors.Is(err, patterns.ErrPatternNotFound),
		errors.Is(err, patterns.ErrContentNotFound),
		errors.Is(err, patterns.ErrDirNotFound):
		return "pattern_not_found"
	case errors.Is(err, run.ErrRunNotFound):
		return "run_not_found"
	case errors.Is(err, transcript.ErrScriptNotFound):
		return "script_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "failed"
}
