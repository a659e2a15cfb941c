// Package runner executes pattern runs end to end: it fills in credentials and
// pattern text, registers the run, streams it through the dispatcher and
// records the outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/history"
	"github.com/kiliankoe/fabricdash/internal/patterns"
	"github.com/kiliankoe/fabricdash/internal/run"
	"github.com/kiliankoe/fabricdash/internal/settings"
)

// Dispatcher is satisfied by *ai.Dispatcher.
type Dispatcher interface {
	Check(req ai.Request) error
	Dispatch(ctx context.Context, req ai.Request, emit ai.EmitFunc) error
}

// Job is a run request as the UI sends it.
type Job struct {
	Request ai.Request `json:"request"`
	// Pattern, when set and Request.SystemPrompt is empty, supplies the
	// system prompt from the pattern's system.md.
	Pattern string `json:"pattern,omitempty"`
	Owner   string `json:"-"`
}

type Options struct {
	ExportEnabled bool
	ExportFile    string
}

type Runner struct {
	log      zerolog.Logger
	ai       Dispatcher
	patterns *patterns.Store
	settings *settings.Store
	runs     *run.Manager
	opts     Options
}

func New(log zerolog.Logger, d Dispatcher, ps *patterns.Store, ss *settings.Store, rm *run.Manager, opts Options) *Runner {
	return &Runner{log: log, ai: d, patterns: ps, settings: ss, runs: rm, opts: opts}
}

func (r *Runner) Runs() *run.Manager { return r.runs }

// Prepare resolves defaults, the stored API key and the pattern text.
func (r *Runner) Prepare(job Job) (ai.Request, error) {
	req := job.Request
	stored := r.settings.Load()

	if strings.TrimSpace(req.Vendor) == "" {
		req.Vendor = stored.DefaultVendor
		if req.Model == "" {
			req.Model = stored.DefaultModel
		}
	}
	if req.APIKey == "" {
		req.APIKey = stored.APIKey(req.VendorTag())
	}
	if req.Temperature == nil {
		req.Temperature = ai.Float(stored.DefaultTemperature)
	}
	if req.TopP == nil {
		req.TopP = ai.Float(stored.DefaultTopP)
	}
	if req.SystemPrompt == "" && job.Pattern != "" {
		content, err := r.patterns.Content(job.Pattern)
		if err != nil {
			return ai.Request{}, err
		}
		req.SystemPrompt = content
	}
	return req, nil
}

// Start prepares job and registers a run for it. Requests the dispatcher
// would reject fail here, before any run exists. The returned context is
// cancelled when the run is cancelled.
func (r *Runner) Start(parent context.Context, job Job) (*run.Run, context.Context, ai.Request, error) {
	req, err := r.Prepare(job)
	if err != nil {
		return nil, nil, ai.Request{}, err
	}
	if err := r.ai.Check(req); err != nil {
		return nil, nil, ai.Request{}, err
	}
	rn, ctx := r.runs.Start(parent, run.Meta{
		Vendor:  req.VendorTag(),
		Model:   req.Model,
		Pattern: job.Pattern,
		Input:   req.UserInput,
		Owner:   job.Owner,
	})
	return rn, ctx, req, nil
}

// Execute streams the run to emit and finishes it. It returns the run's error.
func (r *Runner) Execute(ctx context.Context, rn *run.Run, req ai.Request, emit ai.EmitFunc) error {
	err := r.ai.Dispatch(ctx, req, func(chunk string) error {
		rn.Append(chunk)
		return emit(chunk)
	})
	if err != nil && errors.Is(context.Cause(ctx), run.ErrCancelled) {
		err = run.ErrCancelled
	}

	if _, ferr := r.runs.Finish(rn.ID, err); ferr != nil {
		r.log.Warn().Err(ferr).Str("run", rn.ID).Msg("finish run")
	}
	if r.opts.ExportEnabled {
		if xerr := history.Export(history.FromRun(rn), r.opts.ExportFile); xerr != nil {
			r.log.Error().Err(xerr).Str("run", rn.ID).Msg("failed to export run")
		} else {
			r.log.Debug().Str("run", rn.ID).Str("file", r.opts.ExportFile).Msg("exported run")
		}
	}
	return err
}

// Run is Start followed by Execute.
func (r *Runner) Run(ctx context.Context, job Job, emit ai.EmitFunc) (string, error) {
	rn, rctx, req, err := r.Start(ctx, job)
	if err != nil {
		return "", err
	}
	return rn.ID, r.Execute(rctx, rn, req, emit)
}

// ErrorChunk formats err the way the UI renders failures inline.
func ErrorChunk(err error) string {
	return fmt.Sprintf("\n\n❌ **Error:** %s\n", err)
}
