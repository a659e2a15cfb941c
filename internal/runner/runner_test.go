package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/fabricdash/internal/ai"
	"github.com/kiliankoe/fabricdash/internal/patterns"
	"github.com/kiliankoe/fabricdash/internal/run"
	"github.com/kiliankoe/fabricdash/internal/runner"
	"github.com/kiliankoe/fabricdash/internal/settings"
)

type fakeDispatcher struct {
	got      ai.Request
	chunks   []string
	err      error
	checkErr error
	block    bool
}

func (f *fakeDispatcher) Check(ai.Request) error { return f.checkErr }

func (f *fakeDispatcher) Dispatch(ctx context.Context, req ai.Request, emit ai.EmitFunc) error {
	f.got = req
	for _, c := range f.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

type fixture struct {
	runner   *runner.Runner
	ai       *fakeDispatcher
	settings *settings.Store
	export   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	patDir := filepath.Join(dir, "patterns")
	require.NoError(t, os.MkdirAll(filepath.Join(patDir, "summarize"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(patDir, "summarize", "system.md"), []byte("Summarize the input."), 0o644))

	ps := patterns.New("")
	ps.Dir = patDir

	ss := settings.NewStore(filepath.Join(dir, "settings.yaml"))
	s := settings.Defaults()
	s.OpenAIAPIKey = "sk-stored"
	require.NoError(t, ss.Save(s))

	fd := &fakeDispatcher{}
	export := filepath.Join(dir, "history.txt")
	r := runner.New(zerolog.Nop(), fd, ps, ss, run.NewManager(), runner.Options{ExportEnabled: true, ExportFile: export})

	return &fixture{runner: r, ai: fd, settings: ss, export: export}
}

func TestRun_FillsPatternAndStoredKey(t *testing.T) {
	f := newFixture(t)
	f.ai.chunks = []string{"Short", " summary"}

	var got []string
	id, err := f.runner.Run(context.Background(), runner.Job{
		Request: ai.Request{Vendor: "openai", Model: "gpt-4o", UserInput: "long text"},
		Pattern: "summarize",
	}, func(c string) error {
		got = append(got, c)
		return nil
	})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"Short", " summary"}, got)
	assert.Equal(t, "sk-stored", f.ai.got.APIKey)
	assert.Equal(t, "Summarize the input.", f.ai.got.SystemPrompt)

	b, err := os.ReadFile(f.export)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Output:\nShort summary")
	assert.Empty(t, f.runner.Runs().Active())
}

func TestPrepare_ExplicitValuesWin(t *testing.T) {
	f := newFixture(t)

	req, err := f.runner.Prepare(runner.Job{
		Request: ai.Request{Vendor: "openai", Model: "gpt-4o", APIKey: "sk-explicit", SystemPrompt: "custom"},
		Pattern: "summarize",
	})

	require.NoError(t, err)
	assert.Equal(t, "sk-explicit", req.APIKey)
	assert.Equal(t, "custom", req.SystemPrompt)
}

func TestPrepare_DefaultVendor(t *testing.T) {
	f := newFixture(t)

	req, err := f.runner.Prepare(runner.Job{Request: ai.Request{UserInput: "x"}})

	require.NoError(t, err)
	assert.Equal(t, settings.Defaults().DefaultVendor, req.Vendor)
	assert.Equal(t, settings.Defaults().DefaultModel, req.Model)
}

func TestRun_UnknownPattern(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner.Run(context.Background(), runner.Job{
		Request: ai.Request{Vendor: "openai", Model: "gpt-4o"},
		Pattern: "nope",
	}, func(string) error { return nil })

	assert.ErrorIs(t, err, patterns.ErrPatternNotFound)
	_, statErr := os.Stat(f.export)
	assert.True(t, os.IsNotExist(statErr), "no run should be exported")
}

func TestRun_FailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.ai.err = &ai.NoContentError{Vendor: "OpenAI"}

	_, err := f.runner.Run(context.Background(), runner.Job{Request: ai.Request{Vendor: "openai", Model: "gpt-4o"}}, func(string) error { return nil })

	assert.ErrorIs(t, err, ai.ErrNoContent)
	b, rerr := os.ReadFile(f.export)
	require.NoError(t, rerr)
	assert.Contains(t, string(b), "Status:   failed")
}

func TestExecute_Cancel(t *testing.T) {
	f := newFixture(t)
	f.ai.block = true

	rn, ctx, req, err := f.runner.Start(context.Background(), runner.Job{Request: ai.Request{Vendor: "openai", Model: "gpt-4o"}})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.runner.Execute(ctx, rn, req, func(string) error { return nil }) }()

	require.NoError(t, f.runner.Runs().Cancel(rn.ID))

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, run.ErrCancelled))
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	assert.Equal(t, run.StatusCancelled, rn.Status())
}

func TestErrorChunk(t *testing.T) {
	chunk := runner.ErrorChunk(errors.New("Unsupported vendor"))
	assert.True(t, strings.HasPrefix(chunk, "\n\n❌ **Error:** Unsupported vendor"))
}

func TestStart_RejectedRequestRegistersNothing(t *testing.T) {
	f := newFixture(t)
	f.ai.checkErr = ai.ErrUnsupportedVendor

	_, err := f.runner.Run(context.Background(), runner.Job{Request: ai.Request{Vendor: "bogus", Model: "m"}}, func(string) error { return nil })

	assert.ErrorIs(t, err, ai.ErrUnsupportedVendor)
	assert.Empty(t, f.runner.Runs().Active())
	assert.Empty(t, f.ai.got.Model, "rejected requests are never dispatched")
	_, statErr := os.Stat(f.export)
	assert.True(t, os.IsNotExist(statErr), "no run should be exported")
}

func TestPrepare_SamplingDefaults(t *testing.T) {
	f := newFixture(t)
	s := f.settings.Load()
	s.DefaultTemperature = 0.3
	s.DefaultTopP = 0.5
	require.NoError(t, f.settings.Save(s))

	req, err := f.runner.Prepare(runner.Job{Request: ai.Request{Vendor: "openai", Model: "gpt-4o"}})
	require.NoError(t, err)
	require.NotNil(t, req.Temperature)
	require.NotNil(t, req.TopP)
	assert.InDelta(t, 0.3, *req.Temperature, 1e-9)
	assert.InDelta(t, 0.5, *req.TopP, 1e-9)

	// an explicit zero is kept, not replaced by the stored default
	req, err = f.runner.Prepare(runner.Job{Request: ai.Request{Vendor: "openai", Model: "gpt-4o", Temperature: ai.Float(0)}})
	require.NoError(t, err)
	assert.Zero(t, *req.Temperature)
	assert.InDelta(t, 0.5, *req.TopP, 1e-9)
}
