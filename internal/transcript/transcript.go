// Package transcript fetches YouTube transcripts by running the bundled
// youtube_transcript.py script.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const ScriptName = "youtube_transcript.py"

var (
	ErrScriptNotFound = errors.New("YouTube script not found")
	ErrInvalidURL     = errors.New("invalid YouTube URL or video ID")
)

// Fetcher locates and runs the transcript script.
type Fetcher struct {
	// ResourceDir holds resources/youtube_transcript.py.
	ResourceDir string
	// Interpreter is the command plus leading args, e.g. ["py", "-3"].
	Interpreter []string
	Timeout     time.Duration
}

// DefaultInterpreter is "py -3" on Windows and "python3" elsewhere.
func DefaultInterpreter() []string {
	if runtime.GOOS == "windows" {
		return []string{"py", "-3"}
	}
	return []string{"python3"}
}

func New(resourceDir string, interpreter string, timeout time.Duration) *Fetcher {
	interp := strings.Fields(interpreter)
	if len(interp) == 0 {
		interp = DefaultInterpreter()
	}
	return &Fetcher{ResourceDir: resourceDir, Interpreter: interp, Timeout: timeout}
}

// Locate returns the script path, trying the resource dir first and then
// src-tauri/resources and resources relative to the working directory.
func (f *Fetcher) Locate() (string, error) {
	primary := filepath.Join(f.ResourceDir, "resources", ScriptName)
	candidates := []string{
		primary,
		filepath.Join("src-tauri", "resources", ScriptName),
		filepath.Join("resources", ScriptName),
	}
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w. Tried: %q and fallbacks.", ErrScriptNotFound, primary)
}

// ExitError carries the script's diagnostic output for a failed run.
type ExitError struct {
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	if msg := strings.TrimSpace(e.Output); msg != "" {
		return msg
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Fetch runs the script for url and returns its standard output.
func (f *Fetcher) Fetch(ctx context.Context, url string, timestamps bool) (string, error) {
	script, err := f.Locate()
	if err != nil {
		return "", err
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	args := append([]string{}, f.Interpreter[1:]...)
	args = append(args, script, "--url", url)
	if timestamps {
		args = append(args, "--timestamps")
	}
	cmd := exec.CommandContext(ctx, f.Interpreter[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		out := stderr.String()
		if strings.TrimSpace(out) == "" {
			out = stdout.String()
		}
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &ExitError{Output: out, Err: err}
	}
	return stdout.String(), nil
}

// Result is the JSON envelope the script prints.
type Result struct {
	Transcript string `json:"transcript"`
	VideoID    string `json:"video_id"`
	Error      string `json:"error,omitempty"`
}

// ErrUndecodable is returned by Decode for output that is not a JSON envelope.
var ErrUndecodable = errors.New("decode transcript output")

// Decode parses the script's JSON output. A reported error becomes an error.
func Decode(out string) (Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &r); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if r.Error != "" {
		return r, errors.New(r.Error)
	}
	return r, nil
}

// Text returns model-ready transcript text from the script's output. The
// JSON envelope's transcript is already formatted; plain-text output from
// older scripts is wrapped with FormatForAI.
func Text(out, url string) (Result, error) {
	res, err := Decode(out)
	if errors.Is(err, ErrUndecodable) {
		plain := strings.TrimSpace(out)
		if plain == "" {
			return Result{}, errors.New("Transcript is empty")
		}
		id, _ := VideoID(url)
		return Result{Transcript: FormatForAI(plain, url), VideoID: id}, nil
	}
	return res, err
}
