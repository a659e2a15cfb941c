package transcript

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeScript installs a shell script under <dir>/resources posing as the
// Python transcript script; tests run it with "sh" as the interpreter.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	res := filepath.Join(dir, "resources")
	if err := os.MkdirAll(res, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p := filepath.Join(res, ScriptName)
	if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func TestLocatePrimary(t *testing.T) {
	dir := t.TempDir()
	want := writeScript(t, dir, "exit 0\n")
	f := New(dir, "sh", 0)
	got, err := f.Locate()
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestLocateFallbacks(t *testing.T) {
	wd := t.TempDir()
	chdir(t, wd)
	f := New(filepath.Join(wd, "nowhere"), "sh", 0)

	if _, err := f.Locate(); !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}

	writeScript(t, wd, "exit 0\n")
	got, err := f.Locate()
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != filepath.Join("resources", ScriptName) {
		t.Fatalf("expected resources fallback, got %s", got)
	}

	writeScript(t, filepath.Join(wd, "src-tauri"), "exit 0\n")
	got, err = f.Locate()
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != filepath.Join("src-tauri", "resources", ScriptName) {
		t.Fatalf("expected src-tauri fallback to win, got %s", got)
	}
}

func TestFetchSuccess(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, `echo "{\"transcript\":\"args: $*\",\"video_id\":\"dQw4w9WgXcQ\"}"`+"\n")
	f := New(dir, "sh", 5*time.Second)

	out, err := f.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ", true)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(out, "--url https://youtu.be/dQw4w9WgXcQ --timestamps") {
		t.Fatalf("unexpected args in output %q", out)
	}

	res, err := Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("expected video id, got %q", res.VideoID)
	}
}

func TestFetchWithoutTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "echo \"$*\"\n")
	f := New(dir, "sh", 0)

	out, err := f.Fetch(context.Background(), "abc", false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if strings.Contains(out, "--timestamps") {
		t.Fatalf("timestamps flag should be absent: %q", out)
	}
}

func TestFetchFailureReturnsStderr(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "echo 'partial' ; echo 'yt-dlp exploded' >&2 ; exit 3\n")
	f := New(dir, "sh", 0)

	_, err := f.Fetch(context.Background(), "x", false)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if err.Error() != "yt-dlp exploded" {
		t.Fatalf("expected stderr text, got %q", err.Error())
	}
}

func TestFetchFailureFallsBackToStdout(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, `echo '{"error": "No URL provided"}' ; exit 1`+"\n")
	f := New(dir, "sh", 0)

	_, err := f.Fetch(context.Background(), "", false)
	if err == nil || !strings.Contains(err.Error(), "No URL provided") {
		t.Fatalf("expected stdout error text, got %v", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "exec sleep 5\n")
	f := New(dir, "sh", 100*time.Millisecond)

	_, err := f.Fetch(context.Background(), "x", false)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDecodeError(t *testing.T) {
	if _, err := Decode(`{"error":"Transcript is empty"}`); err == nil || err.Error() != "Transcript is empty" {
		t.Fatalf("expected script error, got %v", err)
	}
	if _, err := Decode("not json"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDefaultInterpreter(t *testing.T) {
	f := New("", "", 0)
	if len(f.Interpreter) == 0 {
		t.Fatal("interpreter should default")
	}
	f = New("", "py -3", 0)
	if len(f.Interpreter) != 2 || f.Interpreter[1] != "-3" {
		t.Fatalf("expected split interpreter, got %v", f.Interpreter)
	}
}

func TestText(t *testing.T) {
	res, err := Text(`{"transcript":"formatted already","video_id":"dQw4w9WgXcQ"}`, "x")
	if err != nil || res.Transcript != "formatted already" || res.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}

	res, err = Text("plain words\n", "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("plain text: %v", err)
	}
	if !strings.Contains(res.Transcript, "TRANSCRIPT:\nplain words") || res.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("plain output should be wrapped, got %+v", res)
	}

	if _, err := Text(`{"error":"No transcript available"}`, "x"); err == nil {
		t.Fatal("script error should surface")
	}
	if _, err := Text("  ", "x"); err == nil {
		t.Fatal("empty output should fail")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
