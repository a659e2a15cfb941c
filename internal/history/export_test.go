package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiliankoe/fabricdash/internal/run"
)

func TestExportCreatesAndAppends(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "history.txt")

	m := run.NewManager()
	r, _ := m.Start(context.Background(), run.Meta{Vendor: "openai", Model: "gpt-4o", Pattern: "summarize", Input: "some article"})
	r.Append("A short ")
	r.Append("summary.")
	if _, err := m.Finish(r.ID, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if err := Export(FromRun(r), file); err != nil {
		t.Fatalf("export: %v", err)
	}

	r2, _ := m.Start(context.Background(), run.Meta{Vendor: "google", Model: "gemini-2.5-flash"})
	if _, err := m.Finish(r2.ID, errors.New("Invalid Google API Key")); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := Export(FromRun(r2), file); err != nil {
		t.Fatalf("second export: %v", err)
	}

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(b)

	if strings.Count(out, "FabricDash Run History") != 1 {
		t.Fatal("header should be written once")
	}
	for _, want := range []string{
		"Run " + r.ID + ": summarize",
		"Model:    openai/gpt-4o",
		"Status:   completed",
		"Input:\nsome article",
		"Output:\nA short summary.",
		"Run " + r2.ID + ": (custom prompt)",
		"Status:   failed",
		"Error:    Invalid Google API Key",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q:\n%s", want, out)
		}
	}
}
