package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kiliankoe/fabricdash/internal/run"
)

// Record is one finished run as written to the history file.
type Record struct {
	RunID     string
	Pattern   string
	Vendor    string
	Model     string
	Status    run.Status
	Error     string
	Input     string
	Output    string
	StartedAt time.Time
	EndedAt   time.Time
}

// FromRun builds a Record from a finished run.
func FromRun(r *run.Run) Record {
	snap := r.Snapshot()
	return Record{
		RunID:     snap.ID,
		Pattern:   snap.Meta.Pattern,
		Vendor:    snap.Meta.Vendor,
		Model:     snap.Meta.Model,
		Status:    snap.Status,
		Error:     snap.Error,
		Input:     r.Meta.Input,
		Output:    r.Output(),
		StartedAt: snap.StartedAt,
		EndedAt:   snap.EndedAt,
	}
}

var mu sync.Mutex

// Export appends rec to filename, creating the file and its directory if needed.
func Export(rec Record, filename string) error {
	mu.Lock()
	defer mu.Unlock()

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(filename); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	if !fileExists {
		sb.WriteString("FabricDash Run History\n")
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	}

	pattern := rec.Pattern
	if pattern == "" {
		pattern = "(custom prompt)"
	}
	sb.WriteString(fmt.Sprintf("Run %s: %s\n", rec.RunID, pattern))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	sb.WriteString(fmt.Sprintf("Started:  %s\n", rec.StartedAt.Format("2006-01-02 15:04:05")))
	if !rec.EndedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration: %s\n", rec.EndedAt.Sub(rec.StartedAt).Round(time.Millisecond)))
	}
	sb.WriteString(fmt.Sprintf("Model:    %s/%s\n", rec.Vendor, rec.Model))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", rec.Status))
	if rec.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", rec.Error))
	}
	if rec.Input != "" {
		sb.WriteString("\nInput:\n")
		sb.WriteString(rec.Input)
		sb.WriteString("\n")
	}
	sb.WriteString("\nOutput:\n")
	sb.WriteString(rec.Output)
	sb.WriteString("\n\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
