package run

import (
	"context"
	"strings"
	"sync"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Meta describes what a run was started for.
type Meta struct {
	Vendor  string `json:"vendor"`
	Model   string `json:"model"`
	Pattern string `json:"pattern,omitempty"`
	Input   string `json:"-"`
	// Owner groups runs by origin, e.g. a socket id, so they can be
	// cancelled together.
	Owner string `json:"owner,omitempty"`
}

// Run is one in-flight completion.
type Run struct {
	ID        string
	Meta      Meta
	StartedAt time.Time

	mu      sync.Mutex
	status  Status
	err     string
	endedAt time.Time
	chunks  int
	output  strings.Builder
	cancel  context.CancelFunc
}

// Snapshot is a copy of a run's state safe to serialize.
type Snapshot struct {
	ID        string    `json:"id"`
	Meta      Meta      `json:"meta"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Chunks    int       `json:"chunks"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitzero"`
}

// Append records a streamed fragment.
func (r *Run) Append(chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks++
	r.output.WriteString(chunk)
}

// Output returns everything streamed so far.
func (r *Run) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output.String()
}

func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:        r.ID,
		Meta:      r.Meta,
		Status:    r.status,
		Error:     r.err,
		Chunks:    r.chunks,
		StartedAt: r.StartedAt,
		EndedAt:   r.endedAt,
	}
}
