package run

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrCancelled   = errors.New("run cancelled")
)

// Manager tracks in-flight runs so they can be listed and cancelled.
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewManager() *Manager {
	return &Manager{runs: make(map[string]*Run)}
}

// Start registers a new run and returns it with a context that is cancelled
// by Cancel, CancelOwner, Finish, or the parent.
func (m *Manager) Start(parent context.Context, meta Meta) (*Run, context.Context) {
	ctx, cancel := context.WithCancelCause(parent)
	r := &Run{
		ID:        uuid.NewString(),
		Meta:      meta,
		StartedAt: time.Now().UTC(),
		status:    StatusRunning,
		cancel:    func() { cancel(ErrCancelled) },
	}

	m.mu.Lock()
	m.runs[r.ID] = r
	m.mu.Unlock()
	return r, ctx
}

func (m *Manager) Get(id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.runs[id]
	if r == nil {
		return nil, ErrRunNotFound
	}
	return r, nil
}

// Cancel stops a running run. The run stays registered until Finish.
func (m *Manager) Cancel(id string) error {
	r, err := m.Get(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if r.status == StatusRunning {
		r.status = StatusCancelled
	}
	r.mu.Unlock()
	r.cancel()
	return nil
}

// CancelOwner cancels every run started by owner and returns how many.
func (m *Manager) CancelOwner(owner string) int {
	m.mu.RLock()
	var ids []string
	for id, r := range m.runs {
		if r.Meta.Owner == owner {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if m.Cancel(id) == nil {
			n++
		}
	}
	return n
}

// Finish unregisters the run and records its outcome. A run that finished
// without error is completed even if a cancel arrived after its stream ended.
func (m *Manager) Finish(id string, runErr error) (*Run, error) {
	m.mu.Lock()
	r := m.runs[id]
	delete(m.runs, id)
	m.mu.Unlock()
	if r == nil {
		return nil, ErrRunNotFound
	}

	r.mu.Lock()
	r.endedAt = time.Now().UTC()
	switch {
	case runErr == nil:
		r.status = StatusCompleted
	case r.status == StatusCancelled:
	case errors.Is(runErr, context.Canceled):
		r.status = StatusCancelled
	default:
		r.status = StatusFailed
	}
	if runErr != nil {
		r.err = runErr.Error()
	}
	r.mu.Unlock()
	r.cancel()
	return r, nil
}

// Active returns snapshots of the registered runs, oldest first.
func (m *Manager) Active() []Snapshot {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r.Snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
