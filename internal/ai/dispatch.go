package ai

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher routes a Request to the Streamer registered for its vendor tag.
type Dispatcher struct {
	log       zerolog.Logger
	streamers map[string]Streamer
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{log: log, streamers: make(map[string]Streamer)}
}

// Register binds a vendor tag to a Streamer, replacing any earlier binding.
func (d *Dispatcher) Register(vendor string, s Streamer) {
	d.streamers[Request{Vendor: vendor}.VendorTag()] = s
}

// Vendors returns the registered tags in sorted order.
func (d *Dispatcher) Vendors() []string {
	out := make([]string, 0, len(d.streamers))
	for k := range d.streamers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Check reports whether req could be dispatched: its vendor is registered
// and it carries a model and, where needed, an API key.
func (d *Dispatcher) Check(req Request) error {
	_, err := d.lookup(req)
	return err
}

func (d *Dispatcher) lookup(req Request) (Streamer, error) {
	s, ok := d.streamers[req.VendorTag()]
	if !ok {
		return nil, ErrUnsupportedVendor
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dispatch validates req and streams it through the matching vendor adapter.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, emit EmitFunc) error {
	vendor := req.VendorTag()
	s, err := d.lookup(req)
	if err != nil {
		return err
	}

	start := time.Now()
	chunks := 0
	err = s.Stream(ctx, req, func(chunk string) error {
		chunks++
		return emit(chunk)
	})
	d.log.Info().
		Str("vendor", vendor).
		Str("model", req.Model).
		Int("chunks", chunks).
		Dur("dur", time.Since(start)).
		Err(err).
		Msg("run")
	return err
}
