// Package timing records how long each stage of a storefront call took and
// reports it in the Storefront-Timing response header.
//
// The header is an RFC 8941 Dictionary of integer milliseconds:
//
//	Storefront-Timing: launch=812, navigate=430, widget=1210, dispatch=96
package timing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dunglas/httpsfv"
)

// HeaderName is the response header carrying recorded phases.
const HeaderName = "Storefront-Timing"

// Phases recorded by the bridge.
const (
	PhaseLaunch   = "launch"
	PhaseNavigate = "navigate"
	PhaseWidget   = "widget"
	PhaseDispatch = "dispatch"
)

// Entry is one recorded phase.
type Entry struct {
	Phase    string
	Duration time.Duration
}

// Recorder collects phase durations for a single request.
// A nil *Recorder is valid and discards everything.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// Observe adds d to phase. Repeated phases accumulate.
func (r *Recorder) Observe(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].Phase == phase {
			r.entries[i].Duration += d
			return
		}
	}
	r.entries = append(r.entries, Entry{Phase: phase, Duration: d})
}

// Track starts timing phase and returns the func that stops it.
//
//	defer rec.Track(timing.PhaseNavigate)()
func (r *Recorder) Track(phase string) func() {
	start := time.Now()
	return func() {
		r.Observe(phase, time.Since(start))
	}
}

// Entries returns recorded phases in first-observed order.
func (r *Recorder) Entries() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Header serializes the recorded phases. Returns "" when nothing was recorded.
func (r *Recorder) Header() (string, error) {
	entries := r.Entries()
	if len(entries) == 0 {
		return "", nil
	}

	dict := httpsfv.NewDictionary()
	for _, e := range entries {
		dict.Add(e.Phase, httpsfv.NewItem(e.Duration.Milliseconds()))
	}
	return httpsfv.Marshal(dict)
}

// Parse decodes a Storefront-Timing header value.
// Members that are not integer items are rejected.
func Parse(header string) ([]Entry, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("empty timing header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid timing header: %w", err)
	}

	entries := make([]Entry, 0, len(dict.Names()))
	for _, name := range dict.Names() {
		member, _ := dict.Get(name)
		item, ok := member.(httpsfv.Item)
		if !ok {
			return nil, fmt.Errorf("phase %s must be an item", name)
		}
		ms, ok := item.Value.(int64)
		if !ok {
			return nil, fmt.Errorf("phase %s must be an integer", name)
		}
		entries = append(entries, Entry{Phase: name, Duration: time.Duration(ms) * time.Millisecond})
	}
	return entries, nil
}

type contextKey struct{}

// WithRecorder attaches r to ctx.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext returns the Recorder attached to ctx, or nil.
func FromContext(ctx context.Context) *Recorder {
	r, _ := ctx.Value(contextKey{}).(*Recorder)
	return r
}
