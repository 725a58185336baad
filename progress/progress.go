// Package progress provides a lightweight tracker keeping aggregated step
// counters for one conversational turn.  The tracker instance lives in the
// turn context so every component receiving the context can atomically update
// counters via the Delta helper without a global registry.
package progress

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the planner,
// executor or controller.  Fields are signed so callers can also decrement.
type Delta struct {
	Planned   int
	Executed  int
	Succeeded int
	Failed    int
	Retried   int
	Asked     int
}

// Snapshot is a point-in-time copy of the tracker counters.
type Snapshot struct {
	// Identification, informative only, filled when the turn starts.
	TurnID    string
	Intent    string
	StartedAt time.Time

	PlannedSteps   int
	ExecutedSteps  int
	SucceededSteps int
	FailedSteps    int
	RetriedSteps   int
	AskedQuestions int
}

// Summary renders the counters as a short user-facing fragment, e.g.
// "3 step(s), 1 retried, 1 failed".
func (s Snapshot) Summary() string {
	parts := []string{fmt.Sprintf("%d step(s)", s.ExecutedSteps)}
	if s.RetriedSteps > 0 {
		parts = append(parts, fmt.Sprintf("%d retried", s.RetriedSteps))
	}
	if s.FailedSteps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.FailedSteps))
	}
	if s.AskedQuestions > 0 {
		parts = append(parts, fmt.Sprintf("%d question(s)", s.AskedQuestions))
	}
	return strings.Join(parts, ", ")
}

// Progress keeps aggregated step counters for a single turn.  It is safe for
// concurrent use.
type Progress struct {
	mu       sync.Mutex
	counters Snapshot
	onChange func(Snapshot)
}

// Update applies the supplied delta.  Safe to call from multiple goroutines.
// A registered onChange callback is invoked with a copy of the updated
// counters outside the critical section so it can perform slow work without
// blocking the loop.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}

	p.mu.Lock()

	p.counters.PlannedSteps += d.Planned
	p.counters.ExecutedSteps += d.Executed
	p.counters.SucceededSteps += d.Succeeded
	p.counters.FailedSteps += d.Failed
	p.counters.RetriedSteps += d.Retried
	p.counters.AskedQuestions += d.Asked

	snapshot := p.counters
	cb := p.onChange

	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters suitable for read-only inspection.
func (p *Progress) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// Summary renders the current counters, see Snapshot.Summary.
func (p *Progress) Summary() string {
	return p.Snapshot().Summary()
}

// OnChange registers a callback invoked after every Update.  Passing nil
// disables it; subsequent calls overwrite the previous value.
func (p *Progress) OnChange(cb func(Snapshot)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

// ----------------------------------------------------------------------------
// Context helpers
// ----------------------------------------------------------------------------

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a tracker for a turn, embeds it in a derived context
// and returns both.
func WithNewTracker(ctx context.Context, turnID, intent string, onChange func(Snapshot)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Progress{
		counters: Snapshot{
			TurnID:    turnID,
			Intent:    intent,
			StartedAt: time.Now(),
		},
		onChange: onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the tracker from ctx; ok is false when absent.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx looks up the tracker in ctx (if any) and applies the delta.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
