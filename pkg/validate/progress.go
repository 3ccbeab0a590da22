package validate

import "sync"

// ProgressTracker is a shared reentrant busy-counter. Overlapping validation
// runs each call Start/Stop, but at most one start and one stop signal bound
// the whole set, so the editor shows a single spinner for concurrent work.
type ProgressTracker struct {
	mu      sync.Mutex
	count   int
	onStart func()
	onStop  func()
}

// NewProgressTracker creates a tracker emitting through the given callbacks.
func NewProgressTracker(onStart, onStop func()) *ProgressTracker {
	return &ProgressTracker{onStart: onStart, onStop: onStop}
}

// Start increments the busy count, emitting the start signal on the
// transition from idle.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	wasIdle := p.count == 0
	p.count++
	p.mu.Unlock()
	if wasIdle && p.onStart != nil {
		p.onStart()
	}
}

// Stop decrements the busy count, clamping at zero and emitting the stop
// signal on the transition to idle. Extra Stop calls while idle are no-ops.
func (p *ProgressTracker) Stop() {
	p.mu.Lock()
	if p.count == 0 {
		p.mu.Unlock()
		return
	}
	p.count--
	idle := p.count == 0
	p.mu.Unlock()
	if idle && p.onStop != nil {
		p.onStop()
	}
}

// Busy reports whether any run is in flight.
func (p *ProgressTracker) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count > 0
}
