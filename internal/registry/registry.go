// Package registry tracks the latest analysis run per analyzer and
// broadcasts run events to subscribers such as the report server and the
// watch loop.
package registry

import (
	"sync"
	"time"

	"github.com/codescope-dev/codescope/internal/engine"
)

// RunInfo holds the outcome of one analysis run.
type RunInfo struct {
	Analyzer    string
	Aggregate   any
	Stats       engine.RunStats
	CompletedAt time.Time
}

// RunEvent represents a change in the run registry.
type RunEvent struct {
	Type      EventType
	Run       *RunInfo
	Timestamp time.Time
}

// EventType represents the type of run event.
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

// RunRegistry manages the latest run per analyzer.
type RunRegistry struct {
	runs     map[string]*RunInfo
	mutex    sync.RWMutex
	watchers []chan RunEvent
}

// NewRunRegistry creates a new run registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{
		runs:     make(map[string]*RunInfo),
		watchers: make([]chan RunEvent, 0),
	}
}

// Register adds or updates the latest run for an analyzer.
func (r *RunRegistry) Register(run *RunInfo) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.runs[run.Analyzer]; exists {
		eventType = EventTypeUpdated
	}
	if run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now()
	}
	r.runs[run.Analyzer] = run

	r.notify(RunEvent{Type: eventType, Run: run, Timestamp: time.Now()})
}

// Get retrieves the latest run for an analyzer.
func (r *RunRegistry) Get(analyzer string) (*RunInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	run, exists := r.runs[analyzer]
	return run, exists
}

// GetAll returns the latest run for every analyzer.
func (r *RunRegistry) GetAll() map[string]*RunInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[string]*RunInfo, len(r.runs))
	for analyzer, run := range r.runs {
		result[analyzer] = run
	}
	return result
}

// Remove drops an analyzer's run from the registry.
func (r *RunRegistry) Remove(analyzer string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	run, exists := r.runs[analyzer]
	if !exists {
		return
	}
	delete(r.runs, analyzer)

	r.notify(RunEvent{Type: EventTypeRemoved, Run: run, Timestamp: time.Now()})
}

// Watch returns a channel that receives run events.
func (r *RunRegistry) Watch() <-chan RunEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan RunEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (r *RunRegistry) UnWatch(ch <-chan RunEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of analyzers with a registered run.
func (r *RunRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.runs)
}

// notify delivers an event to every watcher. Callers must hold the lock.
func (r *RunRegistry) notify(event RunEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
