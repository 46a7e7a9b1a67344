package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope-dev/codescope/internal/engine"
)

func TestRegisterAndGet(t *testing.T) {
	reg := NewRunRegistry()

	reg.Register(&RunInfo{
		Analyzer:  "deps",
		Aggregate: map[string]int{"total": 3},
		Stats:     engine.RunStats{Discovered: 2, Computed: 2},
	})

	run, ok := reg.Get("deps")
	require.True(t, ok)
	assert.Equal(t, "deps", run.Analyzer)
	assert.Equal(t, 2, run.Stats.Computed)
	assert.False(t, run.CompletedAt.IsZero())

	_, ok = reg.Get("api")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count())
}

func TestGetAllIsACopy(t *testing.T) {
	reg := NewRunRegistry()
	reg.Register(&RunInfo{Analyzer: "deps"})

	all := reg.GetAll()
	delete(all, "deps")

	assert.Equal(t, 1, reg.Count(), "mutating the snapshot does not affect the registry")
}

func TestWatchReceivesEvents(t *testing.T) {
	reg := NewRunRegistry()
	events := reg.Watch()

	reg.Register(&RunInfo{Analyzer: "deps"})
	reg.Register(&RunInfo{Analyzer: "deps"})
	reg.Remove("deps")

	expectEvent(t, events, EventTypeAdded)
	expectEvent(t, events, EventTypeUpdated)
	expectEvent(t, events, EventTypeRemoved)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	reg := NewRunRegistry()
	events := reg.Watch()

	reg.Remove("nonexistent")

	select {
	case event := <-events:
		t.Fatalf("unexpected event %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnWatchClosesChannel(t *testing.T) {
	reg := NewRunRegistry()
	events := reg.Watch()

	reg.UnWatch(events)

	_, open := <-events
	assert.False(t, open)

	// Registering after UnWatch must not panic.
	reg.Register(&RunInfo{Analyzer: "deps"})
}

func TestSlowWatcherDoesNotBlock(t *testing.T) {
	reg := NewRunRegistry()
	reg.Watch() // never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			reg.Register(&RunInfo{Analyzer: "deps"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("registry blocked on a full watcher channel")
	}
}

func expectEvent(t *testing.T, events <-chan RunEvent, want EventType) {
	t.Helper()
	select {
	case event := <-events:
		assert.Equal(t, want, event.Type)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event %v", want)
	}
}
