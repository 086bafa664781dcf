// Package stats maintains aggregate activity counters derived from the event
// stream and persists them across restarts. The numbers feed the instructor
// dashboard; nothing in the engine's behavior depends on them.
package stats

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/codeclub/liveclass/internal/event"
)

const saveInterval = 30 * time.Second

// Tracker observes appended session events and maintains aggregate counters.
// It receives events through PublishEvent and periodically persists the
// accumulated snapshot to disk.
type Tracker struct {
	persist *Store
	snap    *Snapshot
	events  chan event.Event
	mu      sync.Mutex
	dirty   bool
}

// NewTracker creates a Tracker backed by the given persistence store,
// loading any existing snapshot from disk. The caller must run Run in a
// goroutine.
func NewTracker(persist *Store) (*Tracker, error) {
	snap, err := persist.Load()
	if err != nil {
		return nil, err
	}
	return &Tracker{
		persist: persist,
		snap:    snap,
		events:  make(chan event.Event, 256),
	}, nil
}

// PublishEvent enqueues an appended event for aggregation. Never blocks; if
// the tracker falls behind, events are dropped rather than stalling the
// session engine.
func (t *Tracker) PublishEvent(ev event.Event) {
	select {
	case t.events <- ev:
	default:
		log.Printf("stats: event buffer full, dropping %s", ev.Type)
	}
}

// Run processes events and periodically saves the dirty snapshot to disk.
// It blocks until ctx is cancelled, then performs a final save.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.save()
			return
		case ev := <-t.events:
			t.process(ev)
		case <-ticker.C:
			if t.dirty {
				t.save()
			}
		}
	}
}

// Snapshot returns a deep copy of the current aggregates.
func (t *Tracker) Snapshot() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap.clone()
}

func (t *Tracker) process(ev event.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.TotalEvents++
	t.snap.EventsPerType[ev.Type.String()]++
	if ev.TeamID != 0 {
		t.snap.EventsPerTeam[ev.TeamID]++
	}

	switch ev.Type {
	case event.SolutionSubmitted:
		t.snap.TotalSubmissions++
		t.snap.SubmissionsPerTeam[ev.TeamID]++
	case event.HandRaised:
		t.snap.TotalHandRaises++
	}

	t.dirty = true
}

func (t *Tracker) save() {
	t.mu.Lock()
	snap := t.snap.clone()
	t.dirty = false
	t.mu.Unlock()

	if err := t.persist.Save(snap); err != nil {
		log.Printf("Failed to save stats: %v", err)
	}
}
