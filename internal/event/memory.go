package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog is an in-process Log for tests and single-node dev runs. Append
// order is the authoritative order, so same-timestamp events still derive
// deterministically.
type MemoryLog struct {
	mu     sync.RWMutex
	events []Event
	seq    int64
}

var _ Log = (*MemoryLog)(nil)

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(ctx context.Context, ev *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	l.seq++
	ev.Seq = l.seq
	l.events = append(l.events, *ev)
	return nil
}

func matches(ev *Event, types []Type) bool {
	for _, t := range types {
		if ev.Type == t {
			return true
		}
	}
	return false
}

func (l *MemoryLog) Latest(ctx context.Context, teamID int, types ...Type) (*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		ev := l.events[i]
		if ev.TeamID == teamID && matches(&ev, types) {
			return &ev, nil
		}
	}
	return nil, nil
}

func (l *MemoryLog) LatestByActor(ctx context.Context, teamID int, actorID string, types ...Type) (*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		ev := l.events[i]
		if ev.TeamID == teamID && ev.ActorID == actorID && matches(&ev, types) {
			return &ev, nil
		}
	}
	return nil, nil
}

func (l *MemoryLog) ActorIDs(ctx context.Context, teamID int, types ...Type) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for i := range l.events {
		ev := l.events[i]
		if ev.TeamID != teamID || ev.ActorID == "" || !matches(&ev, types) {
			continue
		}
		if !seen[ev.ActorID] {
			seen[ev.ActorID] = true
			ids = append(ids, ev.ActorID)
		}
	}
	return ids, nil
}

func (l *MemoryLog) ByTeam(ctx context.Context, teamID int) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, ev := range l.events {
		if ev.TeamID == teamID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (l *MemoryLog) ByClass(ctx context.Context, classID int) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, ev := range l.events {
		if ev.ClassID == classID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (l *MemoryLog) ByClassBetween(ctx context.Context, classID int, from, to time.Time) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, ev := range l.events {
		if ev.ClassID != classID {
			continue
		}
		if ev.Time.Before(from) || !ev.Time.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
