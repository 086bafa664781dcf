package event

import (
	"context"
	"testing"
	"time"
)

func TestAppendAssignsIDAndTime(t *testing.T) {
	l := NewMemoryLog()
	ev := &Event{Type: HandRaised, TeamID: 1}
	if err := l.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if ev.ID == "" {
		t.Error("Append did not assign an ID")
	}
	if ev.Time.IsZero() {
		t.Error("Append did not assign a time")
	}
	if ev.Seq != 1 {
		t.Errorf("first event Seq = %d, want 1", ev.Seq)
	}
}

func TestLatestPicksMostRecentOfTypeSet(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	for _, typ := range []Type{TeamBlocked, HandRaised, TeamUnblocked, TeamBlocked} {
		if err := l.Append(ctx, &Event{Type: typ, TeamID: 7}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	ev, err := l.Latest(ctx, 7, TeamBlocked, TeamUnblocked)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if ev == nil {
		t.Fatal("Latest returned nil event")
	}
	if ev.Type != TeamBlocked {
		t.Errorf("Latest type = %v, want %v", ev.Type, TeamBlocked)
	}
	if ev.Seq != 4 {
		t.Errorf("Latest Seq = %d, want 4", ev.Seq)
	}
}

func TestLatestMissingTeam(t *testing.T) {
	l := NewMemoryLog()
	ev, err := l.Latest(context.Background(), 42, TeamBlocked, TeamUnblocked)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if ev != nil {
		t.Errorf("Latest for empty log = %+v, want nil", ev)
	}
}

func TestLatestByActorFilters(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	l.Append(ctx, &Event{Type: CuratorJoinedTeam, TeamID: 7, ActorID: "x"})
	l.Append(ctx, &Event{Type: CuratorLeftTeam, TeamID: 7, ActorID: "x"})
	l.Append(ctx, &Event{Type: CuratorJoinedTeam, TeamID: 7, ActorID: "y"})

	ev, err := l.LatestByActor(ctx, 7, "x", CuratorJoinedTeam, CuratorLeftTeam)
	if err != nil {
		t.Fatalf("LatestByActor failed: %v", err)
	}
	if ev == nil || ev.Type != CuratorLeftTeam {
		t.Errorf("LatestByActor(x) = %+v, want curator_left_team", ev)
	}
}

func TestActorIDsDistinct(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	l.Append(ctx, &Event{Type: CuratorJoinedTeam, TeamID: 7, ActorID: "x"})
	l.Append(ctx, &Event{Type: CuratorLeftTeam, TeamID: 7, ActorID: "x"})
	l.Append(ctx, &Event{Type: CuratorJoinedTeam, TeamID: 7, ActorID: "y"})
	l.Append(ctx, &Event{Type: HandRaised, TeamID: 7, ActorID: "z"})

	ids, err := l.ActorIDs(ctx, 7, CuratorJoinedTeam, CuratorLeftTeam)
	if err != nil {
		t.Fatalf("ActorIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "x" || ids[1] != "y" {
		t.Errorf("ActorIDs = %v, want [x y]", ids)
	}
}

func TestByClassBetween(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		l.Append(ctx, &Event{Type: StudentJoinedClass, ClassID: 3, Time: base.Add(time.Duration(i) * time.Minute)})
	}

	evs, err := l.ByClassBetween(ctx, 3, base.Add(time.Minute), base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("ByClassBetween failed: %v", err)
	}
	if len(evs) != 2 {
		t.Errorf("ByClassBetween returned %d events, want 2", len(evs))
	}
}

func TestTypeJSONRoundTrip(t *testing.T) {
	data, err := TaskSelected.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(data) != `"task_selected"` {
		t.Errorf("MarshalJSON = %s, want %q", data, "task_selected")
	}
	var typ Type
	if err := typ.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if typ != TaskSelected {
		t.Errorf("round trip = %v, want %v", typ, TaskSelected)
	}
}

func TestRolePriorityOrder(t *testing.T) {
	if !(Curator.Priority() > Elder.Priority() && Elder.Priority() > Student.Priority()) {
		t.Errorf("priority order broken: curator=%d elder=%d student=%d",
			Curator.Priority(), Elder.Priority(), Student.Priority())
	}
}
