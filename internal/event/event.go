package event

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Role is a session-scoped actor role. The numeric value doubles as the
// lock-preemption priority: a higher role may take over a lower role's lock.
type Role int

const (
	Student Role = iota + 1
	Elder
	Curator
)

var roleNames = map[Role]string{
	Student: "student",
	Elder:   "elder",
	Curator: "curator",
}

var roleFromName = map[string]Role{
	"student": Student,
	"elder":   Elder,
	"curator": Curator,
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return "unknown"
}

// Priority returns the lock-preemption rank (curator > elder > student).
func (r Role) Priority() int { return int(r) }

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := roleFromName[s]; ok {
		*r = v
	}
	return nil
}

func (r Role) Value() (driver.Value, error) { return r.String(), nil }

func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*r = roleFromName[v]
	case []byte:
		*r = roleFromName[string(v)]
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
	return nil
}

// Type classifies session events. The set is closed: derived session state
// is defined entirely by which of these appears last in the log.
type Type int

const (
	HandRaised Type = iota + 1
	HandLowered
	TeamBlocked
	TeamUnblocked
	CuratorJoinedTeam
	CuratorLeftTeam
	CuratorJoinedClass
	CuratorLeftClass
	StudentJoinedClass
	StudentLeftClass
	TaskSelected
	SolutionSubmitted
	SolutionResult
)

var typeNames = map[Type]string{
	HandRaised:         "hand_raised",
	HandLowered:        "hand_lowered",
	TeamBlocked:        "team_blocked",
	TeamUnblocked:      "team_unblocked",
	CuratorJoinedTeam:  "curator_joined_team",
	CuratorLeftTeam:    "curator_left_team",
	CuratorJoinedClass: "curator_joined_class",
	CuratorLeftClass:   "curator_left_class",
	StudentJoinedClass: "student_joined_class",
	StudentLeftClass:   "student_left_class",
	TaskSelected:       "task_selected",
	SolutionSubmitted:  "solution_submitted",
	SolutionResult:     "solution_result",
}

var typeFromName = make(map[string]Type, len(typeNames))

func init() {
	for t, n := range typeNames {
		typeFromName[n] = t
	}
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := typeFromName[s]; ok {
		*t = v
	}
	return nil
}

func (t Type) Value() (driver.Value, error) { return t.String(), nil }

func (t *Type) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*t = typeFromName[v]
	case []byte:
		*t = typeFromName[string(v)]
	default:
		return fmt.Errorf("cannot scan %T into Type", src)
	}
	return nil
}

// Event is an immutable record of something that happened during a live
// class. Events are only ever appended; every mutable-looking session fact
// (blocked, hand raised, joined curators, selected task) is derived from the
// latest event of the relevant types.
//
// Zero-valued reference fields mean "not set": team/class/task ids are
// 1-based, actor and submission ids are empty strings when absent.
type Event struct {
	ID           string    `json:"id" db:"id"`
	Seq          int64     `json:"-" db:"seq"`
	Time         time.Time `json:"time" db:"time"`
	Type         Type      `json:"type" db:"type"`
	TeamID       int       `json:"teamId,omitempty" db:"team_id"`
	ClassID      int       `json:"classId,omitempty" db:"class_id"`
	TaskID       int       `json:"taskId,omitempty" db:"task_id"`
	SubmissionID string    `json:"submissionId,omitempty" db:"submission_id"`
	ActorID      string    `json:"actorId,omitempty" db:"actor_id"`
	ActorRole    Role      `json:"actorRole,omitempty" db:"actor_role"`
}

// Log is the append-only event store. Latest-style queries return (nil, nil)
// when no matching event exists; the caller treats absence as the "off"
// branch of the derived fact.
type Log interface {
	// Append persists the event, assigning ID and Time if unset.
	Append(ctx context.Context, ev *Event) error
	// Latest returns the most recent team event whose type is in types.
	Latest(ctx context.Context, teamID int, types ...Type) (*Event, error)
	// LatestByActor is Latest additionally filtered by actor id.
	LatestByActor(ctx context.Context, teamID int, actorID string, types ...Type) (*Event, error)
	// ActorIDs returns the distinct actor ids appearing on team events of
	// the given types.
	ActorIDs(ctx context.Context, teamID int, types ...Type) ([]string, error)
	// ByTeam returns all events for a team in append order.
	ByTeam(ctx context.Context, teamID int) ([]Event, error)
	// ByClass returns all events for a class in append order.
	ByClass(ctx context.Context, classID int) ([]Event, error)
	// ByClassBetween returns class events with from <= time < to.
	ByClassBetween(ctx context.Context, classID int, from, to time.Time) ([]Event, error)
}
