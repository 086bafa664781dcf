package session

import (
	"context"
	"log"

	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/submission"
)

// Publisher receives every appended event for fan-out to live subscribers.
type Publisher interface {
	PublishEvent(ev event.Event)
}

// MultiPublisher fans each appended event out to several publishers.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishEvent(ev event.Event) {
	for _, p := range m {
		p.PublishEvent(ev)
	}
}

// Executor runs a stored submission against its task's tests asynchronously.
// The result comes back later as a solution_result event through
// RecordResult.
type Executor interface {
	Execute(submissionID string)
}

// Deriver is the sole writer of the event log and the single place session
// facts are derived from it. Every mutator validates its preconditions
// first; nothing is appended when validation fails. Derivations follow one
// rule: the fact equals the "on" branch iff the most recent event among the
// fact's type set is the "on" type, and defaults to off when no such event
// exists.
type Deriver struct {
	log  event.Log
	dir  Directory
	subs submission.Store
	pub  Publisher
	exec Executor

	cache factCache
}

func NewDeriver(lg event.Log, dir Directory, subs submission.Store, pub Publisher) *Deriver {
	return &Deriver{log: lg, dir: dir, subs: subs, pub: pub}
}

// SetExecutor wires the execution backend. Must be called before the first
// SubmitSolution; kept out of the constructor because the runner needs the
// deriver to report results back through.
func (d *Deriver) SetExecutor(exec Executor) {
	d.exec = exec
}

// append persists the event, invalidates the team's derived-fact memo and
// fans the event out.
func (d *Deriver) append(ctx context.Context, ev event.Event) error {
	if err := d.log.Append(ctx, &ev); err != nil {
		return err
	}
	d.cache.invalidate(ev.TeamID)
	if d.pub != nil {
		d.pub.PublishEvent(ev)
	}
	return nil
}

// Derivations.

var blockToggle = []event.Type{event.TeamBlocked, event.TeamUnblocked}
var handToggle = []event.Type{event.HandRaised, event.HandLowered}
var curatorTeamToggle = []event.Type{event.CuratorJoinedTeam, event.CuratorLeftTeam}

// IsBlocked reports whether the team is barred from submitting.
func (d *Deriver) IsBlocked(ctx context.Context, teamID int) (bool, error) {
	return d.cache.bool(teamID, "blocked", func() (bool, error) {
		ev, err := d.log.Latest(ctx, teamID, blockToggle...)
		if err != nil {
			return false, err
		}
		return ev != nil && ev.Type == event.TeamBlocked, nil
	})
}

// IsHandRaised reports whether the team's hand is up.
func (d *Deriver) IsHandRaised(ctx context.Context, teamID int) (bool, error) {
	return d.cache.bool(teamID, "hand", func() (bool, error) {
		ev, err := d.log.Latest(ctx, teamID, handToggle...)
		if err != nil {
			return false, err
		}
		return ev != nil && ev.Type == event.HandRaised, nil
	})
}

// IsCuratorJoined reports whether the curator's latest join/leave event for
// the team is a join.
func (d *Deriver) IsCuratorJoined(ctx context.Context, teamID int, curatorID string) (bool, error) {
	ev, err := d.log.LatestByActor(ctx, teamID, curatorID, curatorTeamToggle...)
	if err != nil {
		return false, err
	}
	return ev != nil && ev.Type == event.CuratorJoinedTeam, nil
}

// JoinedCurators lists the curators currently joined to the team. The set is
// derived independently per curator id.
func (d *Deriver) JoinedCurators(ctx context.Context, teamID int) ([]string, error) {
	ids, err := d.log.ActorIDs(ctx, teamID, curatorTeamToggle...)
	if err != nil {
		return nil, err
	}
	joined := make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := d.IsCuratorJoined(ctx, teamID, id)
		if err != nil {
			return nil, err
		}
		if ok {
			joined = append(joined, id)
		}
	}
	return joined, nil
}

// SelectedTask returns the team's active task, if any.
func (d *Deriver) SelectedTask(ctx context.Context, teamID int) (int, bool, error) {
	ev, err := d.log.Latest(ctx, teamID, event.TaskSelected)
	if err != nil {
		return 0, false, err
	}
	if ev == nil || ev.TaskID == 0 {
		return 0, false, nil
	}
	return ev.TaskID, true, nil
}

// TeamStatus bundles the per-team derived facts for status queries.
type TeamStatus struct {
	Blocked        bool `json:"blocked"`
	HandRaised     bool `json:"handRaised"`
	SelectedTaskID int  `json:"selectedTaskId,omitempty"`
}

func (d *Deriver) Status(ctx context.Context, teamID int) (TeamStatus, error) {
	var st TeamStatus
	var err error
	if st.Blocked, err = d.IsBlocked(ctx, teamID); err != nil {
		return st, err
	}
	if st.HandRaised, err = d.IsHandRaised(ctx, teamID); err != nil {
		return st, err
	}
	taskID, ok, err := d.SelectedTask(ctx, teamID)
	if err != nil {
		return st, err
	}
	if ok {
		st.SelectedTaskID = taskID
	}
	return st, nil
}

// Mutators.

// teamClassInSession resolves the team's class and requires it to be live.
func (d *Deriver) teamClassInSession(ctx context.Context, teamID int) (int, error) {
	classID, err := d.dir.TeamClass(ctx, teamID)
	if err != nil {
		return 0, err
	}
	in, err := d.dir.ClassInSession(ctx, classID)
	if err != nil {
		return 0, err
	}
	if !in {
		return 0, &StateError{Reason: "class is not in session"}
	}
	return classID, nil
}

func (d *Deriver) requireRole(ctx context.Context, userID string, role event.Role) error {
	ok, err := d.dir.HasRole(ctx, userID, role)
	if err != nil {
		return err
	}
	if !ok {
		return &RoleError{Reason: "user " + userID + " does not hold role " + role.String()}
	}
	return nil
}

func (d *Deriver) requireElder(ctx context.Context, teamID int, userID string) error {
	elder, err := d.dir.TeamElder(ctx, teamID)
	if err != nil {
		return err
	}
	if elder != userID {
		return &RoleError{Reason: "only the team elder may perform this action"}
	}
	return nil
}

// ToggleHand flips the team's hand-raised state. Elder only. Returns the new
// state.
func (d *Deriver) ToggleHand(ctx context.Context, teamID int, userID string) (bool, error) {
	classID, err := d.teamClassInSession(ctx, teamID)
	if err != nil {
		return false, err
	}
	if err := d.requireElder(ctx, teamID, userID); err != nil {
		return false, err
	}

	raised, err := d.IsHandRaised(ctx, teamID)
	if err != nil {
		return false, err
	}
	typ := event.HandRaised
	if raised {
		typ = event.HandLowered
	}
	err = d.append(ctx, event.Event{
		Type: typ, TeamID: teamID, ClassID: classID,
		ActorID: userID, ActorRole: event.Elder,
	})
	if err != nil {
		return false, err
	}
	log.Printf("team %d hand %s by elder %s", teamID, typ, userID)
	return !raised, nil
}

// SetBlocked blocks or unblocks the team's submissions. Curator only.
func (d *Deriver) SetBlocked(ctx context.Context, teamID int, userID string, blocked bool) error {
	classID, err := d.teamClassInSession(ctx, teamID)
	if err != nil {
		return err
	}
	if err := d.requireRole(ctx, userID, event.Curator); err != nil {
		return err
	}

	typ := event.TeamUnblocked
	if blocked {
		typ = event.TeamBlocked
	}
	err = d.append(ctx, event.Event{
		Type: typ, TeamID: teamID, ClassID: classID,
		ActorID: userID, ActorRole: event.Curator,
	})
	if err != nil {
		return err
	}
	log.Printf("team %d blocked=%v by curator %s", teamID, blocked, userID)
	return nil
}

// JoinTeamAsCurator records a curator's presence on a team.
func (d *Deriver) JoinTeamAsCurator(ctx context.Context, teamID int, userID string) error {
	classID, err := d.teamClassInSession(ctx, teamID)
	if err != nil {
		return err
	}
	if err := d.requireRole(ctx, userID, event.Curator); err != nil {
		return err
	}
	return d.append(ctx, event.Event{
		Type: event.CuratorJoinedTeam, TeamID: teamID, ClassID: classID,
		ActorID: userID, ActorRole: event.Curator,
	})
}

// LeaveTeamAsCurator records a curator leaving a team. Departure is always
// allowed, even after the class ends.
func (d *Deriver) LeaveTeamAsCurator(ctx context.Context, teamID int, userID string) error {
	classID, err := d.dir.TeamClass(ctx, teamID)
	if err != nil {
		return err
	}
	if err := d.requireRole(ctx, userID, event.Curator); err != nil {
		return err
	}
	return d.append(ctx, event.Event{
		Type: event.CuratorLeftTeam, TeamID: teamID, ClassID: classID,
		ActorID: userID, ActorRole: event.Curator,
	})
}

// JoinClassAsStudent records a student joining a live class. The student
// must be on one of the class's teams.
func (d *Deriver) JoinClassAsStudent(ctx context.Context, classID int, userID string) error {
	in, err := d.dir.ClassInSession(ctx, classID)
	if err != nil {
		return err
	}
	if !in {
		return &StateError{Reason: "class is not in session"}
	}
	if err := d.requireRole(ctx, userID, event.Student); err != nil {
		return err
	}
	if _, err := d.dir.StudentTeam(ctx, classID, userID); err != nil {
		if IsNotFound(err) {
			return &StateError{Reason: "student is not assigned to any team in this class"}
		}
		return err
	}
	return d.append(ctx, event.Event{
		Type: event.StudentJoinedClass, ClassID: classID,
		ActorID: userID, ActorRole: event.Student,
	})
}

// LeaveClassAsStudent records departure; no in-session check so a student
// can always record leaving.
func (d *Deriver) LeaveClassAsStudent(ctx context.Context, classID int, userID string) error {
	if _, err := d.dir.ClassInSession(ctx, classID); err != nil {
		return err
	}
	if err := d.requireRole(ctx, userID, event.Student); err != nil {
		return err
	}
	return d.append(ctx, event.Event{
		Type: event.StudentLeftClass, ClassID: classID,
		ActorID: userID, ActorRole: event.Student,
	})
}

// JoinClassAsCurator records a curator joining a live class.
func (d *Deriver) JoinClassAsCurator(ctx context.Context, classID int, userID string) error {
	in, err := d.dir.ClassInSession(ctx, classID)
	if err != nil {
		return err
	}
	if !in {
		return &StateError{Reason: "class is not in session"}
	}
	if err := d.requireRole(ctx, userID, event.Curator); err != nil {
		return err
	}
	return d.append(ctx, event.Event{
		Type: event.CuratorJoinedClass, ClassID: classID,
		ActorID: userID, ActorRole: event.Curator,
	})
}

// LeaveClassAsCurator records departure without an in-session check.
func (d *Deriver) LeaveClassAsCurator(ctx context.Context, classID int, userID string) error {
	if _, err := d.dir.ClassInSession(ctx, classID); err != nil {
		return err
	}
	if err := d.requireRole(ctx, userID, event.Curator); err != nil {
		return err
	}
	return d.append(ctx, event.Event{
		Type: event.CuratorLeftClass, ClassID: classID,
		ActorID: userID, ActorRole: event.Curator,
	})
}

// SelectTask marks the task the team is working on. Elder only; the task
// must be assigned to the team's class.
func (d *Deriver) SelectTask(ctx context.Context, teamID, taskID int, userID string) error {
	classID, err := d.teamClassInSession(ctx, teamID)
	if err != nil {
		return err
	}
	if err := d.requireElder(ctx, teamID, userID); err != nil {
		return err
	}
	assigned, err := d.dir.TaskAssigned(ctx, classID, taskID)
	if err != nil {
		return err
	}
	if !assigned {
		return &StateError{Reason: "task is not assigned to this class"}
	}
	err = d.append(ctx, event.Event{
		Type: event.TaskSelected, TeamID: teamID, ClassID: classID, TaskID: taskID,
		ActorID: userID, ActorRole: event.Elder,
	})
	if err != nil {
		return err
	}
	log.Printf("team %d selected task %d by elder %s", teamID, taskID, userID)
	return nil
}

// SubmitSolution stores the solution, records the submission event and hands
// the submission to the executor. The execution result arrives later as a
// separate solution_result event.
func (d *Deriver) SubmitSolution(ctx context.Context, teamID, taskID int, userID, code, language string) (*submission.Submission, error) {
	classID, err := d.teamClassInSession(ctx, teamID)
	if err != nil {
		return nil, err
	}

	blocked, err := d.IsBlocked(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, &StateError{Reason: "team is blocked from submitting solutions"}
	}

	if err := d.requireElder(ctx, teamID, userID); err != nil {
		return nil, err
	}

	assigned, err := d.dir.TaskAssigned(ctx, classID, taskID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, &StateError{Reason: "task is not assigned to this class"}
	}

	sub := &submission.Submission{
		TeamID: teamID, TaskID: taskID,
		Code: code, Language: language,
		Status: submission.New,
	}
	if err := d.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	err = d.append(ctx, event.Event{
		Type: event.SolutionSubmitted, TeamID: teamID, ClassID: classID, TaskID: taskID,
		SubmissionID: sub.ID, ActorID: userID, ActorRole: event.Elder,
	})
	if err != nil {
		return nil, err
	}

	if d.exec != nil {
		d.exec.Execute(sub.ID)
	}
	log.Printf("team %d submitted solution %s for task %d by elder %s", teamID, sub.ID, taskID, userID)
	return sub, nil
}

// RecordResult appends the solution_result event for an executed submission.
// Called by the executor once the run finishes; never validated against
// session state since the run already happened.
func (d *Deriver) RecordResult(ctx context.Context, sub *submission.Submission) error {
	classID, err := d.dir.TeamClass(ctx, sub.TeamID)
	if err != nil {
		return err
	}
	return d.append(ctx, event.Event{
		Type: event.SolutionResult, TeamID: sub.TeamID, ClassID: classID, TaskID: sub.TaskID,
		SubmissionID: sub.ID,
	})
}

// Submission returns a stored submission by id.
func (d *Deriver) Submission(ctx context.Context, id string) (*submission.Submission, error) {
	sub, err := d.subs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, NotFound("submission")
	}
	return sub, nil
}

// TeamSubmissions lists a team's submissions in submission order.
func (d *Deriver) TeamSubmissions(ctx context.Context, teamID int) ([]submission.Submission, error) {
	if _, err := d.dir.TeamClass(ctx, teamID); err != nil {
		return nil, err
	}
	return d.subs.ByTeam(ctx, teamID)
}
