package session

import (
	"context"

	"github.com/codeclub/liveclass/internal/event"
)

// Directory resolves identity, role and roster facts. It fronts the
// platform's user/group persistence, which is external to the session
// engine.
//
// Lookups keyed by team or class return a NotFoundError when the entity
// does not exist.
type Directory interface {
	// HasRole reports whether the user holds the platform role (student or
	// curator; elder is a per-team designation, see TeamElder).
	HasRole(ctx context.Context, userID string, role event.Role) (bool, error)
	// TeamClass returns the class a team belongs to.
	TeamClass(ctx context.Context, teamID int) (int, error)
	// TeamElder returns the user id of the team's designated leader.
	TeamElder(ctx context.Context, teamID int) (string, error)
	// ClassInSession reports whether the class is currently live.
	ClassInSession(ctx context.Context, classID int) (bool, error)
	// TaskAssigned reports whether the task is assigned to the class.
	TaskAssigned(ctx context.Context, classID, taskID int) (bool, error)
	// StudentTeam returns the team the student belongs to within the class,
	// or a NotFoundError when the student has no team there.
	StudentTeam(ctx context.Context, classID int, userID string) (int, error)
}

// DetermineRole resolves the role a user acts under within a team: curators
// outrank the elder designation, the elder outranks plain membership.
func DetermineRole(ctx context.Context, dir Directory, teamID int, userID string) (event.Role, error) {
	curator, err := dir.HasRole(ctx, userID, event.Curator)
	if err != nil {
		return 0, err
	}
	if curator {
		return event.Curator, nil
	}

	elder, err := dir.TeamElder(ctx, teamID)
	if err != nil {
		return 0, err
	}
	if elder == userID {
		return event.Elder, nil
	}
	return event.Student, nil
}
