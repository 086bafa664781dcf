// Package roster is the in-process implementation of the session engine's
// identity and assignment lookups. The production platform fronts these with
// its user/group database; this implementation is loaded from a yaml file
// for dev deployments and built programmatically in tests and mock mode.
package roster

import (
	"context"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/runner"
	"github.com/codeclub/liveclass/internal/session"
)

type Task struct {
	ID    int               `yaml:"id"`
	Tests []runner.TestCase `yaml:"tests"`
}

type Team struct {
	ID      int      `yaml:"id"`
	Elder   string   `yaml:"elder"`
	Members []string `yaml:"members"`
}

type Class struct {
	ID        int    `yaml:"id"`
	InSession bool   `yaml:"inSession"`
	Tasks     []Task `yaml:"tasks"`
	Teams     []Team `yaml:"teams"`
}

type User struct {
	ID    string   `yaml:"id"`
	Roles []string `yaml:"roles"`
}

type File struct {
	Classes []Class `yaml:"classes"`
	Users   []User  `yaml:"users"`
}

type teamEntry struct {
	classID int
	elder   string
	members map[string]bool
}

type classEntry struct {
	inSession bool
	tasks     map[int][]runner.TestCase
}

// Roster answers Directory and TestSource queries from in-memory tables.
type Roster struct {
	mu      sync.RWMutex
	classes map[int]*classEntry
	teams   map[int]*teamEntry
	roles   map[string]map[event.Role]bool
}

var (
	_ session.Directory = (*Roster)(nil)
	_ runner.TestSource = (*Roster)(nil)
)

func New() *Roster {
	return &Roster{
		classes: make(map[int]*classEntry),
		teams:   make(map[int]*teamEntry),
		roles:   make(map[string]map[event.Role]bool),
	}
}

// LoadFile reads a roster definition from a yaml file.
func LoadFile(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	r := New()
	for _, u := range f.Users {
		for _, role := range u.Roles {
			switch role {
			case "student":
				r.AddUser(u.ID, event.Student)
			case "curator":
				r.AddUser(u.ID, event.Curator)
			}
		}
	}
	for _, c := range f.Classes {
		r.AddClass(c.ID, c.InSession)
		for _, t := range c.Tasks {
			r.AddTask(c.ID, t.ID, t.Tests)
		}
		for _, tm := range c.Teams {
			r.AddTeam(tm.ID, c.ID, tm.Elder, tm.Members...)
		}
	}
	return r, nil
}

func (r *Roster) AddUser(userID string, roles ...event.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.roles[userID]
	if !ok {
		set = make(map[event.Role]bool)
		r.roles[userID] = set
	}
	for _, role := range roles {
		set[role] = true
	}
}

func (r *Roster) AddClass(classID int, inSession bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[classID] = &classEntry{inSession: inSession, tasks: make(map[int][]runner.TestCase)}
}

func (r *Roster) AddTask(classID, taskID int, tests []runner.TestCase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.classes[classID]; ok {
		c.tasks[taskID] = tests
	}
}

// AddTeam registers a team; members are implicitly granted the student role.
func (r *Roster) AddTeam(teamID, classID int, elder string, members ...string) {
	r.mu.Lock()
	r.teams[teamID] = &teamEntry{classID: classID, elder: elder, members: make(map[string]bool)}
	for _, m := range members {
		r.teams[teamID].members[m] = true
	}
	r.mu.Unlock()

	for _, m := range members {
		r.AddUser(m, event.Student)
	}
}

// SetClassInSession flips a class's live flag (used when a scheduled class
// starts or ends).
func (r *Roster) SetClassInSession(classID int, in bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.classes[classID]; ok {
		c.inSession = in
	}
}

func (r *Roster) HasRole(ctx context.Context, userID string, role event.Role) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[userID][role], nil
}

func (r *Roster) TeamClass(ctx context.Context, teamID int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[teamID]
	if !ok {
		return 0, session.NotFound("team")
	}
	return t.classID, nil
}

func (r *Roster) TeamElder(ctx context.Context, teamID int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[teamID]
	if !ok {
		return "", session.NotFound("team")
	}
	return t.elder, nil
}

func (r *Roster) ClassInSession(ctx context.Context, classID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[classID]
	if !ok {
		return false, session.NotFound("class")
	}
	return c.inSession, nil
}

func (r *Roster) TaskAssigned(ctx context.Context, classID, taskID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[classID]
	if !ok {
		return false, session.NotFound("class")
	}
	_, assigned := c.tasks[taskID]
	return assigned, nil
}

func (r *Roster) StudentTeam(ctx context.Context, classID int, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, t := range r.teams {
		if t.classID == classID && t.members[userID] {
			return id, nil
		}
	}
	return 0, session.NotFound("team membership")
}

func (r *Roster) TaskTests(ctx context.Context, taskID int) ([]runner.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.classes {
		if tests, ok := c.tasks[taskID]; ok {
			return tests, nil
		}
	}
	return nil, session.NotFound("task")
}
