package editor

import (
	"sync"
	"time"

	"github.com/codeclub/liveclass/internal/event"
)

// LockInfo describes the current holder of a line lock.
type LockInfo struct {
	OwnerID    string     `json:"ownerId"`
	OwnerRole  event.Role `json:"ownerRole"`
	AcquiredAt time.Time  `json:"acquiredAt"`
}

type teamState struct {
	locks map[int]LockInfo
	code  string
	conns map[string]struct{}
}

// Registry holds all transient per-team editing state: line locks, the
// shared code buffer and the connected-user set. Everything lives behind one
// mutex so lock acquisition is a single compare-and-set and the
// clear-on-last-disconnect invariant cannot be raced.
//
// Nothing here is persisted; a restart forgets it all. When the gateway is
// scaled horizontally this state must move to a shared store, one Registry
// per process is only correct for a single instance.
type Registry struct {
	mu    sync.Mutex
	teams map[int]*teamState
}

func NewRegistry() *Registry {
	return &Registry{teams: make(map[int]*teamState)}
}

func (r *Registry) team(teamID int) *teamState {
	ts, ok := r.teams[teamID]
	if !ok {
		ts = &teamState{
			locks: make(map[int]LockInfo),
			conns: make(map[string]struct{}),
		}
		r.teams[teamID] = ts
	}
	return ts
}

// TryLock attempts to acquire the exclusive lock on a line. Granted when the
// line is free or already held by the requester; a held lock is preempted
// only by a strictly higher role priority. Denial is a normal outcome, not
// an error.
func (r *Registry) TryLock(teamID, line int, userID string, role event.Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.team(teamID)
	cur, held := ts.locks[line]
	if held && cur.OwnerID != userID && role.Priority() <= cur.OwnerRole.Priority() {
		return false
	}
	ts.locks[line] = LockInfo{OwnerID: userID, OwnerRole: role, AcquiredAt: time.Now()}
	return true
}

// Unlock releases the line only if userID currently holds it. A stale unlock
// after preemption is a no-op.
func (r *Registry) Unlock(teamID, line int, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.teams[teamID]
	if !ok {
		return
	}
	if cur, held := ts.locks[line]; held && cur.OwnerID == userID {
		delete(ts.locks, line)
	}
}

// ReleaseAll drops every lock the user holds in the team and returns the
// freed line numbers so the caller can notify peers.
func (r *Registry) ReleaseAll(teamID int, userID string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseAllLocked(teamID, userID)
}

func (r *Registry) releaseAllLocked(teamID int, userID string) []int {
	ts, ok := r.teams[teamID]
	if !ok {
		return nil
	}
	var freed []int
	for line, li := range ts.locks {
		if li.OwnerID == userID {
			delete(ts.locks, line)
			freed = append(freed, line)
		}
	}
	return freed
}

// LockedByOther reports whether the line is locked by someone other than
// userID.
func (r *Registry) LockedByOther(teamID, line int, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.teams[teamID]
	if !ok {
		return false
	}
	cur, held := ts.locks[line]
	return held && cur.OwnerID != userID
}

// LockOwner returns the lock holder for a line, if any.
func (r *Registry) LockOwner(teamID, line int) (LockInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.teams[teamID]
	if !ok {
		return LockInfo{}, false
	}
	li, held := ts.locks[line]
	return li, held
}

// Buffer returns the team's shared code buffer.
func (r *Registry) Buffer(teamID int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ts, ok := r.teams[teamID]; ok {
		return ts.code
	}
	return ""
}

// SetBuffer replaces the team's shared code buffer wholesale (sync path).
func (r *Registry) SetBuffer(teamID int, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.team(teamID).code = code
}

// SeedBuffer stores code only when the team buffer is still empty. Used by
// the sync handshake so a peer's catch-up response cannot clobber edits that
// arrived in the meantime.
func (r *Registry) SeedBuffer(teamID int, code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.team(teamID)
	if ts.code != "" {
		return false
	}
	ts.code = code
	return true
}

// ApplyEdit applies a line edit to the team buffer and returns the new
// buffer contents.
func (r *Registry) ApplyEdit(teamID int, ed Edit) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.team(teamID)
	ts.code = applyEdit(ts.code, ed)
	return ts.code
}

// AddConnection registers a connected user for buffer lifetime accounting.
func (r *Registry) AddConnection(teamID int, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.team(teamID).conns[userID] = struct{}{}
}

// RemoveConnection drops the user's connection and locks. When the last
// connection leaves, the whole team entry (buffer included) is discarded.
// Returns the freed lock lines and the remaining connection count.
func (r *Registry) RemoveConnection(teamID int, userID string) (freed []int, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.teams[teamID]
	if !ok {
		return nil, 0
	}
	freed = r.releaseAllLocked(teamID, userID)
	delete(ts.conns, userID)
	if len(ts.conns) == 0 {
		delete(r.teams, teamID)
		return freed, 0
	}
	return freed, len(ts.conns)
}

// Connections returns the connected user ids for a team.
func (r *Registry) Connections(teamID int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.teams[teamID]
	if !ok {
		return nil
	}
	users := make([]string, 0, len(ts.conns))
	for u := range ts.conns {
		users = append(users, u)
	}
	return users
}
