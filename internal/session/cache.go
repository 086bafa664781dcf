package session

import "sync"

// factCache memoizes boolean derivations per (team, fact). It is only a
// memo: the log remains the source of truth, and any append for a team drops
// that team's entries before the event is published. A generation counter
// keeps a derivation that raced with an append from being stored stale.
type factCache struct {
	mu    sync.Mutex
	gen   map[int]uint64
	facts map[int]map[string]bool
}

func (c *factCache) bool(teamID int, name string, derive func() (bool, error)) (bool, error) {
	c.mu.Lock()
	if team, ok := c.facts[teamID]; ok {
		if v, ok := team[name]; ok {
			c.mu.Unlock()
			return v, nil
		}
	}
	gen := c.gen[teamID]
	c.mu.Unlock()

	v, err := derive()
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.gen[teamID] == gen {
		if c.facts == nil {
			c.facts = make(map[int]map[string]bool)
		}
		team, ok := c.facts[teamID]
		if !ok {
			team = make(map[string]bool)
			c.facts[teamID] = team
		}
		team[name] = v
	}
	c.mu.Unlock()
	return v, nil
}

func (c *factCache) invalidate(teamID int) {
	c.mu.Lock()
	if c.gen == nil {
		c.gen = make(map[int]uint64)
	}
	c.gen[teamID]++
	delete(c.facts, teamID)
	c.mu.Unlock()
}
