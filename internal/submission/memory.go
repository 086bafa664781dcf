package submission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]Submission
	ids  []string // creation order, for stable listings
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]Submission)}
}

func (s *MemoryStore) Create(ctx context.Context, sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	s.subs[sub.ID] = *sub
	s.ids = append(s.ids, sub.ID)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (s *MemoryStore) ByTeam(ctx context.Context, teamID int) ([]Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Submission
	for _, id := range s.ids {
		if sub := s.subs[id]; sub.TeamID == teamID {
			out = append(out, sub)
		}
	}
	return out, nil
}
