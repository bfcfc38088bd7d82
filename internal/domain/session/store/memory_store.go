// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/meetkit/botd/internal/domain/session/model"
)

// MemoryStore is the in-process StatusStore used by tests and
// single-shot deployments without persistence requirements.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]*model.SessionRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]*model.SessionRecord)}
}

func (s *MemoryStore) Put(_ context.Context, rec *model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.CorrelationID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, correlationID string) (*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[correlationID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.SessionRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
