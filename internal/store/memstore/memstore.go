// Package memstore is an in-process Store used by default and in tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"batepapo/internal/model"
	"batepapo/internal/store"
)

// Store keeps both collections in memory behind a single lock.
type Store struct {
	mu           sync.RWMutex
	participants map[string]model.Participant
	messages     []model.Message
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{participants: make(map[string]model.Participant)}
}

func (s *Store) InsertParticipantIfAbsent(_ context.Context, p model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[p.Name]; exists {
		return store.ErrAlreadyExists
	}
	s.participants[p.Name] = p
	return nil
}

func (s *Store) GetParticipant(_ context.Context, name string) (model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.participants[name]
	if !exists {
		return model.Participant{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) TouchParticipant(_ context.Context, name string, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.participants[name]
	if !exists {
		return store.ErrNotFound
	}
	p.LastSeen = seen
	s.participants[name] = p
	return nil
}

func (s *Store) ListParticipants(_ context.Context) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Values(s.participants), nil
}

func (s *Store) DeleteParticipantsSeenBefore(_ context.Context, cutoff time.Time) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []model.Participant
	for name, p := range s.participants {
		if p.LastSeen.Before(cutoff) {
			evicted = append(evicted, p)
			delete(s.participants, name)
		}
	}
	return evicted, nil
}

func (s *Store) InsertMessages(_ context.Context, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msgs...)
	return nil
}

func (s *Store) ListMessages(_ context.Context) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to prevent external modifications
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *Store) Close() error { return nil }
