// Package directory tracks registered participants and when they were last seen.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"batepapo/internal/model"
	"batepapo/internal/store"
)

// Directory is the participant registry. It holds no state of its own;
// uniqueness and atomic eviction come from the store primitives.
type Directory struct {
	store store.ParticipantStore
	now   func() time.Time
}

// New creates a Directory. now defaults to time.Now.
func New(s store.ParticipantStore, now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{store: s, now: now}
}

// Register adds name with LastSeen = now, or fails with model.ErrDuplicateName.
func (d *Directory) Register(ctx context.Context, name string) (model.Participant, error) {
	p := model.Participant{Name: name, LastSeen: d.now()}
	if err := d.store.InsertParticipantIfAbsent(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return model.Participant{}, model.ErrDuplicateName
		}
		return model.Participant{}, unavailable("register", err)
	}
	return p, nil
}

// Heartbeat refreshes LastSeen, or fails with model.ErrNotFound.
func (d *Directory) Heartbeat(ctx context.Context, name string) error {
	if err := d.store.TouchParticipant(ctx, name, d.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.ErrNotFound
		}
		return unavailable("heartbeat", err)
	}
	return nil
}

// Get looks up a single participant.
func (d *Directory) Get(ctx context.Context, name string) (model.Participant, error) {
	p, err := d.store.GetParticipant(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Participant{}, model.ErrNotFound
		}
		return model.Participant{}, unavailable("get", err)
	}
	return p, nil
}

// List returns a snapshot of every registered participant.
func (d *Directory) List(ctx context.Context) ([]model.Participant, error) {
	participants, err := d.store.ListParticipants(ctx)
	if err != nil {
		return nil, unavailable("list", err)
	}
	if participants == nil {
		participants = []model.Participant{}
	}
	return participants, nil
}

// EvictStaleBefore atomically removes and returns participants with LastSeen < cutoff.
func (d *Directory) EvictStaleBefore(ctx context.Context, cutoff time.Time) ([]model.Participant, error) {
	evicted, err := d.store.DeleteParticipantsSeenBefore(ctx, cutoff)
	if err != nil {
		return nil, unavailable("evict", err)
	}
	return evicted, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("directory %s: %w: %w", op, model.ErrStoreUnavailable, err)
}
