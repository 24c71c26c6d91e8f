// Package store defines the document store the chat core persists into.
// Implementations live in the sub-packages (memstore, mysqlstore,
// badgerstore, redisstore) and must provide the atomic primitives below
// natively; callers never emulate them with a read followed by a write.
package store

import (
	"context"
	"errors"
	"time"

	"batepapo/internal/model"
)

var (
	// ErrAlreadyExists is returned by InsertParticipantIfAbsent on a name collision.
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrNotFound is returned when a participant lookup or update misses.
	ErrNotFound = errors.New("store: not found")
)

// ParticipantStore is the participants collection, keyed by name.
type ParticipantStore interface {
	// InsertParticipantIfAbsent inserts p unless a participant with the same
	// name exists. Check and insert are one atomic step.
	InsertParticipantIfAbsent(ctx context.Context, p model.Participant) error

	// GetParticipant returns the participant named name or ErrNotFound.
	GetParticipant(ctx context.Context, name string) (model.Participant, error)

	// TouchParticipant sets LastSeen for an existing participant or returns ErrNotFound.
	TouchParticipant(ctx context.Context, name string, seen time.Time) error

	// ListParticipants returns a snapshot in no particular order.
	ListParticipants(ctx context.Context) ([]model.Participant, error)

	// DeleteParticipantsSeenBefore removes and returns every participant with
	// LastSeen < cutoff. The decision uses each participant's LastSeen at
	// removal time, so a concurrent touch either lands first and saves the
	// participant or finds it already gone.
	DeleteParticipantsSeenBefore(ctx context.Context, cutoff time.Time) ([]model.Participant, error)
}

// MessageStore is the append-only messages collection.
type MessageStore interface {
	// InsertMessages appends msgs in order. A batch is visible to readers
	// either entirely or not at all.
	InsertMessages(ctx context.Context, msgs []model.Message) error

	// ListMessages returns every message in creation order.
	ListMessages(ctx context.Context) ([]model.Message, error)
}

// Store groups both collections behind one connection.
type Store interface {
	ParticipantStore
	MessageStore
	Close() error
}
