// Package messagelog is the append-only, creation-ordered chat history.
package messagelog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"batepapo/internal/model"
	"batepapo/internal/store"
)

// Log appends to and reads from the messages collection.
type Log struct {
	store store.MessageStore
	now   func() time.Time
}

// New creates a Log. now defaults to time.Now.
func New(s store.MessageStore, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{store: s, now: now}
}

// Append adds msg to the end of the log.
func (l *Log) Append(ctx context.Context, msg model.Message) error {
	return l.AppendMany(ctx, []model.Message{msg})
}

// AppendMany adds msgs as one batch; readers see all of them or none.
// Missing ids and creation times are filled in.
func (l *Log) AppendMany(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := l.now()
	batch := make([]model.Message, len(msgs))
	for i, msg := range msgs {
		batch[i] = stamp(msg, now)
	}
	if err := l.store.InsertMessages(ctx, batch); err != nil {
		return fmt.Errorf("message log append: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

// All returns the whole log in creation order.
func (l *Log) All(ctx context.Context) ([]model.Message, error) {
	msgs, err := l.store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("message log read: %w: %w", model.ErrStoreUnavailable, err)
	}
	return msgs, nil
}

func stamp(msg model.Message, now time.Time) model.Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.Time == "" {
		msg.Time = msg.CreatedAt.Format(model.TimeLayout)
	}
	return msg
}
