// Package storetest is a conformance suite shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"batepapo/internal/model"
	"batepapo/internal/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the store contract against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertIfAbsent rejects duplicate", func(t *testing.T) { testInsertDuplicate(t, newStore(t)) })
	t.Run("InsertIfAbsent is atomic", func(t *testing.T) { testInsertRace(t, newStore(t)) })
	t.Run("Get and Touch", func(t *testing.T) { testGetAndTouch(t, newStore(t)) })
	t.Run("List participants", func(t *testing.T) { testListParticipants(t, newStore(t)) })
	t.Run("Delete seen before", func(t *testing.T) { testDeleteSeenBefore(t, newStore(t)) })
	t.Run("Messages keep order", func(t *testing.T) { testMessagesOrder(t, newStore(t)) })
}

// ms truncates to the millisecond precision every backend can round-trip.
func ms(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli())
}

func testInsertDuplicate(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	now := ms(time.Now())

	req.NoError(s.InsertParticipantIfAbsent(ctx, model.Participant{Name: "Alice", LastSeen: now}))
	err := s.InsertParticipantIfAbsent(ctx, model.Participant{Name: "Alice", LastSeen: now.Add(time.Second)})
	req.ErrorIs(err, store.ErrAlreadyExists)

	// Names are case-sensitive
	req.NoError(s.InsertParticipantIfAbsent(ctx, model.Participant{Name: "alice", LastSeen: now}))

	got, err := s.GetParticipant(ctx, "Alice")
	req.NoError(err)
	req.Equal(now.UnixMilli(), got.LastSeen.UnixMilli(), "duplicate insert must not overwrite")
}

func testInsertRace(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	now := ms(time.Now())

	const attempts = 16
	var succeeded, duplicated atomic.Int32
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			err := s.InsertParticipantIfAbsent(ctx, model.Participant{Name: "Bob", LastSeen: now})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, store.ErrAlreadyExists):
				duplicated.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	req.NoError(g.Wait())
	req.Equal(int32(1), succeeded.Load())
	req.Equal(int32(attempts-1), duplicated.Load())
}

func testGetAndTouch(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	now := ms(time.Now())

	_, err := s.GetParticipant(ctx, "ghost")
	req.ErrorIs(err, store.ErrNotFound)
	req.ErrorIs(s.TouchParticipant(ctx, "ghost", now), store.ErrNotFound)

	req.NoError(s.InsertParticipantIfAbsent(ctx, model.Participant{Name: "Carol", LastSeen: now}))
	later := now.Add(5 * time.Second)
	req.NoError(s.TouchParticipant(ctx, "Carol", later))

	got, err := s.GetParticipant(ctx, "Carol")
	req.NoError(err)
	req.Equal("Carol", got.Name)
	req.Equal(later.UnixMilli(), got.LastSeen.UnixMilli())
}

func testListParticipants(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	now := ms(time.Now())

	empty, err := s.ListParticipants(ctx)
	req.NoError(err)
	req.Empty(empty)

	for i := 0; i < 3; i++ {
		req.NoError(s.InsertParticipantIfAbsent(ctx, model.Participant{Name: fmt.Sprintf("user-%d", i), LastSeen: now}))
	}
	list, err := s.ListParticipants(ctx)
	req.NoError(err)
	names := lo.Map(list, func(p model.Participant, _ int) string { return p.Name })
	req.ElementsMatch([]string{"user-0", "user-1", "user-2"}, names)
}

func testDeleteSeenBefore(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	now := ms(time.Now())
	cutoff := now.Add(-10 * time.Second)

	req.NoError(s.InsertParticipantIfAbsent(ctx, model.Participant{Name: "stale", LastSeen: now.Add(-30 * time.Second)}))
	req.NoError(s.InsertParticipantIfAbsent(ctx, model.Participant{Name: "fresh", LastSeen: now.Add(-1 * time.Second)}))
	req.NoError(s.InsertParticipantIfAbsent(ctx, model.Participant{Name: "revived", LastSeen: now.Add(-20 * time.Second)}))

	// A touch that lands before the sweep keeps the participant.
	req.NoError(s.TouchParticipant(ctx, "revived", now))

	evicted, err := s.DeleteParticipantsSeenBefore(ctx, cutoff)
	req.NoError(err)
	req.Len(evicted, 1)
	req.Equal("stale", evicted[0].Name)
	req.Equal(now.Add(-30*time.Second).UnixMilli(), evicted[0].LastSeen.UnixMilli())

	_, err = s.GetParticipant(ctx, "stale")
	req.ErrorIs(err, store.ErrNotFound)

	again, err := s.DeleteParticipantsSeenBefore(ctx, cutoff)
	req.NoError(err)
	req.Empty(again)

	left, err := s.ListParticipants(ctx)
	req.NoError(err)
	req.Len(left, 2)
}

func testMessagesOrder(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	now := time.Now()

	empty, err := s.ListMessages(ctx)
	req.NoError(err)
	req.Empty(empty)

	first := model.Message{ID: "1", From: "Alice", To: model.Everyone, Text: "hi", Type: model.KindBroadcast, Time: now.Format(model.TimeLayout), CreatedAt: now}
	req.NoError(s.InsertMessages(ctx, []model.Message{first}))

	batch := []model.Message{
		model.NewStatusMessage("Bob", model.LeftText, now),
		model.NewStatusMessage("Carol", model.LeftText, now),
		model.NewStatusMessage("Dave", model.LeftText, now),
	}
	for i := range batch {
		batch[i].ID = fmt.Sprintf("%d", i+2)
	}
	req.NoError(s.InsertMessages(ctx, batch))

	all, err := s.ListMessages(ctx)
	req.NoError(err)
	req.Len(all, 4)
	req.Equal([]string{"Alice", "Bob", "Carol", "Dave"}, lo.Map(all, func(m model.Message, _ int) string { return m.From }))
	req.Equal(first.ID, all[0].ID)
	req.Equal(first.To, all[0].To)
	req.Equal(first.Text, all[0].Text)
	req.Equal(first.Type, all[0].Type)
	req.Equal(first.Time, all[0].Time)
	req.Equal(model.KindStatus, all[3].Type)
	req.Equal(model.LeftText, all[3].Text)
}
