package directory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"batepapo/internal/model"
	"batepapo/internal/store/memstore"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDirectory() (*Directory, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	return New(memstore.New(), clock.now), clock
}

func TestRegister(t *testing.T) {
	req := require.New(t)
	d, clock := newTestDirectory()
	ctx := context.Background()

	p, err := d.Register(ctx, "Alice")
	req.NoError(err)
	req.Equal("Alice", p.Name)
	req.Equal(clock.t, p.LastSeen)

	_, err = d.Register(ctx, "Alice")
	req.ErrorIs(err, model.ErrDuplicateName)

	// no normalization
	_, err = d.Register(ctx, "ALICE")
	req.NoError(err)
}

func TestRegister_ConcurrentSameName(t *testing.T) {
	req := require.New(t)
	d, _ := newTestDirectory()
	ctx := context.Background()

	var ok, dup atomic.Int32
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := d.Register(ctx, "Alice")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, model.ErrDuplicateName):
				dup.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	req.NoError(g.Wait())
	req.Equal(int32(1), ok.Load())
	req.Equal(int32(1), dup.Load())
}

func TestHeartbeat(t *testing.T) {
	req := require.New(t)
	d, clock := newTestDirectory()
	ctx := context.Background()

	req.ErrorIs(d.Heartbeat(ctx, "Bob"), model.ErrNotFound)

	_, err := d.Register(ctx, "Bob")
	req.NoError(err)
	clock.advance(7 * time.Second)
	req.NoError(d.Heartbeat(ctx, "Bob"))

	p, err := d.Get(ctx, "Bob")
	req.NoError(err)
	req.Equal(clock.t, p.LastSeen)
}

func TestGet_Missing(t *testing.T) {
	d, _ := newTestDirectory()
	_, err := d.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	d, _ := newTestDirectory()
	list, err := d.List(context.Background())
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestEvictStaleBefore(t *testing.T) {
	req := require.New(t)
	d, clock := newTestDirectory()
	ctx := context.Background()

	_, err := d.Register(ctx, "old")
	req.NoError(err)
	clock.advance(20 * time.Second)
	_, err = d.Register(ctx, "new")
	req.NoError(err)

	evicted, err := d.EvictStaleBefore(ctx, clock.t.Add(-10*time.Second))
	req.NoError(err)
	req.Len(evicted, 1)
	req.Equal("old", evicted[0].Name)

	list, err := d.List(ctx)
	req.NoError(err)
	req.Len(list, 1)
	req.Equal("new", list[0].Name)
}
