package gateway

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"batepapo/internal/directory"
	"batepapo/internal/logger"
	"batepapo/internal/messagelog"
	"batepapo/internal/model"
	"batepapo/internal/store/memstore"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

type fixture struct {
	clock   *fakeClock
	service *Service
	log     *messagelog.Log
	dir     *directory.Directory
}

func newFixture() *fixture {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)}
	s := memstore.New()
	dir := directory.New(s, clock.now)
	log := messagelog.New(s, clock.now)
	return &fixture{
		clock:   clock,
		service: New(dir, log, time.Second, clock.now),
		log:     log,
		dir:     dir,
	}
}

func (f *fixture) logLen(t *testing.T) int {
	t.Helper()
	msgs, err := f.log.All(context.Background())
	require.NoError(t, err)
	return len(msgs)
}

func TestJoinPostRead_Scenario(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	p, err := f.service.Join(ctx, JoinRequest{Name: "Alice"})
	req.NoError(err)
	req.Equal("Alice", p.Name)
	req.Equal(1, f.logLen(t))

	_, err = f.service.Join(ctx, JoinRequest{Name: "Alice"})
	req.ErrorIs(err, model.ErrDuplicateName)
	req.Equal(1, f.logLen(t))

	msg, err := f.service.PostMessage(ctx, "Alice", PostRequest{To: model.Everyone, Text: "hi", Type: model.KindBroadcast})
	req.NoError(err)
	req.Equal("Alice", msg.From)
	req.Equal("09:30:00", msg.Time)
	req.Equal(2, f.logLen(t))

	// Bob never joined but still sees status and broadcast.
	got, err := f.service.ReadMessages(ctx, "Bob", 0)
	req.NoError(err)
	req.Len(got, 2)
	req.Equal(model.KindStatus, got[0].Type)
	req.Equal("Alice", got[0].From)
	req.Equal(model.JoinedText, got[0].Text)
	req.Equal(model.KindBroadcast, got[1].Type)
	req.Equal("hi", got[1].Text)
}

func TestJoin_TrimsAndValidates(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	p, err := f.service.Join(ctx, JoinRequest{Name: "  Carol  "})
	req.NoError(err)
	req.Equal("Carol", p.Name)

	_, err = f.service.Join(ctx, JoinRequest{Name: "   "})
	var verr *model.ValidationError
	req.ErrorAs(err, &verr)
	req.Equal([]string{`"name" is required`}, verr.Reasons)
	req.Equal(1, f.logLen(t))
}

func TestJoin_ConcurrentSameName(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const n = 8
	errs := make([]error, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			_, errs[i] = f.service.Join(ctx, JoinRequest{Name: "Dave"})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrDuplicateName):
			dup++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, dup)
	require.Equal(t, 1, f.logLen(t))
}

func TestPostMessage_UnregisteredSenderAppendsNothing(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.PostMessage(ctx, "Ghost", PostRequest{To: model.Everyone, Text: "boo", Type: model.KindBroadcast})
	req.ErrorIs(err, model.ErrNotRegistered)

	_, err = f.service.PostMessage(ctx, "", PostRequest{To: model.Everyone, Text: "boo", Type: model.KindBroadcast})
	req.ErrorIs(err, model.ErrNotRegistered)
	req.Equal(0, f.logLen(t))
}

func TestPostMessage_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.service.Join(ctx, JoinRequest{Name: "Alice"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     PostRequest
		reasons []string
	}{
		{
			name:    "status is reserved",
			req:     PostRequest{To: model.Everyone, Text: "hi", Type: model.KindStatus},
			reasons: []string{`"type" must be one of [message, private_message], got "status"`},
		},
		{
			name: "every violation is reported",
			req:  PostRequest{To: " ", Text: "", Type: ""},
			reasons: []string{
				`"to" is required`,
				`"text" is required`,
				`"type" is required`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.PostMessage(ctx, "Alice", tt.req)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.reasons, verr.Reasons)
		})
	}
	require.Equal(t, 1, f.logLen(t))
}

func TestHeartbeat(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	req.ErrorIs(f.service.Heartbeat(ctx, "Eve"), model.ErrNotRegistered)
	req.ErrorIs(f.service.Heartbeat(ctx, ""), model.ErrNotRegistered)

	_, err := f.service.Join(ctx, JoinRequest{Name: "Eve"})
	req.NoError(err)
	f.clock.t = f.clock.t.Add(5 * time.Second)
	req.NoError(f.service.Heartbeat(ctx, "Eve"))

	p, err := f.dir.Get(ctx, "Eve")
	req.NoError(err)
	req.Equal(f.clock.t, p.LastSeen)
}

func TestReadMessages_DirectAndLimit(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	for _, name := range []string{"Alice", "Bob"} {
		_, err := f.service.Join(ctx, JoinRequest{Name: name})
		req.NoError(err)
	}
	_, err := f.service.PostMessage(ctx, "Alice", PostRequest{To: "Bob", Text: "psst", Type: model.KindDirect})
	req.NoError(err)
	_, err = f.service.PostMessage(ctx, "Bob", PostRequest{To: model.Everyone, Text: "hello all", Type: model.KindBroadcast})
	req.NoError(err)

	carol, err := f.service.ReadMessages(ctx, "Carol", 0)
	req.NoError(err)
	req.Len(carol, 3)

	bob, err := f.service.ReadMessages(ctx, "Bob", 2)
	req.NoError(err)
	req.Len(bob, 2)
	req.Equal("psst", bob[0].Text)
	req.Equal("hello all", bob[1].Text)

	none, err := newFixture().service.ReadMessages(ctx, "Carol", 0)
	req.NoError(err)
	req.NotNil(none)
	req.Empty(none)
}

func TestListParticipants(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	list, err := f.service.ListParticipants(ctx)
	req.NoError(err)
	req.Empty(list)

	_, err = f.service.Join(ctx, JoinRequest{Name: "Alice"})
	req.NoError(err)
	list, err = f.service.ListParticipants(ctx)
	req.NoError(err)
	req.Len(list, 1)
	req.Equal("Alice", list[0].Name)
}

type brokenLog struct{}

func (brokenLog) Append(context.Context, model.Message) error {
	return errors.New("connection refused")
}

func (brokenLog) All(context.Context) ([]model.Message, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailuresSurface(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{t: time.Now()}
	dir := directory.New(memstore.New(), clock.now)
	svc := New(dir, brokenLog{}, 0, clock.now)
	ctx := context.Background()

	p, err := svc.Join(ctx, JoinRequest{Name: "Alice"})
	req.Error(err)
	req.Equal("Alice", p.Name, "registration stands even if the announcement fails")

	_, err = svc.ReadMessages(ctx, "Alice", 0)
	req.Error(err)
}

func TestOperationsLogThroughRequestLogger(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	var buf bytes.Buffer
	ctx := logger.WithLogger(context.Background(), zerolog.New(&buf).Level(zerolog.DebugLevel))

	_, err := f.service.Join(ctx, JoinRequest{Name: "Alice"})
	req.NoError(err)
	_, err = f.service.PostMessage(ctx, "Alice", PostRequest{To: model.Everyone, Text: "hi", Type: model.KindBroadcast})
	req.NoError(err)

	out := buf.String()
	req.Contains(out, `"message":"participant joined"`)
	req.Contains(out, `"message":"message posted"`)
	req.Contains(out, `"user":"Alice"`)

	buf.Reset()
	svc := New(f.dir, brokenLog{}, 0, f.clock.now)
	_, err = svc.Join(ctx, JoinRequest{Name: "Bob"})
	req.Error(err)
	req.Contains(buf.String(), "join announcement failed")
}

func TestCheckRegistered(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.ErrorIs(t, f.service.CheckRegistered(ctx, "Alice"), model.ErrNotRegistered)
	_, err := f.service.Join(ctx, JoinRequest{Name: "Alice"})
	require.NoError(t, err)
	require.NoError(t, f.service.CheckRegistered(ctx, "Alice"))
}
