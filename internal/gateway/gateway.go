// Package gateway validates and applies the client-facing operations:
// joining, posting, heartbeats and reads.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"batepapo/internal/logger"
	"batepapo/internal/model"
	"batepapo/internal/visibility"
)

// Directory is the subset of the participant registry the gateway needs.
type Directory interface {
	Register(ctx context.Context, name string) (model.Participant, error)
	Heartbeat(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (model.Participant, error)
	List(ctx context.Context) ([]model.Participant, error)
}

// MessageLog is the subset of the message log the gateway needs.
type MessageLog interface {
	Append(ctx context.Context, msg model.Message) error
	All(ctx context.Context) ([]model.Message, error)
}

// JoinRequest is the body of a join.
type JoinRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// PostRequest is the body of a message post.
type PostRequest struct {
	To   string     `json:"to" validate:"required,max=255"`
	Text string     `json:"text" validate:"required"`
	Type model.Kind `json:"type" validate:"required,oneof=message private_message"`
}

// Service is the thin orchestration layer over Directory and MessageLog.
type Service struct {
	directory    Directory
	log          MessageLog
	storeTimeout time.Duration
	now          func() time.Time
}

// New creates a Service. storeTimeout bounds each store call; zero means
// no extra bound beyond the caller's context.
func New(directory Directory, log MessageLog, storeTimeout time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{directory: directory, log: log, storeTimeout: storeTimeout, now: now}
}

// Join registers req.Name and announces it. The stored name is trimmed.
func (s *Service) Join(ctx context.Context, req JoinRequest) (model.Participant, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return model.Participant{}, err
	}

	p, err := call(ctx, s.storeTimeout, func(ctx context.Context) (model.Participant, error) {
		return s.directory.Register(ctx, req.Name)
	})
	if err != nil {
		return model.Participant{}, err
	}

	joined := model.NewStatusMessage(p.Name, model.JoinedText, s.now())
	if err := s.exec(ctx, func(ctx context.Context) error { return s.log.Append(ctx, joined) }); err != nil {
		// The registration stands; only the announcement is lost.
		logger.Ctx(ctx).Error().Err(err).Str(logger.FieldUser, p.Name).Msg("join announcement failed")
		return p, err
	}

	logger.Ctx(ctx).Info().Str(logger.FieldUser, p.Name).Msg("participant joined")
	return p, nil
}

// PostMessage appends a client message on behalf of sender, who must be
// registered. Nothing is appended on any failure.
func (s *Service) PostMessage(ctx context.Context, sender string, req PostRequest) (model.Message, error) {
	if err := s.CheckRegistered(ctx, sender); err != nil {
		return model.Message{}, err
	}

	req.To = strings.TrimSpace(req.To)
	req.Text = strings.TrimSpace(req.Text)
	if err := validateStruct(req); err != nil {
		return model.Message{}, err
	}

	now := s.now()
	msg := model.Message{
		From:      sender,
		To:        req.To,
		Text:      req.Text,
		Type:      req.Type,
		Time:      now.Format(model.TimeLayout),
		CreatedAt: now,
	}
	if err := s.exec(ctx, func(ctx context.Context) error { return s.log.Append(ctx, msg) }); err != nil {
		return model.Message{}, err
	}

	logger.Ctx(ctx).Debug().
		Str(logger.FieldUser, sender).
		Str(logger.FieldTo, msg.To).
		Str(logger.FieldKind, string(msg.Type)).
		Msg("message posted")
	return msg, nil
}

// Heartbeat refreshes name's presence. An unknown name is ErrNotRegistered,
// which callers must keep distinct from a silent eviction.
func (s *Service) Heartbeat(ctx context.Context, name string) error {
	if name == "" {
		return model.ErrNotRegistered
	}
	err := s.exec(ctx, func(ctx context.Context) error { return s.directory.Heartbeat(ctx, name) })
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrNotRegistered
	}
	return err
}

// ReadMessages returns what viewer may see, optionally only the last limit.
// viewer need not be registered.
func (s *Service) ReadMessages(ctx context.Context, viewer string, limit int) ([]model.Message, error) {
	msgs, err := call(ctx, s.storeTimeout, s.log.All)
	if err != nil {
		return nil, err
	}
	visible := visibility.Filter(msgs, viewer, limit)
	if visible == nil {
		visible = []model.Message{}
	}
	return visible, nil
}

// ListParticipants returns the current directory snapshot.
func (s *Service) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	return call(ctx, s.storeTimeout, s.directory.List)
}

// CheckRegistered reports ErrNotRegistered unless name is in the directory.
func (s *Service) CheckRegistered(ctx context.Context, name string) error {
	if name == "" {
		return model.ErrNotRegistered
	}
	_, err := call(ctx, s.storeTimeout, func(ctx context.Context) (model.Participant, error) {
		return s.directory.Get(ctx, name)
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrNotRegistered
	}
	return err
}

func (s *Service) exec(ctx context.Context, fn func(context.Context) error) error {
	_, err := call(ctx, s.storeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
