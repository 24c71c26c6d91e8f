// Package reaper periodically evicts participants that stopped sending
// heartbeats and announces their departure in the message log.
package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"batepapo/internal/logger"
	"batepapo/internal/model"
)

// Evictor removes stale participants atomically.
type Evictor interface {
	EvictStaleBefore(ctx context.Context, cutoff time.Time) ([]model.Participant, error)
}

// Announcer appends a batch of messages atomically.
type Announcer interface {
	AppendMany(ctx context.Context, msgs []model.Message) error
}

// Config holds the sweep schedule.
type Config struct {
	Interval     time.Duration // time between sweeps
	StaleAfter   time.Duration // participants silent for longer are evicted
	StoreTimeout time.Duration // bound for each store call within a sweep
}

// Reaper is stateless between sweeps apart from its ticker goroutine.
type Reaper struct {
	directory Evictor
	log       Announcer
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// New creates a Reaper. now defaults to time.Now.
func New(directory Evictor, log Announcer, cfg Config, l zerolog.Logger, now func() time.Time) *Reaper {
	if now == nil {
		now = time.Now
	}
	return &Reaper{directory: directory, log: log, cfg: cfg, logger: l, now: now}
}

// Start launches the periodic sweep. It returns immediately.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopChan != nil {
		return fmt.Errorf("reaper already started")
	}
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("reaper interval must be positive, got %s", r.cfg.Interval)
	}
	r.stopChan = make(chan struct{})
	r.doneChan = make(chan struct{})

	go r.run(ctx)

	r.logger.Info().
		Dur("interval", r.cfg.Interval).
		Dur("stale_after", r.cfg.StaleAfter).
		Msg("presence reaper started")
	return nil
}

func (r *Reaper) run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	defer close(r.doneChan)

	for {
		select {
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Stop halts the periodic sweep and waits for an in-flight sweep to finish.
func (r *Reaper) Stop(ctx context.Context) error {
	r.mu.Lock()
	stopChan, doneChan := r.stopChan, r.doneChan
	r.mu.Unlock()

	if stopChan == nil {
		return nil
	}
	r.stopOnce.Do(func() {
		close(stopChan)
	})

	select {
	case <-doneChan:
		r.logger.Info().Msg("presence reaper stopped")
	case <-ctx.Done():
		r.logger.Warn().Msg("presence reaper shutdown timeout exceeded")
		return ctx.Err()
	}
	return nil
}

// Sweep runs one eviction pass and returns who was evicted. Failures are
// logged, never returned: the next sweep starts from scratch.
func (r *Reaper) Sweep(ctx context.Context) (evicted []model.Participant) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("presence sweep panicked")
		}
	}()

	now := r.now()
	cutoff := now.Add(-r.cfg.StaleAfter)

	evictCtx, cancel := r.withTimeout(ctx)
	evicted, err := r.directory.EvictStaleBefore(evictCtx, cutoff)
	cancel()
	if err != nil {
		r.logger.Error().Err(err).Time(logger.FieldCutoff, cutoff).Msg("presence sweep: eviction failed")
		return nil
	}
	if len(evicted) == 0 {
		return evicted
	}

	names := lo.Map(evicted, func(p model.Participant, _ int) string { return p.Name })
	r.logger.Info().Strs(logger.FieldEvicted, names).Msg("participants timed out")

	departures := lo.Map(evicted, func(p model.Participant, _ int) model.Message {
		return model.NewStatusMessage(p.Name, model.LeftText, now)
	})

	appendCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.log.AppendMany(appendCtx, departures); err != nil {
		// Eviction is not rolled back; the departures are simply unannounced.
		r.logger.Error().Err(err).Strs(logger.FieldEvicted, names).Msg("presence sweep: departure announcement failed")
	}
	return evicted
}

func (r *Reaper) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.StoreTimeout)
}
