// Package scheduler drives the live tick loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-ticker/internal/common"
	"go-ticker/internal/metrics"
	"go-ticker/internal/pricing"
	"go-ticker/internal/reconciler"
	"go-ticker/internal/series"
	"go-ticker/internal/store"
	"go-ticker/internal/util"
	"go-ticker/pkg/models"
)

// Publisher receives every refreshed window. Publish must not block for long
// and must not keep a reference to window after returning.
type Publisher interface {
	Publish(window []models.Tick)
}

type Options struct {
	MinDelay          time.Duration
	MaxDelay          time.Duration
	Window            time.Duration
	WindowLimit       int
	ReadyPollInterval time.Duration
	Bias              pricing.BiasTable
	Now               func() time.Time
}

type Scheduler struct {
	store      store.TickStore
	state      *series.State
	reconciler *reconciler.Reconciler
	gen        *pricing.Generator
	src        pricing.Source
	publisher  Publisher
	opts       Options
	logger     *util.Logger
}

func New(
	st store.TickStore,
	state *series.State,
	rec *reconciler.Reconciler,
	gen *pricing.Generator,
	src pricing.Source,
	publisher Publisher,
	opts Options,
	logger *util.Logger,
) *Scheduler {
	if opts.MinDelay <= 0 {
		opts.MinDelay = util.DurationMs(common.DefaultCycleMinDelayMs)
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Window <= 0 {
		opts.Window = time.Duration(common.DefaultWindowMinutes) * time.Minute
	}
	if opts.WindowLimit <= 0 {
		opts.WindowLimit = common.DefaultWindowLimit
	}
	if opts.ReadyPollInterval <= 0 {
		opts.ReadyPollInterval = util.DurationMs(common.DefaultReadyPollIntervalMs)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = util.NewNopLogger()
	}
	return &Scheduler{
		store:      st,
		state:      state,
		reconciler: rec,
		gen:        gen,
		src:        src,
		publisher:  publisher,
		opts:       opts,
		logger:     logger.With("scheduler"),
	}
}

// Run blocks until ctx is cancelled or a store operation fails. Cancellation
// returns nil; a failed cycle returns its error and nothing is rescheduled.
// Only one Run may be active per State.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.state.SetPhase(series.PhaseStopped)

	s.state.SetPhase(series.PhaseIdle)
	if err := s.waitReady(ctx); err != nil {
		return ignoreCancel(ctx, err)
	}

	s.state.SetPhase(series.PhaseSyncing)
	if err := s.sync(ctx); err != nil {
		return ignoreCancel(ctx, err)
	}
	if _, err := s.refresh(ctx, s.opts.Now().UnixMilli()); err != nil {
		return ignoreCancel(ctx, err)
	}

	s.state.SetPhase(series.PhaseStreaming)
	s.logger.Info("Streaming live ticks", "position", s.state.Position())
	for {
		if err := s.wait(ctx); err != nil {
			return nil
		}
		if err := s.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.CyclesTotal.WithLabelValues(metrics.ResultError).Inc()
			return err
		}
		metrics.CyclesTotal.WithLabelValues(metrics.ResultOK).Inc()
	}
}

func (s *Scheduler) waitReady(ctx context.Context) error {
	for {
		err := s.store.Ping(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("Store not ready", "error", err.Error())

		timer := time.NewTimer(s.opts.ReadyPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// sync backfills the gap once per process.
func (s *Scheduler) sync(ctx context.Context) error {
	if s.state.Synced() {
		s.logger.Debug("Series already synced, skipping backfill")
		return nil
	}
	n, err := s.reconciler.Reconcile(ctx, s.store)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error(err, common.ErrCodeBackfillFailed, common.ErrMsgBackfillFailed, "Gap backfill failed")
		}
		return err
	}
	metrics.TicksTotal.WithLabelValues(metrics.SourceBackfill).Add(float64(n))
	s.state.MarkSynced()
	return nil
}

// wait sleeps a random delay. A position change stops the pending timer and
// starts a fresh delay so the next cycle uses the new bias.
func (s *Scheduler) wait(ctx context.Context) error {
	for {
		timer := time.NewTimer(s.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.state.PositionChanged():
			timer.Stop()
			s.logger.Debug("Position changed, restarting wait", "position", s.state.Position())
		case <-timer.C:
			return nil
		}
	}
}

func (s *Scheduler) delay() time.Duration {
	lo, hi := util.Millis(s.opts.MinDelay), util.Millis(s.opts.MaxDelay)
	return time.Duration(util.RandomBetween(s.src.Int63n, lo, hi)) * time.Millisecond
}

// cycle appends one tick and republishes the trailing window.
func (s *Scheduler) cycle(ctx context.Context) error {
	last, err := s.store.Last(ctx)
	if err != nil {
		s.logger.Error(err, common.ErrCodeStoreQueryFailed, common.ErrMsgStoreQueryFailed, "Failed to read last tick")
		return fmt.Errorf("last tick: %w", err)
	}

	position := s.state.Position()
	price := s.gen.NextPrice(last.Price, s.opts.Bias.For(position))
	ts := max(s.opts.Now().UnixMilli(), last.Timestamp)

	tick, err := models.NewTick(price, ts)
	if err != nil {
		return err
	}
	if _, err := s.store.Append(ctx, tick); err != nil {
		s.logger.Error(err, common.ErrCodeStoreAppendFailed, common.ErrMsgStoreAppendFailed, "Failed to append tick")
		return fmt.Errorf("append tick: %w", err)
	}
	metrics.TicksTotal.WithLabelValues(metrics.SourceLive).Inc()
	s.logger.Debug("Tick", "price", tick.Price.String(), "ts", tick.Timestamp, "position", position)

	_, err = s.refresh(ctx, ts)
	return err
}

// refresh loads the window ending at to, stores it in the series state and
// publishes it.
func (s *Scheduler) refresh(ctx context.Context, to int64) ([]models.Tick, error) {
	from := to - util.Millis(s.opts.Window)
	window, err := s.store.Range(ctx, from, to, s.opts.WindowLimit)
	if err != nil {
		s.logger.Error(err, common.ErrCodeStoreQueryFailed, common.ErrMsgStoreQueryFailed, "Failed to load window")
		return nil, fmt.Errorf("load window: %w", err)
	}
	s.state.Update(window)
	if len(window) > 0 {
		metrics.LatestPrice.Set(window[len(window)-1].Price.InexactFloat64())
	}
	if s.publisher != nil {
		s.publisher.Publish(window)
	}
	return window, nil
}

func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}
