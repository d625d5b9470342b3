// Package reconciler fills the gap between the last stored tick and now.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"go-ticker/internal/common"
	"go-ticker/internal/pricing"
	"go-ticker/internal/util"
	"go-ticker/pkg/models"
)

// Store is the part of the tick store the reconciler needs.
type Store interface {
	Last(ctx context.Context) (models.Tick, error)
	AppendBatch(ctx context.Context, ticks []models.Tick) error
}

type Options struct {
	MinStep      time.Duration
	MaxStep      time.Duration
	StartupDelay time.Duration
	Bias         pricing.BiasConfig
	Now          func() time.Time
}

type Reconciler struct {
	src          pricing.Source
	gen          *pricing.Generator
	bias         pricing.BiasConfig
	minStep      int64
	maxStep      int64
	startupDelay time.Duration
	now          func() time.Time
	logger       *util.Logger
}

func New(src pricing.Source, gen *pricing.Generator, opts Options, logger *util.Logger) *Reconciler {
	if opts.MinStep <= 0 {
		opts.MinStep = util.DurationMs(common.DefaultBackfillMinStepMs)
	}
	if opts.MaxStep < opts.MinStep {
		opts.MaxStep = opts.MinStep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = util.NewNopLogger()
	}
	return &Reconciler{
		src:          src,
		gen:          gen,
		bias:         opts.Bias,
		minStep:      util.Millis(opts.MinStep),
		maxStep:      util.Millis(opts.MaxStep),
		startupDelay: opts.StartupDelay,
		now:          opts.Now,
		logger:       logger.With("reconciler"),
	}
}

// Backfill walks from last towards now. Every tick lies strictly after the
// previous one and no later than now; nothing is produced when last is not
// before now.
func (r *Reconciler) Backfill(last models.Tick, now int64) []models.Tick {
	if last.Timestamp >= now {
		return nil
	}
	var out []models.Tick
	cursor, price := last.Timestamp, last.Price
	for {
		step := util.RandomBetween(r.src.Int63n, r.minStep, r.maxStep)
		if cursor+step > now {
			break
		}
		cursor += step
		price = r.gen.NextPrice(price, r.bias)
		out = append(out, models.Tick{Price: price, Timestamp: cursor})
	}
	return out
}

// Reconcile waits out the startup delay, backfills from the stored last tick
// to the current time and writes the result as one batch. It returns the
// number of ticks written. The store must already hold a tick; an empty
// series yields common.ErrEmptySeries.
func (r *Reconciler) Reconcile(ctx context.Context, s Store) (int, error) {
	if r.startupDelay > 0 {
		timer := time.NewTimer(r.startupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	last, err := s.Last(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}

	ticks := r.Backfill(last, r.now().UnixMilli())
	if len(ticks) == 0 {
		r.logger.Debug("No gap to backfill", "last", last.Timestamp)
		return 0, nil
	}
	if err := s.AppendBatch(ctx, ticks); err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}
	r.logger.Info("Backfilled missing ticks",
		"count", len(ticks),
		"from", last.Timestamp,
		"to", ticks[len(ticks)-1].Timestamp,
	)
	return len(ticks), nil
}
