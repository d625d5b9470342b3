// Package supervisor restarts a failed long-running task with exponential backoff.
package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go-ticker/internal/common"
	"go-ticker/internal/util"
)

type Options struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed bounds the total retry time; zero retries forever.
	MaxElapsed time.Duration
	// Permanent errors stop supervision immediately.
	Permanent []error
}

type Supervisor struct {
	name   string
	opts   Options
	logger *util.Logger
}

func New(name string, opts Options, logger *util.Logger) *Supervisor {
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = util.DurationMs(common.DefaultSupervisorInitialMs)
	}
	if opts.MaxInterval < opts.InitialInterval {
		opts.MaxInterval = opts.InitialInterval
	}
	if opts.Permanent == nil {
		opts.Permanent = []error{common.ErrEmptySeries, common.ErrInvalidTimeframe}
	}
	if logger == nil {
		logger = util.NewNopLogger()
	}
	return &Supervisor{name: name, opts: opts, logger: logger.With("supervisor")}
}

// Run calls fn until it returns nil, returns a permanent error, the retry
// budget runs out or ctx is cancelled. Cancellation yields nil.
func (s *Supervisor) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialInterval
	b.MaxInterval = s.opts.MaxInterval
	b.MaxElapsedTime = s.opts.MaxElapsed

	attempt := 0
	op := func() error {
		attempt++
		started := time.Now()
		err := fn(ctx)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case s.permanent(err):
			s.logger.Error(err, common.ErrCodeSchedulerStopped, common.ErrMsgSchedulerStopped,
				"Permanent failure, not restarting", "task", s.name, "attempt", attempt)
			return backoff.Permanent(err)
		}
		// A run that stayed healthy for a while starts the backoff over.
		if time.Since(started) > b.MaxInterval {
			b.Reset()
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		s.logger.Error(err, common.ErrCodeSchedulerStopped, common.ErrMsgSchedulerStopped,
			"Task failed, restarting", "task", s.name, "attempt", attempt, "retry_in", next.String())
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (s *Supervisor) permanent(err error) bool {
	for _, p := range s.opts.Permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}
