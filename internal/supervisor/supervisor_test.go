package supervisor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-ticker/internal/common"
)

var errFlaky = errors.New("flaky")

func fast() Options {
	return Options{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestRestartsUntilSuccess(t *testing.T) {
	calls := 0
	err := New("test", fast(), nil).Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestPermanentErrorStops(t *testing.T) {
	calls := 0
	err := New("test", fast(), nil).Run(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("reconcile: %w", common.ErrEmptySeries)
	})
	assert.ErrorIs(t, err, common.ErrEmptySeries)
	assert.Equal(t, 1, calls)
}

func TestCustomPermanentErrors(t *testing.T) {
	opts := fast()
	opts.Permanent = []error{errFlaky}
	calls := 0
	err := New("test", opts, nil).Run(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestCancellationReturnsNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := New("test", fast(), nil).Run(ctx, func(context.Context) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errFlaky
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestMaxElapsedGivesUp(t *testing.T) {
	opts := fast()
	opts.MaxElapsed = 30 * time.Millisecond
	err := New("test", opts, nil).Run(context.Background(), func(context.Context) error {
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
}
