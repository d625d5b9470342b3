// Package memory is an in-process tick store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go-ticker/internal/common"
	"go-ticker/pkg/models"
)

type Store struct {
	mu     sync.RWMutex
	ticks  []models.Tick
	nextID int64
	closed bool
}

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return common.ErrStoreUnavailable
	}
	return ctx.Err()
}

func (s *Store) Append(ctx context.Context, tick models.Tick) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(tick, s.lastTimestampLocked()); err != nil {
		return 0, err
	}
	id := s.nextID
	s.nextID++
	s.ticks = append(s.ticks, tick)
	return id, nil
}

// AppendBatch is all-or-nothing.
func (s *Store) AppendBatch(ctx context.Context, ticks []models.Tick) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.lastTimestampLocked()
	for _, t := range ticks {
		if err := s.checkLocked(t, prev); err != nil {
			return err
		}
		prev = t.Timestamp
	}
	s.ticks = append(s.ticks, ticks...)
	s.nextID += int64(len(ticks))
	return nil
}

// Check reports whether ticks could be appended as one batch, without
// appending them.
func (s *Store) Check(ticks []models.Tick) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prev := s.lastTimestampLocked()
	for _, t := range ticks {
		if err := s.checkLocked(t, prev); err != nil {
			return err
		}
		prev = t.Timestamp
	}
	return nil
}

func (s *Store) Last(ctx context.Context) (models.Tick, error) {
	if err := ctx.Err(); err != nil {
		return models.Tick{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return models.Tick{}, common.ErrStoreUnavailable
	}
	if len(s.ticks) == 0 {
		return models.Tick{}, common.ErrEmptySeries
	}
	return s.ticks[len(s.ticks)-1], nil
}

func (s *Store) Range(ctx context.Context, from, to int64, limit int) ([]models.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, common.ErrStoreUnavailable
	}
	lo := sort.Search(len(s.ticks), func(i int) bool { return s.ticks[i].Timestamp >= from })
	hi := sort.Search(len(s.ticks), func(i int) bool { return s.ticks[i].Timestamp > to })
	if hi <= lo {
		return []models.Tick{}, nil
	}
	if limit > 0 && hi-lo > limit {
		lo = hi - limit
	}
	out := make([]models.Tick, hi-lo)
	copy(out, s.ticks[lo:hi])
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ticks)
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) lastTimestampLocked() int64 {
	if len(s.ticks) == 0 {
		return -1
	}
	return s.ticks[len(s.ticks)-1].Timestamp
}

// checkLocked keeps timestamps non-decreasing.
func (s *Store) checkLocked(tick models.Tick, prev int64) error {
	if s.closed {
		return common.ErrStoreUnavailable
	}
	if tick.Timestamp < 0 || tick.Price.IsNegative() {
		return fmt.Errorf("%w: %s@%d", common.ErrInvalidTick, tick.Price, tick.Timestamp)
	}
	if tick.Timestamp < prev {
		return fmt.Errorf("%w: timestamp %d before last %d", common.ErrInvalidTick, tick.Timestamp, prev)
	}
	return nil
}
