// Package series holds the owned, shared view of the live tick series.
//
// State has a single writer, the tick scheduler. Every other component only
// reads from it and receives copies.
package series

import (
	"sync"
	"sync/atomic"
	"time"

	"go-ticker/internal/pricing"
	"go-ticker/pkg/models"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSyncing   Phase = "syncing"
	PhaseStreaming Phase = "streaming"
	PhaseStopped   Phase = "stopped"
)

type State struct {
	mu       sync.RWMutex
	phase    Phase
	window   []models.Tick
	position pricing.Position

	synced    atomic.Bool
	startedAt time.Time
	updatedAt atomic.Int64 // unix millis of the last window update

	positionCh chan struct{}
}

func NewState() *State {
	return &State{
		phase:      PhaseIdle,
		position:   pricing.PositionNone,
		startedAt:  time.Now(),
		positionCh: make(chan struct{}, 1),
	}
}

func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *State) SetPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// MarkSynced latches the synced flag. It returns true only for the first call.
func (s *State) MarkSynced() bool {
	return s.synced.CompareAndSwap(false, true)
}

func (s *State) Synced() bool { return s.synced.Load() }

// Update replaces the current window with a copy of window.
func (s *State) Update(window []models.Tick) {
	cp := make([]models.Tick, len(window))
	copy(cp, window)
	s.mu.Lock()
	s.window = cp
	s.mu.Unlock()
	s.updatedAt.Store(time.Now().UnixMilli())
}

// Window returns a copy of the current window.
func (s *State) Window() []models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]models.Tick, len(s.window))
	copy(cp, s.window)
	return cp
}

// Latest returns the newest tick of the window.
func (s *State) Latest() (models.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.window) == 0 {
		return models.Tick{}, false
	}
	return s.window[len(s.window)-1], true
}

func (s *State) Position() pricing.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// SetPosition records a new open position and notifies the scheduler when it changed.
func (s *State) SetPosition(p pricing.Position) bool {
	s.mu.Lock()
	changed := s.position != p
	s.position = p
	s.mu.Unlock()
	if changed {
		select {
		case s.positionCh <- struct{}{}:
		default:
		}
	}
	return changed
}

// PositionChanged fires after SetPosition changed the position.
func (s *State) PositionChanged() <-chan struct{} {
	return s.positionCh
}

func (s *State) UpdatedAt() time.Time {
	ms := s.updatedAt.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
