package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go-ticker/internal/aggregator"
	"go-ticker/internal/common"
	"go-ticker/internal/metrics"
	"go-ticker/internal/pricing"
	"go-ticker/internal/series"
	"go-ticker/internal/util"
	"go-ticker/pkg/models"
)

// ErrClosed is returned by Watch after Shutdown.
var ErrClosed = errors.New("service closed")

type listenerEntry struct {
	mu    sync.Mutex
	chans []chan models.Snapshot
}

// Service turns published windows into per-timeframe snapshots and fans them
// out to watchers. Every snapshot replaces the previous one in full.
type Service struct {
	state            *series.State
	aggregator       *aggregator.Aggregator
	defaultTimeframe aggregator.Timeframe
	bufferSize       int
	listeners        map[aggregator.Timeframe]*listenerEntry
	listenersMu      sync.Mutex
	closed           bool
	logger           *util.Logger
}

func NewService(state *series.State, agg *aggregator.Aggregator, defaultTimeframe string, bufferSize int, logger *util.Logger) (*Service, error) {
	tf, err := aggregator.ParseTimeframe(defaultTimeframe)
	if err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = common.DefaultChannelBufferSize
	}
	if logger == nil {
		logger = util.NewNopLogger()
	}
	s := &Service{
		state:            state,
		aggregator:       agg,
		defaultTimeframe: tf,
		bufferSize:       bufferSize,
		listeners:        make(map[aggregator.Timeframe]*listenerEntry),
		logger:           logger.With("service"),
	}
	for _, t := range aggregator.Timeframes {
		s.listeners[t] = &listenerEntry{chans: make([]chan models.Snapshot, 0)}
	}
	return s, nil
}

func (s *Service) resolve(tf string) (aggregator.Timeframe, error) {
	if tf == "" {
		return s.defaultTimeframe, nil
	}
	return aggregator.ParseTimeframe(tf)
}

// Publish implements scheduler.Publisher. Timeframes without watchers are skipped.
func (s *Service) Publish(window []models.Tick) {
	for _, tf := range aggregator.Timeframes {
		s.listenersMu.Lock()
		listener := s.listeners[tf]
		s.listenersMu.Unlock()

		listener.mu.Lock()
		if len(listener.chans) == 0 {
			listener.mu.Unlock()
			continue
		}
		snap, err := s.build(window, tf)
		if err != nil {
			listener.mu.Unlock()
			s.logger.Error(err, common.ErrCodeInvalidTimeframe, common.ErrMsgInvalidTimeframe, "Failed to build snapshot", "timeframe", tf)
			continue
		}
		for _, ch := range listener.chans {
			select {
			case ch <- snap:
			default:
				metrics.DroppedSnapshotsTotal.Inc()
				s.logger.Warn(common.ErrCodeChannelFull, common.ErrMsgChannelFull,
					"Dropped snapshot due to full subscriber channel", "timeframe", tf)
			}
		}
		listener.mu.Unlock()
	}
}

// Snapshot builds the current snapshot for tf. An empty tf selects the
// configured default timeframe.
func (s *Service) Snapshot(tf string) (models.Snapshot, error) {
	t, err := s.resolve(tf)
	if err != nil {
		return models.Snapshot{}, err
	}
	return s.build(s.state.Window(), t)
}

func (s *Service) build(window []models.Tick, tf aggregator.Timeframe) (models.Snapshot, error) {
	candles, err := s.aggregator.Aggregate(window, tf)
	if err != nil {
		return models.Snapshot{}, err
	}
	snap := models.Snapshot{
		Timeframe: tf.String(),
		Candles:   candles,
		Direction: models.DirectionOf(window),
		Ready:     s.state.Synced() && len(window) > 0,
	}
	if n := len(window); n > 0 {
		snap.LatestPrice = window[n-1].Price
		snap.LatestTimestamp = window[n-1].Timestamp
	}
	return snap, nil
}

// Watch registers a snapshot channel for tf and primes it with the current
// snapshot. The returned cancel func unregisters and closes the channel; it is
// safe to call more than once. Shutdown closes every channel as well.
func (s *Service) Watch(tf string) (<-chan models.Snapshot, func(), error) {
	t, err := s.resolve(tf)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan models.Snapshot, s.bufferSize)

	// The priming snapshot is built under listener.mu, so a concurrent Publish
	// either lands before it (and is reflected in state) or after it.
	s.listenersMu.Lock()
	if s.closed {
		s.listenersMu.Unlock()
		return nil, nil, ErrClosed
	}
	listener := s.listeners[t]
	listener.mu.Lock()
	current, err := s.build(s.state.Window(), t)
	if err != nil {
		listener.mu.Unlock()
		s.listenersMu.Unlock()
		return nil, nil, err
	}
	ch <- current
	listener.chans = append(listener.chans, ch)
	listener.mu.Unlock()
	s.listenersMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			listener.mu.Lock()
			defer listener.mu.Unlock()
			for i, c := range listener.chans {
				if c == ch {
					listener.chans = append(listener.chans[:i], listener.chans[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, cancel, nil
}

// Watchers counts registered channels across all timeframes.
func (s *Service) Watchers() int {
	n := 0
	for _, tf := range aggregator.Timeframes {
		s.listenersMu.Lock()
		listener := s.listeners[tf]
		s.listenersMu.Unlock()
		listener.mu.Lock()
		n += len(listener.chans)
		listener.mu.Unlock()
	}
	return n
}

func (s *Service) Position() pricing.Position {
	return s.state.Position()
}

// SetPosition parses and records the open position. The scheduler picks up
// the new bias on its next wait.
func (s *Service) SetPosition(value string) (pricing.Position, error) {
	p, err := pricing.ParsePosition(value)
	if err != nil {
		s.logger.Warn(common.ErrCodeInvalidPosition, common.ErrMsgInvalidPosition, "Rejected position", "position", value)
		return "", err
	}
	if s.state.SetPosition(p) {
		metrics.PositionChangesTotal.WithLabelValues(string(p)).Inc()
		s.logger.Info("Position changed", "position", p)
	}
	return p, nil
}

func (s *Service) Phase() series.Phase {
	return s.state.Phase()
}

// Ready reports whether the live loop is streaming.
func (s *Service) Ready() bool {
	return s.state.Phase() == series.PhaseStreaming
}

// Health summarises the series state.
func (s *Service) Health() map[string]interface{} {
	h := map[string]interface{}{
		"phase":    s.state.Phase(),
		"synced":   s.state.Synced(),
		"position": s.state.Position(),
		"watchers": s.Watchers(),
		"uptime":   s.state.Uptime().Round(time.Second).String(),
	}
	if latest, ok := s.state.Latest(); ok {
		h["latest_price"] = latest.Price.String()
		h["latest_timestamp"] = latest.Timestamp
	}
	if t := s.state.UpdatedAt(); !t.IsZero() {
		h["updated_at"] = t.UTC().Format(time.RFC3339Nano)
	}
	return h
}

// Shutdown closes every watcher channel. Later Watch calls fail with ErrClosed.
func (s *Service) Shutdown() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.closed = true

	for tf, listener := range s.listeners {
		listener.mu.Lock()
		for _, ch := range listener.chans {
			close(ch)
		}
		if n := len(listener.chans); n > 0 {
			s.logger.Debug(fmt.Sprintf("Closed %d watchers", n), "timeframe", tf)
		}
		listener.chans = nil
		listener.mu.Unlock()
	}
}
