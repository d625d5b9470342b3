package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-ticker/internal/aggregator"
	"go-ticker/internal/common"
	"go-ticker/internal/pricing"
	"go-ticker/internal/series"
	"go-ticker/pkg/models"
)

func window() []models.Tick {
	return []models.Tick{
		{Price: decimal.RequireFromString("100"), Timestamp: 0},
		{Price: decimal.RequireFromString("105"), Timestamp: 30000},
		{Price: decimal.RequireFromString("98"), Timestamp: 59000},
		{Price: decimal.RequireFromString("110"), Timestamp: 61000},
	}
}

func newTestService(t *testing.T, buffer int) (*Service, *series.State) {
	t.Helper()
	state := series.NewState()
	svc, err := NewService(state, aggregator.New(), "m1", buffer, nil)
	require.NoError(t, err)
	return svc, state
}

func receive(t *testing.T, ch <-chan models.Snapshot) models.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
		return models.Snapshot{}
	}
}

func TestSnapshotNotReadyBeforeSync(t *testing.T) {
	svc, state := newTestService(t, 4)

	snap, err := svc.Snapshot("")
	require.NoError(t, err)
	assert.False(t, snap.Ready)
	assert.Empty(t, snap.Candles)
	assert.Equal(t, "m1", snap.Timeframe)

	state.Update(window())
	snap, err = svc.Snapshot("m1")
	require.NoError(t, err)
	assert.False(t, snap.Ready, "window without sync is not ready")

	state.MarkSynced()
	snap, err = svc.Snapshot("M1")
	require.NoError(t, err)
	assert.True(t, snap.Ready)
	require.Len(t, snap.Candles, 2)
	assert.Equal(t, "110", snap.LatestPrice.String())
	assert.Equal(t, int64(61000), snap.LatestTimestamp)
	assert.Equal(t, models.DirectionUp, snap.Direction)
}

func TestSnapshotInvalidTimeframe(t *testing.T) {
	svc, _ := newTestService(t, 4)
	_, err := svc.Snapshot("m7")
	assert.ErrorIs(t, err, common.ErrInvalidTimeframe)

	_, _, err = svc.Watch("q1")
	assert.ErrorIs(t, err, common.ErrInvalidTimeframe)
}

func TestWatchReceivesPublishedSnapshots(t *testing.T) {
	svc, state := newTestService(t, 4)
	state.MarkSynced()

	m1, cancelM1, err := svc.Watch("m1")
	require.NoError(t, err)
	defer cancelM1()
	h1, cancelH1, err := svc.Watch("h1")
	require.NoError(t, err)
	defer cancelH1()
	assert.Equal(t, 2, svc.Watchers())

	primed := receive(t, m1)
	assert.False(t, primed.Ready)
	receive(t, h1)

	w := window()
	state.Update(w)
	svc.Publish(w)

	snap := receive(t, m1)
	assert.True(t, snap.Ready)
	assert.Len(t, snap.Candles, 2)

	hourly := receive(t, h1)
	assert.Equal(t, "h1", hourly.Timeframe)
	require.Len(t, hourly.Candles, 1)
	assert.Equal(t, "110", hourly.Candles[0].High.String())
}

func TestFullChannelDropsSnapshots(t *testing.T) {
	svc, _ := newTestService(t, 1)

	ch, cancel, err := svc.Watch("m1")
	require.NoError(t, err)
	defer cancel()

	svc.Publish(window())
	svc.Publish(window())

	receive(t, ch)
	select {
	case <-ch:
		t.Fatal("snapshot should have been dropped")
	default:
	}
}

func TestCancelAndShutdownCloseChannels(t *testing.T) {
	svc, _ := newTestService(t, 4)

	a, cancelA, err := svc.Watch("m1")
	require.NoError(t, err)
	b, _, err := svc.Watch("d1")
	require.NoError(t, err)

	cancelA()
	cancelA()
	receive(t, a)
	_, ok := <-a
	assert.False(t, ok)
	assert.Equal(t, 1, svc.Watchers())

	svc.Shutdown()
	receive(t, b)
	_, ok = <-b
	assert.False(t, ok)

	_, _, err = svc.Watch("m1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSetPosition(t *testing.T) {
	svc, state := newTestService(t, 4)

	p, err := svc.SetPosition("long")
	require.NoError(t, err)
	assert.Equal(t, pricing.PositionLong, p)
	assert.Equal(t, pricing.PositionLong, svc.Position())

	select {
	case <-state.PositionChanged():
	default:
		t.Fatal("position change not signalled")
	}

	_, err = svc.SetPosition("sideways")
	assert.ErrorIs(t, err, common.ErrInvalidPosition)
	assert.Equal(t, pricing.PositionLong, svc.Position())
}

func TestReadyFollowsPhase(t *testing.T) {
	svc, state := newTestService(t, 4)
	assert.False(t, svc.Ready())

	state.SetPhase(series.PhaseStreaming)
	assert.True(t, svc.Ready())

	state.Update(window())
	h := svc.Health()
	assert.Equal(t, series.PhaseStreaming, h["phase"])
	assert.Equal(t, "110", h["latest_price"])
}

func TestNewServiceRejectsDefaultTimeframe(t *testing.T) {
	_, err := NewService(series.NewState(), aggregator.New(), "m2", 4, nil)
	assert.ErrorIs(t, err, common.ErrInvalidTimeframe)
}

func TestSnapshotCodec(t *testing.T) {
	svc, state := newTestService(t, 4)
	state.MarkSynced()
	state.Update(window())
	snap, err := svc.Snapshot("m1")
	require.NoError(t, err)

	st, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, "110", st.Fields["latest_price"].GetStringValue())

	decoded, err := DecodeSnapshot(st)
	require.NoError(t, err)
	assert.Equal(t, snap.Timeframe, decoded.Timeframe)
	assert.True(t, decoded.Ready)
	require.Len(t, decoded.Candles, 2)
	assert.Equal(t, int64(60), decoded.Candles[1].BucketStart)
	assert.True(t, snap.Candles[0].Low.Equal(decoded.Candles[0].Low))
}

func TestWatchDuringPublishEndsOnLatest(t *testing.T) {
	const n = 200
	for round := 0; round < 20; round++ {
		svc, state := newTestService(t, n+1)
		state.MarkSynced()
		state.Update(window())

		started := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			close(started)
			for i := 1; i <= n; i++ {
				w := append(window(), models.Tick{Price: decimal.NewFromInt(int64(i)), Timestamp: int64(61000 + i)})
				state.Update(w)
				svc.Publish(w)
			}
		}()

		<-started
		ch, cancel, err := svc.Watch("m1")
		require.NoError(t, err)
		<-done

		var last models.Snapshot
		for len(ch) > 0 {
			last = receive(t, ch)
		}
		assert.Equal(t, int64(61000+n), last.LatestTimestamp, "round %d", round)
		cancel()
	}
}
