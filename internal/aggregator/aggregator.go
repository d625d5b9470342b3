// Package aggregator turns a tick window into OHLC candles.
package aggregator

import (
	"fmt"
	"sort"
	"time"

	"go-ticker/internal/common"
	"go-ticker/pkg/models"
)

type Option func(*Aggregator)

// WithLocation sets the calendar used for bucket boundaries.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithMaxCandles caps the output to the most recent n candles. n <= 0 keeps all.
func WithMaxCandles(n int) Option {
	return func(a *Aggregator) {
		a.maxCandles = n
	}
}

// Aggregator is immutable after New and safe for concurrent use.
type Aggregator struct {
	loc        *time.Location
	maxCandles int
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{loc: time.UTC, maxCandles: common.DefaultMaxCandles}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type bucket struct {
	ticks []models.Tick
}

// Aggregate groups ticks by tf and returns candles ordered by bucket start.
// The input is not modified.
func (a *Aggregator) Aggregate(ticks []models.Tick, tf Timeframe) ([]models.Candle, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidTimeframe, string(tf))
	}
	if len(ticks) == 0 {
		return []models.Candle{}, nil
	}

	buckets := make(map[bucketKey]*bucket)
	for _, t := range ticks {
		k := tf.key(t.Time().In(a.loc))
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.ticks = append(b.ticks, t)
	}

	type ordered struct {
		candle models.Candle
		first  int64
	}
	out := make([]ordered, 0, len(buckets))
	for _, b := range buckets {
		sort.SliceStable(b.ticks, func(i, j int) bool {
			return b.ticks[i].Timestamp < b.ticks[j].Timestamp
		})
		c := reduce(b.ticks)
		c.BucketStart = tf.align(b.ticks[0].Time().In(a.loc))
		out = append(out, ordered{candle: c, first: b.ticks[0].Timestamp})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].candle.BucketStart != out[j].candle.BucketStart {
			return out[i].candle.BucketStart < out[j].candle.BucketStart
		}
		return out[i].first < out[j].first
	})

	if a.maxCandles > 0 && len(out) > a.maxCandles {
		out = out[len(out)-a.maxCandles:]
	}
	candles := make([]models.Candle, len(out))
	for i, o := range out {
		candles[i] = o.candle
	}
	return candles, nil
}

// reduce expects ticks sorted by timestamp.
func reduce(ticks []models.Tick) models.Candle {
	c := models.Candle{
		Open:  ticks[0].Price,
		High:  ticks[0].Price,
		Low:   ticks[0].Price,
		Close: ticks[len(ticks)-1].Price,
	}
	for _, t := range ticks[1:] {
		if t.Price.Cmp(c.High) > 0 {
			c.High = t.Price
		}
		if t.Price.Cmp(c.Low) < 0 {
			c.Low = t.Price
		}
	}
	return c
}

var defaultAggregator = New()

// Aggregate uses UTC and the default candle cap.
func Aggregate(ticks []models.Tick, tf Timeframe) ([]models.Candle, error) {
	return defaultAggregator.Aggregate(ticks, tf)
}
