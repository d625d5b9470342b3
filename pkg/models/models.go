package models

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go-ticker/internal/common"
)

// Tick is a single price observation. Timestamp is milliseconds since epoch.
type Tick struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

// NewTick validates price and timestamp at the boundary.
func NewTick(price decimal.Decimal, timestamp int64) (Tick, error) {
	if timestamp < 0 {
		return Tick{}, fmt.Errorf("%w: negative timestamp %d", common.ErrInvalidTick, timestamp)
	}
	if price.IsNegative() {
		return Tick{}, fmt.Errorf("%w: negative price %s", common.ErrInvalidTick, price)
	}
	return Tick{Price: price, Timestamp: timestamp}, nil
}

// TickFromFloat builds a tick from a float price, rejecting NaN and infinities.
func TickFromFloat(price float64, timestamp int64) (Tick, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return Tick{}, fmt.Errorf("%w: non-finite price", common.ErrInvalidTick)
	}
	return NewTick(decimal.NewFromFloat(price), timestamp)
}

func (t Tick) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// Candle is the OHLC summary of one bucket. BucketStart is in seconds.
type Candle struct {
	BucketStart int64           `json:"time"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
}

func (c Candle) Time() time.Time {
	return time.Unix(c.BucketStart, 0)
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// DirectionOf compares the last two ticks of a window.
func DirectionOf(window []Tick) Direction {
	if len(window) < 2 {
		return DirectionFlat
	}
	switch window[len(window)-1].Price.Cmp(window[len(window)-2].Price) {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// Snapshot is the full-replacement view handed to chart and trade consumers.
// Ready is false until the series has been synced and holds at least one tick.
type Snapshot struct {
	Timeframe       string          `json:"timeframe"`
	Candles         []Candle        `json:"candles"`
	LatestPrice     decimal.Decimal `json:"latest_price"`
	LatestTimestamp int64           `json:"latest_timestamp"`
	Direction       Direction       `json:"direction"`
	Ready           bool            `json:"ready"`
}
