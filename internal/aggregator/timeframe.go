package aggregator

import (
	"fmt"
	"strings"
	"time"

	"go-ticker/internal/common"
)

// Timeframe selects the candle width.
type Timeframe string

const (
	M1  Timeframe = "m1"
	M5  Timeframe = "m5"
	M30 Timeframe = "m30"
	H1  Timeframe = "h1"
	H4  Timeframe = "h4"
	D1  Timeframe = "d1"
	W1  Timeframe = "w1"
	W4  Timeframe = "w4"
)

// Timeframes lists every supported timeframe, narrowest first.
var Timeframes = []Timeframe{M1, M5, M30, H1, H4, D1, W1, W4}

// ParseTimeframe is case-insensitive.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if !tf.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidTimeframe, s)
	}
	return tf, nil
}

func (tf Timeframe) Valid() bool {
	switch tf {
	case M1, M5, M30, H1, H4, D1, W1, W4:
		return true
	}
	return false
}

func (tf Timeframe) String() string { return string(tf) }

// bucketKey groups ticks into calendar buckets.
type bucketKey struct {
	year, month, day, slot int
}

func (tf Timeframe) key(t time.Time) bucketKey {
	y, m, d := t.Date()
	switch tf {
	case M1:
		return bucketKey{y, int(m), d, t.Hour()*60 + t.Minute()}
	case M5:
		return bucketKey{y, int(m), d, t.Hour()*12 + t.Minute()/5}
	case M30:
		return bucketKey{y, int(m), d, t.Hour()*2 + t.Minute()/30}
	case H1:
		return bucketKey{y, int(m), d, t.Hour()}
	case H4:
		return bucketKey{y, int(m), d, t.Hour() / 4}
	case D1:
		return bucketKey{y, int(m), d, 0}
	case W1:
		return bucketKey{y, int(m), 0, WeekOfYear(t)}
	case W4:
		return bucketKey{y, int(m), 0, WeekOfYear(t) / 4}
	}
	return bucketKey{}
}

// align returns the start of the candle containing t, in seconds.
func (tf Timeframe) align(t time.Time) int64 {
	y, m, d := t.Date()
	loc := t.Location()
	switch tf {
	case M1, M5, M30:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc).Unix()
	case H1, H4:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc).Unix()
	case D1:
		return time.Date(y, m, d, 0, 0, 0, 0, loc).Unix()
	default:
		// Weeks are split at month edges by the key, so the second part of a
		// split week starts on the 1st.
		start := time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, loc)
		if first := time.Date(y, m, 1, 0, 0, 0, 0, loc); start.Before(first) {
			start = first
		}
		return start.Unix()
	}
}

// WeekOfYear counts Sunday-start weeks; week 1 is the week containing
// January 1st, so the last days of December can already be in week 1.
func WeekOfYear(t time.Time) int {
	y, m, d := t.Date()
	loc := t.Location()
	if sunday := time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, loc); sunday.AddDate(0, 0, 6).Year() > y {
		return 1
	}
	jan1 := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	return (t.YearDay()-1+int(jan1.Weekday()))/7 + 1
}
