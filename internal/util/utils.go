package util

import (
	"time"
)

func Millis(d time.Duration) int64 {
	return int64(d / time.Millisecond)
}

func DurationMs(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// RandomBetween returns an integer in [min, max] drawn from next, which must
// behave like rand.Int63n.
func RandomBetween(next func(int64) int64, min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + next(max-min+1)
}
