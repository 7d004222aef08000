// Package position computes sparse ordering keys for waitlist entries.
//
// Positions are int64 values spaced Gap apart. Moving an entry between two
// neighbours takes the midpoint of their positions, so a freshly spread gap
// can be bisected MaxBisections times before the neighbours become adjacent
// integers. At that point Between reports ErrExhausted and the caller is
// expected to renumber the partition with Spread and retry.
package position

import (
	"errors"
	"math"
)

const (
	// Gap is the distance between consecutive positions after a spread.
	Gap int64 = 1 << 20
	// MaxBisections is how many midpoint insertions one full gap absorbs.
	MaxBisections = 20
)

var ErrExhausted = errors.New("position: no room between neighbours")

// Append returns the position for a new tail entry. max is the highest
// position held by any row of the partition.
func Append(max int64, empty bool) (int64, error) {
	if empty {
		return Gap, nil
	}
	if max > math.MaxInt64-Gap {
		return 0, ErrExhausted
	}
	return max + Gap, nil
}

// Between returns a position strictly between prev and next. A nil bound is
// the edge of the list.
func Between(prev, next *int64) (int64, error) {
	switch {
	case prev == nil && next == nil:
		return Gap, nil
	case prev == nil:
		if *next < math.MinInt64+Gap {
			return 0, ErrExhausted
		}
		return *next - Gap, nil
	case next == nil:
		if *prev > math.MaxInt64-Gap {
			return 0, ErrExhausted
		}
		return *prev + Gap, nil
	}

	lo, hi := *prev, *next
	if hi <= lo || uint64(hi-lo) < 2 {
		return 0, ErrExhausted
	}
	// lo + (hi-lo)/2 stays in range even when the difference overflows int64.
	return lo + int64(uint64(hi-lo)/2), nil
}

// Spread returns n evenly spaced positions: Gap, 2*Gap, ... n*Gap.
func Spread(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = Gap * int64(i+1)
	}
	return out
}

// IsSpread reports whether ps already equals Spread(len(ps)).
func IsSpread(ps []int64) bool {
	for i, p := range ps {
		if p != Gap*int64(i+1) {
			return false
		}
	}
	return true
}
