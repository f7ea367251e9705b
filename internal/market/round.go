package market

import (
	"fmt"
	"math"
)

// Rounding selects how percentages are rounded to two decimals.
type Rounding string

const (
	// RoundHalfEven rounds exact ties to the even hundredth (0.125 -> 0.12).
	RoundHalfEven Rounding = "half_even"
	// RoundHalfAwayFromZero rounds exact ties up in magnitude (0.125 -> 0.13).
	RoundHalfAwayFromZero Rounding = "half_away"
)

// ParseRounding validates a configured rounding mode. Empty means half_even.
func ParseRounding(s string) (Rounding, error) {
	switch Rounding(s) {
	case "", RoundHalfEven:
		return RoundHalfEven, nil
	case RoundHalfAwayFromZero:
		return RoundHalfAwayFromZero, nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q (want half_even or half_away)", s)
	}
}

// Round2 rounds x to two decimal places.
func (r Rounding) Round2(x float64) float64 {
	scaled := x * 100
	if r == RoundHalfAwayFromZero {
		return math.Round(scaled) / 100
	}
	return math.RoundToEven(scaled) / 100
}

// Percent returns round(100*count/total, 2). total must be positive.
// The product is taken before division so exact ties such as 23/160
// (14.375) reach the rounding mode unperturbed.
func (r Rounding) Percent(count, total int) float64 {
	return r.Round2(100 * float64(count) / float64(total))
}
