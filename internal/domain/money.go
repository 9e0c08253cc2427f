package domain

import (
	"fmt"
	"math"
)

// MulCents multiplies a cent amount by a float multiplier (odds, parlay
// multiplier) and rounds half away from zero to the nearest cent. All payout
// math in the engine goes through this single rounding point.
func MulCents(amount int64, multiplier float64) int64 {
	return int64(math.Round(float64(amount) * multiplier))
}

// FormatCents renders a cent amount as a dollar string for logs and
// notifications, e.g. 9928 -> "$99.28".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
