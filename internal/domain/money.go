package domain

import (
	"fmt"
	"math"
)

// DollarsToCents converts a float64 dollar amount to int64 cents. Prices
// on the wire are decimal dollars; internally everything is integer cents
// so the matching arithmetic is exact. Inputs with more than 2 decimal
// places are rejected.
func DollarsToCents(f float64) (int64, error) {
	// Scale by 1000 to detect a third decimal place. Round first to
	// avoid floating-point artifacts (1.10 * 1000 = 1099.999...).
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}

	return int64(math.Round(f * 100)), nil
}

// CentsToDollars converts an int64 cents value to a float64 dollar amount.
func CentsToDollars(c int64) float64 {
	return float64(c) / 100.0
}
