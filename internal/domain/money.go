package domain

import (
	"fmt"
	"math"
)

// maxDollars keeps the scaled value within int64.
const maxDollars = float64(math.MaxInt64 / 1000)

// DollarsToCents converts a decimal dollar amount to int64 cents,
// rejecting values with more than two decimal places.
func DollarsToCents(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Message: "monetary values must be finite"}
	}
	if math.Abs(f) > maxDollars {
		return 0, &ValidationError{Message: fmt.Sprintf("monetary value %v is out of range", f)}
	}
	// Round at a third decimal place to absorb representation noise
	// (1.10 * 1000 = 1099.9999...).
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, &ValidationError{Message: fmt.Sprintf("monetary values must have at most 2 decimal places, got %v", f)}
	}
	return int64(math.Round(f * 100)), nil
}

// CentsToDollars converts an int64 cents value to a float64 dollar amount.
func CentsToDollars(c int64) float64 {
	return float64(c) / 100.0
}
