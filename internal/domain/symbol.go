package domain

import (
	"fmt"
	"regexp"
)

var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,11}$`)

// ValidateSymbol checks that a symbol is 1-12 upper-case alphanumerics
// (dots allowed after the first character, e.g. "BRK.B").
func ValidateSymbol(symbol string) error {
	if !symbolRegex.MatchString(symbol) {
		return &ValidationError{
			Message: fmt.Sprintf("invalid symbol %q: must match %s", symbol, symbolRegex.String()),
		}
	}
	return nil
}
