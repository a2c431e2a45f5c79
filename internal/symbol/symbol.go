// Package symbol handles ticker symbol validation and normalization,
// so junk input is rejected before it costs a vendor API call.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// symbolRegex matches exchange ticker symbols: 1-10 uppercase letters,
// optionally followed by a dot share-class suffix (BRK.B) or a
// dash-separated suffix (BF-B).
var symbolRegex = regexp.MustCompile(`^[A-Z]{1,10}([.-][A-Z]{1,2})?$`)

// ErrInvalidSymbol is returned for input that cannot be a ticker symbol.
var ErrInvalidSymbol = errors.New("symbol: invalid ticker symbol")

// Normalize trims and upper-cases raw input and validates it as a
// ticker symbol.
func Normalize(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return s, nil
}
