// Package intake holds the checks run on a submission before anything is stored.
// Every function here is a pure predicate over its input.
package intake

import (
	"fmt"
	"strings"

	"roadAccident/pkg/e"
)

var (
	ErrWrongLength   = fmt.Errorf("phone number must have exactly 10 digits: %w", e.ErrInvalidInput)
	ErrInvalidPrefix = fmt.Errorf("phone number must start with 6, 7, 8 or 9: %w", e.ErrInvalidInput)
)

const phoneDigits = 10

// ValidatePhone strips every non-digit and checks what is left. It returns the
// ten digits without a country code.
func ValidatePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) != phoneDigits {
		return "", ErrWrongLength
	}
	switch digits[0] {
	case '6', '7', '8', '9':
	default:
		return "", ErrInvalidPrefix
	}
	return digits, nil
}

// NormalizePhone prefixes validated digits with a country code: +<cc><digits>.
func NormalizePhone(digits, countryCode string) string {
	return "+" + strings.TrimPrefix(countryCode, "+") + digits
}
