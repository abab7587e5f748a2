// Package vat normalizes Belgian enterprise numbers into the canonical
// storage key form. Upstream sources write the same identifier in many
// notations ("BE 0123.456.789", "0123456789", "0123-456-789"); every lookup
// and every write goes through Parse so all of them collide to one key.
package vat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotANumber signals that the cleaned input is not a usable enterprise
// number.
var ErrNotANumber = errors.New("vat: not an enterprise number")

// Number is a canonical enterprise number: exactly ten digits, leading zero
// preserved. The zero value is not valid; obtain one through Parse.
type Number string

// Parse strips whitespace, a leading country prefix, dots and dashes from raw
// and validates the remainder. It is pure and side-effect free.
func Parse(raw string) (Number, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '.', '-':
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimPrefix(cleaned, "BE")

	if cleaned == "" {
		return "", ErrNotANumber
	}
	if len(cleaned) != 10 {
		return "", fmt.Errorf("%w: %q", ErrNotANumber, raw)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrNotANumber, raw)
		}
	}
	return Number(cleaned), nil
}

func (n Number) String() string { return string(n) }

// Dotted renders the display form used on official documents: 0123.456.789.
func (n Number) Dotted() string {
	if len(n) != 10 {
		return string(n)
	}
	return string(n[:4]) + "." + string(n[4:7]) + "." + string(n[7:])
}
