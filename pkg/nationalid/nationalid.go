// Package nationalid validates Iranian national identification numbers.
package nationalid

import (
	"errors"
	"fmt"
)

const length = 10

var (
	ErrInvalid  = errors.New("invalid_national_id")
	ErrFormat   = fmt.Errorf("%w: must be exactly %d digits", ErrInvalid, length)
	ErrChecksum = fmt.Errorf("%w: checksum mismatch", ErrInvalid)
)

// Validate checks the 10-digit format and the mod-11 check digit.
func Validate(s string) error {
	if len(s) != length {
		return ErrFormat
	}

	var digits [length]int
	for i := 0; i < length; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return ErrFormat
		}
		digits[i] = int(c - '0')
	}

	if digits[length-1] != CheckDigit(digits[:length-1]) {
		return ErrChecksum
	}
	return nil
}

func IsValid(s string) bool {
	return Validate(s) == nil
}

// CheckDigit computes the check digit for the first nine digits.
func CheckDigit(prefix []int) int {
	sum := 0
	for i, d := range prefix {
		sum += d * (length - i)
	}
	r := sum % 11
	if r >= 2 {
		return 11 - r
	}
	return r
}
