package dfci

import (
	"fmt"

	"github.com/paulmach/orb"
)

// IsValidCode reports whether code is structurally a grid code. It does not
// check that the addressed cell lies inside Domain.
func IsValidCode(code string) bool {
	switch len(code) {
	case 2, 4, 6, 8:
	default:
		return false
	}

	if !isGridLetter(code[0]) || code[1] == 'A' || !isGridLetter(code[1]) {
		return false
	}
	if len(code) == 2 {
		return true
	}

	if !isEvenDigit(code[2]) || !isEvenDigit(code[3]) {
		return false
	}
	if len(code) == 4 {
		return true
	}

	if !isSubLetter(code[4]) || !isDigit(code[5]) {
		return false
	}
	if len(code) == 6 {
		return true
	}

	return code[6] == '.' && code[7] >= '1' && code[7] <= '5'
}

// A-H, K-N
func isGridLetter(c byte) bool {
	return (c >= 'A' && c <= 'H') || (c >= 'K' && c <= 'N')
}

// A-H, K-L
func isSubLetter(c byte) bool {
	return (c >= 'A' && c <= 'H') || c == 'K' || c == 'L'
}

func isEvenDigit(c byte) bool {
	return c == '0' || c == '2' || c == '4' || c == '6' || c == '8'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsValidPoint reports whether p lies inside Domain, bounds included.
func IsValidPoint(p orb.Point) bool {
	return p[0] >= Domain.Min[0] && p[0] <= Domain.Max[0] &&
		p[1] >= Domain.Min[1] && p[1] <= Domain.Max[1]
}

// ValidatePoint returns ErrPointOutOfDomain when p is outside Domain.
func ValidatePoint(p orb.Point) error {
	if !IsValidPoint(p) {
		return fmt.Errorf("%w: [%v, %v]", ErrPointOutOfDomain, p[0], p[1])
	}
	return nil
}
