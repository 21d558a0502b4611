package dfci

import (
	"fmt"
	"strings"
)

// Code is a grid code, e.g. "AB", "AB24", "AB24C7" or "AB24C7.3".
type Code string

func (c Code) String() string {
	return string(c)
}

// Level returns the level implied by the code length, or -1 for a length no
// level has.
func (c Code) Level() Level {
	for l, n := range codeLength {
		if len(c) == n {
			return Level(l)
		}
	}
	return -1
}

// Parent returns the code of the enclosing cell one level up. Level 0 codes
// and malformed codes have no parent.
func (c Code) Parent() (Code, bool) {
	l := c.Level()
	if l <= Level0 {
		return "", false
	}
	return c[:codeLength[l-1]], true
}

// Parse turns user input into a code: surrounding and inner blanks are
// dropped, letters are upper-cased and a level 3 code typed without its dot
// ("AB24C73") gets it back.
func Parse(input string) (Code, error) {
	s := strings.ToUpper(strings.Join(strings.Fields(input), ""))
	if len(s) == 7 && !strings.Contains(s, ".") {
		s = s[:6] + "." + s[6:]
	}
	if !IsValidCode(s) {
		return "", fmt.Errorf("%w: %q", ErrMalformedCode, input)
	}
	return Code(s), nil
}
