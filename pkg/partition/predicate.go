package partition

import (
	"fmt"
	"regexp"
	"strings"
)

// LineFunc tests a single line. The helpers below ignore the line ending.
type LineFunc func(line string) bool

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// HasPrefix matches lines starting with prefix.
func HasPrefix(prefix string) LineFunc {
	return func(line string) bool { return strings.HasPrefix(line, prefix) }
}

// HasSuffix matches lines ending with suffix.
func HasSuffix(suffix string) LineFunc {
	return func(line string) bool { return strings.HasSuffix(trimEOL(line), suffix) }
}

// Contains matches lines containing substr.
func Contains(substr string) LineFunc {
	return func(line string) bool { return strings.Contains(trimEOL(line), substr) }
}

// Regexp matches lines re matches.
func Regexp(re *regexp.Regexp) LineFunc {
	return func(line string) bool { return re.MatchString(trimEOL(line)) }
}

// MatchRegexp compiles expr and returns a LineFunc for it.
func MatchRegexp(expr string) (LineFunc, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", expr, err)
	}
	return Regexp(re), nil
}

// IsInteger matches lines holding only decimal digits, surrounding
// whitespace aside.
func IsInteger(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
