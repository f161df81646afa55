// Package duration parses and formats the compact duration strings used
// throughout signal definitions: a positive integer followed by a unit
// (s, m, h, d, w).
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var grammar = regexp.MustCompile(`^([1-9][0-9]*)(s|m|h|d|w)$`)

var unitMillis = map[string]int64{
	"s": 1000,
	"m": 60 * 1000,
	"h": 60 * 60 * 1000,
	"d": 24 * 60 * 60 * 1000,
	"w": 7 * 24 * 60 * 60 * 1000,
}

// unit precedence for canonical formatting: prefer the largest unit that
// evenly divides the millisecond value.
var unitOrder = []string{"w", "d", "h", "m", "s"}

// Error indicates a duration string does not match the grammar
// `^([1-9][0-9]*)(s|m|h|d|w)$`.
type Error struct {
	Value string
}

func (e *Error) Error() string {
	return fmt.Sprintf("duration: %q does not match grammar <positive-integer><s|m|h|d|w>", e.Value)
}

// Parse converts a canonical duration string into milliseconds.
func Parse(s string) (int64, error) {
	m := grammar.FindStringSubmatch(s)
	if m == nil {
		return 0, &Error{Value: s}
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, &Error{Value: s}
	}
	return n * unitMillis[m[2]], nil
}

// ParseGoDuration is a convenience wrapper returning a time.Duration.
func ParseGoDuration(s string) (time.Duration, error) {
	ms, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Format renders a millisecond count back into the canonical grammar,
// choosing the largest unit that divides it evenly. It is the inverse of
// Parse for any value Parse can produce from a canonical string
// (parseDuration(formatDuration(x)) == x for canonical x).
func Format(ms int64) string {
	if ms <= 0 {
		return "0s"
	}
	for _, u := range unitOrder {
		step := unitMillis[u]
		if ms%step == 0 {
			return fmt.Sprintf("%d%s", ms/step, u)
		}
	}
	return fmt.Sprintf("%ds", ms/unitMillis["s"])
}

// Valid reports whether s matches the duration grammar.
func Valid(s string) bool {
	return grammar.MatchString(s)
}
