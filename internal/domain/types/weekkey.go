package types

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// WeekKey identifies one ISO week in the form "YYYY-Www", e.g. "2025-W07".
type WeekKey string

// weekKeyPattern matches the canonical YYYY-Www form.
var weekKeyPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// ParseWeekKey validates and normalizes a week key string.
func ParseWeekKey(s string) (WeekKey, error) {
	m := weekKeyPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidWeekKey, s)
	}
	week, err := strconv.Atoi(m[2])
	if err != nil || week < 1 || week > 53 {
		return "", fmt.Errorf("%w: %q", ErrInvalidWeekKey, s)
	}
	return WeekKey(s), nil
}

// WeekKeyFromTime derives the ISO week key containing t.
func WeekKeyFromTime(t time.Time) WeekKey {
	year, week := t.ISOWeek()
	return WeekKey(fmt.Sprintf("%04d-W%02d", year, week))
}

// Valid reports whether the key is in canonical form.
func (k WeekKey) Valid() bool {
	_, err := ParseWeekKey(string(k))
	return err == nil
}

// Year returns the ISO year component, or 0 for malformed keys.
func (k WeekKey) Year() int {
	m := weekKeyPattern.FindStringSubmatch(string(k))
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}

// Week returns the ISO week number component, or 0 for malformed keys.
func (k WeekKey) Week() int {
	m := weekKeyPattern.FindStringSubmatch(string(k))
	if m == nil {
		return 0
	}
	w, _ := strconv.Atoi(m[2])
	return w
}

// Before reports whether k sorts strictly before other.
// The canonical zero-padded form makes lexical order chronological.
func (k WeekKey) Before(other WeekKey) bool {
	return string(k) < string(other)
}

func (k WeekKey) String() string {
	return string(k)
}
