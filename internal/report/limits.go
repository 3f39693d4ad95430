package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ColorLimits are three ascending output size thresholds in bytes.
type ColorLimits [3]int64

// DefaultColorLimits are 100, 200 and 300 KiB.
var DefaultColorLimits = ColorLimits{100 * 1024, 200 * 1024, 300 * 1024}

// ErrInvalidColorLimits is returned for limit lists that are not three
// ascending positive KiB integers.
var ErrInvalidColorLimits = errors.New("colors must contain 3 incrementing kib limit integers")

// SizeClass buckets an output size against ColorLimits: small up to the
// first limit, medium up to the second, large up to the third and too large
// above it.
type SizeClass int

const (
	SizeSmall SizeClass = iota
	SizeMedium
	SizeLarge
	SizeTooLarge
)

// ParseColorLimits parses "100,200,300" (KiB). Empty entries are ignored.
func ParseColorLimits(s string) (ColorLimits, error) {
	var values []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return ColorLimits{}, fmt.Errorf("%w: %q", ErrInvalidColorLimits, part)
		}
		values = append(values, n*1024)
	}
	if len(values) != 3 {
		return ColorLimits{}, fmt.Errorf("%w: got %d values", ErrInvalidColorLimits, len(values))
	}
	limits := ColorLimits{values[0], values[1], values[2]}
	if limits[0] <= 0 || limits[0] >= limits[1] || limits[1] >= limits[2] {
		return ColorLimits{}, fmt.Errorf("%w: %s", ErrInvalidColorLimits, s)
	}
	return limits, nil
}

// Classify returns the size class of size.
func (l ColorLimits) Classify(size int64) SizeClass {
	switch {
	case size <= l[0]:
		return SizeSmall
	case size <= l[1]:
		return SizeMedium
	case size > l[2]:
		return SizeTooLarge
	default:
		return SizeLarge
	}
}
