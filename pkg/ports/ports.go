package ports

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPort is returned when a token is not a 16-bit unsigned integer
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidRange is returned when a range lower bound exceeds its upper bound
	ErrInvalidRange = errors.New("invalid port range")
)

// ParseError reports the token of a port specification that failed to parse
type ParseError struct {
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Token)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PortSet is an ordered list of ports to probe.
// Order follows the input tokens and duplicates are kept.
type PortSet []uint16

// Parse parses a comma-separated port specification such as "22,80,8000-8100".
// Ranges are inclusive and expand in ascending order.
func Parse(spec string) (PortSet, error) {
	var set PortSet

	for token := range strings.SplitSeq(spec, ",") {
		token = strings.TrimSpace(token)

		lowerStr, upperStr, isRange := strings.Cut(token, "-")
		if !isRange {
			port, err := parsePort(token)
			if err != nil {
				return nil, &ParseError{Token: token, Err: err}
			}
			set = append(set, port)
			continue
		}

		lower, err := parsePort(lowerStr)
		if err != nil {
			return nil, &ParseError{Token: token, Err: err}
		}
		upper, err := parsePort(upperStr)
		if err != nil {
			return nil, &ParseError{Token: token, Err: err}
		}
		if lower > upper {
			return nil, &ParseError{Token: token, Err: ErrInvalidRange}
		}

		set = slices.Grow(set, int(upper-lower)+1)
		for p := uint32(lower); p <= uint32(upper); p++ {
			set = append(set, uint16(p))
		}
	}

	return set, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(spec string) PortSet {
	set, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return set
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, ErrInvalidPort
	}
	return uint16(v), nil
}

// Len returns the number of probes the set describes, duplicates included
func (s PortSet) Len() int {
	return len(s)
}

// String renders the set in compact range form
func (s PortSet) String() string {
	sorted := slices.Clone(s)
	slices.Sort(sorted)
	return FormatRanges(sorted)
}
