package ports

import (
	"slices"
	"strconv"
	"strings"
)

// Status accumulates open and closed ports for a single address.
// It is written by one goroutine only and must be sorted before formatting.
type Status struct {
	Open   []uint16 `json:"open_ports"`
	Closed []uint16 `json:"closed_ports"`
}

// NewStatus preallocates room for numPorts results, most of which are expected to be closed
func NewStatus(numPorts int) *Status {
	return &Status{
		Open:   make([]uint16, 0, numPorts/10),
		Closed: make([]uint16, 0, numPorts),
	}
}

// Record appends port to the open or closed list
func (s *Status) Record(port uint16, open bool) {
	if open {
		s.Open = append(s.Open, port)
	} else {
		s.Closed = append(s.Closed, port)
	}
}

// Sort orders both lists ascending
func (s *Status) Sort() {
	slices.Sort(s.Open)
	slices.Sort(s.Closed)
}

// Total returns the number of recorded results
func (s *Status) Total() int {
	return len(s.Open) + len(s.Closed)
}

func (s *Status) String() string {
	return "open: " + FormatRanges(s.Open) + "; closed: " + FormatRanges(s.Closed)
}

// FormatRanges renders a sorted port list, collapsing consecutive runs into
// "lo-hi" tokens. Repeated ports fold into the run they belong to.
// An empty list renders as "none".
func FormatRanges(sorted []uint16) string {
	if len(sorted) == 0 {
		return "none"
	}

	var b strings.Builder
	writeRun := func(lo, hi uint16) {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(lo)))
		if hi != lo {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(int(hi)))
		}
	}

	lo, hi := sorted[0], sorted[0]
	for _, p := range sorted[1:] {
		if p == hi || p == hi+1 {
			hi = p
			continue
		}
		writeRun(lo, hi)
		lo, hi = p, p
	}
	writeRun(lo, hi)

	return b.String()
}
