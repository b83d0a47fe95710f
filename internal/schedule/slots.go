package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Slot is a single bookable interval inside working hours, expressed in
// minutes since midnight. Slots are derived, never persisted.
type Slot struct {
	StartMinute int
	EndMinute   int
}

func (s Slot) Start() string { return FormatMinute(s.StartMinute) }
func (s Slot) End() string   { return FormatMinute(s.EndMinute) }

// SlotGrid is the canonical sequence of bookable slots for one working
// day. The same grid applies to every date, so callers can treat it as a
// constant lookup table.
type SlotGrid struct {
	slots []Slot
}

// NewSlotGrid builds the grid from working-hours bounds. The granularity
// must evenly divide the range; anything else is a configuration error
// and fails here rather than silently truncating.
func NewSlotGrid(startMinute, endMinute, granularity int) (*SlotGrid, error) {
	if granularity <= 0 {
		return nil, fmt.Errorf("slot granularity must be positive, got %d", granularity)
	}
	if startMinute < 0 || endMinute > 24*60 {
		return nil, fmt.Errorf("working hours %s-%s outside a single day",
			FormatMinute(startMinute), FormatMinute(endMinute))
	}
	if endMinute <= startMinute {
		return nil, fmt.Errorf("working hours end %s is not after start %s",
			FormatMinute(endMinute), FormatMinute(startMinute))
	}
	span := endMinute - startMinute
	if span%granularity != 0 {
		return nil, fmt.Errorf("granularity %dm does not evenly divide working hours %s-%s",
			granularity, FormatMinute(startMinute), FormatMinute(endMinute))
	}

	slots := make([]Slot, 0, span/granularity)
	for m := startMinute; m < endMinute; m += granularity {
		slots = append(slots, Slot{StartMinute: m, EndMinute: m + granularity})
	}
	return &SlotGrid{slots: slots}, nil
}

// Slots returns the ordered grid. Callers must not mutate the result.
func (g *SlotGrid) Slots() []Slot { return g.slots }

func (g *SlotGrid) Len() int { return len(g.slots) }

// FormatMinute renders minutes since midnight as HH:MM.
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseMinute parses an HH:MM wall-clock time into minutes since midnight.
func ParseMinute(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q is out of range", s)
	}
	return h*60 + m, nil
}
