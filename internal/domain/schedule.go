package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Slot is a recurring daily window expressed as minutes after midnight.
type Slot struct {
	StartMinute int
	EndMinute   int
}

// DefaultSlots are the evening drop-in slots offered every day.
func DefaultSlots() []Slot {
	return []Slot{
		{StartMinute: 17 * 60, EndMinute: 19 * 60},
		{StartMinute: 18 * 60, EndMinute: 20 * 60},
		{StartMinute: 19 * 60, EndMinute: 21 * 60},
		{StartMinute: 20 * 60, EndMinute: 22 * 60},
		{StartMinute: 21 * 60, EndMinute: 23 * 60},
		{StartMinute: 22 * 60, EndMinute: 0},
	}
}

// ParseSlot parses "HH:MM-HH:MM". An end at or before the start rolls over to the next day.
func ParseSlot(raw string) (Slot, error) {
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return Slot{}, fmt.Errorf("parse slot %q: expected HH:MM-HH:MM", raw)
	}

	start, err := parseClock(startRaw)
	if err != nil {
		return Slot{}, fmt.Errorf("parse slot %q start: %w", raw, err)
	}
	end, err := parseClock(endRaw)
	if err != nil {
		return Slot{}, fmt.Errorf("parse slot %q end: %w", raw, err)
	}
	if start == end {
		return Slot{}, fmt.Errorf("parse slot %q: start and end are equal", raw)
	}

	return Slot{StartMinute: start, EndMinute: end}, nil
}

func ParseSlots(raw []string) ([]Slot, error) {
	slots := make([]Slot, 0, len(raw))
	for _, entry := range raw {
		slot, err := ParseSlot(entry)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

func (s Slot) String() string {
	return formatClock(s.StartMinute) + "-" + formatClock(s.EndMinute)
}

// WindowOn places the slot on the calendar day of `day` in loc.
func (s Slot) WindowOn(day time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}

	y, m, d := day.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	start := midnight.Add(time.Duration(s.StartMinute) * time.Minute)
	end := midnight.Add(time.Duration(s.EndMinute) * time.Minute)
	if s.EndMinute <= s.StartMinute {
		end = end.AddDate(0, 0, 1)
	}

	return Window{Start: start, End: end}
}

func parseClock(raw string) (int, error) {
	hoursRaw, minutesRaw, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}

	hours, err := strconv.Atoi(hoursRaw)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(minutesRaw)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}

	return hours*60 + minutes, nil
}

func formatClock(minute int) string {
	minute = ((minute % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
