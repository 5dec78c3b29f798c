package calendar

import (
	"fmt"
	"math/bits"
	"strings"
	"time"
)

// WeekdaySelection is a set of weekdays. Bit i stands for time.Weekday(i), so the
// integer value is stable and safe to persist.
type WeekdaySelection uint8

const (
	EmptySelection WeekdaySelection = 0
	WholeWeek      WeekdaySelection = 0x7f
	ExceptWeekend                   = WholeWeek &^ (1<<time.Sunday | 1<<time.Saturday)
)

var weekdayNames = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// WeekdaySelectionFromInt decodes a persisted selection. Bits outside the week are dropped.
func WeekdaySelectionFromInt(v int) WeekdaySelection {
	return WeekdaySelection(v) & WholeWeek
}

func (s WeekdaySelection) Int() int {
	return int(s)
}

func (s WeekdaySelection) Select(day time.Weekday) WeekdaySelection {
	return s | 1<<uint(day%7)
}

func (s WeekdaySelection) Deselect(day time.Weekday) WeekdaySelection {
	return s &^ (1 << uint(day%7))
}

func (s WeekdaySelection) IsSelected(day time.Weekday) bool {
	return s&(1<<uint(day%7)) != 0
}

// Count returns the number of selected weekdays
func (s WeekdaySelection) Count() int {
	return bits.OnesCount8(uint8(s & WholeWeek))
}

// Less orders selections by the number of selected days, then by integer value
func (s WeekdaySelection) Less(other WeekdaySelection) bool {
	if s.Count() != other.Count() {
		return s.Count() < other.Count()
	}
	return s < other
}

func (s WeekdaySelection) Weekdays() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.IsSelected(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySelection) String() string {
	names := make([]string, 0, 7)
	for _, d := range s.Weekdays() {
		names = append(names, weekdayNames[d])
	}
	return strings.Join(names, ",")
}

// ParseWeekday accepts three-letter or full English weekday names, case-insensitive
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, short := range weekdayNames {
		if name == short || name == strings.ToLower(time.Weekday(i).String()) {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ParseWeekdaySelection parses a comma separated list such as "mon,tue,wed".
// The words "all" and "weekdays" stand for WholeWeek and ExceptWeekend.
func ParseWeekdaySelection(s string) (WeekdaySelection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return WholeWeek, nil
	case "weekdays":
		return ExceptWeekend, nil
	}

	var sel WeekdaySelection
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		day, err := ParseWeekday(part)
		if err != nil {
			return EmptySelection, err
		}
		sel = sel.Select(day)
	}
	return sel, nil
}

// Previous returns the weekday before day
func Previous(day time.Weekday) time.Weekday {
	return (day + 6) % 7
}
