// Package calendar provides day-granularity calendar arithmetic.
//
// All arithmetic operates on civil dates (DayComponents) rather than instants, so
// results never depend on DST transitions or zone offsets. A Calendar is only needed
// to turn an instant into the day it falls on.
package calendar

import (
	"fmt"
	"time"
)

// DayComponents is a year/month/day triple. Equality ignores any finer time.
type DayComponents struct {
	Year  int
	Month time.Month
	Day   int
}

func (d DayComponents) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsValid reports whether d names an existing calendar day
func (d DayComponents) IsValid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return d.civil().Day() == d.Day && d.civil().Month() == d.Month
}

// civil anchors the day at noon UTC. The time of day only keeps AddDate far from
// any boundary; weekday and day arithmetic on it are pure civil-date operations.
func (d DayComponents) civil() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func fromCivil(t time.Time) DayComponents {
	y, m, dd := t.Date()
	return DayComponents{Year: y, Month: m, Day: dd}
}

// ParseDay parses a YYYY-MM-DD string
func ParseDay(s string) (DayComponents, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return DayComponents{}, fmt.Errorf("failed to parse day %q: %w", s, err)
	}
	return fromCivil(t), nil
}

// Period is a closed day range [Start, End]
type Period struct {
	Start DayComponents
	End   DayComponents
}

func (p Period) String() string {
	return p.Start.String() + ".." + p.End.String()
}

// Calendar resolves instants to days in a time zone
type Calendar struct {
	location *time.Location
}

// New returns a calendar for loc. A nil location means UTC.
func New(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{location: loc}
}

func (c Calendar) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DayComponents returns the day t falls on in the calendar's time zone
func (c Calendar) DayComponents(t time.Time) DayComponents {
	y, m, d := t.In(c.Location()).Date()
	return DayComponents{Year: y, Month: m, Day: d}
}

// Date returns the first instant of d in the calendar's time zone
func (c Calendar) Date(d DayComponents) (time.Time, bool) {
	if !d.IsValid() {
		return time.Time{}, false
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, c.Location()), true
}

// Weekday returns the weekday of d
func Weekday(d DayComponents) (time.Weekday, bool) {
	if !d.IsValid() {
		return 0, false
	}
	return d.civil().Weekday(), true
}

// AddDays returns d shifted by n days
func AddDays(d DayComponents, n int) (DayComponents, bool) {
	if !d.IsValid() {
		return DayComponents{}, false
	}
	return fromCivil(d.civil().AddDate(0, 0, n)), true
}

func FirstDayOfMonth(d DayComponents) DayComponents {
	return DayComponents{Year: d.Year, Month: d.Month, Day: 1}
}

func LastDayOfMonth(d DayComponents) DayComponents {
	return DayComponents{Year: d.Year, Month: d.Month, Day: CountOfDaysInMonth(d)}
}

// CountOfDaysInMonth returns the number of days in d's month
func CountOfDaysInMonth(d DayComponents) int {
	// day 0 of the next month normalizes to the last day of this one
	return time.Date(d.Year, d.Month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

// IsEarlierDay reports whether a falls on a day before b
func IsEarlierDay(a, b DayComponents) bool {
	return compareDays(a, b) < 0
}

// IsLaterDay reports whether a falls on a day after b
func IsLaterDay(a, b DayComponents) bool {
	return compareDays(a, b) > 0
}

func compareDays(a, b DayComponents) int {
	switch {
	case a.Year != b.Year:
		return a.Year - b.Year
	case a.Month != b.Month:
		return int(a.Month) - int(b.Month)
	default:
		return a.Day - b.Day
	}
}

// NextDay returns the day after `after`, or false if it would be later than notLaterThan
func NextDay(after, notLaterThan DayComponents) (DayComponents, bool) {
	next, ok := AddDays(after, 1)
	if !ok || IsLaterDay(next, notLaterThan) {
		return DayComponents{}, false
	}
	return next, true
}

// PreviousDay returns the day before `before`, or false if it would be earlier than notEarlierThan
func PreviousDay(before, notEarlierThan DayComponents) (DayComponents, bool) {
	prev, ok := AddDays(before, -1)
	if !ok || IsEarlierDay(prev, notEarlierThan) {
		return DayComponents{}, false
	}
	return prev, true
}

// Direction of a day search
type Direction int

const (
	Forward Direction = iota
	Backward
)

// FindClosestDay scans at most seven days from `from` (inclusive) in the given direction
// and returns the first one falling on weekday.
func FindClosestDay(weekday time.Weekday, from DayComponents, direction Direction) (DayComponents, bool) {
	step := 1
	if direction == Backward {
		step = -1
	}
	for i := 0; i < 7; i++ {
		candidate, ok := AddDays(from, i*step)
		if !ok {
			return DayComponents{}, false
		}
		if wd, _ := Weekday(candidate); wd == weekday {
			return candidate, true
		}
	}
	return DayComponents{}, false
}

// CountWeekdaysMatching counts the days in [from, to] whose weekday is in selection.
// A range where to is earlier than from contains no days.
func CountWeekdaysMatching(selection WeekdaySelection, from, to DayComponents) (int, bool) {
	if !from.IsValid() || !to.IsValid() {
		return 0, false
	}
	if IsEarlierDay(to, from) {
		return 0, true
	}

	days := int(to.civil().Sub(from.civil()).Hours()/24) + 1
	fullWeeks, rest := days/7, days%7

	count := fullWeeks * selection.Count()
	startWeekday, _ := Weekday(from)
	for i := 0; i < rest; i++ {
		if selection.IsSelected(time.Weekday((int(startWeekday) + i) % 7)) {
			count++
		}
	}
	return count, true
}
