// Package period turns a periodization preference and the current date into the
// concrete day ranges reports and progress are computed over.
package period

import (
	"fmt"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
)

// Kind of periodization
type Kind int

const (
	Monthly Kind = iota
	Weekly
)

// Preference is how the user wants their goal periods laid out
type Preference struct {
	Kind         Kind
	StartWeekday time.Weekday // only meaningful for Weekly
}

func MonthlyPreference() Preference {
	return Preference{Kind: Monthly}
}

func WeeklyPreference(start time.Weekday) Preference {
	return Preference{Kind: Weekly, StartWeekday: start}
}

func (p Preference) String() string {
	if p.Kind == Weekly {
		return fmt.Sprintf("weekly(%s)", p.StartWeekday)
	}
	return "monthly"
}

// Period resolves the full period containing the reference date
func (p Preference) Period(cal calendar.Calendar, reference time.Time) (calendar.Period, bool) {
	today := cal.DayComponents(reference)
	switch p.Kind {
	case Monthly:
		return calendar.Period{
			Start: calendar.FirstDayOfMonth(today),
			End:   calendar.LastDayOfMonth(today),
		}, true
	case Weekly:
		start, ok := calendar.FindClosestDay(p.StartWeekday, today, calendar.Backward)
		if !ok {
			return calendar.Period{}, false
		}
		end, ok := calendar.FindClosestDay(calendar.Previous(p.StartWeekday), today, calendar.Forward)
		if !ok {
			return calendar.Period{}, false
		}
		return calendar.Period{Start: start, End: end}, true
	default:
		return calendar.Period{}, false
	}
}

// TwoPartPeriod splits a reporting scope into the days before the day of request and
// the day of request itself, so the two can be fetched separately.
type TwoPartPeriod struct {
	Scope                  calendar.Period
	PreviousToDayOfRequest *calendar.Period // nil when today is the first day of Scope
	DayOfRequest           calendar.DayComponents
}

// Equal compares by value, including the optional sub-period
func (t TwoPartPeriod) Equal(other TwoPartPeriod) bool {
	if t.Scope != other.Scope || t.DayOfRequest != other.DayOfRequest {
		return false
	}
	if t.PreviousToDayOfRequest == nil || other.PreviousToDayOfRequest == nil {
		return t.PreviousToDayOfRequest == other.PreviousToDayOfRequest
	}
	return *t.PreviousToDayOfRequest == *other.PreviousToDayOfRequest
}

// DayOfRequestPeriod is the single-day period covering the day of request
func (t TwoPartPeriod) DayOfRequestPeriod() calendar.Period {
	return calendar.Period{Start: t.DayOfRequest, End: t.DayOfRequest}
}

// Resolve computes the full period for pref at now and splits it around today
func Resolve(pref Preference, cal calendar.Calendar, now time.Time) (TwoPartPeriod, bool) {
	scope, ok := pref.Period(cal, now)
	if !ok {
		return TwoPartPeriod{}, false
	}
	today := cal.DayComponents(now)

	result := TwoPartPeriod{Scope: scope, DayOfRequest: today}
	if yesterday, ok := calendar.PreviousDay(today, scope.Start); ok {
		result.PreviousToDayOfRequest = &calendar.Period{Start: scope.Start, End: yesterday}
	}
	return result, true
}
