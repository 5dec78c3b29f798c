// Package progress derives worked time, remaining time, day baselines and feasibility
// for a project's time target.
package progress

import (
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/models"
)

// NullDuration is a duration that may be undetermined, in the manner of sql.NullInt64
type NullDuration struct {
	Duration time.Duration
	Valid    bool
}

func validDuration(d time.Duration) NullDuration {
	return NullDuration{Duration: d, Valid: true}
}

// NullInt is a day count that may be undetermined
type NullInt struct {
	Int   int
	Valid bool
}

// NullFloat64 is a ratio that may be undetermined
type NullFloat64 struct {
	Float64 float64
	Valid   bool
}

// Inputs are everything a progress computation depends on. Report and RunningEntry
// are optional; everything else must be present for a result to be produced.
type Inputs struct {
	ProjectID        int64
	Target           *models.TimeTarget
	Report           *models.TwoPartTimeReport
	RunningEntry     *models.RunningEntry
	StartGoalDay     *calendar.DayComponents
	EndGoalDay       *calendar.DayComponents
	StartStrategyDay *calendar.DayComponents
	Now              *time.Time
	Calendar         *calendar.Calendar
}

func (in Inputs) complete() bool {
	return in.Target != nil &&
		in.StartGoalDay != nil &&
		in.EndGoalDay != nil &&
		in.StartStrategyDay != nil &&
		in.Now != nil &&
		in.Calendar != nil
}

// Progress is the result of a computation. Undeterminable values have Valid == false.
type Progress struct {
	TotalWorkDays                 NullInt
	RemainingWorkDays             NullInt
	StrategyStartsToday           bool
	WorkedTime                    time.Duration
	RemainingTimeToTarget         time.Duration
	DayBaseline                   NullDuration
	DayBaselineAdjustedToProgress NullDuration
	DayBaselineDifferential       NullFloat64
	TimeWorkedToday               time.Duration
	RemainingTimeToDayBaseline    NullDuration
	Feasibility                   *Feasibility
}

// Equal compares two results by value
func (p Progress) Equal(other Progress) bool {
	if (p.Feasibility == nil) != (other.Feasibility == nil) {
		return false
	}
	if p.Feasibility != nil && *p.Feasibility != *other.Feasibility {
		return false
	}
	a, b := p, other
	a.Feasibility, b.Feasibility = nil, nil
	return a == b
}

// Compute derives progress from in. It returns false until every required input is present.
func Compute(in Inputs, feasibilityThreshold time.Duration) (Progress, bool) {
	if !in.complete() {
		return Progress{}, false
	}

	target := in.Target
	var p Progress

	if n, ok := calendar.CountWeekdaysMatching(target.WorkWeekdays, *in.StartGoalDay, *in.EndGoalDay); ok {
		p.TotalWorkDays = NullInt{Int: n, Valid: true}
	}
	if n, ok := calendar.CountWeekdaysMatching(target.WorkWeekdays, *in.StartStrategyDay, *in.EndGoalDay); ok {
		p.RemainingWorkDays = NullInt{Int: n, Valid: true}
	}

	today := in.Calendar.DayComponents(*in.Now)
	p.StrategyStartsToday = today == *in.StartStrategyDay

	running := runningEntryContribution(in)
	p.WorkedTime = workedTime(in.Report, running, p.StrategyStartsToday)

	p.RemainingTimeToTarget = target.TargetTime() - p.WorkedTime
	if p.RemainingTimeToTarget < 0 {
		p.RemainingTimeToTarget = 0
	}

	p.DayBaseline = perDay(target.TargetTime(), p.TotalWorkDays)
	p.DayBaselineAdjustedToProgress = perDay(p.RemainingTimeToTarget, p.RemainingWorkDays)
	p.DayBaselineDifferential = differential(p.DayBaseline, p.DayBaselineAdjustedToProgress)

	p.TimeWorkedToday = running
	if in.Report != nil {
		p.TimeWorkedToday += in.Report.WorkedTimeOnDayOfRequest
	}

	if p.StrategyStartsToday && p.DayBaselineAdjustedToProgress.Valid {
		remaining := p.DayBaselineAdjustedToProgress.Duration - p.TimeWorkedToday
		if remaining < 0 {
			remaining = 0
		}
		p.RemainingTimeToDayBaseline = validDuration(remaining)
	}

	if p.DayBaselineAdjustedToProgress.Valid {
		f := ClassifyFeasibility(p.DayBaselineAdjustedToProgress.Duration, feasibilityThreshold)
		p.Feasibility = &f
	}

	return p, true
}

func runningEntryContribution(in Inputs) time.Duration {
	if in.RunningEntry == nil || in.RunningEntry.ProjectID != in.ProjectID {
		return 0
	}
	return in.RunningEntry.RunningTime(*in.Now)
}

// workedTime leaves today's work out when the strategy starts today: it counts
// towards what remains to be done today instead.
func workedTime(report *models.TwoPartTimeReport, running time.Duration, strategyStartsToday bool) time.Duration {
	if strategyStartsToday {
		if report == nil {
			return 0
		}
		return report.WorkedTimeUntilDayBeforeRequest
	}
	if report == nil {
		return running
	}
	return report.WorkedTime() + running
}

func perDay(total time.Duration, days NullInt) NullDuration {
	if !days.Valid {
		return NullDuration{}
	}
	if days.Int <= 0 {
		return validDuration(0)
	}
	return validDuration(total / time.Duration(days.Int))
}

// differential is undetermined for a zero baseline as the ratio would not be finite
func differential(baseline, adjusted NullDuration) NullFloat64 {
	if !baseline.Valid || !adjusted.Valid || baseline.Duration == 0 {
		return NullFloat64{}
	}
	diff := float64(adjusted.Duration-baseline.Duration) / float64(baseline.Duration)
	return NullFloat64{Float64: diff, Valid: true}
}
