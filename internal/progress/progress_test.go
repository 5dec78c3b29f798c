package progress

import (
	"testing"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/models"
)

const projectID int64 = 4242

func day(t *testing.T, s string) *calendar.DayComponents {
	t.Helper()
	d, err := calendar.ParseDay(s)
	if err != nil {
		t.Fatal(err)
	}
	return &d
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// fixture: 95h in October 2017 on weekdays, 26h worked until the 10th, 3h on the 11th
// and a timer running for 1.5h on the same project.
func fixture(t *testing.T, strategyStart string) Inputs {
	t.Helper()
	cal := calendar.New(time.UTC)
	now := time.Date(2017, 10, 11, 18, 0, 0, 0, time.UTC)
	return Inputs{
		ProjectID: projectID,
		Target:    &models.TimeTarget{ProjectID: projectID, HoursTarget: 95, WorkWeekdays: calendar.ExceptWeekend},
		Report: &models.TwoPartTimeReport{
			ProjectID:                       projectID,
			Period:                          calendar.Period{Start: *day(t, "2017-10-01"), End: *day(t, "2017-10-11")},
			WorkedTimeUntilDayBeforeRequest: hours(26),
			WorkedTimeOnDayOfRequest:        hours(3),
		},
		RunningEntry: &models.RunningEntry{
			ID:        1,
			ProjectID: projectID,
			Start:     now.Add(-hours(1.5)),
		},
		StartGoalDay:     day(t, "2017-10-01"),
		EndGoalDay:       day(t, "2017-10-31"),
		StartStrategyDay: day(t, strategyStart),
		Now:              &now,
		Calendar:         &cal,
	}
}

func TestCompute_StrategyStartsTomorrow(t *testing.T) {
	p, ok := Compute(fixture(t, "2017-10-12"), DefaultFeasibilityThreshold)
	if !ok {
		t.Fatal("expected a result")
	}

	if p.TotalWorkDays != (NullInt{Int: 22, Valid: true}) {
		t.Errorf("expected 22 total work days, got %+v", p.TotalWorkDays)
	}
	if p.RemainingWorkDays != (NullInt{Int: 14, Valid: true}) {
		t.Errorf("expected 14 remaining work days, got %+v", p.RemainingWorkDays)
	}
	if p.StrategyStartsToday {
		t.Error("expected strategy not to start today")
	}
	if p.WorkedTime != hours(30.5) {
		t.Errorf("expected 30.5h worked, got %v", p.WorkedTime)
	}
	if p.RemainingTimeToTarget != hours(64.5) {
		t.Errorf("expected 64.5h remaining, got %v", p.RemainingTimeToTarget)
	}
	if p.DayBaseline != validDuration(hours(95)/22) {
		t.Errorf("expected baseline 95h/22, got %+v", p.DayBaseline)
	}
	if p.DayBaselineAdjustedToProgress != validDuration(hours(64.5)/14) {
		t.Errorf("expected adjusted baseline 64.5h/14, got %+v", p.DayBaselineAdjustedToProgress)
	}
	if !p.DayBaselineDifferential.Valid {
		t.Error("expected a differential")
	}
	if p.TimeWorkedToday != hours(4.5) {
		t.Errorf("expected 4.5h worked today, got %v", p.TimeWorkedToday)
	}
	if p.RemainingTimeToDayBaseline.Valid {
		t.Error("expected no remaining time to day baseline when strategy does not start today")
	}
	if p.Feasibility == nil || p.Feasibility.Level != Feasible {
		t.Errorf("expected feasible, got %+v", p.Feasibility)
	}
}

func TestCompute_StrategyStartsToday(t *testing.T) {
	p, ok := Compute(fixture(t, "2017-10-11"), DefaultFeasibilityThreshold)
	if !ok {
		t.Fatal("expected a result")
	}

	if !p.StrategyStartsToday {
		t.Error("expected strategy to start today")
	}
	if p.WorkedTime != hours(26) {
		t.Errorf("expected 26h worked, got %v", p.WorkedTime)
	}
	if p.RemainingWorkDays.Int != 15 {
		t.Errorf("expected 15 remaining work days, got %d", p.RemainingWorkDays.Int)
	}
	if p.RemainingTimeToTarget != hours(69) {
		t.Errorf("expected 69h remaining, got %v", p.RemainingTimeToTarget)
	}
	adjusted := hours(69) / 15
	if p.DayBaselineAdjustedToProgress != validDuration(adjusted) {
		t.Errorf("expected adjusted baseline 69h/15, got %+v", p.DayBaselineAdjustedToProgress)
	}
	// running time counts towards today regardless of where the strategy starts
	if p.TimeWorkedToday != hours(4.5) {
		t.Errorf("expected 4.5h worked today, got %v", p.TimeWorkedToday)
	}
	if p.RemainingTimeToDayBaseline != validDuration(adjusted-hours(4.5)) {
		t.Errorf("expected remaining to day baseline %v, got %+v", adjusted-hours(4.5), p.RemainingTimeToDayBaseline)
	}
}

func TestCompute_RunningEntryOnOtherProject(t *testing.T) {
	in := fixture(t, "2017-10-12")
	in.RunningEntry.ProjectID = projectID + 1

	p, _ := Compute(in, DefaultFeasibilityThreshold)
	if p.WorkedTime != hours(29) {
		t.Errorf("expected 29h worked, got %v", p.WorkedTime)
	}
	if p.TimeWorkedToday != hours(3) {
		t.Errorf("expected 3h worked today, got %v", p.TimeWorkedToday)
	}
}

func TestCompute_MissingReportCountsAsZero(t *testing.T) {
	for _, start := range []string{"2017-10-11", "2017-10-12"} {
		in := fixture(t, start)
		in.Report = nil
		in.RunningEntry = nil

		p, ok := Compute(in, DefaultFeasibilityThreshold)
		if !ok {
			t.Fatal("expected a result without a report")
		}
		if p.WorkedTime != 0 || p.TimeWorkedToday != 0 {
			t.Errorf("strategy %s: expected no worked time, got %v / %v", start, p.WorkedTime, p.TimeWorkedToday)
		}
		if p.RemainingTimeToTarget != hours(95) {
			t.Errorf("strategy %s: expected 95h remaining, got %v", start, p.RemainingTimeToTarget)
		}
	}
}

func TestCompute_RequiresInputs(t *testing.T) {
	in := fixture(t, "2017-10-12")
	in.Target = nil
	if _, ok := Compute(in, DefaultFeasibilityThreshold); ok {
		t.Error("expected no result without a target")
	}

	in = fixture(t, "2017-10-12")
	in.Now = nil
	if _, ok := Compute(in, DefaultFeasibilityThreshold); ok {
		t.Error("expected no result without the current time")
	}
}

func TestCompute_RemainingTimesNeverNegative(t *testing.T) {
	for _, start := range []string{"2017-10-11", "2017-10-12", "2017-10-31"} {
		for _, worked := range []float64{0, 10, 95, 200} {
			in := fixture(t, start)
			in.Report.WorkedTimeUntilDayBeforeRequest = hours(worked)
			in.Report.WorkedTimeOnDayOfRequest = hours(worked / 2)

			p, _ := Compute(in, DefaultFeasibilityThreshold)
			if p.RemainingTimeToTarget < 0 {
				t.Errorf("start %s worked %v: negative remaining time %v", start, worked, p.RemainingTimeToTarget)
			}
			if p.RemainingTimeToDayBaseline.Valid && p.RemainingTimeToDayBaseline.Duration < 0 {
				t.Errorf("start %s worked %v: negative remaining to baseline %v", start, worked, p.RemainingTimeToDayBaseline)
			}
		}
	}
}

func TestCompute_NoWorkDays(t *testing.T) {
	in := fixture(t, "2017-10-12")
	in.Target.WorkWeekdays = calendar.EmptySelection

	p, _ := Compute(in, DefaultFeasibilityThreshold)
	if p.DayBaseline != validDuration(0) || p.DayBaselineAdjustedToProgress != validDuration(0) {
		t.Errorf("expected zero baselines, got %+v / %+v", p.DayBaseline, p.DayBaselineAdjustedToProgress)
	}
	if p.DayBaselineDifferential.Valid {
		t.Error("expected no differential for a zero baseline")
	}
}

func TestCompute_InvalidRange(t *testing.T) {
	in := fixture(t, "2017-10-12")
	in.EndGoalDay = &calendar.DayComponents{Year: 2017, Month: time.February, Day: 31}

	p, ok := Compute(in, DefaultFeasibilityThreshold)
	if !ok {
		t.Fatal("expected a result even for an invalid range")
	}
	if p.TotalWorkDays.Valid || p.DayBaseline.Valid || p.DayBaselineDifferential.Valid || p.Feasibility != nil {
		t.Errorf("expected undetermined values, got %+v", p)
	}
}

func TestClassifyFeasibility(t *testing.T) {
	tests := []struct {
		perDay   time.Duration
		level    Level
		relative float64
	}{
		{0, Feasible, 1},
		{8 * time.Hour, Feasible, 0.5},
		{16 * time.Hour, Unfeasible, 1 - 16.0/24},
		{18 * time.Hour, Unfeasible, 0.25},
		{24 * time.Hour, Impossible, 0},
		{30 * time.Hour, Impossible, 0},
	}
	for _, tt := range tests {
		got := ClassifyFeasibility(tt.perDay, DefaultFeasibilityThreshold)
		if got.Level != tt.level {
			t.Errorf("%v: expected %s, got %s", tt.perDay, tt.level, got.Level)
		}
		if diff := got.Relative - tt.relative; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%v: expected relative %v, got %v", tt.perDay, tt.relative, got.Relative)
		}
	}

	if got := ClassifyFeasibility(10*time.Hour, 8*time.Hour); got.Level != Unfeasible {
		t.Errorf("expected custom threshold to apply, got %s", got.Level)
	}
}
