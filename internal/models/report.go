package models

import (
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
)

// ReportEntry is the worked time the reports API returned for one project
type ReportEntry struct {
	ProjectID  int64
	WorkedTime time.Duration
}

// TwoPartTimeReport splits a project's worked time over a period into the time worked
// before the day of request and the time worked on the day of request.
type TwoPartTimeReport struct {
	ProjectID                       int64
	Period                          calendar.Period
	WorkedTimeUntilDayBeforeRequest time.Duration
	WorkedTimeOnDayOfRequest        time.Duration
}

func (r TwoPartTimeReport) WorkedTime() time.Duration {
	return r.WorkedTimeUntilDayBeforeRequest + r.WorkedTimeOnDayOfRequest
}

// ZeroReport stands in for a project the reports API had no entry for
func ZeroReport(projectID int64, period calendar.Period) TwoPartTimeReport {
	return TwoPartTimeReport{ProjectID: projectID, Period: period}
}
